// Package cli implements listing and inspection commands.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/db"
	"github.com/amie-labs/agentgate/internal/output"
)

var (
	flagListUser  string
	flagListLimit int

	flagHistoryUser  string
	flagHistoryType  string
	flagHistoryState string
	flagHistoryLimit int
)

func init() {
	pendingCmd.Flags().StringVarP(&flagListUser, "user", "u", "", "filter by user")
	pendingCmd.Flags().IntVar(&flagListLimit, "limit", 50, "maximum actions to list")

	historyCmd.Flags().StringVarP(&flagHistoryUser, "user", "u", "", "filter by user")
	historyCmd.Flags().StringVar(&flagHistoryType, "type", "", "filter by action type")
	historyCmd.Flags().StringVar(&flagHistoryState, "status", "", "filter by final status")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "maximum records to list")

	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List actions awaiting confirmation",
	Long: `List pending actions, lazily expiring any whose window has passed.

Examples:
  agentgate pending
  agentgate pending -u user-1 -j`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, dbConn, err := newService(cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		actions, err := svc.ListPending(flagListUser, flagListLimit)
		if err != nil {
			return fmt.Errorf("listing pending actions: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		if out.IsJSON() {
			return out.Write(map[string]any{
				"actions": actions,
				"count":   len(actions),
			})
		}

		if len(actions) == 0 {
			return out.Write("no pending actions")
		}
		rows := make([][]string, len(actions))
		for i, a := range actions {
			rows[i] = []string{
				a.ID, a.UserID, a.ActionType, string(a.RiskLevel),
				fmt.Sprintf("%.2f", a.ConfidenceScore),
				a.ExpiresAt.Format(time.RFC3339),
			}
		}
		output.OutputTable([]string{"ID", "USER", "TYPE", "RISK", "CONFIDENCE", "EXPIRES"}, rows)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <action-id>",
	Short: "Show the current state of an action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, dbConn, err := newService(cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		action, err := svc.Get(args[0])
		if err != nil {
			return fmt.Errorf("getting action: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		if out.IsJSON() {
			return out.Write(action)
		}
		resp := map[string]any{
			"action_id":  action.ID,
			"user":       action.UserID,
			"type":       action.ActionType,
			"risk_level": string(action.RiskLevel),
			"confidence": action.ConfidenceScore,
			"status":     string(action.Status),
			"created_at": action.CreatedAt.Format(time.RFC3339),
			"expires_at": action.ExpiresAt.Format(time.RFC3339),
		}
		if action.DecisionReason != "" {
			resp["decision_reason"] = action.DecisionReason
		}
		if action.ConfirmedAt != nil {
			resp["confirmed_at"] = formatTime(action.ConfirmedAt)
			resp["confirmed_by"] = action.ConfirmedBy
		}
		if action.ExecutedAt != nil {
			resp["executed_at"] = formatTime(action.ExecutedAt)
		}
		if action.ErrorMessage != "" {
			resp["error_message"] = action.ErrorMessage
		}
		return out.Write(resp)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List resolved actions from the durable log",
	Long:  `List the append-only history of resolved actions (cancelled, expired, executed, failed).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, dbConn, err := newService(cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		records, err := dbConn.ListHistory(db.HistoryFilter{
			UserID:     flagHistoryUser,
			ActionType: flagHistoryType,
			Status:     db.ActionStatus(flagHistoryState),
			Limit:      flagHistoryLimit,
		})
		if err != nil {
			return fmt.Errorf("listing history: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		if out.IsJSON() {
			return out.Write(map[string]any{
				"records": records,
				"count":   len(records),
			})
		}

		if len(records) == 0 {
			return out.Write("no history records")
		}
		rows := make([][]string, len(records))
		for i, h := range records {
			rows[i] = []string{
				h.ActionID, h.UserID, h.ActionType, string(h.RiskLevel),
				string(h.FinalStatus), h.ResolvedAt.Format(time.RFC3339),
			}
		}
		output.OutputTable([]string{"ACTION", "USER", "TYPE", "RISK", "STATUS", "RESOLVED"}, rows)
		return nil
	},
}
