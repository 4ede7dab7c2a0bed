// Package cli implements the confirm and cancel commands.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/core"
	"github.com/amie-labs/agentgate/internal/output"
)

var (
	flagConfirmActor string
	flagConfirmAdmin bool
	flagCancelReason string
)

func init() {
	confirmCmd.Flags().StringVarP(&flagConfirmActor, "actor", "a", "", "identity of the confirming user (required)")
	confirmCmd.Flags().BoolVar(&flagConfirmAdmin, "admin", false, "confirm as a team admin (required for escalated critical actions)")
	cancelCmd.Flags().StringVarP(&flagCancelReason, "reason", "r", "", "cancellation reason")

	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(cancelCmd)
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <action-id>",
	Short: "Confirm a pending action and dispatch it",
	Long: `Confirm a pending action, allowing it to execute.

Expired actions are rejected and marked expired. Actions escalated by team
policy require --admin. Confirming an action that already resolved returns
its terminal state without error.

Examples:
  agentgate confirm 4fd2... -a user-1
  agentgate confirm 4fd2... -a admin-2 --admin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actionID := args[0]
		if flagConfirmActor == "" {
			return fmt.Errorf("--actor is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, dbConn, err := newService(cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		result, err := svc.Confirm(cmd.Context(), actionID, core.ConfirmOptions{
			Actor: flagConfirmActor,
			Admin: flagConfirmAdmin,
		})
		if err != nil {
			return fmt.Errorf("confirming action: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		resp := map[string]any{
			"action_id": result.Action.ID,
			"status":    string(result.Action.Status),
			"changed":   result.Changed,
		}
		if result.Action.ConfirmedAt != nil {
			resp["confirmed_at"] = result.Action.ConfirmedAt.Format(time.RFC3339)
			resp["confirmed_by"] = result.Action.ConfirmedBy
		}
		if result.Execution != nil {
			resp["executed"] = result.Execution.Executed
			if result.Execution.ErrorMessage != "" {
				resp["error_kind"] = string(result.Execution.ErrorKind)
				resp["error_message"] = result.Execution.ErrorMessage
			}
		}
		return out.Write(resp)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <action-id>",
	Short: "Cancel a pending action",
	Long: `Cancel a pending action before it executes.

Cancellation is always safe: nothing runs before confirmation. Cancelling an
already-cancelled action returns the same terminal state without error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actionID := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, dbConn, err := newService(cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		result, err := svc.Cancel(actionID, flagCancelReason)
		if err != nil {
			return fmt.Errorf("cancelling action: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		resp := map[string]any{
			"action_id": result.Action.ID,
			"status":    string(result.Action.Status),
			"changed":   result.Changed,
		}
		if result.Action.CancelledAt != nil {
			resp["cancelled_at"] = result.Action.CancelledAt.Format(time.RFC3339)
		}
		if result.Action.CancelReason != "" {
			resp["cancel_reason"] = result.Action.CancelReason
		}
		return out.Write(resp)
	},
}
