// Package cli implements the propose command used by the agent runtime.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/core"
	"github.com/amie-labs/agentgate/internal/output"
	"github.com/amie-labs/agentgate/internal/policy"
)

var (
	flagProposeUser       string
	flagProposePayload    string
	flagProposeConfidence float64
)

func init() {
	proposeCmd.Flags().StringVarP(&flagProposeUser, "user", "u", "", "user the agent acts for (required)")
	proposeCmd.Flags().StringVarP(&flagProposePayload, "payload", "p", "{}", "action payload as a JSON object")
	proposeCmd.Flags().Float64Var(&flagProposeConfidence, "confidence", 0, "model confidence score in [0,1]")

	rootCmd.AddCommand(proposeCmd)
}

var proposeCmd = &cobra.Command{
	Use:   "propose <action-type>",
	Short: "Propose an agent action through the policy gate",
	Long: `Propose an action on behalf of a user.

The action is classified by risk, checked against the user's effective policy,
and either blocked, auto-approved and dispatched, or parked as a pending
record awaiting confirmation.

Examples:
  agentgate propose create_task -u user-1 --confidence 0.9 -p '{"title":"Water plants"}'
  agentgate propose send_email -u user-1 --confidence 0.95 -p '{"subject":"Weekly review"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actionType := args[0]
		if flagProposeUser == "" {
			return fmt.Errorf("--user is required")
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

		out := output.New(output.Format(GetOutput()))
		result, err := svc.Propose(cmd.Context(), core.ProposeOptions{
			UserID:          flagProposeUser,
			ActionType:      actionType,
			Payload:         flagProposePayload,
			ConfidenceScore: flagProposeConfidence,
		})
		if err != nil {
			if result != nil && result.Decision.Outcome == policy.OutcomeBlock {
				if out.IsJSON() {
					return output.OutputJSONError(err, string(result.Decision.Reason))
				}
			}
			return fmt.Errorf("proposing action: %w", err)
		}

		resp := map[string]any{
			"outcome": string(result.Decision.Outcome),
		}
		if result.Decision.Reason != "" {
			resp["reason"] = string(result.Decision.Reason)
		}
		if result.Action != nil {
			resp["action_id"] = result.Action.ID
			resp["risk_level"] = string(result.Action.RiskLevel)
			resp["status"] = string(result.Action.Status)
			resp["expires_at"] = result.Action.ExpiresAt.Format(time.RFC3339)
			if result.Action.AdminRequired {
				resp["admin_required"] = true
			}
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
