// Package cli implements policy inspection commands.
package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/output"
	"github.com/amie-labs/agentgate/internal/policy"
)

var (
	flagPolicyUser       string
	flagPolicyConfidence float64
)

func init() {
	policyShowCmd.Flags().StringVarP(&flagPolicyUser, "user", "u", "", "user ID (required)")
	policyCheckCmd.Flags().StringVarP(&flagPolicyUser, "user", "u", "", "user ID (required)")
	policyCheckCmd.Flags().Float64Var(&flagPolicyConfidence, "confidence", 0, "model confidence score in [0,1]")

	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyRisksCmd)
	policyCmd.AddCommand(policyCheckCmd)
	rootCmd.AddCommand(policyCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect risk classification and effective policy",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's effective policy",
	Long: `Show the merged permission set for a user: their own settings constrained
by the team ceiling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPolicyUser == "" {
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

		eff, err := svc.EffectivePolicy(flagPolicyUser)
		if err != nil {
			return fmt.Errorf("resolving policy: %w", err)
		}
		return output.New(output.Format(GetOutput())).Write(eff)
	},
}

var policyRisksCmd = &cobra.Command{
	Use:   "risks",
	Short: "Show the action-type risk classification table",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := policy.KnownActionTypes()
		types := make([]string, 0, len(table))
		for t := range table {
			types = append(types, t)
		}
		sort.Strings(types)

		out := output.New(output.Format(GetOutput()))
		if out.IsJSON() {
			return out.Write(table)
		}
		rows := make([][]string, len(types))
		for i, t := range types {
			rows[i] = []string{t, string(table[t]), string(policy.ChannelFor(t))}
		}
		output.OutputTable([]string{"ACTION TYPE", "RISK", "CHANNEL"}, rows)
		return nil
	},
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <action-type>",
	Short: "Dry-run the confirmation gateway for an action type",
	Long: `Evaluate what the gateway would decide for an action type and confidence
score under a user's effective policy, without creating a record.

Examples:
  agentgate policy check send_email -u user-1 --confidence 0.95
  agentgate policy check create_task -u user-1 --confidence 0.9`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actionType := args[0]
		if flagPolicyUser == "" {
			return fmt.Errorf("--user is required")
		}
		if flagPolicyConfidence < 0 || flagPolicyConfidence > 1 {
			return fmt.Errorf("--confidence must be in [0,1]")
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

		eff, err := svc.EffectivePolicy(flagPolicyUser)
		if err != nil {
			return fmt.Errorf("resolving policy: %w", err)
		}

		risk := policy.Classify(actionType)
		decision := policy.Decide(policy.Proposal{
			ActionType:      actionType,
			RiskLevel:       risk,
			ConfidenceScore: flagPolicyConfidence,
		}, eff, time.Now().UTC())

		resp := map[string]any{
			"action_type": actionType,
			"risk_level":  string(risk),
			"channel":     string(policy.ChannelFor(actionType)),
			"outcome":     string(decision.Outcome),
		}
		if decision.Reason != "" {
			resp["reason"] = string(decision.Reason)
		}
		if decision.AdminRequired {
			resp["admin_required"] = true
		}
		if !policy.IsKnownActionType(actionType) {
			resp["note"] = "unknown action type, classified medium"
		}
		return output.New(output.Format(GetOutput())).Write(resp)
	},
}
