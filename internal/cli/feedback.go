// Package cli implements feedback capture and analytics commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/core"
	"github.com/amie-labs/agentgate/internal/output"
)

var (
	flagFeedbackThumbs  string
	flagFeedbackRating  int
	flagFeedbackComment string

	flagExportFormat string
	flagExportOut    string
	flagExportRecent int
)

func init() {
	feedbackRecordCmd.Flags().StringVar(&flagFeedbackThumbs, "thumbs", "", "quick feedback: up or down")
	feedbackRecordCmd.Flags().IntVar(&flagFeedbackRating, "rating", 0, "detailed rating from 1 to 5")
	feedbackRecordCmd.Flags().StringVar(&flagFeedbackComment, "comment", "", "optional free-text comment")

	feedbackExportCmd.Flags().StringVarP(&flagExportFormat, "format", "f", "json", "export format (json|yaml)")
	feedbackExportCmd.Flags().StringVar(&flagExportOut, "out", "", "write to file instead of stdout")
	feedbackExportCmd.Flags().IntVar(&flagExportRecent, "recent", 20, "number of recent entries to include")

	feedbackCmd.AddCommand(feedbackRecordCmd)
	feedbackCmd.AddCommand(feedbackStatsCmd)
	feedbackCmd.AddCommand(feedbackExportCmd)
	rootCmd.AddCommand(feedbackCmd)
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record and analyze feedback on executed actions",
}

var feedbackRecordCmd = &cobra.Command{
	Use:   "record <action-id>",
	Short: "Record feedback on an executed action",
	Long: `Record a user reaction to an action that reached execution.

Quick feedback is a thumbs up or down; detailed feedback is a 1-5 rating with
an optional comment. At least one of --thumbs and --rating is required.

Examples:
  agentgate feedback record 4fd2... --thumbs up
  agentgate feedback record 4fd2... --rating 4 --comment "right call"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagFeedbackThumbs == "" && flagFeedbackRating == 0 {
			return fmt.Errorf("one of --thumbs or --rating is required")
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

		f, err := svc.RecordFeedback(core.RecordFeedbackOptions{
			ActionID: args[0],
			Thumbs:   flagFeedbackThumbs,
			Rating:   flagFeedbackRating,
			Comment:  flagFeedbackComment,
		})
		if err != nil {
			return fmt.Errorf("recording feedback: %w", err)
		}

		resp := map[string]any{
			"feedback_id": f.ID,
			"action_id":   f.ActionID,
			"kind":        string(f.Kind),
		}
		if f.Thumbs != "" {
			resp["thumbs"] = f.Thumbs
		}
		if f.Rating != nil {
			resp["rating"] = *f.Rating
		}
		return output.New(output.Format(GetOutput())).Write(resp)
	},
}

var feedbackStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate feedback statistics",
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

		stats, err := dbConn.GetFeedbackStats()
		if err != nil {
			return fmt.Errorf("computing feedback stats: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		if out.IsJSON() {
			return out.Write(stats)
		}
		return out.Write(map[string]any{
			"total_entries":     stats.TotalEntries,
			"thumbs_up":         stats.ThumbsUp,
			"thumbs_down":       stats.ThumbsDown,
			"approval_rate_pct": stats.ApprovalRatePct,
			"rated_count":       stats.RatedCount,
			"avg_rating":        fmt.Sprintf("%.2f", stats.AvgRating),
		})
	},
}

var feedbackExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export feedback analytics as JSON or YAML",
	Long: `Build a structured analytics export: aggregate stats, per-action-type
breakdown, and recent entries.

Examples:
  agentgate feedback export
  agentgate feedback export -f yaml --out analytics.yaml`,
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

		export, err := svc.BuildAnalyticsExport(flagExportRecent)
		if err != nil {
			return fmt.Errorf("building analytics export: %w", err)
		}
		data, err := core.EncodeAnalyticsExport(export, core.ExportFormat(flagExportFormat))
		if err != nil {
			return err
		}

		if flagExportOut != "" {
			if err := os.WriteFile(flagExportOut, data, 0o600); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			return output.New(output.Format(GetOutput())).Write(map[string]any{
				"written": flagExportOut,
				"bytes":   len(data),
			})
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}
