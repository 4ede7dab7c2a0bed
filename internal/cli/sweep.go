package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/output"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue pending actions now",
	Long: `Run one expiry sweep immediately.

The daemon runs this on a schedule; the command exists for cron-less setups
and for forcing a pass after changing TTL settings.`,
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

		result, err := svc.Sweep()
		if err != nil {
			return fmt.Errorf("sweeping: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		if out.IsJSON() {
			return out.Write(result)
		}
		if err := out.Write(map[string]any{"expired": result.Expired}); err != nil {
			return err
		}
		if len(result.StaleConfirmed) > 0 {
			output.OutputList("stale confirmed: ", result.StaleConfirmed)
		}
		return nil
	},
}
