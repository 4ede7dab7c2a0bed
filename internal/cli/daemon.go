package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/config"
	"github.com/amie-labs/agentgate/internal/daemon"
	"github.com/amie-labs/agentgate/internal/utils"
)

func init() {
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sweep daemon",
	Long: `Run the background daemon in the foreground.

The daemon expires overdue pending actions on the configured cron schedule,
reports confirmed actions that never executed, and hot-reloads lifecycle
settings when the config file changes. Stop it with SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := utils.InitDaemonLogger(cfg.Daemon.LogFile, cfg.Daemon.LogLevel)
		if err != nil {
			return err
		}

		svc, dbConn, err := newService(cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		configPath := flagConfig
		if configPath == "" {
			configPath = config.UserConfigPath()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return daemon.New(svc, cfg, configPath, logger).Run(ctx)
	},
}
