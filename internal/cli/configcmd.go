// Package cli implements the config command for viewing and editing settings.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/config"
	"github.com/amie-labs/agentgate/internal/output"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit agentgate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after applying defaults, config files, environment variables and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := output.New(output.Format(GetOutput()))
		if out.IsJSON() {
			return out.Write(cfg)
		}
		return out.Write(map[string]any{
			"general.pending_ttl_minutes":     cfg.General.PendingTTLMinutes,
			"general.stale_confirmed_minutes": cfg.General.StaleConfirmedMinutes,
			"general.default_team_id":         cfg.General.DefaultTeamID,
			"daemon.sweep_schedule":           cfg.Daemon.SweepSchedule,
			"daemon.watch_config":             cfg.Daemon.WatchConfig,
			"daemon.log_level":                cfg.Daemon.LogLevel,
			"daemon.log_file":                 cfg.Daemon.LogFile,
			"dispatch.function_url":           cfg.Dispatch.FunctionURL,
			"dispatch.bearer_token_env":       cfg.Dispatch.BearerTokenEnv,
			"dispatch.timeout_seconds":        cfg.Dispatch.TimeoutSecs,
			"history.database_path":           cfg.History.DatabasePath,
			"history.retention_days":          cfg.History.RetentionDays,
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key in the config file",
	Long: `Set a key in the user config file (or the file given with --config).

Examples:
  agentgate config set daemon.sweep_schedule "*/5 * * * *"
  agentgate config set dispatch.function_url https://functions.example.com/agent`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]

		value, err := config.ParseValue(key, raw)
		if err != nil {
			return err
		}

		path := flagConfig
		if path == "" {
			path = config.UserConfigPath()
		}
		if err := config.WriteValue(path, key, value); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		// Reload to catch values the validator rejects in combination.
		if _, err := config.Load(config.LoadOptions{ConfigPath: flagConfig}); err != nil {
			return fmt.Errorf("config is now invalid: %w", err)
		}

		return output.New(output.Format(GetOutput())).Write(map[string]any{
			"path":  path,
			"key":   key,
			"value": raw,
		})
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.New(output.Format(GetOutput())).Write(map[string]any{
			"path": config.UserConfigPath(),
		})
	},
}
