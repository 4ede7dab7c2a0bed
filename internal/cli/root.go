// Package cli implements the agentgate command-line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/config"
	"github.com/amie-labs/agentgate/internal/core"
	"github.com/amie-labs/agentgate/internal/db"
	"github.com/amie-labs/agentgate/internal/dispatch"
)

var (
	flagDB     string
	flagOutput string
	flagJSON   bool
	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:   "agentgate",
	Short: "Policy gate for agent-proposed actions",
	Long: `agentgate owns the pending-action lifecycle for the AMIE assistant.

An agent runtime proposes an action; agentgate classifies its risk, resolves
the user's effective policy (user settings constrained by the team ceiling),
and either blocks it, auto-approves and dispatches it, or parks it as a
time-limited pending record awaiting explicit confirmation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default ~/.agentgate/state.db)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format (text|json)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output json")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetDB returns the effective database path.
func GetDB() string {
	if flagDB != "" {
		return flagDB
	}
	if env := os.Getenv("AGENTGATE_DB_PATH"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".agentgate", "state.db")
	}
	return filepath.Join(home, ".agentgate", "state.db")
}

// GetOutput returns the effective output format.
func GetOutput() string {
	if flagJSON {
		return "json"
	}
	return flagOutput
}

// loadConfig loads the effective configuration, honoring --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: flagConfig})
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	if cfg.History.DatabasePath != "" && flagDB == "" {
		flagDB = cfg.History.DatabasePath
	}
	return cfg, nil
}

// newService opens the database and wires the action service from config.
func newService(cfg config.Config) (*core.ActionService, *db.DB, error) {
	dbConn, err := db.OpenAndMigrate(GetDB())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	var dispatcher dispatch.Dispatcher = dispatch.Disabled{}
	if cfg.Dispatch.FunctionURL != "" {
		dispatcher = dispatch.NewFunctionClient(
			cfg.Dispatch.FunctionURL,
			cfg.Dispatch.BearerTokenEnv,
			time.Duration(cfg.Dispatch.TimeoutSecs)*time.Second,
		)
	}

	svc := core.NewActionService(dbConn, dispatcher, core.ServiceConfig{
		DefaultTTLMinutes:     cfg.General.PendingTTLMinutes,
		StaleConfirmedMinutes: cfg.General.StaleConfirmedMinutes,
		DefaultTeamID:         cfg.General.DefaultTeamID,
	})
	return svc, dbConn, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
