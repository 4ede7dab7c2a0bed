// Package config implements hierarchical configuration for agentgate.
// Precedence: defaults < user (~/.agentgate/config.toml) < explicit file < env (AGENTGATE_*) < flags.
package config

// Config is the top-level configuration structure.
type Config struct {
	General  GeneralConfig  `toml:"general" mapstructure:"general"`
	Daemon   DaemonConfig   `toml:"daemon" mapstructure:"daemon"`
	Dispatch DispatchConfig `toml:"dispatch" mapstructure:"dispatch"`
	History  HistoryConfig  `toml:"history" mapstructure:"history"`
}

// GeneralConfig holds core lifecycle knobs.
type GeneralConfig struct {
	// PendingTTLMinutes is the default confirmation window when neither user
	// nor team settings specify one.
	PendingTTLMinutes int `toml:"pending_ttl_minutes" mapstructure:"pending_ttl_minutes"`
	// StaleConfirmedMinutes is how long a confirmed-but-unexecuted record may
	// sit before the sweep reports it.
	StaleConfirmedMinutes int `toml:"stale_confirmed_minutes" mapstructure:"stale_confirmed_minutes"`
	// DefaultTeamID is applied to users with no explicit team membership.
	DefaultTeamID string `toml:"default_team_id" mapstructure:"default_team_id"`
}

// DaemonConfig holds sweep daemon settings.
type DaemonConfig struct {
	// SweepSchedule is a cron spec for the periodic expiry sweep.
	SweepSchedule string `toml:"sweep_schedule" mapstructure:"sweep_schedule"`
	// WatchConfig reloads the config file on change while the daemon runs.
	WatchConfig bool   `toml:"watch_config" mapstructure:"watch_config"`
	LogLevel    string `toml:"log_level" mapstructure:"log_level"`
	LogFile     string `toml:"log_file" mapstructure:"log_file"`
}

// DispatchConfig holds channel-function invocation settings.
type DispatchConfig struct {
	// FunctionURL is the base URL of the remote channel function. Empty means
	// dispatch is disabled and executions fail as unavailable.
	FunctionURL string `toml:"function_url" mapstructure:"function_url"`
	// BearerTokenEnv names the environment variable holding the bearer token
	// attached to every call. The token itself never lives in config files.
	BearerTokenEnv string `toml:"bearer_token_env" mapstructure:"bearer_token_env"`
	TimeoutSecs    int    `toml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// HistoryConfig holds persistence settings.
type HistoryConfig struct {
	DatabasePath  string `toml:"database_path" mapstructure:"database_path"`
	RetentionDays int    `toml:"retention_days" mapstructure:"retention_days"`
}
