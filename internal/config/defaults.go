package config

// Built-in defaults for agentgate configuration.

// DefaultConfig returns the built-in default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			PendingTTLMinutes:     60,
			StaleConfirmedMinutes: 15,
			DefaultTeamID:         "",
		},
		Daemon: DaemonConfig{
			SweepSchedule: "* * * * *",
			WatchConfig:   true,
			LogLevel:      "info",
			LogFile:       "",
		},
		Dispatch: DispatchConfig{
			FunctionURL:    "",
			BearerTokenEnv: "AGENTGATE_FUNCTION_TOKEN",
			TimeoutSecs:    30,
		},
		History: HistoryConfig{
			DatabasePath:  "",
			RetentionDays: 365,
		},
	}
}
