package config

import (
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the effective configuration for internally consistent values.
func Validate(cfg Config) error {
	if cfg.General.PendingTTLMinutes <= 0 {
		return fmt.Errorf("general.pending_ttl_minutes must be positive, got %d", cfg.General.PendingTTLMinutes)
	}
	if cfg.General.StaleConfirmedMinutes <= 0 {
		return fmt.Errorf("general.stale_confirmed_minutes must be positive, got %d", cfg.General.StaleConfirmedMinutes)
	}
	if !validLogLevels[cfg.Daemon.LogLevel] {
		return fmt.Errorf("daemon.log_level must be one of debug/info/warn/error, got %q", cfg.Daemon.LogLevel)
	}
	if _, err := cron.ParseStandard(cfg.Daemon.SweepSchedule); err != nil {
		return fmt.Errorf("daemon.sweep_schedule: %w", err)
	}
	if cfg.Dispatch.TimeoutSecs <= 0 {
		return fmt.Errorf("dispatch.timeout_seconds must be positive, got %d", cfg.Dispatch.TimeoutSecs)
	}
	if cfg.Dispatch.FunctionURL != "" {
		u, err := url.Parse(cfg.Dispatch.FunctionURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("dispatch.function_url %q is not a valid URL", cfg.Dispatch.FunctionURL)
		}
	}
	if cfg.History.RetentionDays <= 0 {
		return fmt.Errorf("history.retention_days must be positive, got %d", cfg.History.RetentionDays)
	}
	return nil
}
