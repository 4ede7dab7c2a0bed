package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// ConfigPath overrides the user config path if provided.
	ConfigPath string
	// FlagOverrides are highest-priority overrides from CLI flags (dot-notated keys).
	FlagOverrides map[string]any
}

// Load returns the effective configuration after applying precedence:
// defaults < user (~/.agentgate/config.toml) < explicit file < env (AGENTGATE_*) < flags.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	// 1) User config
	if err := mergeConfigFile(v, UserConfigPath()); err != nil {
		return Config{}, err
	}
	// 2) Explicit config file
	if opts.ConfigPath != "" {
		if err := mergeConfigFile(v, opts.ConfigPath); err != nil {
			return Config{}, err
		}
	}
	// 3) Environment variables
	if err := applyEnvOverrides(v); err != nil {
		return Config{}, err
	}
	// 4) CLI flags (highest)
	for k, val := range opts.FlagOverrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper with built-in defaults.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("general.pending_ttl_minutes", def.General.PendingTTLMinutes)
	v.SetDefault("general.stale_confirmed_minutes", def.General.StaleConfirmedMinutes)
	v.SetDefault("general.default_team_id", def.General.DefaultTeamID)

	v.SetDefault("daemon.sweep_schedule", def.Daemon.SweepSchedule)
	v.SetDefault("daemon.watch_config", def.Daemon.WatchConfig)
	v.SetDefault("daemon.log_level", def.Daemon.LogLevel)
	v.SetDefault("daemon.log_file", def.Daemon.LogFile)

	v.SetDefault("dispatch.function_url", def.Dispatch.FunctionURL)
	v.SetDefault("dispatch.bearer_token_env", def.Dispatch.BearerTokenEnv)
	v.SetDefault("dispatch.timeout_seconds", def.Dispatch.TimeoutSecs)

	v.SetDefault("history.database_path", def.History.DatabasePath)
	v.SetDefault("history.retention_days", def.History.RetentionDays)
}

// mergeConfigFile merges the TOML config file if it exists.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides reads AGENTGATE_* env vars and applies them.
func applyEnvOverrides(v *viper.Viper) error {
	for _, binding := range envBindings {
		val := os.Getenv(binding.Env)
		if val == "" {
			continue
		}
		parsed, err := parseValueByKind(val, binding.Kind)
		if err != nil {
			return fmt.Errorf("env %s: %w", binding.Env, err)
		}
		v.Set(binding.Key, parsed)
	}
	return nil
}

// UserConfigPath returns the path of the per-user config file.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".agentgate", "config.toml")
}

// ParseValue parses a raw string into the expected type for a given config key.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported key %q", key)
	}
	return parseValueByKind(raw, kind)
}

// WriteValue sets a single key/value into the specified TOML config file (creating it if needed).
func WriteValue(path, key string, value any) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	var existing map[string]any
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &existing); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	if existing == nil {
		existing = map[string]any{}
	}

	if err := setNested(existing, key, value); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = "  "
	if err := enc.Encode(existing); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func setNested(m map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return fmt.Errorf("invalid key %q", key)
	}
	cur := m
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return nil
		}
		next, ok := cur[p]
		if !ok {
			child := map[string]any{}
			cur[p] = child
			cur = child
			continue
		}
		childMap, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not a table", key, strings.Join(parts[:i+1], "."))
		}
		cur = childMap
	}
	return nil
}

// Helpers for env + parsing ---------------------------------------------------

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
)

var keyKinds = map[string]valueKind{
	"general.pending_ttl_minutes":     kindInt,
	"general.stale_confirmed_minutes": kindInt,
	"general.default_team_id":         kindString,

	"daemon.sweep_schedule": kindString,
	"daemon.watch_config":   kindBool,
	"daemon.log_level":      kindString,
	"daemon.log_file":       kindString,

	"dispatch.function_url":     kindString,
	"dispatch.bearer_token_env": kindString,
	"dispatch.timeout_seconds":  kindInt,

	"history.database_path":  kindString,
	"history.retention_days": kindInt,
}

var envBindings = []struct {
	Env  string
	Key  string
	Kind valueKind
}{
	{"AGENTGATE_PENDING_TTL_MINUTES", "general.pending_ttl_minutes", kindInt},
	{"AGENTGATE_STALE_CONFIRMED_MINUTES", "general.stale_confirmed_minutes", kindInt},
	{"AGENTGATE_DEFAULT_TEAM_ID", "general.default_team_id", kindString},

	{"AGENTGATE_SWEEP_SCHEDULE", "daemon.sweep_schedule", kindString},
	{"AGENTGATE_WATCH_CONFIG", "daemon.watch_config", kindBool},
	{"AGENTGATE_LOG_LEVEL", "daemon.log_level", kindString},
	{"AGENTGATE_LOG_FILE", "daemon.log_file", kindString},

	{"AGENTGATE_FUNCTION_URL", "dispatch.function_url", kindString},
	{"AGENTGATE_FUNCTION_TOKEN_ENV", "dispatch.bearer_token_env", kindString},
	{"AGENTGATE_DISPATCH_TIMEOUT", "dispatch.timeout_seconds", kindInt},

	{"AGENTGATE_DB_PATH", "history.database_path", kindString},
	{"AGENTGATE_RETENTION_DAYS", "history.retention_days", kindInt},
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindString:
		return raw, nil
	case kindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean: %w", err)
		}
		return v, nil
	case kindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported value kind")
	}
}
