// Package cli implements the settings commands for user and team policy.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/db"
	"github.com/amie-labs/agentgate/internal/output"
	"github.com/amie-labs/agentgate/internal/policy"
)

var (
	flagSettingsUser string
	flagSettingsTeam string
)

func init() {
	settingsUserCmd.PersistentFlags().StringVarP(&flagSettingsUser, "user", "u", "", "user ID (required)")
	settingsTeamCmd.PersistentFlags().StringVarP(&flagSettingsTeam, "team", "t", "", "team ID (required)")

	settingsUserCmd.AddCommand(settingsUserShowCmd)
	settingsUserCmd.AddCommand(settingsUserSetCmd)
	settingsTeamCmd.AddCommand(settingsTeamShowCmd)
	settingsTeamCmd.AddCommand(settingsTeamSetCmd)

	settingsCmd.AddCommand(settingsUserCmd)
	settingsCmd.AddCommand(settingsTeamCmd)
	settingsCmd.AddCommand(settingsMemberCmd)
	rootCmd.AddCommand(settingsCmd)
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage user and team agent settings",
}

var settingsUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage a user's agent settings",
}

var settingsTeamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage a team's policy ceiling",
}

var settingsUserShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSettingsUser == "" {
			return fmt.Errorf("--user is required")
		}
		dbConn, err := openStore()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		settings, err := dbConn.GetUserSettings(flagSettingsUser)
		if err != nil {
			return fmt.Errorf("loading user settings: %w", err)
		}
		return output.New(output.Format(GetOutput())).Write(settings)
	},
}

var settingsUserSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one user settings key",
	Long: `Set a single key in a user's settings.

Keys:
  enabled                         bool
  channels.<channel>              bool (email, sms, voice, calendar, tasks)
  confirm_required.<channel>      bool
  auto_approve_low_risk           bool
  auto_approve_medium_risk        bool
  require_high_confidence         bool
  confidence_threshold            float in [0,1]
  quiet_hours.enabled             bool
  quiet_hours.start               HH:MM
  quiet_hours.end                 HH:MM
  pending_ttl_minutes             positive int

Examples:
  agentgate settings user set channels.sms true -u user-1
  agentgate settings user set confidence_threshold 0.8 -u user-1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSettingsUser == "" {
			return fmt.Errorf("--user is required")
		}
		dbConn, err := openStore()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		settings, err := dbConn.GetUserSettings(flagSettingsUser)
		if err != nil {
			return fmt.Errorf("loading user settings: %w", err)
		}
		if err := applyUserSetting(settings, args[0], args[1]); err != nil {
			return err
		}
		if err := dbConn.PutUserSettings(settings); err != nil {
			return fmt.Errorf("saving user settings: %w", err)
		}
		return output.New(output.Format(GetOutput())).Write(map[string]any{
			"user_id": flagSettingsUser,
			"key":     args[0],
			"value":   args[1],
		})
	},
}

var settingsTeamShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a team's settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSettingsTeam == "" {
			return fmt.Errorf("--team is required")
		}
		dbConn, err := openStore()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		settings, err := dbConn.GetTeamSettings(flagSettingsTeam)
		if err != nil {
			return fmt.Errorf("loading team settings: %w", err)
		}
		return output.New(output.Format(GetOutput())).Write(settings)
	},
}

var settingsTeamSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one team settings key",
	Long: `Set a single key in a team's policy ceiling.

Keys match the user settings keys, plus:
  require_admin_approval_critical  bool

Examples:
  agentgate settings team set channels.voice false -t team-1
  agentgate settings team set require_admin_approval_critical true -t team-1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSettingsTeam == "" {
			return fmt.Errorf("--team is required")
		}
		dbConn, err := openStore()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		settings, err := dbConn.GetTeamSettings(flagSettingsTeam)
		if err != nil {
			return fmt.Errorf("loading team settings: %w", err)
		}
		if err := applyTeamSetting(settings, args[0], args[1]); err != nil {
			return err
		}
		if err := dbConn.PutTeamSettings(settings); err != nil {
			return fmt.Errorf("saving team settings: %w", err)
		}
		return output.New(output.Format(GetOutput())).Write(map[string]any{
			"team_id": flagSettingsTeam,
			"key":     args[0],
			"value":   args[1],
		})
	},
}

var settingsMemberCmd = &cobra.Command{
	Use:   "member <user-id> <team-id>",
	Short: "Assign a user to a team",
	Long:  `Assign a user to a team. A user belongs to at most one team; assigning again moves them.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbConn, err := openStore()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		if err := dbConn.SetTeamMember(args[0], args[1]); err != nil {
			return fmt.Errorf("assigning team member: %w", err)
		}
		return output.New(output.Format(GetOutput())).Write(map[string]any{
			"user_id": args[0],
			"team_id": args[1],
		})
	},
}

// applyUserSetting mutates one field of a user's settings from a CLI key/value.
func applyUserSetting(s *db.UserSettings, key, value string) error {
	switch key {
	case "enabled":
		return parseBoolInto(value, &s.Enabled)
	case "auto_approve_low_risk":
		return parseBoolInto(value, &s.AutoApproveLowRisk)
	case "auto_approve_medium_risk":
		return parseBoolInto(value, &s.AutoApproveMediumRisk)
	case "require_high_confidence":
		return parseBoolInto(value, &s.RequireHighConfidence)
	case "confidence_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("confidence_threshold must be a number in [0,1]")
		}
		s.ConfidenceThreshold = f
		return nil
	case "pending_ttl_minutes":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("pending_ttl_minutes must be a positive integer")
		}
		s.PendingTTLMinutes = n
		return nil
	case "quiet_hours.enabled":
		return parseBoolInto(value, &s.QuietHours.Enabled)
	case "quiet_hours.start":
		s.QuietHours.Start = value
		return policy.ValidateQuietHours(s.QuietHours)
	case "quiet_hours.end":
		s.QuietHours.End = value
		return policy.ValidateQuietHours(s.QuietHours)
	}
	if ch, ok := strings.CutPrefix(key, "channels."); ok {
		return setChannel(&s.Channels, ch, value)
	}
	if ch, ok := strings.CutPrefix(key, "confirm_required."); ok {
		return setChannel(&s.ConfirmRequired, ch, value)
	}
	return fmt.Errorf("unknown settings key %q", key)
}

// applyTeamSetting mutates one field of a team's settings from a CLI key/value.
func applyTeamSetting(s *db.TeamSettings, key, value string) error {
	switch key {
	case "enabled":
		return parseBoolInto(value, &s.Enabled)
	case "auto_approve_low_risk":
		return parseBoolInto(value, &s.AutoApproveLowRisk)
	case "auto_approve_medium_risk":
		return parseBoolInto(value, &s.AutoApproveMediumRisk)
	case "require_high_confidence":
		return parseBoolInto(value, &s.RequireHighConfidence)
	case "require_admin_approval_critical":
		return parseBoolInto(value, &s.RequireAdminApprovalCritical)
	case "confidence_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("confidence_threshold must be a number in [0,1]")
		}
		s.ConfidenceThreshold = f
		return nil
	case "pending_ttl_minutes":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("pending_ttl_minutes must be a positive integer")
		}
		s.PendingTTLMinutes = n
		return nil
	case "quiet_hours.enabled":
		return parseBoolInto(value, &s.QuietHours.Enabled)
	case "quiet_hours.start":
		s.QuietHours.Start = value
		return policy.ValidateQuietHours(s.QuietHours)
	case "quiet_hours.end":
		s.QuietHours.End = value
		return policy.ValidateQuietHours(s.QuietHours)
	}
	if ch, ok := strings.CutPrefix(key, "channels."); ok {
		return setChannel(&s.Channels, ch, value)
	}
	if ch, ok := strings.CutPrefix(key, "confirm_required."); ok {
		return setChannel(&s.ConfirmRequired, ch, value)
	}
	return fmt.Errorf("unknown settings key %q", key)
}

func setChannel(set *db.ChannelSet, channel, value string) error {
	var b bool
	if err := parseBoolInto(value, &b); err != nil {
		return err
	}
	switch db.Channel(channel) {
	case db.ChannelEmail:
		set.Email = b
	case db.ChannelSMS:
		set.SMS = b
	case db.ChannelVoice:
		set.Voice = b
	case db.ChannelCalendar:
		set.Calendar = b
	case db.ChannelTasks:
		set.Tasks = b
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
	return nil
}

func parseBoolInto(value string, dst *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", value)
	}
	*dst = b
	return nil
}

// openStore opens the database without wiring the full service, for commands
// that only touch settings.
func openStore() (*db.DB, error) {
	if _, err := loadConfig(); err != nil {
		return nil, err
	}
	dbConn, err := db.OpenAndMigrate(GetDB())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return dbConn, nil
}
