// Package db provides user and team agent-settings persistence.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Channel identifies an agentic delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelVoice    Channel = "voice"
	ChannelCalendar Channel = "calendar"
	ChannelTasks    Channel = "tasks"
)

// ChannelSet holds one boolean per delivery channel.
type ChannelSet struct {
	Email    bool `json:"email"`
	SMS      bool `json:"sms"`
	Voice    bool `json:"voice"`
	Calendar bool `json:"calendar"`
	Tasks    bool `json:"tasks"`
}

// Get returns the flag for a channel. Unknown channels report false.
func (c ChannelSet) Get(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.SMS
	case ChannelVoice:
		return c.Voice
	case ChannelCalendar:
		return c.Calendar
	case ChannelTasks:
		return c.Tasks
	}
	return false
}

// QuietHours is a daily window during which outreach must not auto-send.
// Start and End are local wall-clock times in "HH:MM"; a window that ends
// before it starts spans midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// ScheduleFrequency enumerates reminder cadences.
type ScheduleFrequency string

const (
	FrequencyDaily    ScheduleFrequency = "daily"
	FrequencyWeekdays ScheduleFrequency = "weekdays"
	FrequencyWeekly   ScheduleFrequency = "weekly"
)

// ScheduleConfig configures one proactive-contact domain (habit reminders,
// goal check-ins, proactive outreach) with enumerated options rather than an
// open map.
type ScheduleConfig struct {
	Enabled   bool              `json:"enabled"`
	Channel   Channel           `json:"channel"`
	Frequency ScheduleFrequency `json:"frequency"`
	DayOfWeek time.Weekday      `json:"day_of_week"`
	TimeOfDay string            `json:"time_of_day"`
}

// UserSettings is a user's agent permission configuration, one row per user.
type UserSettings struct {
	UserID                string         `json:"user_id"`
	Enabled               bool           `json:"enabled"`
	Channels              ChannelSet     `json:"channels"`
	ConfirmRequired       ChannelSet     `json:"confirm_required"`
	AutoApproveLowRisk    bool           `json:"auto_approve_low_risk"`
	AutoApproveMediumRisk bool           `json:"auto_approve_medium_risk"`
	RequireHighConfidence bool           `json:"require_high_confidence"`
	ConfidenceThreshold   float64        `json:"confidence_threshold"`
	QuietHours            QuietHours     `json:"quiet_hours"`
	PendingTTLMinutes     int            `json:"pending_ttl_minutes"`
	HabitReminders        ScheduleConfig `json:"habit_reminders"`
	GoalCheckIns          ScheduleConfig `json:"goal_check_ins"`
	ProactiveOutreach     ScheduleConfig `json:"proactive_outreach"`
}

// TeamSettings is the organizational ceiling applied over user settings.
type TeamSettings struct {
	TeamID                       string     `json:"team_id"`
	Enabled                      bool       `json:"enabled"`
	Channels                     ChannelSet `json:"channels"`
	ConfirmRequired              ChannelSet `json:"confirm_required"`
	AutoApproveLowRisk           bool       `json:"auto_approve_low_risk"`
	AutoApproveMediumRisk        bool       `json:"auto_approve_medium_risk"`
	RequireHighConfidence        bool       `json:"require_high_confidence"`
	ConfidenceThreshold          float64    `json:"confidence_threshold"`
	QuietHours                   QuietHours `json:"quiet_hours"`
	PendingTTLMinutes            int        `json:"pending_ttl_minutes"`
	RequireAdminApprovalCritical bool       `json:"require_admin_approval_critical"`
}

// DefaultUserSettings returns conservative defaults for a new user: agent
// enabled, auto-approve off, confirmation required on outbound channels.
func DefaultUserSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:  userID,
		Enabled: true,
		Channels: ChannelSet{
			Email: true, SMS: false, Voice: false, Calendar: true, Tasks: true,
		},
		ConfirmRequired: ChannelSet{
			Email: true, SMS: true, Voice: true, Calendar: false, Tasks: false,
		},
		AutoApproveLowRisk:    true,
		AutoApproveMediumRisk: false,
		RequireHighConfidence: true,
		ConfidenceThreshold:   0.7,
		QuietHours:            QuietHours{Enabled: false, Start: "22:00", End: "07:00"},
		PendingTTLMinutes:     60,
		HabitReminders: ScheduleConfig{
			Enabled: true, Channel: ChannelEmail, Frequency: FrequencyDaily, TimeOfDay: "09:00",
		},
		GoalCheckIns: ScheduleConfig{
			Enabled: false, Channel: ChannelEmail, Frequency: FrequencyWeekly,
			DayOfWeek: time.Monday, TimeOfDay: "09:00",
		},
		ProactiveOutreach: ScheduleConfig{
			Enabled: false, Channel: ChannelEmail, Frequency: FrequencyWeekdays, TimeOfDay: "17:00",
		},
	}
}

// DefaultTeamSettings returns a fully permissive team ceiling. A user with no
// team resolves against this, so team policy only ever restricts.
func DefaultTeamSettings(teamID string) *TeamSettings {
	return &TeamSettings{
		TeamID:  teamID,
		Enabled: true,
		Channels: ChannelSet{
			Email: true, SMS: true, Voice: true, Calendar: true, Tasks: true,
		},
		ConfirmRequired:              ChannelSet{},
		AutoApproveLowRisk:           true,
		AutoApproveMediumRisk:        true,
		RequireHighConfidence:        false,
		ConfidenceThreshold:          0,
		QuietHours:                   QuietHours{Enabled: false},
		PendingTTLMinutes:            0,
		RequireAdminApprovalCritical: false,
	}
}

// Settings errors.
var (
	ErrUserSettingsNotFound = fmt.Errorf("user settings %w", ErrNotFound)
	ErrTeamSettingsNotFound = fmt.Errorf("team settings %w", ErrNotFound)
)

// PutUserSettings upserts a user's settings row.
func (db *DB) PutUserSettings(s *UserSettings) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding user settings: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO user_settings (user_id, settings, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at
	`, s.UserID, string(blob), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving user settings: %w", err)
	}
	return nil
}

// GetUserSettings loads a user's settings. Missing rows return defaults, so
// every user always has an effective configuration.
func (db *DB) GetUserSettings(userID string) (*UserSettings, error) {
	var blob string
	err := db.QueryRow(`SELECT settings FROM user_settings WHERE user_id = ?`, userID).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultUserSettings(userID), nil
		}
		return nil, fmt.Errorf("loading user settings: %w", err)
	}
	s := &UserSettings{}
	if err := json.Unmarshal([]byte(blob), s); err != nil {
		return nil, fmt.Errorf("decoding user settings: %w", err)
	}
	s.UserID = userID
	return s, nil
}

// PutTeamSettings upserts a team's settings row.
func (db *DB) PutTeamSettings(s *TeamSettings) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding team settings: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO team_settings (team_id, settings, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(team_id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at
	`, s.TeamID, string(blob), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving team settings: %w", err)
	}
	return nil
}

// GetTeamSettings loads a team's settings. Missing rows return the permissive
// defaults (no ceiling).
func (db *DB) GetTeamSettings(teamID string) (*TeamSettings, error) {
	var blob string
	err := db.QueryRow(`SELECT settings FROM team_settings WHERE team_id = ?`, teamID).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultTeamSettings(teamID), nil
		}
		return nil, fmt.Errorf("loading team settings: %w", err)
	}
	s := &TeamSettings{}
	if err := json.Unmarshal([]byte(blob), s); err != nil {
		return nil, fmt.Errorf("decoding team settings: %w", err)
	}
	s.TeamID = teamID
	return s, nil
}

// SetTeamMember assigns a user to a team (one team per user).
func (db *DB) SetTeamMember(userID, teamID string) error {
	_, err := db.Exec(`
		INSERT INTO team_members (user_id, team_id) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET team_id = excluded.team_id
	`, userID, teamID)
	if err != nil {
		return fmt.Errorf("assigning team member: %w", err)
	}
	return nil
}

// GetTeamForUser returns the user's team ID, or "" when the user has no team.
func (db *DB) GetTeamForUser(userID string) (string, error) {
	var teamID string
	err := db.QueryRow(`SELECT team_id FROM team_members WHERE user_id = ?`, userID).Scan(&teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("loading team membership: %w", err)
	}
	return teamID, nil
}

// TeamSettingsForUser resolves the team ceiling for a user, falling back to
// the permissive defaults when the user has no team.
func (db *DB) TeamSettingsForUser(userID string) (*TeamSettings, error) {
	teamID, err := db.GetTeamForUser(userID)
	if err != nil {
		return nil, err
	}
	if teamID == "" {
		return DefaultTeamSettings(""), nil
	}
	return db.GetTeamSettings(teamID)
}
