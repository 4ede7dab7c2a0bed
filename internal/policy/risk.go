// Package policy implements risk classification, policy resolution, and the
// confirmation gateway for agent-proposed actions.
package policy

import (
	"github.com/amie-labs/agentgate/internal/db"
)

// Known action types proposed by the agent runtime.
const (
	ActionGetUserData         = "get_user_data"
	ActionCreateTask          = "create_task"
	ActionUpdateGoalProgress  = "update_goal_progress"
	ActionMarkHabitComplete   = "mark_habit_complete"
	ActionScheduleReminder    = "schedule_reminder"
	ActionCreateCalendarEvent = "create_calendar_event"
	ActionSendEmail           = "send_email"
	ActionSendSMS             = "send_sms"
	ActionMakeVoiceCall       = "make_voice_call"
	ActionSendEmailToContact  = "send_email_to_contact"
)

// riskTable is the static action-type classification. Anything that leaves
// the user's own account (outbound email/SMS/voice, third-party contact) sits
// at high or critical.
var riskTable = map[string]db.RiskLevel{
	ActionGetUserData:         db.RiskLow,
	ActionCreateTask:          db.RiskLow,
	ActionUpdateGoalProgress:  db.RiskMedium,
	ActionMarkHabitComplete:   db.RiskMedium,
	ActionScheduleReminder:    db.RiskMedium,
	ActionCreateCalendarEvent: db.RiskHigh,
	ActionSendEmail:           db.RiskHigh,
	ActionSendSMS:             db.RiskHigh,
	ActionMakeVoiceCall:       db.RiskCritical,
	ActionSendEmailToContact:  db.RiskCritical,
}

// channelTable maps action types to the delivery channel whose permission
// gates them.
var channelTable = map[string]db.Channel{
	ActionGetUserData:         db.ChannelTasks,
	ActionCreateTask:          db.ChannelTasks,
	ActionUpdateGoalProgress:  db.ChannelTasks,
	ActionMarkHabitComplete:   db.ChannelTasks,
	ActionScheduleReminder:    db.ChannelTasks,
	ActionCreateCalendarEvent: db.ChannelCalendar,
	ActionSendEmail:           db.ChannelEmail,
	ActionSendSMS:             db.ChannelSMS,
	ActionMakeVoiceCall:       db.ChannelVoice,
	ActionSendEmailToContact:  db.ChannelEmail,
}

// Classify returns the risk tier for an action type. Unknown types default to
// medium so an unclassified action can never slip into low-risk auto-approval.
func Classify(actionType string) db.RiskLevel {
	if tier, ok := riskTable[actionType]; ok {
		return tier
	}
	return db.RiskMedium
}

// ChannelFor returns the delivery channel an action type is gated by.
// Unknown types fall back to the tasks channel.
func ChannelFor(actionType string) db.Channel {
	if ch, ok := channelTable[actionType]; ok {
		return ch
	}
	return db.ChannelTasks
}

// IsKnownActionType reports whether the action type appears in the static table.
func IsKnownActionType(actionType string) bool {
	_, ok := riskTable[actionType]
	return ok
}

// IsOutreach reports whether the channel contacts the user (or a third party)
// directly and is therefore subject to quiet hours.
func IsOutreach(ch db.Channel) bool {
	switch ch {
	case db.ChannelEmail, db.ChannelSMS, db.ChannelVoice:
		return true
	}
	return false
}

// KnownActionTypes returns the classification table for display.
func KnownActionTypes() map[string]db.RiskLevel {
	out := make(map[string]db.RiskLevel, len(riskTable))
	for k, v := range riskTable {
		out[k] = v
	}
	return out
}
