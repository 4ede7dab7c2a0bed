package policy

import (
	"github.com/amie-labs/agentgate/internal/db"
)

// EffectiveSettings is the merged permission set for one user. It is derived,
// never persisted, and recomputed on every policy check so settings edits take
// effect immediately.
type EffectiveSettings struct {
	Enabled               bool           `json:"enabled"`
	Channels              db.ChannelSet  `json:"channels"`
	ConfirmRequired       db.ChannelSet  `json:"confirm_required"`
	AutoApproveLowRisk    bool           `json:"auto_approve_low_risk"`
	AutoApproveMediumRisk bool           `json:"auto_approve_medium_risk"`
	RequireHighConfidence bool           `json:"require_high_confidence"`
	ConfidenceThreshold   float64        `json:"confidence_threshold"`
	QuietHours            []db.QuietHours `json:"quiet_hours,omitempty"`
	PendingTTLMinutes     int            `json:"pending_ttl_minutes"`
	AdminApprovalCritical bool           `json:"admin_approval_critical"`
}

// Resolve merges user settings with the team ceiling.
//
// Grants (channel enables, auto-approve flags, master enable) combine with
// AND: both parties must allow. Restrictions (confirmation required, high
// confidence required) combine with OR: either party can force them. The
// confidence threshold is the stricter (higher) of the two, and the pending
// TTL the shorter non-zero one. Quiet hours windows from both sides apply.
func Resolve(user *db.UserSettings, team *db.TeamSettings) EffectiveSettings {
	eff := EffectiveSettings{
		Enabled: user.Enabled && team.Enabled,
		Channels: db.ChannelSet{
			Email:    user.Channels.Email && team.Channels.Email,
			SMS:      user.Channels.SMS && team.Channels.SMS,
			Voice:    user.Channels.Voice && team.Channels.Voice,
			Calendar: user.Channels.Calendar && team.Channels.Calendar,
			Tasks:    user.Channels.Tasks && team.Channels.Tasks,
		},
		ConfirmRequired: db.ChannelSet{
			Email:    user.ConfirmRequired.Email || team.ConfirmRequired.Email,
			SMS:      user.ConfirmRequired.SMS || team.ConfirmRequired.SMS,
			Voice:    user.ConfirmRequired.Voice || team.ConfirmRequired.Voice,
			Calendar: user.ConfirmRequired.Calendar || team.ConfirmRequired.Calendar,
			Tasks:    user.ConfirmRequired.Tasks || team.ConfirmRequired.Tasks,
		},
		AutoApproveLowRisk:    user.AutoApproveLowRisk && team.AutoApproveLowRisk,
		AutoApproveMediumRisk: user.AutoApproveMediumRisk && team.AutoApproveMediumRisk,
		RequireHighConfidence: user.RequireHighConfidence || team.RequireHighConfidence,
		ConfidenceThreshold:   maxFloat(user.ConfidenceThreshold, team.ConfidenceThreshold),
		PendingTTLMinutes:     minNonZero(user.PendingTTLMinutes, team.PendingTTLMinutes),
		AdminApprovalCritical: team.RequireAdminApprovalCritical,
	}
	if user.QuietHours.Enabled {
		eff.QuietHours = append(eff.QuietHours, user.QuietHours)
	}
	if team.QuietHours.Enabled {
		eff.QuietHours = append(eff.QuietHours, team.QuietHours)
	}
	return eff
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minNonZero(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	case a < b:
		return a
	default:
		return b
	}
}
