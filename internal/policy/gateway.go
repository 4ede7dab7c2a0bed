package policy

import (
	"time"

	"github.com/amie-labs/agentgate/internal/db"
)

// Outcome is the gateway's verdict for a proposed action.
type Outcome string

const (
	OutcomeAutoApprove         Outcome = "auto_approve"
	OutcomeRequireConfirmation Outcome = "require_confirmation"
	OutcomeBlock               Outcome = "block"
)

// Decision is the result of a gateway check: the verdict, the taxonomy kind
// explaining it (empty for plain auto-approvals), and whether confirmation
// must come from a team admin rather than the user themselves.
type Decision struct {
	Outcome       Outcome `json:"outcome"`
	Reason        Kind    `json:"reason,omitempty"`
	AdminRequired bool    `json:"admin_required,omitempty"`
}

// Proposal is the gateway's view of an agent-proposed action.
type Proposal struct {
	ActionType      string
	RiskLevel       db.RiskLevel
	ConfidenceScore float64
}

// Decide evaluates a proposal against the effective policy.
//
// The ordering is deliberate: permission and risk-tier gates are
// non-negotiable and evaluated before any confidence-based optimization, so a
// high confidence score can never bypass them.
func Decide(p Proposal, eff EffectiveSettings, now time.Time) Decision {
	if !eff.Enabled {
		return Decision{Outcome: OutcomeBlock, Reason: KindPermissionDenied}
	}

	ch := ChannelFor(p.ActionType)
	if !eff.Channels.Get(ch) {
		return Decision{Outcome: OutcomeBlock, Reason: KindPermissionDenied}
	}

	// High and critical tiers always require a human, regardless of
	// confidence or auto-approve flags. Critical escalates to a team admin
	// when the team ceiling demands it.
	if p.RiskLevel.RequiresConfirmation() {
		d := Decision{Outcome: OutcomeRequireConfirmation}
		if p.RiskLevel == db.RiskCritical && eff.AdminApprovalCritical {
			d.AdminRequired = true
		}
		return d
	}

	// Outreach never auto-sends during quiet hours.
	if IsOutreach(ch) && InQuietHours(eff.QuietHours, now) {
		return Decision{Outcome: OutcomeRequireConfirmation, Reason: KindQuietHours}
	}

	// Confidence gate applies uniformly before risk-tier auto-approval.
	if eff.RequireHighConfidence && p.ConfidenceScore < eff.ConfidenceThreshold {
		return Decision{Outcome: OutcomeRequireConfirmation, Reason: KindLowConfidence}
	}

	// Per-channel confirmation requirements override auto-approve flags.
	if eff.ConfirmRequired.Get(ch) {
		return Decision{Outcome: OutcomeRequireConfirmation}
	}

	switch p.RiskLevel {
	case db.RiskLow:
		if eff.AutoApproveLowRisk {
			return Decision{Outcome: OutcomeAutoApprove}
		}
	case db.RiskMedium:
		if eff.AutoApproveMediumRisk {
			return Decision{Outcome: OutcomeAutoApprove}
		}
	}

	return Decision{Outcome: OutcomeRequireConfirmation}
}
