// Package core implements the pending-action lifecycle service.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amie-labs/agentgate/internal/db"
	"github.com/amie-labs/agentgate/internal/dispatch"
	"github.com/amie-labs/agentgate/internal/policy"
)

// ServiceConfig holds lifecycle configuration for the action service.
type ServiceConfig struct {
	// DefaultTTLMinutes is the confirmation window applied when neither user
	// nor team settings specify one.
	DefaultTTLMinutes int
	// StaleConfirmedMinutes is the age after which a confirmed-but-unexecuted
	// record is reported by the sweep.
	StaleConfirmedMinutes int
	// DefaultTeamID is used for users with no explicit team membership.
	DefaultTeamID string
}

// DefaultServiceConfig returns the default lifecycle configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultTTLMinutes:     60,
		StaleConfirmedMinutes: 15,
	}
}

// ActionService owns the PendingAction lifecycle: propose, confirm, cancel,
// expire, execute. A UI merely calls these operations. Each record is resolved
// by exactly one actor; the store's conditional updates are the only
// concurrency guard.
type ActionService struct {
	db         *db.DB
	dispatcher dispatch.Dispatcher

	mu  sync.RWMutex
	cfg ServiceConfig

	now func() time.Time
}

// NewActionService creates an action service. A nil dispatcher disables
// execution (failures are recorded as unavailable).
func NewActionService(database *db.DB, dispatcher dispatch.Dispatcher, cfg ServiceConfig) *ActionService {
	if dispatcher == nil {
		dispatcher = dispatch.Disabled{}
	}
	if cfg.DefaultTTLMinutes <= 0 {
		cfg.DefaultTTLMinutes = DefaultServiceConfig().DefaultTTLMinutes
	}
	if cfg.StaleConfirmedMinutes <= 0 {
		cfg.StaleConfirmedMinutes = DefaultServiceConfig().StaleConfirmedMinutes
	}
	return &ActionService{
		db:         database,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *ActionService) SetClock(now func() time.Time) {
	s.now = now
}

// UpdateConfig swaps the lifecycle configuration, used by the daemon's
// config hot-reload.
func (s *ActionService) UpdateConfig(cfg ServiceConfig) {
	def := DefaultServiceConfig()
	if cfg.DefaultTTLMinutes <= 0 {
		cfg.DefaultTTLMinutes = def.DefaultTTLMinutes
	}
	if cfg.StaleConfirmedMinutes <= 0 {
		cfg.StaleConfirmedMinutes = def.StaleConfirmedMinutes
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *ActionService) config() ServiceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// EffectivePolicy resolves the merged permission set for a user. It is
// recomputed on every call so settings edits apply immediately.
func (s *ActionService) EffectivePolicy(userID string) (policy.EffectiveSettings, error) {
	user, err := s.db.GetUserSettings(userID)
	if err != nil {
		return policy.EffectiveSettings{}, err
	}
	team, err := s.teamSettings(userID)
	if err != nil {
		return policy.EffectiveSettings{}, err
	}
	return policy.Resolve(user, team), nil
}

func (s *ActionService) teamSettings(userID string) (*db.TeamSettings, error) {
	teamID, err := s.db.GetTeamForUser(userID)
	if err != nil {
		return nil, err
	}
	if teamID == "" {
		teamID = s.config().DefaultTeamID
	}
	if teamID == "" {
		return db.DefaultTeamSettings(""), nil
	}
	return s.db.GetTeamSettings(teamID)
}

// ProposeOptions holds the inputs for a new agent-proposed action.
type ProposeOptions struct {
	// UserID is the user the agent acts for (required).
	UserID string
	// ActionType names the proposed operation (required).
	ActionType string
	// Payload is the action's JSON payload.
	Payload string
	// ConfidenceScore is the model-reported [0,1] estimate of correctness.
	ConfidenceScore float64
}

// ProposeResult holds the outcome of proposing an action.
type ProposeResult struct {
	// Action is the created record (nil when the proposal was blocked).
	Action *db.PendingAction
	// Decision is the gateway verdict.
	Decision policy.Decision
	// Execution is set when the action was auto-approved and dispatched.
	Execution *ExecutionResult
}

// Proposal validation errors.
var (
	ErrUserRequired       = errors.New("user ID is required")
	ErrActionTypeRequired = errors.New("action type is required")
	ErrInvalidConfidence  = errors.New("confidence score must be in [0,1]")
	ErrInvalidPayload     = errors.New("payload must be a JSON object")
)

// Propose runs the full gate: classify, resolve policy, decide, and either
// block, create a pending record, or auto-approve and dispatch immediately.
func (s *ActionService) Propose(ctx context.Context, opts ProposeOptions) (*ProposeResult, error) {
	if opts.UserID == "" {
		return nil, ErrUserRequired
	}
	if opts.ActionType == "" {
		return nil, ErrActionTypeRequired
	}
	if opts.ConfidenceScore < 0 || opts.ConfidenceScore > 1 {
		return nil, ErrInvalidConfidence
	}
	payload := opts.Payload
	if payload == "" {
		payload = "{}"
	}
	if !json.Valid([]byte(payload)) {
		return nil, ErrInvalidPayload
	}

	eff, err := s.EffectivePolicy(opts.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolving policy: %w", err)
	}

	now := s.now().UTC()
	risk := policy.Classify(opts.ActionType)
	decision := policy.Decide(policy.Proposal{
		ActionType:      opts.ActionType,
		RiskLevel:       risk,
		ConfidenceScore: opts.ConfidenceScore,
	}, eff, now)

	// Blocked proposals never touch the store; the denial is synchronous.
	if decision.Outcome == policy.OutcomeBlock {
		return &ProposeResult{Decision: decision},
			policy.NewGateError(decision.Reason, "action %s is not permitted by policy", opts.ActionType)
	}

	// Third-party outreach must name a recipient in the user's contact book.
	if opts.ActionType == policy.ActionSendEmailToContact {
		if err := s.validateRecipient(opts.UserID, payload); err != nil {
			return &ProposeResult{Decision: policy.Decision{
				Outcome: policy.OutcomeBlock,
				Reason:  policy.KindInvalidRecipient,
			}}, err
		}
	}

	ttl := eff.PendingTTLMinutes
	if ttl <= 0 {
		ttl = s.config().DefaultTTLMinutes
	}

	action := &db.PendingAction{
		UserID:          opts.UserID,
		ActionType:      opts.ActionType,
		Payload:         payload,
		RiskLevel:       risk,
		ConfidenceScore: opts.ConfidenceScore,
		DecisionReason:  string(decision.Reason),
		AdminRequired:   decision.AdminRequired,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(ttl) * time.Minute),
	}
	if err := s.db.CreateAction(action); err != nil {
		return nil, fmt.Errorf("creating pending action: %w", err)
	}

	result := &ProposeResult{Action: action, Decision: decision}

	if decision.Outcome == policy.OutcomeAutoApprove {
		if err := s.db.MarkConfirmed(action.ID, "policy:auto_approve", now); err != nil {
			return nil, fmt.Errorf("auto-approving action: %w", err)
		}
		action.Status = db.StatusConfirmed
		action.ConfirmedAt = &now
		action.ConfirmedBy = "policy:auto_approve"
		result.Execution = s.execute(ctx, action)
		refreshed, err := s.db.GetAction(action.ID)
		if err == nil {
			result.Action = refreshed
		}
	}

	return result, nil
}

// validateRecipient resolves the payload's recipient against the user's
// contact book. The payload names it as "recipient" or "to".
func (s *ActionService) validateRecipient(userID, payload string) error {
	var fields struct {
		Recipient string `json:"recipient"`
		To        string `json:"to"`
	}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return policy.NewGateError(policy.KindInvalidRecipient, "payload is not a JSON object")
	}
	recipient := fields.Recipient
	if recipient == "" {
		recipient = fields.To
	}
	if recipient == "" {
		return policy.NewGateError(policy.KindInvalidRecipient, "payload names no recipient")
	}
	if _, err := s.db.FindContactByRecipient(userID, recipient); err != nil {
		if errors.Is(err, db.ErrContactNotFound) {
			return policy.NewGateError(policy.KindInvalidRecipient, "recipient %q is not a known contact", recipient)
		}
		return err
	}
	return nil
}

// ConfirmOptions identifies who is confirming a pending action.
type ConfirmOptions struct {
	// Actor is the identity of the confirming user (required).
	Actor string
	// Admin marks the actor as a team admin, required for escalated
	// critical actions.
	Admin bool
}

// TransitionResult reports the record after a confirm/cancel call. Changed is
// false when the record was already in the returned state (idempotent calls).
type TransitionResult struct {
	Action    *db.PendingAction
	Changed   bool
	Execution *ExecutionResult
}

// Confirm approves a pending action and dispatches it. Expired records are
// lazily marked expired and rejected with ACTION_EXPIRED. Calls against
// records that already resolved return the terminal state without error,
// except expiry which is always surfaced.
func (s *ActionService) Confirm(ctx context.Context, id string, opts ConfirmOptions) (*TransitionResult, error) {
	if opts.Actor == "" {
		return nil, errors.New("actor is required")
	}

	action, err := s.getWithLazyExpiry(id)
	if err != nil {
		return nil, err
	}

	switch action.Status {
	case db.StatusExpired:
		return &TransitionResult{Action: action},
			policy.NewGateError(policy.KindActionExpired, "action %s expired at %s", id, action.ExpiresAt.Format(time.RFC3339))
	case db.StatusConfirmed, db.StatusExecuted, db.StatusFailed, db.StatusCancelled:
		return &TransitionResult{Action: action, Changed: false}, nil
	}

	if action.AdminRequired && !opts.Admin {
		return &TransitionResult{Action: action},
			policy.NewGateError(policy.KindTeamPolicyBlocked, "critical action %s requires team admin approval", id)
	}

	now := s.now().UTC()
	if err := s.db.MarkConfirmed(id, opts.Actor, now); err != nil {
		if errors.Is(err, db.ErrStaleTransition) {
			// Another writer resolved it first; report the state they left.
			current, getErr := s.db.GetAction(id)
			if getErr != nil {
				return nil, getErr
			}
			return &TransitionResult{Action: current, Changed: false}, nil
		}
		return nil, err
	}

	action.Status = db.StatusConfirmed
	action.ConfirmedAt = &now
	action.ConfirmedBy = opts.Actor

	result := &TransitionResult{Action: action, Changed: true}
	result.Execution = s.execute(ctx, action)
	if refreshed, err := s.db.GetAction(id); err == nil {
		result.Action = refreshed
	}
	return result, nil
}

// Cancel resolves a pending or confirmed action as cancelled. Cancelling an
// already-cancelled action is idempotent; other terminal states are returned
// unchanged. Cancellation is always safe: nothing executes before confirmation.
func (s *ActionService) Cancel(id, reason string) (*TransitionResult, error) {
	action, err := s.getWithLazyExpiry(id)
	if err != nil {
		return nil, err
	}

	if action.Status.IsTerminal() {
		return &TransitionResult{Action: action, Changed: false}, nil
	}

	now := s.now().UTC()
	if err := s.db.MarkCancelled(id, reason, now); err != nil {
		if errors.Is(err, db.ErrStaleTransition) {
			current, getErr := s.db.GetAction(id)
			if getErr != nil {
				return nil, getErr
			}
			return &TransitionResult{Action: current, Changed: false}, nil
		}
		return nil, err
	}

	action.Status = db.StatusCancelled
	action.CancelledAt = &now
	action.CancelReason = reason
	s.appendHistory(action)

	return &TransitionResult{Action: action, Changed: true}, nil
}

// Get returns an action, lazily expiring it when its window has passed.
func (s *ActionService) Get(id string) (*db.PendingAction, error) {
	return s.getWithLazyExpiry(id)
}

// ListPending returns pending actions for a user (all users when empty),
// lazily expiring any whose window has passed.
func (s *ActionService) ListPending(userID string, limit int) ([]*db.PendingAction, error) {
	actions, err := s.db.ListActionsByStatus(userID, db.StatusPendingConfirmation, limit)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	live := actions[:0]
	for _, a := range actions {
		if a.IsExpired(now) {
			s.expire(a)
			continue
		}
		live = append(live, a)
	}
	return live, nil
}

// SweepResult summarizes one expiry sweep pass.
type SweepResult struct {
	Expired        int      `json:"expired"`
	StaleConfirmed []string `json:"stale_confirmed,omitempty"`
}

// Sweep marks every pending record past its window as expired and reports
// confirmed-but-unexecuted records older than the stale threshold. Stale
// records are reported, never retried.
func (s *ActionService) Sweep() (*SweepResult, error) {
	now := s.now().UTC()
	expired, err := s.db.ListExpiredPending(now)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{}
	for _, a := range expired {
		if s.expire(a) {
			result.Expired++
		}
	}

	cutoff := now.Add(-time.Duration(s.config().StaleConfirmedMinutes) * time.Minute)
	stale, err := s.db.ListStaleConfirmed(cutoff)
	if err != nil {
		return nil, err
	}
	for _, a := range stale {
		result.StaleConfirmed = append(result.StaleConfirmed, a.ID)
	}
	return result, nil
}

// getWithLazyExpiry loads an action and applies lazy expiry to pending records.
func (s *ActionService) getWithLazyExpiry(id string) (*db.PendingAction, error) {
	action, err := s.db.GetAction(id)
	if err != nil {
		if errors.Is(err, db.ErrActionNotFound) {
			return nil, policy.WrapGateError(policy.KindActionNotFound, err)
		}
		return nil, err
	}
	if action.Status == db.StatusPendingConfirmation && action.IsExpired(s.now().UTC()) {
		s.expire(action)
	}
	return action, nil
}

// expire transitions a pending record to expired and appends history.
// Reports whether this call performed the transition.
func (s *ActionService) expire(a *db.PendingAction) bool {
	if err := s.db.MarkExpired(a.ID); err != nil {
		// Lost the race to another writer; nothing to record.
		return false
	}
	a.Status = db.StatusExpired
	s.appendHistory(a)
	return true
}

// appendHistory writes the durable record for a resolved action.
func (s *ActionService) appendHistory(a *db.PendingAction) {
	h := &db.HistoryRecord{
		ActionID:        a.ID,
		UserID:          a.UserID,
		ActionType:      a.ActionType,
		Payload:         a.Payload,
		RiskLevel:       a.RiskLevel,
		ConfidenceScore: a.ConfidenceScore,
		FinalStatus:     a.Status,
		ResultPayload:   a.ResultPayload,
		ErrorMessage:    a.ErrorMessage,
		ProposedAt:      a.CreatedAt,
		ResolvedAt:      s.now().UTC(),
	}
	if err := s.db.AppendHistory(h); err != nil {
		// History is best effort; the pending row still holds the state.
		return
	}
}
