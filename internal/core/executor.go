// Package core implements execution of approved actions.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amie-labs/agentgate/internal/db"
	"github.com/amie-labs/agentgate/internal/dispatch"
	"github.com/amie-labs/agentgate/internal/policy"
	"github.com/amie-labs/agentgate/internal/utils"
)

// ExecutionResult describes the outcome of dispatching one approved action.
// Failures are terminal and recorded on the row; they are never retried here.
type ExecutionResult struct {
	ActionID      string      `json:"action_id"`
	Executed      bool        `json:"executed"`
	ResultPayload string      `json:"result_payload,omitempty"`
	ErrorKind     policy.Kind `json:"error_kind,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	ExecutedAt    time.Time   `json:"executed_at"`
}

// ErrNotConfirmed is returned when execution is attempted on a record that
// has no confirmation. High and critical actions can never execute without
// confirmed_at set; this guard enforces it for every tier.
var ErrNotConfirmed = errors.New("action has not been confirmed")

// execute dispatches a confirmed action and records the result or failure on
// the row. The returned result mirrors what was persisted.
func (s *ActionService) execute(ctx context.Context, action *db.PendingAction) *ExecutionResult {
	now := s.now().UTC()
	result := &ExecutionResult{ActionID: action.ID, ExecutedAt: now}

	if action.ConfirmedAt == nil {
		result.ErrorKind = policy.KindInternal
		result.ErrorMessage = ErrNotConfirmed.Error()
		return result
	}

	res, err := s.dispatcher.Dispatch(ctx, dispatch.ForAction(action))
	if err != nil {
		result.ErrorKind = policy.KindOf(err)
		result.ErrorMessage = err.Error()
		if markErr := s.db.MarkFailed(action.ID, result.ErrorMessage, now); markErr != nil {
			utils.Error("recording execution failure", "action_id", action.ID, "err", markErr)
			return result
		}
		action.Status = db.StatusFailed
		action.ExecutedAt = &now
		action.ErrorMessage = result.ErrorMessage
		s.appendHistory(action)
		return result
	}

	if err := s.db.MarkExecuted(action.ID, res.ResultPayload, now); err != nil {
		utils.Error("recording execution result", "action_id", action.ID, "err", err)
		result.ErrorKind = policy.KindInternal
		result.ErrorMessage = fmt.Sprintf("execution succeeded but result was not recorded: %v", err)
		return result
	}

	result.Executed = true
	result.ResultPayload = res.ResultPayload
	action.Status = db.StatusExecuted
	action.ExecutedAt = &now
	action.ResultPayload = res.ResultPayload
	s.appendHistory(action)
	return result
}
