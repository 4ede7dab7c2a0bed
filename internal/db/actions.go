// Package db provides pending action CRUD and lifecycle transitions.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the coarse classification of an action's potential for harm.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RequiresConfirmation reports whether the risk tier mandates human confirmation.
func (r RiskLevel) RequiresConfirmation() bool {
	return r == RiskHigh || r == RiskCritical
}

// ActionStatus is the current state of a pending action.
type ActionStatus string

const (
	StatusPendingConfirmation ActionStatus = "pending_confirmation"
	StatusConfirmed           ActionStatus = "confirmed"
	StatusCancelled           ActionStatus = "cancelled"
	StatusExpired             ActionStatus = "expired"
	StatusExecuted            ActionStatus = "executed"
	StatusFailed              ActionStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusExpired, StatusExecuted, StatusFailed:
		return true
	}
	return false
}

// PendingAction is an agent-proposed operation awaiting approval before execution.
type PendingAction struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	ActionType      string       `json:"action_type"`
	Payload         string       `json:"payload"`
	RiskLevel       RiskLevel    `json:"risk_level"`
	ConfidenceScore float64      `json:"confidence_score"`
	Status          ActionStatus `json:"status"`
	DecisionReason  string       `json:"decision_reason,omitempty"`
	AdminRequired   bool         `json:"admin_required,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
	ConfirmedAt     *time.Time   `json:"confirmed_at,omitempty"`
	ConfirmedBy     string       `json:"confirmed_by,omitempty"`
	CancelledAt     *time.Time   `json:"cancelled_at,omitempty"`
	CancelReason    string       `json:"cancel_reason,omitempty"`
	ExecutedAt      *time.Time   `json:"executed_at,omitempty"`
	ResultPayload   string       `json:"result_payload,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
}

// IsExpired reports whether the action's confirmation window has passed at t.
func (a *PendingAction) IsExpired(t time.Time) bool {
	return t.After(a.ExpiresAt)
}

// Action errors.
var (
	// ErrActionNotFound is returned when no pending action matches the ID.
	ErrActionNotFound = fmt.Errorf("pending action %w", ErrNotFound)
	// ErrActionTerminal is returned when a transition targets a record that
	// already resolved to a different terminal state.
	ErrActionTerminal = errors.New("pending action is already in a terminal state")
	// ErrStaleTransition is returned when the conditional update matched no row,
	// meaning another writer resolved the record first.
	ErrStaleTransition = errors.New("pending action was modified concurrently")
)

const actionColumns = `id, user_id, action_type, payload, risk_level, confidence_score,
	status, decision_reason, admin_required, created_at, expires_at,
	confirmed_at, confirmed_by, cancelled_at, cancel_reason,
	executed_at, result_payload, error_message`

// CreateAction inserts a new pending action. ID and CreatedAt are populated
// when unset; ExpiresAt must be set by the caller (TTL is policy-level).
func (db *DB) CreateAction(a *PendingAction) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = StatusPendingConfirmation
	}
	if a.Payload == "" {
		a.Payload = "{}"
	}
	if a.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is required")
	}

	_, err := db.Exec(`
		INSERT INTO pending_actions (id, user_id, action_type, payload, risk_level,
			confidence_score, status, decision_reason, admin_required, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.ActionType, a.Payload, string(a.RiskLevel),
		a.ConfidenceScore, string(a.Status), a.DecisionReason, boolToInt(a.AdminRequired),
		a.CreatedAt.UTC().Format(time.RFC3339), a.ExpiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating pending action: %w", err)
	}
	return nil
}

// GetAction retrieves a pending action by ID.
func (db *DB) GetAction(id string) (*PendingAction, error) {
	row := db.QueryRow(`SELECT `+actionColumns+` FROM pending_actions WHERE id = ?`, id)
	return scanAction(row)
}

// ListActionsByStatus returns actions for a user filtered by status, newest first.
// An empty userID matches all users.
func (db *DB) ListActionsByStatus(userID string, status ActionStatus, limit int) ([]*PendingAction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + actionColumns + ` FROM pending_actions WHERE status = ?`
	args := []any{string(status)}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

// ListExpiredPending returns pending_confirmation records whose window passed at cutoff.
func (db *DB) ListExpiredPending(cutoff time.Time) ([]*PendingAction, error) {
	rows, err := db.Query(`
		SELECT `+actionColumns+` FROM pending_actions
		WHERE status = ? AND expires_at < ?
		ORDER BY expires_at ASC
	`, string(StatusPendingConfirmation), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying expired actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

// ListStaleConfirmed returns confirmed-but-never-executed records older than cutoff.
// These indicate a crash between confirmation and dispatch; they are reported,
// not retried.
func (db *DB) ListStaleConfirmed(cutoff time.Time) ([]*PendingAction, error) {
	rows, err := db.Query(`
		SELECT `+actionColumns+` FROM pending_actions
		WHERE status = ? AND confirmed_at < ?
		ORDER BY confirmed_at ASC
	`, string(StatusConfirmed), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying stale confirmed actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

// MarkConfirmed transitions pending_confirmation -> confirmed. The update is
// conditional on the current status; ErrStaleTransition means another writer won.
func (db *DB) MarkConfirmed(id, confirmedBy string, at time.Time) error {
	return db.transition(id, `
		UPDATE pending_actions SET status = ?, confirmed_at = ?, confirmed_by = ?
		WHERE id = ? AND status = ?
	`, string(StatusConfirmed), at.UTC().Format(time.RFC3339), confirmedBy, id, string(StatusPendingConfirmation))
}

// MarkCancelled transitions pending_confirmation|confirmed -> cancelled.
func (db *DB) MarkCancelled(id, reason string, at time.Time) error {
	return db.transition(id, `
		UPDATE pending_actions SET status = ?, cancelled_at = ?, cancel_reason = ?
		WHERE id = ? AND status IN (?, ?)
	`, string(StatusCancelled), at.UTC().Format(time.RFC3339), reason, id,
		string(StatusPendingConfirmation), string(StatusConfirmed))
}

// MarkExpired transitions pending_confirmation -> expired.
func (db *DB) MarkExpired(id string) error {
	return db.transition(id, `
		UPDATE pending_actions SET status = ? WHERE id = ? AND status = ?
	`, string(StatusExpired), id, string(StatusPendingConfirmation))
}

// MarkExecuted transitions confirmed -> executed and stores the result payload.
func (db *DB) MarkExecuted(id, resultPayload string, at time.Time) error {
	return db.transition(id, `
		UPDATE pending_actions SET status = ?, executed_at = ?, result_payload = ?
		WHERE id = ? AND status = ?
	`, string(StatusExecuted), at.UTC().Format(time.RFC3339), resultPayload, id, string(StatusConfirmed))
}

// MarkFailed transitions confirmed -> failed and records the error message.
func (db *DB) MarkFailed(id, errorMessage string, at time.Time) error {
	return db.transition(id, `
		UPDATE pending_actions SET status = ?, executed_at = ?, error_message = ?
		WHERE id = ? AND status = ?
	`, string(StatusFailed), at.UTC().Format(time.RFC3339), errorMessage, id, string(StatusConfirmed))
}

// transition runs a conditional status update and maps a zero-row result to
// ErrActionNotFound or ErrStaleTransition.
func (db *DB) transition(id, query string, args ...any) error {
	result, err := db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("updating pending action: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := db.GetAction(id); err != nil {
			return err
		}
		return ErrStaleTransition
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanAction(row *sql.Row) (*PendingAction, error) {
	a := &PendingAction{}
	var (
		riskLevel, status, createdAt, expiresAt string
		confirmedAt, confirmedBy                sql.NullString
		cancelledAt, cancelReason               sql.NullString
		executedAt, resultPayload, errorMessage sql.NullString
		adminRequired                           int
	)
	err := row.Scan(&a.ID, &a.UserID, &a.ActionType, &a.Payload, &riskLevel,
		&a.ConfidenceScore, &status, &a.DecisionReason, &adminRequired,
		&createdAt, &expiresAt, &confirmedAt, &confirmedBy,
		&cancelledAt, &cancelReason, &executedAt, &resultPayload, &errorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("scanning pending action: %w", err)
	}
	fillAction(a, riskLevel, status, createdAt, expiresAt, confirmedAt, confirmedBy,
		cancelledAt, cancelReason, executedAt, resultPayload, errorMessage, adminRequired)
	return a, nil
}

func scanActions(rows *sql.Rows) ([]*PendingAction, error) {
	var actions []*PendingAction
	for rows.Next() {
		a := &PendingAction{}
		var (
			riskLevel, status, createdAt, expiresAt string
			confirmedAt, confirmedBy                sql.NullString
			cancelledAt, cancelReason               sql.NullString
			executedAt, resultPayload, errorMessage sql.NullString
			adminRequired                           int
		)
		err := rows.Scan(&a.ID, &a.UserID, &a.ActionType, &a.Payload, &riskLevel,
			&a.ConfidenceScore, &status, &a.DecisionReason, &adminRequired,
			&createdAt, &expiresAt, &confirmedAt, &confirmedBy,
			&cancelledAt, &cancelReason, &executedAt, &resultPayload, &errorMessage)
		if err != nil {
			return nil, fmt.Errorf("scanning pending action row: %w", err)
		}
		fillAction(a, riskLevel, status, createdAt, expiresAt, confirmedAt, confirmedBy,
			cancelledAt, cancelReason, executedAt, resultPayload, errorMessage, adminRequired)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending actions: %w", err)
	}
	return actions, nil
}

func fillAction(a *PendingAction, riskLevel, status, createdAt, expiresAt string,
	confirmedAt, confirmedBy, cancelledAt, cancelReason, executedAt, resultPayload, errorMessage sql.NullString,
	adminRequired int) {
	a.RiskLevel = RiskLevel(riskLevel)
	a.Status = ActionStatus(status)
	a.AdminRequired = adminRequired != 0
	a.CreatedAt = parseTime(createdAt)
	a.ExpiresAt = parseTime(expiresAt)
	a.ConfirmedAt = parseTimePtr(confirmedAt)
	a.ConfirmedBy = confirmedBy.String
	a.CancelledAt = parseTimePtr(cancelledAt)
	a.CancelReason = cancelReason.String
	a.ExecutedAt = parseTimePtr(executedAt)
	a.ResultPayload = resultPayload.String
	a.ErrorMessage = errorMessage.String
}
