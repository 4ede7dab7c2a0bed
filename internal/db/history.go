// Package db provides the append-only action history log.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// HistoryRecord is the durable record of a resolved action, distinct from the
// transient pending row. Rows are append-only and never updated.
type HistoryRecord struct {
	ID              int64        `json:"id"`
	ActionID        string       `json:"action_id"`
	UserID          string       `json:"user_id"`
	ActionType      string       `json:"action_type"`
	Payload         string       `json:"payload"`
	RiskLevel       RiskLevel    `json:"risk_level"`
	ConfidenceScore float64      `json:"confidence_score"`
	FinalStatus     ActionStatus `json:"final_status"`
	ResultPayload   string       `json:"result_payload,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ProposedAt      time.Time    `json:"proposed_at"`
	ResolvedAt      time.Time    `json:"resolved_at"`
}

// AppendHistory records a resolved action. The final status must be terminal.
func (db *DB) AppendHistory(h *HistoryRecord) error {
	if !h.FinalStatus.IsTerminal() {
		return fmt.Errorf("history requires a terminal status, got %s", h.FinalStatus)
	}
	if h.ResolvedAt.IsZero() {
		h.ResolvedAt = time.Now().UTC()
	}
	result, err := db.Exec(`
		INSERT INTO action_history (action_id, user_id, action_type, payload, risk_level,
			confidence_score, final_status, result_payload, error_message, proposed_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ActionID, h.UserID, h.ActionType, h.Payload, string(h.RiskLevel),
		h.ConfidenceScore, string(h.FinalStatus), h.ResultPayload, h.ErrorMessage,
		h.ProposedAt.UTC().Format(time.RFC3339), h.ResolvedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// HistoryFilter narrows ListHistory results. Zero values match everything.
type HistoryFilter struct {
	UserID     string
	ActionType string
	Status     ActionStatus
	Since      time.Time
	Limit      int
}

// ListHistory returns history records matching the filter, newest first.
func (db *DB) ListHistory(f HistoryFilter) ([]*HistoryRecord, error) {
	query := `
		SELECT id, action_id, user_id, action_type, payload, risk_level,
			confidence_score, final_status, result_payload, error_message,
			proposed_at, resolved_at
		FROM action_history WHERE 1=1`
	var args []any
	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.ActionType != "" {
		query += ` AND action_type = ?`
		args = append(args, f.ActionType)
	}
	if f.Status != "" {
		query += ` AND final_status = ?`
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		query += ` AND resolved_at >= ?`
		args = append(args, f.Since.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY resolved_at DESC`
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []*HistoryRecord
	for rows.Next() {
		h := &HistoryRecord{}
		var riskLevel, finalStatus, proposedAt, resolvedAt string
		var resultPayload, errorMessage *string
		err := rows.Scan(&h.ID, &h.ActionID, &h.UserID, &h.ActionType, &h.Payload,
			&riskLevel, &h.ConfidenceScore, &finalStatus, &resultPayload, &errorMessage,
			&proposedAt, &resolvedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		h.RiskLevel = RiskLevel(riskLevel)
		h.FinalStatus = ActionStatus(finalStatus)
		if resultPayload != nil {
			h.ResultPayload = *resultPayload
		}
		if errorMessage != nil {
			h.ErrorMessage = *errorMessage
		}
		h.ProposedAt = parseTime(proposedAt)
		h.ResolvedAt = parseTime(resolvedAt)
		records = append(records, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return records, nil
}

// GetHistoryByAction returns the most recent history record for an action ID.
func (db *DB) GetHistoryByAction(actionID string) (*HistoryRecord, error) {
	row := db.QueryRow(`
		SELECT id, action_id, user_id, action_type, payload, risk_level,
			confidence_score, final_status, result_payload, error_message,
			proposed_at, resolved_at
		FROM action_history WHERE action_id = ?
		ORDER BY resolved_at DESC LIMIT 1
	`, actionID)

	h := &HistoryRecord{}
	var riskLevel, finalStatus, proposedAt, resolvedAt string
	var resultPayload, errorMessage *string
	err := row.Scan(&h.ID, &h.ActionID, &h.UserID, &h.ActionType, &h.Payload,
		&riskLevel, &h.ConfidenceScore, &finalStatus, &resultPayload, &errorMessage,
		&proposedAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("history record %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning history record: %w", err)
	}
	h.RiskLevel = RiskLevel(riskLevel)
	h.FinalStatus = ActionStatus(finalStatus)
	if resultPayload != nil {
		h.ResultPayload = *resultPayload
	}
	if errorMessage != nil {
		h.ErrorMessage = *errorMessage
	}
	h.ProposedAt = parseTime(proposedAt)
	h.ResolvedAt = parseTime(resolvedAt)
	return h, nil
}
