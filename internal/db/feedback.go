// Package db provides action feedback persistence and aggregation.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FeedbackKind distinguishes quick thumbs feedback from detailed ratings.
type FeedbackKind string

const (
	FeedbackQuick    FeedbackKind = "quick"
	FeedbackDetailed FeedbackKind = "detailed"
)

// Thumbs values for quick feedback.
const (
	ThumbsUp   = "up"
	ThumbsDown = "down"
)

// Feedback is a user reaction to an executed action. An action may carry one
// quick entry and any number of detailed entries; no uniqueness is enforced.
type Feedback struct {
	ID        int64        `json:"id"`
	ActionID  string       `json:"action_id"`
	Kind      FeedbackKind `json:"kind"`
	Thumbs    string       `json:"thumbs,omitempty"`
	Rating    *int         `json:"rating,omitempty"`
	Comment   string       `json:"comment,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ErrFeedbackInvalid is returned when neither a thumbs value nor a rating is given.
var ErrFeedbackInvalid = errors.New("feedback requires a thumbs value or a rating")

// RecordFeedback inserts a feedback entry. Requires thumbs or rating; ratings
// must be in [1,5].
func (db *DB) RecordFeedback(f *Feedback) error {
	if f.Thumbs == "" && f.Rating == nil {
		return ErrFeedbackInvalid
	}
	if f.Thumbs != "" && f.Thumbs != ThumbsUp && f.Thumbs != ThumbsDown {
		return fmt.Errorf("invalid thumbs value %q", f.Thumbs)
	}
	if f.Rating != nil && (*f.Rating < 1 || *f.Rating > 5) {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	if f.Kind == "" {
		if f.Rating != nil || f.Comment != "" {
			f.Kind = FeedbackDetailed
		} else {
			f.Kind = FeedbackQuick
		}
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	var thumbs any
	if f.Thumbs != "" {
		thumbs = f.Thumbs
	}
	var rating any
	if f.Rating != nil {
		rating = *f.Rating
	}

	result, err := db.Exec(`
		INSERT INTO action_feedback (action_id, kind, thumbs, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ActionID, string(f.Kind), thumbs, rating, f.Comment, f.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording feedback: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	f.ID = id
	return nil
}

// ListFeedbackByAction returns all feedback for an action, oldest first.
func (db *DB) ListFeedbackByAction(actionID string) ([]*Feedback, error) {
	rows, err := db.Query(`
		SELECT id, action_id, kind, thumbs, rating, comment, created_at
		FROM action_feedback WHERE action_id = ?
		ORDER BY created_at ASC
	`, actionID)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

// ListFeedback returns the most recent feedback entries across all actions.
func (db *DB) ListFeedback(limit int) ([]*Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, action_id, kind, thumbs, rating, comment, created_at
		FROM action_feedback
		ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

func scanFeedback(rows *sql.Rows) ([]*Feedback, error) {
	var entries []*Feedback
	for rows.Next() {
		f := &Feedback{}
		var kind, createdAt string
		var thumbs sql.NullString
		var rating sql.NullInt64
		if err := rows.Scan(&f.ID, &f.ActionID, &kind, &thumbs, &rating, &f.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning feedback row: %w", err)
		}
		f.Kind = FeedbackKind(kind)
		f.Thumbs = thumbs.String
		if rating.Valid {
			r := int(rating.Int64)
			f.Rating = &r
		}
		f.CreatedAt = parseTime(createdAt)
		entries = append(entries, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback: %w", err)
	}
	return entries, nil
}

// FeedbackStats aggregates feedback for analytics. ApprovalRatePct is the
// thumbs-up share of all thumbs entries, rounded to a whole percent.
type FeedbackStats struct {
	TotalEntries    int     `json:"total_entries"`
	ThumbsUp        int     `json:"thumbs_up"`
	ThumbsDown      int     `json:"thumbs_down"`
	ApprovalRatePct int     `json:"approval_rate_pct"`
	RatedCount      int     `json:"rated_count"`
	AvgRating       float64 `json:"avg_rating"`
}

// GetFeedbackStats computes aggregate feedback statistics.
func (db *DB) GetFeedbackStats() (*FeedbackStats, error) {
	stats := &FeedbackStats{}
	err := db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN thumbs = 'up' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN thumbs = 'down' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rating IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(rating), 0)
		FROM action_feedback
	`).Scan(&stats.TotalEntries, &stats.ThumbsUp, &stats.ThumbsDown, &stats.RatedCount, &stats.AvgRating)
	if err != nil {
		return nil, fmt.Errorf("computing feedback stats: %w", err)
	}
	if total := stats.ThumbsUp + stats.ThumbsDown; total > 0 {
		stats.ApprovalRatePct = int(float64(stats.ThumbsUp)/float64(total)*100 + 0.5)
	}
	return stats, nil
}

// TypeFeedbackStats aggregates feedback per action type via the history log.
type TypeFeedbackStats struct {
	ActionType string  `json:"action_type"`
	Entries    int     `json:"entries"`
	ThumbsUp   int     `json:"thumbs_up"`
	ThumbsDown int     `json:"thumbs_down"`
	AvgRating  float64 `json:"avg_rating"`
}

// GetFeedbackStatsByType joins feedback with history to group by action type.
func (db *DB) GetFeedbackStatsByType() ([]*TypeFeedbackStats, error) {
	rows, err := db.Query(`
		SELECT h.action_type,
			COUNT(f.id),
			COALESCE(SUM(CASE WHEN f.thumbs = 'up' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN f.thumbs = 'down' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(f.rating), 0)
		FROM action_feedback f
		JOIN action_history h ON h.action_id = f.action_id
		GROUP BY h.action_type
		ORDER BY h.action_type
	`)
	if err != nil {
		return nil, fmt.Errorf("computing per-type feedback stats: %w", err)
	}
	defer rows.Close()

	var out []*TypeFeedbackStats
	for rows.Next() {
		s := &TypeFeedbackStats{}
		if err := rows.Scan(&s.ActionType, &s.Entries, &s.ThumbsUp, &s.ThumbsDown, &s.AvgRating); err != nil {
			return nil, fmt.Errorf("scanning per-type stats: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating per-type stats: %w", err)
	}
	return out, nil
}
