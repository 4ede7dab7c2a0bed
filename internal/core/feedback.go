// Package core implements feedback capture and analytics export.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amie-labs/agentgate/internal/db"
	"github.com/amie-labs/agentgate/internal/policy"
	yaml "go.yaml.in/yaml/v3"
)

// RecordFeedbackOptions holds the inputs for one feedback entry.
type RecordFeedbackOptions struct {
	ActionID string
	// Thumbs is "up" or "down" for quick feedback.
	Thumbs string
	// Rating is a 1-5 detailed rating (0 = not rated).
	Rating int
	// Comment is optional free text.
	Comment string
}

// RecordFeedback captures a user reaction to a resolved action. The action
// must have reached execution (executed or failed); pending and cancelled
// actions have nothing to rate.
func (s *ActionService) RecordFeedback(opts RecordFeedbackOptions) (*db.Feedback, error) {
	action, err := s.db.GetAction(opts.ActionID)
	if err != nil {
		if errors.Is(err, db.ErrActionNotFound) {
			return nil, policy.WrapGateError(policy.KindActionNotFound, err)
		}
		return nil, err
	}
	if action.Status != db.StatusExecuted && action.Status != db.StatusFailed {
		return nil, fmt.Errorf("action has not been executed yet (status: %s)", action.Status)
	}

	f := &db.Feedback{
		ActionID:  opts.ActionID,
		Thumbs:    opts.Thumbs,
		Comment:   opts.Comment,
		CreatedAt: s.now().UTC(),
	}
	if opts.Rating != 0 {
		f.Rating = &opts.Rating
	}
	if err := s.db.RecordFeedback(f); err != nil {
		return nil, err
	}
	return f, nil
}

// AnalyticsExport is the user-triggered structured dump of feedback analytics.
// It is generated client-side; there is no server endpoint.
type AnalyticsExport struct {
	GeneratedAt time.Time               `json:"generated_at" yaml:"generated_at"`
	Stats       *db.FeedbackStats       `json:"stats" yaml:"stats"`
	ByType      []*db.TypeFeedbackStats `json:"by_type,omitempty" yaml:"by_type,omitempty"`
	Recent      []*db.Feedback          `json:"recent,omitempty" yaml:"recent,omitempty"`
}

// ExportFormat selects the analytics export encoding.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
)

// BuildAnalyticsExport aggregates feedback into an export document.
func (s *ActionService) BuildAnalyticsExport(recentLimit int) (*AnalyticsExport, error) {
	stats, err := s.db.GetFeedbackStats()
	if err != nil {
		return nil, err
	}
	byType, err := s.db.GetFeedbackStatsByType()
	if err != nil {
		return nil, err
	}
	recent, err := s.db.ListFeedback(recentLimit)
	if err != nil {
		return nil, err
	}
	return &AnalyticsExport{
		GeneratedAt: s.now().UTC(),
		Stats:       stats,
		ByType:      byType,
		Recent:      recent,
	}, nil
}

// EncodeAnalyticsExport serializes an export document.
func EncodeAnalyticsExport(export *AnalyticsExport, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportYAML:
		return yaml.Marshal(export)
	case ExportJSON, "":
		return json.MarshalIndent(export, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
