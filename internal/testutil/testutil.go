// Package testutil provides shared test fixtures: a temp-dir database harness
// and seed helpers for actions, settings, and contacts.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amie-labs/agentgate/internal/db"
)

// Harness bundles a temp directory with an open, migrated database.
type Harness struct {
	Dir    string
	DBPath string
	DB     *db.DB
}

// NewHarness creates a fresh database in a temp directory, closed on cleanup.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")
	database, err := db.OpenAndMigrate(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	return &Harness{Dir: dir, DBPath: dbPath, DB: database}
}

// ActionOption mutates an action fixture before insertion.
type ActionOption func(*db.PendingAction)

// WithUser sets the owning user.
func WithUser(userID string) ActionOption {
	return func(a *db.PendingAction) { a.UserID = userID }
}

// WithType sets the action type.
func WithType(actionType string) ActionOption {
	return func(a *db.PendingAction) { a.ActionType = actionType }
}

// WithRisk sets the risk level.
func WithRisk(risk db.RiskLevel) ActionOption {
	return func(a *db.PendingAction) { a.RiskLevel = risk }
}

// WithConfidence sets the confidence score.
func WithConfidence(score float64) ActionOption {
	return func(a *db.PendingAction) { a.ConfidenceScore = score }
}

// WithPayload sets the JSON payload.
func WithPayload(payload string) ActionOption {
	return func(a *db.PendingAction) { a.Payload = payload }
}

// WithExpiry sets the confirmation deadline.
func WithExpiry(at time.Time) ActionOption {
	return func(a *db.PendingAction) { a.ExpiresAt = at }
}

// WithAdminRequired marks the action as needing admin confirmation.
func WithAdminRequired() ActionOption {
	return func(a *db.PendingAction) { a.AdminRequired = true }
}

// MakeAction inserts a pending action fixture with sensible defaults: a
// low-risk create_task for user-1 expiring in an hour.
func MakeAction(t *testing.T, database *db.DB, opts ...ActionOption) *db.PendingAction {
	t.Helper()

	now := time.Now().UTC()
	a := &db.PendingAction{
		UserID:          "user-1",
		ActionType:      "create_task",
		Payload:         `{"title":"test task"}`,
		RiskLevel:       db.RiskLow,
		ConfidenceScore: 0.9,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Hour),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := database.CreateAction(a); err != nil {
		t.Fatalf("failed to create test action: %v", err)
	}
	return a
}

// SeedUserSettings stores user settings built from defaults plus a mutation.
func SeedUserSettings(t *testing.T, database *db.DB, userID string, mutate func(*db.UserSettings)) *db.UserSettings {
	t.Helper()

	s := db.DefaultUserSettings(userID)
	if mutate != nil {
		mutate(s)
	}
	if err := database.PutUserSettings(s); err != nil {
		t.Fatalf("failed to seed user settings: %v", err)
	}
	return s
}

// SeedTeam stores team settings and assigns the given users to the team.
func SeedTeam(t *testing.T, database *db.DB, teamID string, mutate func(*db.TeamSettings), members ...string) *db.TeamSettings {
	t.Helper()

	s := db.DefaultTeamSettings(teamID)
	if mutate != nil {
		mutate(s)
	}
	if err := database.PutTeamSettings(s); err != nil {
		t.Fatalf("failed to seed team settings: %v", err)
	}
	for _, userID := range members {
		if err := database.SetTeamMember(userID, teamID); err != nil {
			t.Fatalf("failed to assign team member: %v", err)
		}
	}
	return s
}

// SeedContact inserts a contact for a user.
func SeedContact(t *testing.T, database *db.DB, userID, name, email string) *db.Contact {
	t.Helper()

	c := &db.Contact{UserID: userID, Name: name, Email: email}
	if err := database.AddContact(c); err != nil {
		t.Fatalf("failed to seed contact: %v", err)
	}
	return c
}

// Clock is a controllable time source for services under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at the given instant.
func NewClock(at time.Time) *Clock {
	return &Clock{now: at.UTC()}
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
