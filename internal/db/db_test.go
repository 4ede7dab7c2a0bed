package db

import (
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB opens a fresh database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestAction inserts a pending action with defaults suitable for tests.
func createTestAction(t *testing.T, db *DB, mutate func(*PendingAction)) *PendingAction {
	t.Helper()
	now := time.Now().UTC()
	a := &PendingAction{
		UserID:          "user-1",
		ActionType:      "create_task",
		Payload:         `{"title":"water plants"}`,
		RiskLevel:       RiskLow,
		ConfidenceScore: 0.9,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Hour),
	}
	if mutate != nil {
		mutate(a)
	}
	if err := db.CreateAction(a); err != nil {
		t.Fatalf("failed to create action: %v", err)
	}
	return a
}

func TestOpenAndInitSchema(t *testing.T) {
	db := setupTestDB(t)

	if err := db.ValidateSchema(); err != nil {
		t.Fatalf("schema validation failed: %v", err)
	}

	version, err := db.GetSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("expected schema version %d, got %d", SchemaVersion, version)
	}
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db1, err := OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	a := createTestAction(t, db1, nil)
	db1.Close()

	db2, err := OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer db2.Close()

	got, err := db2.GetAction(a.ID)
	if err != nil {
		t.Fatalf("failed to read action after reopen: %v", err)
	}
	if got.ActionType != a.ActionType {
		t.Errorf("expected action_type %s, got %s", a.ActionType, got.ActionType)
	}
}

func TestOpenEmptyPathFails(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)

	createTestAction(t, db, nil)
	createTestAction(t, db, nil)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.SchemaVersion != SchemaVersion {
		t.Errorf("expected schema version %d, got %d", SchemaVersion, stats.SchemaVersion)
	}
	if stats.PendingActions != 2 {
		t.Errorf("expected 2 pending actions, got %d", stats.PendingActions)
	}
	if stats.HistoryRecords != 0 {
		t.Errorf("expected 0 history records, got %d", stats.HistoryRecords)
	}
}
