// Package db provides SQLite persistence for agentgate state.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the current schema version. Bump when the schema changes.
const SchemaVersion = 1

// DB wraps the underlying SQLite handle.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if necessary) the database at path and initializes the schema.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database %s: %w", path, err)
	}

	db := &DB{DB: conn, path: path}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// OpenAndMigrate opens the database and applies any pending migrations.
func OpenAndMigrate(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenUserDB opens the per-user database at ~/.agentgate/state.db.
func OpenUserDB() (*DB, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	return OpenAndMigrate(filepath.Join(home, ".agentgate", "state.db"))
}

// Path returns the filesystem path of the database.
func (db *DB) Path() string {
	return db.path
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_actions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	action_type TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	risk_level TEXT NOT NULL,
	confidence_score REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending_confirmation',
	decision_reason TEXT NOT NULL DEFAULT '',
	admin_required INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	confirmed_at TEXT,
	confirmed_by TEXT,
	cancelled_at TEXT,
	cancel_reason TEXT,
	executed_at TEXT,
	result_payload TEXT,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_pending_actions_user ON pending_actions(user_id, status);
CREATE INDEX IF NOT EXISTS idx_pending_actions_status ON pending_actions(status, expires_at);

CREATE TABLE IF NOT EXISTS action_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	action_type TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	risk_level TEXT NOT NULL,
	confidence_score REAL NOT NULL DEFAULT 0,
	final_status TEXT NOT NULL,
	result_payload TEXT,
	error_message TEXT,
	proposed_at TEXT NOT NULL,
	resolved_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_history_user ON action_history(user_id, resolved_at);
CREATE INDEX IF NOT EXISTS idx_action_history_action ON action_history(action_id);

CREATE TABLE IF NOT EXISTS action_feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	thumbs TEXT,
	rating INTEGER,
	comment TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_feedback_action ON action_feedback(action_id);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id TEXT PRIMARY KEY,
	settings TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS team_settings (
	team_id TEXT PRIMARY KEY,
	settings TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS team_members (
	user_id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id);
`

func (db *DB) initSchema() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		return fmt.Errorf("checking schema_migrations: %w", err)
	}
	if count == 0 {
		_, err := db.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			SchemaVersion, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	}
	return nil
}

// migrate applies forward migrations. Version 1 is the baseline.
func (db *DB) migrate() error {
	version, err := db.GetSchemaVersion()
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, SchemaVersion)
	}
	return nil
}

// GetSchemaVersion returns the highest applied schema version.
func (db *DB) GetSchemaVersion() (int, error) {
	var version int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// ValidateSchema verifies the stored schema version matches this build.
func (db *DB) ValidateSchema() error {
	version, err := db.GetSchemaVersion()
	if err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: have %d, want %d", version, SchemaVersion)
	}
	return nil
}

// Stats summarizes database contents.
type Stats struct {
	SchemaVersion  int `json:"schema_version"`
	PendingActions int `json:"pending_actions"`
	HistoryRecords int `json:"history_records"`
	FeedbackCount  int `json:"feedback_count"`
}

// GetStats returns row counts and the schema version.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}
	var err error
	if stats.SchemaVersion, err = db.GetSchemaVersion(); err != nil {
		return nil, err
	}
	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM pending_actions WHERE status = 'pending_confirmation'`, &stats.PendingActions},
		{`SELECT COUNT(*) FROM action_history`, &stats.HistoryRecords},
		{`SELECT COUNT(*) FROM action_feedback`, &stats.FeedbackCount},
	}
	for _, c := range counts {
		if err := db.QueryRow(c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}
	return stats, nil
}

// parseTime parses an RFC3339 timestamp column, tolerating empty values.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// parseTimePtr parses a nullable RFC3339 timestamp column.
func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// ErrNotFound is a generic sentinel wrapped by the table-specific not-found errors.
var ErrNotFound = errors.New("not found")
