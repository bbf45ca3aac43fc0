package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kcalhq/plansync/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS plans (
    user_id     TEXT PRIMARY KEY,
    version     INTEGER NOT NULL,
    plan        TEXT NOT NULL,
    captured_at TEXT NOT NULL,
    invalidated INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore implements Store on a SQLite database. SQLite's journal
// gives the same crash-atomicity the file backend gets from rename.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (*Record, error) {
	var version int
	var planJSON, capturedAt string
	var invalidated bool
	err := s.db.QueryRowContext(ctx,
		"SELECT version, plan, captured_at, invalidated FROM plans WHERE user_id = ?", userID).
		Scan(&version, &planJSON, &capturedAt, &invalidated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query plan snapshot: %w", err)
	}

	var plan types.Plan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse stored plan: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, capturedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse capture timestamp: %w", err)
	}

	rec := &Record{Version: version, UserID: userID, Plan: &plan, CapturedAt: ts, Invalidated: invalidated}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("stored plan snapshot is invalid: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	rec.Version = SchemaVersion
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid record: %w", err)
	}

	planJSON, err := json.Marshal(rec.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (user_id, version, plan, captured_at, invalidated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			version = excluded.version,
			plan = excluded.plan,
			captured_at = excluded.captured_at,
			invalidated = excluded.invalidated`,
		rec.UserID, rec.Version, string(planJSON), rec.CapturedAt.Format(time.RFC3339Nano), rec.Invalidated)
	if err != nil {
		return fmt.Errorf("failed to upsert plan snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM plans WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete plan snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
