package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per user under a directory. Writes go to
// a temp file in the same directory and are renamed into place, so a
// crash mid-write leaves either the old snapshot or the new one, never a
// torn file.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// path escapes the user ID so IDs with path separators cannot climb out
// of the store directory.
func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, url.PathEscape(userID)+".json")
}

func (s *FileStore) Load(ctx context.Context, userID string) (*Record, error) {
	raw, err := os.ReadFile(s.path(userID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plan snapshot: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse plan snapshot: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("stored plan snapshot is invalid: %w", err)
	}
	return &rec, nil
}

func (s *FileStore) Save(ctx context.Context, rec *Record) error {
	rec.Version = SchemaVersion
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid record: %w", err)
	}

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan snapshot: %w", err)
	}

	final := s.path(rec.UserID)
	tmp, err := os.CreateTemp(s.dir, ".plan-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write plan snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync plan snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("failed to move plan snapshot into place: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, userID string) error {
	err := os.Remove(s.path(userID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete plan snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
