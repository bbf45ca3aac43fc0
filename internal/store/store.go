// Package store persists the last known good plan snapshot across process
// restarts. Two backends exist: a JSON file per user (the default, easy to
// inspect) and SQLite (shared app database deployments).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kcalhq/plansync/internal/types"
)

// ErrNotFound is returned when no snapshot exists for a user.
var ErrNotFound = errors.New("no stored plan for user")

// SchemaVersion is bumped when Record changes incompatibly. Loaders
// tolerate older versions with missing optional fields.
const SchemaVersion = 1

// Record is the unit of persistence: one plan snapshot per user plus the
// moment it was captured.
type Record struct {
	Version    int         `json:"version"`
	UserID     string      `json:"user_id"`
	Plan       *types.Plan `json:"plan"`
	CapturedAt time.Time   `json:"captured_at"`
	// Invalidated marks a snapshot explicitly expired while keeping the
	// plan displayable. It survives restarts so an invalidation issued by
	// one process is honored by the next.
	Invalidated bool `json:"invalidated,omitempty"`
}

// Validate checks that a record is complete enough to load.
func (r *Record) Validate() error {
	if r.UserID == "" {
		return errors.New("record missing user id")
	}
	if r.Plan == nil {
		return errors.New("record missing plan")
	}
	if r.CapturedAt.IsZero() {
		return errors.New("record missing capture timestamp")
	}
	return r.Plan.Validate()
}

// Store is the persistence contract. Implementations hold at most one
// record per user; Save replaces atomically.
type Store interface {
	Load(ctx context.Context, userID string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, userID string) error
	Close() error
}
