// Package cache holds the in-memory mirror of the persisted plan
// snapshot and answers the freshness questions the sync controller
// schedules around.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kcalhq/plansync/internal/store"
	"github.com/kcalhq/plansync/internal/types"
)

// Default freshness windows. Within SoftThreshold a hit is served as-is;
// between SoftThreshold and TTL a hit is served but a silent background
// refresh is due; past TTL the entry no longer counts as fresh.
const (
	DefaultTTL           = time.Hour
	DefaultSoftThreshold = 30 * time.Minute
)

// Entry wraps a plan with the moment it was captured. Invalidated entries
// fail every freshness check while the plan stays displayable.
type Entry struct {
	Plan        *types.Plan
	CapturedAt  time.Time
	Invalidated bool
}

// Cache is the authoritative in-memory copy of one user's plan. The sync
// controller is its only writer; reads may come from any goroutine.
type Cache struct {
	mu     sync.Mutex
	entry  *Entry
	store  store.Store
	userID string
	ttl    time.Duration
	soft   time.Duration
	now    func() time.Time
}

// Options configures a Cache. Zero values fall back to defaults.
type Options struct {
	TTL           time.Duration
	SoftThreshold time.Duration
	Now           func() time.Time // test clock
}

// New creates a cache for userID backed by st.
func New(st store.Store, userID string, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SoftThreshold <= 0 {
		opts.SoftThreshold = DefaultSoftThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		store:  st,
		userID: userID,
		ttl:    opts.TTL,
		soft:   opts.SoftThreshold,
		now:    opts.Now,
	}
}

// Load warms the cache from the persistent store. A missing snapshot is
// not an error; the cache just starts empty.
func (c *Cache) Load(ctx context.Context) error {
	rec, err := c.store.Load(ctx, c.userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to warm plan cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &Entry{Plan: rec.Plan, CapturedAt: rec.CapturedAt, Invalidated: rec.Invalidated}
	return nil
}

// Peek returns a copy of the current entry, or nil when empty.
func (c *Cache) Peek() *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return nil
	}
	return &Entry{Plan: c.entry.Plan.Clone(), CapturedAt: c.entry.CapturedAt, Invalidated: c.entry.Invalidated}
}

// Store validates the plan, persists it durably, and only then replaces
// the in-memory entry, so a crash right after Store cannot lose data the
// caller believes is saved.
func (c *Cache) Store(ctx context.Context, plan *types.Plan) error {
	if plan == nil {
		return errors.New("cannot cache a nil plan")
	}
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("refusing to cache invalid plan: %w", err)
	}

	captured := c.now()
	rec := &store.Record{UserID: c.userID, Plan: plan, CapturedAt: captured}
	if err := c.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist plan: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &Entry{Plan: plan.Clone(), CapturedAt: captured}
	return nil
}

// Invalidate marks the entry expired and persists the mark, so the
// expiry survives process restarts. The plan itself is kept so the UI
// can keep showing stale content while a reload is pending.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return nil
	}

	rec := &store.Record{
		UserID:      c.userID,
		Plan:        c.entry.Plan,
		CapturedAt:  c.entry.CapturedAt,
		Invalidated: true,
	}
	if err := c.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist invalidation: %w", err)
	}
	c.entry.Invalidated = true
	return nil
}

// IsFresh reports whether an entry exists and is younger than the TTL.
func (c *Cache) IsFresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil || c.entry.Invalidated || c.entry.CapturedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.entry.CapturedAt) < c.ttl
}

// IsStale reports whether an entry exists inside the soft-refresh window:
// older than the soft threshold but still fresh. A true result means
// "serve it, but refresh in the background".
func (c *Cache) IsStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil || c.entry.Invalidated || c.entry.CapturedAt.IsZero() {
		return false
	}
	age := c.now().Sub(c.entry.CapturedAt)
	return age > c.soft && age < c.ttl
}

// LastUpdated returns the capture time of the current entry, zero when
// empty. Invalidation does not clear it; the age of the plan on display
// is still meaningful.
func (c *Cache) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return time.Time{}
	}
	return c.entry.CapturedAt
}

// TTL returns the configured hard freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }
