// Package sync orchestrates the plan cache: cache-hit vs fetch decisions,
// request coalescing, silent background refresh, and error recovery. It
// owns all mutation of the observable state; everything else reads
// snapshots.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/kcalhq/plansync/internal/cache"
	"github.com/kcalhq/plansync/internal/diff"
	"github.com/kcalhq/plansync/internal/types"
)

// Client is the slice of the compute-service client the controller needs.
type Client interface {
	Generate(ctx context.Context, force bool) (*types.Plan, error)
}

// ErrClosed is returned by operations on a disposed controller.
var ErrClosed = errors.New("sync controller is closed")

// DefaultRefreshInterval rate-limits silent background refreshes so a
// flapping staleness check cannot hammer the compute service.
const DefaultRefreshInterval = 5 * time.Minute

// Flight keys: foreground fetches coalesce with each other and with any
// running background refresh; forced recomputes coalesce separately so
// they always reach the network with forceRecompute set.
const (
	flightKeyFetch = "generate"
	flightKeyForce = "generate.force"
)

// Options configures a Controller.
type Options struct {
	Detector        diff.Detector
	RefreshInterval time.Duration    // min spacing between background refreshes
	Now             func() time.Time // test clock
}

// Controller drives plan synchronization for a single user. Construct
// with New, dispose with Close.
type Controller struct {
	client   Client
	cache    *cache.Cache
	detector diff.Detector
	limiter  *rate.Limiter
	now      func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	lastErr   *types.PlanError
	changes   *diff.Summary
	loading   int    // foreground fetches in flight (attachers included)
	gen       uint64 // next generation to hand out
	applied   uint64 // generation of the last applied result
	bgPending bool
	closed    bool

	// notifyMu serializes snapshot delivery so no two subscriber
	// callbacks interleave.
	notifyMu sync.Mutex
	subs     map[int]func(Snapshot)
	nextSub  int

	lifeCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a controller over client and cache. The cache should
// already be warmed (cache.Load) if persisted state is wanted.
func New(client Client, c *cache.Cache, opts Options) *Controller {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:   client,
		cache:    c,
		detector: opts.Detector,
		limiter:  rate.NewLimiter(rate.Every(opts.RefreshInterval), 1),
		now:      opts.Now,
		subs:     make(map[int]func(Snapshot)),
		lifeCtx:  ctx,
		cancel:   cancel,
	}
}

// Fetch returns the current plan, hitting the network only when the
// cache cannot answer. A fresh-but-stale hit returns immediately and
// schedules one silent background refresh.
func (c *Controller) Fetch(ctx context.Context) (*types.Plan, error) {
	return c.FetchForce(ctx, false)
}

// Recompute always issues a network call with forceRecompute set,
// bypassing freshness checks entirely.
func (c *Controller) Recompute(ctx context.Context) (*types.Plan, error) {
	return c.FetchForce(ctx, true)
}

// FetchForce is the primary entry point; Fetch and Recompute are sugar.
func (c *Controller) FetchForce(ctx context.Context, force bool) (*types.Plan, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	if !force && c.cache.IsFresh() {
		entry := c.cache.Peek()
		if c.cache.IsStale() {
			c.scheduleBackgroundRefresh()
		}
		return entry.Plan, nil
	}

	c.setLoading(1)
	defer c.setLoading(-1)

	key := flightKeyFetch
	if force {
		key = flightKeyForce
	}
	return c.flight(ctx, key, force)
}

// flight runs (or attaches to) the single in-flight generate call for key.
func (c *Controller) flight(ctx context.Context, key string, force bool) (*types.Plan, error) {
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		gen := c.nextGen()
		plan, ferr := c.client.Generate(ctx, force)
		return c.apply(ctx, gen, plan, ferr)
	})
	if shared {
		slog.Debug("coalesced into in-flight plan fetch", "key", key)
	}
	if err != nil {
		return nil, err
	}
	return v.(*types.Plan), nil
}

func (c *Controller) nextGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// apply folds a completed fetch into observable state, unless a result
// from a newer generation already landed, in which case this one is
// discarded untouched: a slow background refresh must not clobber a
// fresher forced recompute.
func (c *Controller) apply(ctx context.Context, gen uint64, plan *types.Plan, fetchErr error) (*types.Plan, error) {
	c.mu.Lock()
	if gen <= c.applied {
		c.mu.Unlock()
		slog.Debug("discarding stale fetch result", "generation", gen, "applied", c.applied)
		return plan, fetchErr
	}
	c.applied = gen
	c.mu.Unlock()

	if fetchErr != nil {
		pe := types.AsPlanError(fetchErr)
		c.mu.Lock()
		c.lastErr = pe
		c.mu.Unlock()
		slog.Warn("plan fetch failed", "kind", pe.Kind, "err", pe.Error())
		c.notify()
		return nil, pe
	}

	// The api client validates before returning, but the cache invariant
	// is the controller's to enforce: nothing out of range gets stored.
	if err := plan.Validate(); err != nil {
		pe := types.WrapPlanError(types.ErrKindInvalidResponse, err, "refusing to apply invalid plan")
		c.mu.Lock()
		c.lastErr = pe
		c.mu.Unlock()
		slog.Warn("discarding invalid plan", "err", err)
		c.notify()
		return nil, pe
	}

	// Targets of the plan we are replacing, for change detection.
	var prevTargets *types.Targets
	if entry := c.cache.Peek(); entry != nil {
		t := entry.Plan.Targets
		prevTargets = &t
	}

	if err := c.cache.Store(ctx, plan); err != nil {
		// The fetch succeeded but the result could not be made durable.
		// Keep the previous good plan on display rather than dangling
		// state that would vanish on restart.
		pe := types.WrapPlanError(types.ErrKindStaleData, err, "fetched plan could not be persisted")
		c.mu.Lock()
		c.lastErr = pe
		c.mu.Unlock()
		slog.Warn("failed to persist fetched plan", "err", err)
		c.notify()
		return nil, pe
	}

	changes := c.detector.Compare(prevTargets, plan.Targets)
	c.mu.Lock()
	c.lastErr = nil
	c.changes = changes
	c.mu.Unlock()
	if changes != nil {
		slog.Debug("plan targets changed significantly", "summary", changes.Describe())
	}
	c.notify()
	return plan, nil
}

// scheduleBackgroundRefresh starts at most one detached refresh, gated by
// the rate limiter and cancelled with the controller.
func (c *Controller) scheduleBackgroundRefresh() {
	c.mu.Lock()
	if c.closed || c.bgPending {
		c.mu.Unlock()
		return
	}
	if !c.limiter.Allow() {
		c.mu.Unlock()
		slog.Debug("background refresh suppressed by rate limiter")
		return
	}
	c.bgPending = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			c.bgPending = false
			c.mu.Unlock()
		}()

		if c.lifeCtx.Err() != nil {
			return
		}
		// Failures here surface through the snapshot like any other
		// fetch; no caller is waiting on the result.
		if _, err := c.flight(c.lifeCtx, flightKeyFetch, false); err != nil {
			slog.Debug("background refresh failed", "err", err)
		}
	}()
}

// ClearError drops the error component of the current state without
// touching the plan or the cache.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
}

// Invalidate durably expires the cached entry so the next Fetch, in this
// process or a later one, goes to the network. The stale plan stays
// available for display.
func (c *Controller) Invalidate(ctx context.Context) error {
	if err := c.cache.Invalidate(ctx); err != nil {
		return err
	}
	c.notify()
	return nil
}

// HasSignificantChanges reports whether the most recent applied fetch
// moved any target past its notification threshold.
func (c *Controller) HasSignificantChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changes != nil
}

// LastChanges returns the change summary from the most recent applied
// fetch, nil when nothing significant changed.
func (c *Controller) LastChanges() *diff.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changes
}

// Snapshot derives the current observable state. The state value is a
// pure function of (loading, lastErr, cache), which keeps the transition
// table honest: there is no stored state to drift out of sync.
func (c *Controller) Snapshot() Snapshot {
	entry := c.cache.Peek()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Loading: c.loading > 0,
		Err:     c.lastErr,
		Changes: c.changes,
	}
	if entry != nil {
		snap.Plan = entry.Plan
		snap.LastUpdated = entry.CapturedAt
		snap.Stale = entry.Invalidated || entry.CapturedAt.IsZero() || c.now().Sub(entry.CapturedAt) >= c.cache.TTL()
	}

	switch {
	case snap.Loading:
		snap.State = StateLoading
	case snap.Err != nil && snap.Plan != nil:
		snap.State = StateReadyWithError
	case snap.Err != nil:
		snap.State = StateErrorNoData
	case snap.Plan != nil:
		snap.State = StateReady
	default:
		snap.State = StateIdle
	}
	return snap
}

// Subscribe registers fn for snapshot deliveries and returns an
// unsubscribe func. Deliveries are serialized; fn must not block for
// long and must not call back into the controller's mutating methods.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.notifyMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.notifyMu.Unlock()

	return func() {
		c.notifyMu.Lock()
		delete(c.subs, id)
		c.notifyMu.Unlock()
	}
}

func (c *Controller) setLoading(delta int) {
	c.mu.Lock()
	c.loading += delta
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if len(c.subs) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, fn := range c.subs {
		fn(snap)
	}
}

// Close cancels any detached background refresh, waits for it to wind
// down, and drops subscribers. Further operations return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.notifyMu.Lock()
	c.subs = make(map[int]func(Snapshot))
	c.notifyMu.Unlock()
}
