// Package changefeed keeps a view's local copy of tables and orders in step
// with the shared store. Every change event triggers a full re-pull of the
// working set; events are never merged incrementally.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
)

// Snapshot is a view's working set.
type Snapshot struct {
	Tables   []domain.Table
	Orders   []domain.Order
	PulledAt time.Time
}

type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

type LoaderFunc func(ctx context.Context) (Snapshot, error)

func (f LoaderFunc) Load(ctx context.Context) (Snapshot, error) { return f(ctx) }

type Options struct {
	// PollInterval paces the fallback re-pull while the feed is down.
	PollInterval time.Duration
	// MaxFailures consecutive failed re-pulls before OnError is called.
	MaxFailures int
	OnSnapshot  func(Snapshot)
	OnError     func(error)
}

// Coordinator is owned by exactly one view. Run ties its subscription to
// the view's lifetime: cancelling ctx unsubscribes.
type Coordinator struct {
	name string
	src  Source
	load Loader
	opts Options
	lg   *logger.Logger

	mu        sync.RWMutex
	latest    Snapshot
	hasLatest bool

	connected atomic.Bool
	failures  int
	pulls     atomic.Int64
}

func NewCoordinator(name string, src Source, load Loader, opts Options, lg *logger.Logger) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	return &Coordinator{name: name, src: src, load: load, opts: opts, lg: lg}
}

// Run blocks until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		events, err := c.src.Subscribe(ctx)
		if err == nil {
			c.connected.Store(true)
			c.lg.Info("feed_subscribed", map[string]any{"view": c.name})
			c.refresh(ctx)
			c.consume(ctx, events)
			c.connected.Store(false)
			err = errors.New("subscription closed")
		}
		if ctx.Err() != nil {
			c.lg.Info("feed_unsubscribed", map[string]any{"view": c.name})
			return nil
		}
		c.lg.Warn("feed_sync_failure", map[string]any{
			"view":  c.name,
			"error": fmt.Errorf("%w: %v", domain.ErrSyncFailure, err).Error(),
		})

		// Fall back to a periodic full re-pull until the feed reconnects.
		c.refresh(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.PollInterval):
		}
	}
}

func (c *Coordinator) consume(ctx context.Context, events <-chan domain.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			coalesced := 1
		drain:
			for {
				select {
				case _, ok := <-events:
					if !ok {
						c.refresh(ctx)
						return
					}
					coalesced++
				default:
					break drain
				}
			}
			c.lg.Debug("feed_event", map[string]any{
				"view": c.name, "entity": ev.Entity, "op": ev.Op, "coalesced": coalesced,
			})
			c.refresh(ctx)
		}
	}
}

func (c *Coordinator) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.pulls.Add(1)
	snap, err := c.load.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.failures++
		c.lg.Error("repull_failed", err, map[string]any{"view": c.name, "failures": c.failures})
		if c.failures >= c.opts.MaxFailures && c.opts.OnError != nil {
			c.opts.OnError(fmt.Errorf("%w: %d consecutive re-pulls failed: %v", domain.ErrSyncFailure, c.failures, err))
		}
		return
	}
	c.failures = 0
	if snap.PulledAt.IsZero() {
		snap.PulledAt = time.Now().UTC()
	}
	c.mu.Lock()
	c.latest, c.hasLatest = snap, true
	c.mu.Unlock()
	if c.opts.OnSnapshot != nil {
		c.opts.OnSnapshot(snap)
	}
}

func (c *Coordinator) Latest() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.hasLatest
}

func (c *Coordinator) Connected() bool { return c.connected.Load() }

// Pulls counts re-pull attempts.
func (c *Coordinator) Pulls() int64 { return c.pulls.Load() }
