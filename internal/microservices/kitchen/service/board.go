package service

import (
	"context"
	"sync"
	"time"

	"table-ordering/internal/batcher"
	"table-ordering/internal/changefeed"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
	"table-ordering/internal/repository"
)

type BoardOptions struct {
	DebounceWindow  time.Duration
	PollInterval    time.Duration
	MaxSyncFailures int
	// AnnounceBacklog announces orders already open when the board starts.
	AnnounceBacklog bool
}

// Board is the kitchen view: it keeps the active orders in step with the
// store and announces each new order once, in debounced batches.
type Board struct {
	coord   *changefeed.Coordinator
	batcher *batcher.Batcher
	backlog bool
	lg      *logger.Logger

	mu     sync.Mutex
	primed bool
	queue  []domain.Order
	synced bool
}

func NewBoard(db repository.Store, src changefeed.Source, out batcher.Announcer, opts BoardOptions, lg *logger.Logger) *Board {
	b := &Board{
		batcher: batcher.New(opts.DebounceWindow, out, lg),
		backlog: opts.AnnounceBacklog,
		lg:      lg,
	}
	load := changefeed.LoaderFunc(func(ctx context.Context) (changefeed.Snapshot, error) {
		tables, err := db.ListTables(ctx)
		if err != nil {
			return changefeed.Snapshot{}, err
		}
		orders, err := db.ListOrders(ctx, true)
		if err != nil {
			return changefeed.Snapshot{}, err
		}
		return changefeed.Snapshot{Tables: tables, Orders: orders, PulledAt: time.Now().UTC()}, nil
	})
	b.coord = changefeed.NewCoordinator("kitchen", src, load, changefeed.Options{
		PollInterval: opts.PollInterval,
		MaxFailures:  opts.MaxSyncFailures,
		OnSnapshot:   b.apply,
		OnError:      b.syncFailed,
	}, lg)
	return b
}

// Run blocks until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	defer b.batcher.Stop()
	return b.coord.Run(ctx)
}

func (b *Board) apply(s changefeed.Snapshot) {
	b.mu.Lock()
	b.queue = s.Orders
	b.synced = true
	first := !b.primed
	b.primed = true
	b.mu.Unlock()

	if first && !b.backlog {
		ids := make([]string, 0, len(s.Orders))
		for _, o := range s.Orders {
			ids = append(ids, o.ID)
		}
		b.batcher.Prime(ids...)
		b.lg.Info("board_primed", map[string]any{"active_orders": len(ids)})
		return
	}
	for _, o := range s.Orders {
		b.batcher.Offer(batcher.Pending{OrderID: o.ID, TableNumber: o.TableNumber, CreatedAt: o.CreatedAt})
	}
}

func (b *Board) syncFailed(err error) {
	b.mu.Lock()
	b.synced = false
	b.mu.Unlock()
	b.lg.Error("board_out_of_sync", err, nil)
}

// Queue returns the active orders from the latest pull, oldest first, and
// whether that pull is current.
func (b *Board) Queue() ([]domain.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Order, len(b.queue))
	for i, o := range b.queue {
		out[len(out)-1-i] = o
	}
	return out, b.synced
}
