package batcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
)

// Announcer performs the side effect for one flushed batch.
type Announcer interface {
	Announce(ctx context.Context, batch domain.AlertBatch) error
}

type AnnouncerFunc func(ctx context.Context, batch domain.AlertBatch) error

func (f AnnouncerFunc) Announce(ctx context.Context, b domain.AlertBatch) error { return f(ctx, b) }

// Batcher debounces offers: each accepted offer restarts the window, and
// the batch is flushed once the window passes with no new arrival.
type Batcher struct {
	mu    sync.Mutex
	acc   *Accumulator
	timer *time.Timer
	now   func() time.Time

	out    Announcer
	lg     *logger.Logger
	closed bool
}

func New(window time.Duration, out Announcer, lg *logger.Logger) *Batcher {
	return &Batcher{acc: NewAccumulator(window), now: time.Now, out: out, lg: lg}
}

// Offer queues a new order for announcement. It returns false when the
// order was already announced or queued.
func (b *Batcher) Offer(p Pending) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if !b.acc.Offer(p, b.now()) {
		return false
	}
	deadline, _ := b.acc.Deadline()
	wait := deadline.Sub(b.now())
	if b.timer == nil {
		b.timer = time.AfterFunc(wait, b.fire)
	} else {
		b.timer.Reset(wait)
	}
	return true
}

func (b *Batcher) fire() {
	b.mu.Lock()
	batch := b.acc.Flush(b.now())
	if batch == nil {
		// Rearmed by a late offer; that offer's timer will fire.
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	alert := BuildBatch(batch, b.now().UTC())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.out.Announce(ctx, alert); err != nil {
		b.lg.Error("announce_failed", err, map[string]any{"batch_id": alert.BatchID, "orders": len(batch)})
		return
	}
	b.lg.Debug("batch_flushed", map[string]any{"batch_id": alert.BatchID, "orders": len(batch)})
}

// Prime marks orders that existed before the board started so they are
// never announced.
func (b *Batcher) Prime(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acc.MarkAnnounced(ids...)
}

// Stop cancels a pending flush. Buffered orders stay marked as announced.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
}

// BuildBatch turns a flushed buffer into announcements in the same order.
func BuildBatch(batch []Pending, at time.Time) domain.AlertBatch {
	out := domain.AlertBatch{
		BatchID:       uuid.NewString(),
		FlushedAt:     at,
		Announcements: make([]domain.Announcement, 0, len(batch)),
	}
	for _, p := range batch {
		out.Announcements = append(out.Announcements, domain.Announcement{
			OrderID:     p.OrderID,
			TableNumber: p.TableNumber,
			Text:        fmt.Sprintf("Table %d, new order", p.TableNumber),
			CreatedAt:   p.CreatedAt,
		})
	}
	return out
}
