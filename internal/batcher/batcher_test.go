package batcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func tables(batch []Pending) []int {
	out := make([]int, 0, len(batch))
	for _, p := range batch {
		out = append(out, p.TableNumber)
	}
	return out
}

func TestAccumulator_SortedSingleBatch(t *testing.T) {
	a := NewAccumulator(time.Second)
	require.True(t, a.Offer(Pending{OrderID: "a", TableNumber: 7}, t0))
	require.True(t, a.Offer(Pending{OrderID: "b", TableNumber: 3}, t0.Add(300*time.Millisecond)))
	require.True(t, a.Offer(Pending{OrderID: "c", TableNumber: 9}, t0.Add(600*time.Millisecond)))

	assert.Nil(t, a.Flush(t0.Add(1500*time.Millisecond)), "window restarted by last arrival")

	batch := a.Flush(t0.Add(1600 * time.Millisecond))
	assert.Equal(t, []int{3, 7, 9}, tables(batch))
	assert.Zero(t, a.Buffered())
	assert.Nil(t, a.Flush(t0.Add(time.Hour)), "nothing left after drain")
}

func TestAccumulator_StableWithinTable(t *testing.T) {
	a := NewAccumulator(time.Second)
	a.Offer(Pending{OrderID: "first", TableNumber: 4}, t0)
	a.Offer(Pending{OrderID: "x", TableNumber: 2}, t0)
	a.Offer(Pending{OrderID: "second", TableNumber: 4}, t0)

	batch := a.Flush(t0.Add(time.Second))
	require.Len(t, batch, 3)
	assert.Equal(t, "x", batch[0].OrderID)
	assert.Equal(t, "first", batch[1].OrderID)
	assert.Equal(t, "second", batch[2].OrderID)
}

func TestAccumulator_AtMostOnce(t *testing.T) {
	a := NewAccumulator(time.Second)
	assert.True(t, a.Offer(Pending{OrderID: "a", TableNumber: 1}, t0))
	assert.False(t, a.Offer(Pending{OrderID: "a", TableNumber: 1}, t0.Add(time.Millisecond)))

	a.Flush(t0.Add(2 * time.Second))
	// A reconnect replays the same pending order.
	assert.False(t, a.Offer(Pending{OrderID: "a", TableNumber: 1}, t0.Add(3*time.Second)))
	assert.True(t, a.Announced("a"))
	_, armed := a.Deadline()
	assert.False(t, armed)
}

func TestAccumulator_DuplicateDoesNotExtendWindow(t *testing.T) {
	a := NewAccumulator(time.Second)
	a.Offer(Pending{OrderID: "a", TableNumber: 1}, t0)
	a.Offer(Pending{OrderID: "a", TableNumber: 1}, t0.Add(900*time.Millisecond))
	assert.Len(t, a.Flush(t0.Add(time.Second)), 1)
}

func TestAccumulator_MarkAnnouncedSkipsOffer(t *testing.T) {
	a := NewAccumulator(time.Second)
	a.MarkAnnounced("old")
	assert.False(t, a.Offer(Pending{OrderID: "old", TableNumber: 1}, t0))
	assert.Zero(t, a.Buffered())
	_, armed := a.Deadline()
	assert.False(t, armed)
}

type recorder struct {
	mu      sync.Mutex
	batches []domain.AlertBatch
}

func (r *recorder) Announce(_ context.Context, b domain.AlertBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
	return nil
}

func (r *recorder) snapshot() []domain.AlertBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AlertBatch(nil), r.batches...)
}

func TestBatcher_DebouncesBurstIntoOneBatch(t *testing.T) {
	rec := &recorder{}
	b := New(50*time.Millisecond, rec, logger.Nop())
	defer b.Stop()

	assert.True(t, b.Offer(Pending{OrderID: "o7", TableNumber: 7}))
	assert.True(t, b.Offer(Pending{OrderID: "o3", TableNumber: 3}))
	assert.True(t, b.Offer(Pending{OrderID: "o9", TableNumber: 9}))
	assert.False(t, b.Offer(Pending{OrderID: "o3", TableNumber: 3}))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	batches := rec.snapshot()
	require.Len(t, batches, 1)
	anns := batches[0].Announcements
	require.Len(t, anns, 3)
	assert.Equal(t, 3, anns[0].TableNumber)
	assert.Equal(t, 7, anns[1].TableNumber)
	assert.Equal(t, 9, anns[2].TableNumber)
	assert.Equal(t, "Table 3, new order", anns[0].Text)
	assert.NotEmpty(t, batches[0].BatchID)

	// Already-announced orders never come back.
	assert.False(t, b.Offer(Pending{OrderID: "o7", TableNumber: 7}))
}

func TestBatcher_StopCancelsPendingFlush(t *testing.T) {
	rec := &recorder{}
	b := New(20*time.Millisecond, rec, logger.Nop())
	b.Offer(Pending{OrderID: "a", TableNumber: 1})
	b.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
	assert.False(t, b.Offer(Pending{OrderID: "b", TableNumber: 2}))
}
