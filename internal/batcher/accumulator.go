// Package batcher coalesces bursts of new-order events into one ordered
// kitchen alert batch.
package batcher

import (
	"sort"
	"time"
)

// Pending is a new order waiting to be announced.
type Pending struct {
	OrderID     string
	TableNumber int
	CreatedAt   time.Time
}

// Accumulator is the timer-free core of the batcher. All time is passed
// in, so every transition is a plain function of (input, state).
//
// The announced set only grows: an order id offered once is never
// accepted again, across any number of reconnects.
type Accumulator struct {
	window    time.Duration
	announced map[string]struct{}
	buf       []Pending
	deadline  time.Time
	armed     bool
}

func NewAccumulator(window time.Duration) *Accumulator {
	return &Accumulator{window: window, announced: make(map[string]struct{})}
}

// Offer accepts p if its order was never seen and (re)arms the deadline.
func (a *Accumulator) Offer(p Pending, now time.Time) bool {
	if _, seen := a.announced[p.OrderID]; seen {
		return false
	}
	a.announced[p.OrderID] = struct{}{}
	a.buf = append(a.buf, p)
	a.deadline = now.Add(a.window)
	a.armed = true
	return true
}

// Deadline reports when the pending buffer becomes due.
func (a *Accumulator) Deadline() (time.Time, bool) { return a.deadline, a.armed }

func (a *Accumulator) Due(now time.Time) bool {
	return a.armed && !now.Before(a.deadline)
}

// Flush drains the buffer if the window has elapsed with no new arrivals.
// The batch is sorted by table number, then arrival.
func (a *Accumulator) Flush(now time.Time) []Pending {
	if !a.Due(now) {
		return nil
	}
	batch := a.buf
	a.buf = nil
	a.armed = false
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].TableNumber < batch[j].TableNumber
	})
	return batch
}

func (a *Accumulator) Buffered() int { return len(a.buf) }

func (a *Accumulator) Announced(orderID string) bool {
	_, ok := a.announced[orderID]
	return ok
}

// MarkAnnounced records ids as already announced without buffering them.
func (a *Accumulator) MarkAnnounced(ids ...string) {
	for _, id := range ids {
		a.announced[id] = struct{}{}
	}
}
