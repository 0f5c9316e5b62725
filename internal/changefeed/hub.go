package changefeed

import (
	"context"
	"sync"

	"table-ordering/internal/domain"
)

// Source delivers change events until the returned channel is closed.
// A closed channel means the subscription dropped (or ctx ended).
type Source interface {
	Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error)
}

// Publisher accepts change events from the store.
type Publisher interface {
	Publish(ev domain.ChangeEvent)
}

// Hub is an in-process fanout used by the memory store.
//
// Publish never blocks: when a subscriber's buffer is full the event is
// dropped, which is safe because any pending event already triggers a
// full re-pull on the receiving side.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan domain.ChangeEvent
	nextID int
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[int]chan domain.ChangeEvent), buffer: buffer}
}

func (h *Hub) Publish(ev domain.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan domain.ChangeEvent, h.buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(id)
	}()
	return ch, nil
}

// Disconnect drops every subscription, as a broken connection would.
func (h *Hub) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}
