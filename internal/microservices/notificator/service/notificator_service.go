package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
)

var ErrDLQ = errors.New("dead_letter") // nack(requeue=false)

// spokenCap bounds how many order ids are remembered as already announced.
const spokenCap = 4096

// Speaker voices one announcement; the text-to-speech device sits behind it.
type Speaker interface {
	Speak(ctx context.Context, a domain.Announcement) error
}

type subscriber interface {
	Subscribe(exchange, consumer string, prefetch int) (<-chan amqp.Delivery, error)
}

type NotificatorService struct {
	client   subscriber
	exchange string
	consumer string
	prefetch int
	speaker  Speaker
	lg       *logger.Logger

	mu     sync.Mutex
	spoken map[string]struct{}
	order  []string // ring of spoken ids, oldest evicted first
	next   int
}

func NewNotificatorService(client subscriber, exchange, consumer string, prefetch int, speaker Speaker, lg *logger.Logger) *NotificatorService {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &NotificatorService{client: client, exchange: exchange, consumer: consumer, prefetch: prefetch, speaker: speaker, lg: lg,
		spoken: make(map[string]struct{}), order: make([]string, 0, spokenCap)}
}

// Notify consumes alert batches until ctx ends or the delivery channel
// closes.
func (ns *NotificatorService) Notify(ctx context.Context) error {
	msgs, err := ns.client.Subscribe(ns.exchange, ns.consumer, ns.prefetch)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ns.exchange, err)
	}
	ns.lg.Info("notificator_subscribed", map[string]any{"exchange": ns.exchange, "consumer": ns.consumer})

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("alert deliveries closed")
			}
			err := ns.Handle(ctx, d.Body)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrDLQ):
				ns.lg.Error("alert_rejected", err, map[string]any{"delivery_tag": d.DeliveryTag})
				_ = d.Nack(false, false)
			default:
				ns.lg.Error("alert_failed", err, map[string]any{"delivery_tag": d.DeliveryTag})
				_ = d.Nack(false, !d.Redelivered)
			}
		}
	}
}

// Handle announces every entry of one batch in its given order. Orders
// already spoken, e.g. by an earlier attempt at a redelivered batch, are
// skipped.
func (ns *NotificatorService) Handle(ctx context.Context, body []byte) error {
	var batch domain.AlertBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return fmt.Errorf("%w: decode alert batch: %v", ErrDLQ, err)
	}
	skipped := 0
	for _, a := range batch.Announcements {
		if ns.wasSpoken(a.OrderID) {
			skipped++
			continue
		}
		if err := ns.speaker.Speak(ctx, a); err != nil {
			return fmt.Errorf("speak order %s: %w", a.OrderID, err)
		}
		ns.markSpoken(a.OrderID)
	}
	ns.lg.Debug("alert_batch_handled", map[string]any{
		"batch_id":      batch.BatchID,
		"announcements": len(batch.Announcements),
		"skipped":       skipped,
	})
	return nil
}

func (ns *NotificatorService) wasSpoken(id string) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	_, ok := ns.spoken[id]
	return ok
}

func (ns *NotificatorService) markSpoken(id string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, ok := ns.spoken[id]; ok {
		return
	}
	if len(ns.order) < spokenCap {
		ns.order = append(ns.order, id)
	} else {
		delete(ns.spoken, ns.order[ns.next])
		ns.order[ns.next] = id
		ns.next = (ns.next + 1) % spokenCap
	}
	ns.spoken[id] = struct{}{}
}

// LogSpeaker stands in for a speech device by logging each line.
type LogSpeaker struct {
	lg *logger.Logger
}

func NewLogSpeaker(lg *logger.Logger) *LogSpeaker { return &LogSpeaker{lg: lg} }

func (s *LogSpeaker) Speak(_ context.Context, a domain.Announcement) error {
	s.lg.Info("announcement", map[string]any{
		"order_id":     a.OrderID,
		"table_number": a.TableNumber,
		"text":         a.Text,
	})
	return nil
}
