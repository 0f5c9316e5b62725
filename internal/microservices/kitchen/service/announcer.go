package service

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, contentType string, persistent bool) error
}

// AlertPublisher sends each flushed batch to the kitchen alert fanout.
type AlertPublisher struct {
	client   publisher
	exchange string
	lg       *logger.Logger
}

func NewAlertPublisher(client publisher, exchange string, lg *logger.Logger) *AlertPublisher {
	return &AlertPublisher{client: client, exchange: exchange, lg: lg}
}

func (p *AlertPublisher) Announce(ctx context.Context, batch domain.AlertBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal alert batch: %w", err)
	}
	headers := amqp.Table{"batch_id": batch.BatchID, "announcements": int32(len(batch.Announcements))}
	if err := p.client.Publish(ctx, p.exchange, "", body, headers, "application/json", true); err != nil {
		return fmt.Errorf("publish alert batch %s: %w", batch.BatchID, err)
	}
	p.lg.Info("alert_batch_published", map[string]any{
		"batch_id":      batch.BatchID,
		"exchange":      p.exchange,
		"announcements": len(batch.Announcements),
	})
	return nil
}

// LogAnnouncer writes one log entry per announcement, in batch order.
type LogAnnouncer struct {
	lg *logger.Logger
}

func NewLogAnnouncer(lg *logger.Logger) *LogAnnouncer { return &LogAnnouncer{lg: lg} }

func (a *LogAnnouncer) Announce(_ context.Context, batch domain.AlertBatch) error {
	for _, ann := range batch.Announcements {
		a.lg.Info("kitchen_announcement", map[string]any{
			"batch_id":     batch.BatchID,
			"order_id":     ann.OrderID,
			"table_number": ann.TableNumber,
			"text":         ann.Text,
		})
	}
	return nil
}
