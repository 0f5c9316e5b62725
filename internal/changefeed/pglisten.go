package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
)

// Channel is the NOTIFY channel the schema triggers publish to.
const Channel = "restaurant_changes"

// PGListener turns Postgres NOTIFY payloads into change events. Each
// subscription holds one pooled connection for its lifetime.
type PGListener struct {
	pool    *pgxpool.Pool
	channel string
	lg      *logger.Logger
}

func NewPGListener(pool *pgxpool.Pool, lg *logger.Logger) *PGListener {
	return &PGListener{pool: pool, channel: Channel, lg: lg}
}

func (l *PGListener) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", l.channel, err)
	}

	out := make(chan domain.ChangeEvent, 64)
	go func() {
		defer close(out)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					l.lg.Error("listen_failed", err, map[string]any{"channel": l.channel})
				}
				return
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				l.lg.Warn("notify_payload_invalid", map[string]any{"payload": n.Payload})
				// Still a change; let the receiver re-pull.
				ev = domain.ChangeEvent{}
			}
			select {
			case out <- ev:
			default:
			}
		}
	}()
	return out, nil
}
