// Package listener turns Postgres NOTIFY signals on the crm_changes
// channel into in-process invalidation events.
package listener

import (
	"context"
	"encoding/json"
	"time"

	"crm_renewal_backend/internal/events"
	"crm_renewal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the NOTIFY channel the source-table triggers write to.
const Channel = "crm_changes"

const reconnectDelay = 5 * time.Second

// payload mirrors the trigger's json payload. It is a hint only; the
// recompute pass re-reads everything, so a payload that fails to decode
// still invalidates.
type payload struct {
	Table string `json:"table"`
}

// Listener holds a dedicated connection on LISTEN and republishes every
// notification as a SourceDataChanged event. Connection loss is retried
// with a flat delay; notifications missed while disconnected are covered
// by the periodic staleness tick.
type Listener struct {
	pool *pgxpool.Pool
	bus  events.Bus
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) *Listener {
	return &Listener{pool: pool, bus: bus, log: log}
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.listen(ctx); err != nil && ctx.Err() == nil {
			if l.log != nil {
				l.log.Warn("change listener disconnected", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	if l.log != nil {
		l.log.Info("listening for source changes", "channel", Channel)
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var p payload
		_ = json.Unmarshal([]byte(notification.Payload), &p)

		l.bus.Publish(ctx, events.SourceDataChanged{
			BaseEvent: events.NewBaseEvent(),
			Table:     p.Table,
		})
	}
}
