package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_renewal_backend/internal/email"
	"crm_renewal_backend/internal/events"
	"crm_renewal_backend/internal/listener"
	"crm_renewal_backend/internal/notification"
	"crm_renewal_backend/internal/renewal"
	"crm_renewal_backend/internal/scheduler"
	"crm_renewal_backend/platform/config"
	"crm_renewal_backend/platform/db"
	"crm_renewal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// digestHourUTC is when the daily renewal digest goes out.
const digestHourUTC = 7

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	sender := email.NewSender(cfg, log)

	notificationModule := notification.New(pool, sender, log)
	renewalModule := renewal.New(pool, notificationModule.SnoozeReader(), eventBus, cfg, log)

	notificationModule.SetCacheReader(renewalModule.Repository())
	notificationModule.SetNeglectSource(renewalModule.Service())
	notificationModule.SetAccountNamer(renewalModule.Repository())

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	// Every successful recompute fires a durable reconcile task. The worker
	// runs it on its own long-lived context, never on the pass context the
	// coordinator tears down as soon as the pass returns.
	eventBus.Subscribe(events.CacheRecomputed{}.EventName(), events.HandlerFunc(
		func(ctx context.Context, _ events.Event) error {
			return client.EnqueueNotificationReconcile(ctx)
		}))

	// The coordinator owns recompute passes in this process: periodic
	// staleness ticks, LISTEN/NOTIFY invalidations and queued refresh tasks
	// all funnel through it.
	coordinator := renewalModule.NewCoordinator(cfg, log)
	coordinator.RegisterHandlers(eventBus)
	go coordinator.Run(ctx)

	changeListener := listener.New(pool, eventBus, log)
	go changeListener.Run(ctx)

	digestScheduler := scheduler.NewDigestScheduler(client, digestHourUTC, log)
	go digestScheduler.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, coordinator, notificationModule.Reconciler(), notificationModule.Digest(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
