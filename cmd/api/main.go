package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_renewal_backend/internal/auth"
	"crm_renewal_backend/internal/email"
	"crm_renewal_backend/internal/events"
	apphttp "crm_renewal_backend/internal/http"
	"crm_renewal_backend/internal/http/router"
	"crm_renewal_backend/internal/notification"
	"crm_renewal_backend/internal/renewal"
	"crm_renewal_backend/internal/renewal/handler"
	"crm_renewal_backend/internal/scheduler"
	"crm_renewal_backend/migrations"
	"crm_renewal_backend/platform/config"
	"crm_renewal_backend/platform/db"
	"crm_renewal_backend/platform/logger"
	"crm_renewal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender := email.NewSender(cfg, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	authModule := auth.New(pool, cfg, val)

	notificationModule := notification.New(pool, sender, log)

	renewalModule := renewal.New(pool, notificationModule.SnoozeReader(), eventBus, cfg, log)

	// Cross-module wiring: notifications read the cache and the neglect
	// scan through narrow interfaces, never the renewal packages directly.
	notificationModule.SetCacheReader(renewalModule.Repository())
	notificationModule.SetNeglectSource(renewalModule.Service())
	notificationModule.SetAccountNamer(renewalModule.Repository())

	// Manual refresh enqueues for the scheduler process; recompute passes
	// never run inside an HTTP request.
	refresher, closeRefresher := initRefresher(cfg, log)
	if closeRefresher != nil {
		defer closeRefresher()
	}
	if refresher != nil {
		renewalModule.SetRefresher(refresher)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			renewalModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRefresher(cfg config.SchedulerConfig, log *logger.Logger) (handler.Refresher, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; manual cache refresh disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Warn("failed to initialize scheduler client; manual cache refresh disabled", "error", err)
		return nil, nil
	}

	return client, func() { _ = client.Close() }
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
