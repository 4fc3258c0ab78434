package scheduler

import (
	"context"
	"fmt"

	"crm_renewal_backend/internal/notification"
	"crm_renewal_backend/platform/config"
	"crm_renewal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Recomputer triggers a cache recompute pass. The coordinator coalesces
// concurrent triggers, so replayed tasks are harmless.
type Recomputer interface {
	Trigger(ctx context.Context, trigger string) error
}

// DigestRunner builds and sends the daily digest email.
type DigestRunner interface {
	Run(ctx context.Context) (int, error)
}

// Reconciler writes derived facts into the notification feed.
type Reconciler interface {
	Run(ctx context.Context) (notification.Result, error)
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	recomputer Recomputer
	reconciler Reconciler
	digest     DigestRunner
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, recomputer Recomputer, reconciler Reconciler, digest DigestRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		recomputer: recomputer,
		reconciler: reconciler,
		digest:     digest,
		log:        log,
	}

	mux.HandleFunc(TaskCacheRecompute, w.handleCacheRecompute)
	mux.HandleFunc(TaskNotificationReconcile, w.handleNotificationReconcile)
	mux.HandleFunc(TaskRenewalDigest, w.handleRenewalDigest)

	return w, nil
}

func (w *Worker) handleCacheRecompute(ctx context.Context, task *asynq.Task) error {
	if w.recomputer == nil {
		return nil
	}

	payload, err := ParseCacheRecomputePayload(task)
	if err != nil {
		return err
	}
	trigger := payload.Trigger
	if trigger == "" {
		trigger = "task"
	}

	return w.recomputer.Trigger(ctx, trigger)
}

func (w *Worker) handleNotificationReconcile(ctx context.Context, _ *asynq.Task) error {
	if w.reconciler == nil {
		return nil
	}
	_, err := w.reconciler.Run(ctx)
	return err
}

func (w *Worker) handleRenewalDigest(ctx context.Context, _ *asynq.Task) error {
	if w.digest == nil {
		return nil
	}
	_, err := w.digest.Run(ctx)
	return err
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
