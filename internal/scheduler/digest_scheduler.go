package scheduler

import (
	"context"
	"time"

	"crm_renewal_backend/platform/logger"
)

// DigestEnqueuer queues a digest build task.
type DigestEnqueuer interface {
	EnqueueRenewalDigest(ctx context.Context) error
}

// DigestScheduler enqueues the renewal digest once a day at a fixed UTC
// hour. The task itself is unique-guarded, so a restart around the
// scheduled hour cannot double-send.
type DigestScheduler struct {
	enqueuer DigestEnqueuer
	hourUTC  int
	log      *logger.Logger
}

func NewDigestScheduler(enqueuer DigestEnqueuer, hourUTC int, log *logger.Logger) *DigestScheduler {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 7
	}
	return &DigestScheduler{enqueuer: enqueuer, hourUTC: hourUTC, log: log}
}

func (s *DigestScheduler) Run(ctx context.Context) {
	for {
		wait := time.Until(s.nextRun(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			if err := s.enqueuer.EnqueueRenewalDigest(ctx); err != nil && s.log != nil {
				s.log.Warn("enqueue renewal digest failed", "error", err)
			}
		}
	}
}

func (s *DigestScheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
