// Package cache coordinates recompute passes over the at-risk cache:
// freshness tracking, trigger coalescing and the periodic staleness tick.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"crm_renewal_backend/internal/events"
	"crm_renewal_backend/platform/apperr"
	"crm_renewal_backend/platform/config"
	"crm_renewal_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

// State is the freshness state of the at-risk cache.
type State string

const (
	StateFresh       State = "fresh"
	StateStale       State = "stale"
	StateRecomputing State = "recomputing"
)

// Recomputer runs one full classification pass.
type Recomputer interface {
	Recompute(ctx context.Context, trigger string) (int, error)
}

// Coordinator serializes recompute passes. Triggers arrive from the
// staleness tick, source-change invalidations, the manual refresh endpoint
// and scheduled tasks; all of them collapse into at most one in-flight
// pass through the singleflight group, and callers of a coalesced trigger
// share the result of the pass already running.
type Coordinator struct {
	recomputer Recomputer
	staleness  time.Duration
	timeout    time.Duration
	clock      func() time.Time
	log        *logger.Logger

	group singleflight.Group

	mu           sync.Mutex
	recomputing  bool
	dirty        bool
	lastComputed time.Time
}

func NewCoordinator(recomputer Recomputer, cfg config.EngineConfig, log *logger.Logger) *Coordinator {
	staleness := cfg.GetCacheStalenessWindow()
	if staleness <= 0 {
		staleness = 5 * time.Minute
	}
	timeout := cfg.GetRecomputeTimeout()
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Coordinator{
		recomputer: recomputer,
		staleness:  staleness,
		timeout:    timeout,
		clock:      time.Now,
		log:        log,
	}
}

// SetClock overrides the freshness clock. Used by tests.
func (c *Coordinator) SetClock(clock func() time.Time) {
	if clock != nil {
		c.clock = clock
	}
}

// State reports the current cache state. A cache that was never computed is
// stale, not missing; reads still serve whatever is persisted.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recomputing {
		return StateRecomputing
	}
	if c.dirty || c.lastComputed.IsZero() {
		return StateStale
	}
	if c.clock().Sub(c.lastComputed) > c.staleness {
		return StateStale
	}
	return StateFresh
}

// MarkStale records that source data changed. The next tick or trigger
// recomputes; an in-flight pass leaves the flag set so its successor picks
// the change up.
func (c *Coordinator) MarkStale() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Trigger requests a recompute. Concurrent callers share one pass. The pass
// runs detached from the caller's context: an HTTP client disconnecting
// must not abort a pass other callers are waiting on.
func (c *Coordinator) Trigger(ctx context.Context, trigger string) error {
	_, err, _ := c.group.Do("recompute", func() (interface{}, error) {
		c.mu.Lock()
		c.recomputing = true
		c.dirty = false
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			c.recomputing = false
			c.mu.Unlock()
		}()

		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		_, passErr := c.recomputer.Recompute(passCtx, trigger)
		if passErr != nil {
			c.mu.Lock()
			c.dirty = true
			c.mu.Unlock()
			if errors.Is(passErr, context.DeadlineExceeded) {
				return nil, apperr.Timeout("recompute pass timed out", passErr)
			}
			return nil, passErr
		}

		c.mu.Lock()
		c.lastComputed = c.clock()
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// Run drives the periodic staleness check until ctx is cancelled. One
// initial pass warms the cache at startup.
func (c *Coordinator) Run(ctx context.Context) {
	if err := c.Trigger(ctx, "startup"); err != nil && c.log != nil {
		c.log.Warn("startup recompute failed", "error", err)
	}

	ticker := time.NewTicker(c.staleness)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() != StateStale {
				continue
			}
			if err := c.Trigger(ctx, "tick"); err != nil && c.log != nil {
				c.log.Warn("scheduled recompute failed", "error", err)
			}
		}
	}
}

// RegisterHandlers subscribes the coordinator to source-change events.
func (c *Coordinator) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.SourceDataChanged{}.EventName(), c)
}

// Handle reacts to a source-change invalidation hint. The payload is not
// trusted beyond "something changed"; the pass re-reads everything.
func (c *Coordinator) Handle(ctx context.Context, event events.Event) error {
	switch event.(type) {
	case events.SourceDataChanged:
		c.MarkStale()
		return c.Trigger(ctx, "invalidation")
	default:
		return nil
	}
}
