package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crm_renewal_backend/internal/events"
)

type fakeRecomputer struct {
	calls atomic.Int32
	block chan struct{} // when set, Recompute waits until closed
	err   error
}

func (f *fakeRecomputer) Recompute(ctx context.Context, _ string) (int, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 0, f.err
}

type engineCfg struct {
	staleness time.Duration
	timeout   time.Duration
}

func (c engineCfg) GetCacheStalenessWindow() time.Duration { return c.staleness }
func (c engineCfg) GetRecomputeTimeout() time.Duration     { return c.timeout }
func (c engineCfg) GetRiskWindowDays() int                 { return 180 }
func (c engineCfg) GetRiskWindowIncludeOverdue() bool      { return true }
func (c engineCfg) GetRecomputeConcurrency() int           { return 4 }

func newTestCoordinator(rec Recomputer) *Coordinator {
	return NewCoordinator(rec, engineCfg{staleness: 5 * time.Minute, timeout: time.Minute}, nil)
}

func TestConcurrentTriggersShareOnePass(t *testing.T) {
	rec := &fakeRecomputer{block: make(chan struct{})}
	c := newTestCoordinator(rec)

	var wg sync.WaitGroup
	ready := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready <- struct{}{}
			if err := c.Trigger(context.Background(), "test"); err != nil {
				t.Errorf("Trigger() error = %v", err)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-ready
	}

	// Let the goroutines pile onto the in-flight pass, then release it.
	deadline := time.After(2 * time.Second)
	for rec.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("recompute never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(50 * time.Millisecond)
	if got := c.State(); got != StateRecomputing {
		t.Errorf("State() during pass = %q, want recomputing", got)
	}
	close(rec.block)
	wg.Wait()

	if got := rec.calls.Load(); got != 1 {
		t.Errorf("recompute ran %d times, want 1", got)
	}
}

func TestStateTransitions(t *testing.T) {
	rec := &fakeRecomputer{}
	c := newTestCoordinator(rec)

	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	if got := c.State(); got != StateStale {
		t.Errorf("State() before first pass = %q, want stale", got)
	}

	if err := c.Trigger(context.Background(), "test"); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if got := c.State(); got != StateFresh {
		t.Errorf("State() after pass = %q, want fresh", got)
	}

	now = now.Add(6 * time.Minute)
	if got := c.State(); got != StateStale {
		t.Errorf("State() past staleness window = %q, want stale", got)
	}
}

func TestFailedPassStaysStale(t *testing.T) {
	rec := &fakeRecomputer{err: errors.New("source unavailable")}
	c := newTestCoordinator(rec)

	if err := c.Trigger(context.Background(), "test"); err == nil {
		t.Fatal("expected error from failed pass")
	}
	if got := c.State(); got != StateStale {
		t.Errorf("State() after failed pass = %q, want stale", got)
	}

	// A later successful pass recovers.
	rec.err = nil
	if err := c.Trigger(context.Background(), "test"); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if got := c.State(); got != StateFresh {
		t.Errorf("State() after recovery = %q, want fresh", got)
	}
}

func TestSourceChangeMarksStaleAndRecomputes(t *testing.T) {
	rec := &fakeRecomputer{}
	c := newTestCoordinator(rec)

	if err := c.Trigger(context.Background(), "test"); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	before := rec.calls.Load()

	err := c.Handle(context.Background(), events.SourceDataChanged{
		BaseEvent: events.NewBaseEvent(),
		Table:     "estimates",
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if got := rec.calls.Load(); got != before+1 {
		t.Errorf("recompute calls = %d, want %d", got, before+1)
	}
	if got := c.State(); got != StateFresh {
		t.Errorf("State() after invalidation pass = %q, want fresh", got)
	}
}

func TestUnrelatedEventIgnored(t *testing.T) {
	rec := &fakeRecomputer{}
	c := newTestCoordinator(rec)

	err := c.Handle(context.Background(), events.CacheRecomputed{BaseEvent: events.NewBaseEvent()})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := rec.calls.Load(); got != 0 {
		t.Errorf("recompute calls = %d, want 0", got)
	}
}
