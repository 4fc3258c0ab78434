package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testEvent struct {
	BaseEvent
}

func (testEvent) EventName() string { return "test.event" }

// gatedHandler blocks until released, then reports the context error it
// observed. Mimics a handler doing a store round-trip after the publisher
// has already moved on.
type gatedHandler struct {
	release chan struct{}
	ctxErr  chan error
}

func newGatedHandler() *gatedHandler {
	return &gatedHandler{
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
}

func (h *gatedHandler) Handle(ctx context.Context, _ Event) error {
	<-h.release
	h.ctxErr <- ctx.Err()
	return nil
}

func TestPublishOutlivesCallerContext(t *testing.T) {
	bus := NewInMemoryBus(nil)
	h := newGatedHandler()
	bus.Subscribe("test.event", h)

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, testEvent{BaseEvent: NewBaseEvent()})
	cancel()
	close(h.release)

	select {
	case err := <-h.ctxErr:
		if err != nil {
			t.Errorf("handler context error = %v, want nil after publisher cancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

type recordingHandler struct {
	calls int
	err   error
}

func (h *recordingHandler) Handle(context.Context, Event) error {
	h.calls++
	return h.err
}

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	ok := &recordingHandler{}
	failing := &recordingHandler{err: errors.New("handler broke")}
	bus.Subscribe("test.event", ok)
	bus.Subscribe("test.event", failing)

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent()})
	if err == nil {
		t.Fatal("expected joined handler error")
	}
	if ok.calls != 1 || failing.calls != 1 {
		t.Errorf("handler calls = %d/%d, want 1/1", ok.calls, failing.calls)
	}
}
