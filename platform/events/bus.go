package events

import (
	"context"
	"errors"
	"sync"

	"crm_renewal_backend/platform/logger"
)

// InMemoryBus is a synchronous-registration, in-process event bus.
// Handlers registered for an event name receive every published event of
// that name. Publish dispatches in a goroutine per event; PublishSync runs
// handlers inline and joins their errors.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
// Handler errors are logged, not propagated.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	subscribed := make([]Handler, len(b.handlers[event.EventName()]))
	copy(subscribed, b.handlers[event.EventName()])
	b.mu.RUnlock()

	// Handlers outlive the publishing call. Detach from the caller's
	// cancellation so a publisher tearing down its context right after
	// Publish returns does not kill handlers mid-flight.
	detached := context.WithoutCancel(ctx)

	for _, h := range subscribed {
		handler := h
		go func() {
			if err := handler.Handle(detached, event); err != nil && b.log != nil {
				b.log.Error("event handler failed",
					"event", event.EventName(),
					"error", err,
				)
			}
		}()
	}
}

// PublishSync dispatches the event to all handlers and waits for completion.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	if event == nil {
		return nil
	}

	b.mu.RLock()
	subscribed := make([]Handler, len(b.handlers[event.EventName()]))
	copy(subscribed, b.handlers[event.EventName()])
	b.mu.RUnlock()

	var errs []error
	for _, handler := range subscribed {
		if err := handler.Handle(ctx, event); err != nil {
			if b.log != nil {
				b.log.Error("event handler failed",
					"event", event.EventName(),
					"error", err,
				)
			}
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
