// Package events carries the in-process event contract shared by the API
// and scheduler binaries. Concrete domain events live in internal/events;
// this layer knows nothing about the domain.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event put on the bus.
type Event interface {
	// EventName identifies the event type for subscription matching.
	EventName() string
	// OccurredAt is the moment the event was created.
	OccurredAt() time.Time
}

// BaseEvent holds the fields common to all events. Embed it and implement
// EventName on the concrete type.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish dispatches to every handler subscribed to the event's name.
	// Dispatch is asynchronous and detached from the caller's cancellation.
	Publish(ctx context.Context, event Event)

	// PublishSync runs handlers inline and joins their errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for events whose EventName matches.
	Subscribe(eventName string, handler Handler)
}
