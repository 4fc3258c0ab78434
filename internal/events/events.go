// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"crm_renewal_backend/platform/events"
	"crm_renewal_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Source Data Events
// =============================================================================

// SourceDataChanged is published when the backing store signals a write to
// the accounts or estimates tables. The payload is only an invalidation
// hint; the recompute pass re-reads everything from the store.
type SourceDataChanged struct {
	BaseEvent
	Table string `json:"table"`
}

func (e SourceDataChanged) EventName() string { return "source.data.changed" }

// =============================================================================
// Cache Events
// =============================================================================

// CacheRecomputed is published after a successful full recompute of the
// at-risk cache. The scheduler turns it into a durable feed reconcile task.
type CacheRecomputed struct {
	BaseEvent
	Records    int       `json:"records"`
	ComputedAt time.Time `json:"computedAt"`
}

func (e CacheRecomputed) EventName() string { return "cache.recomputed" }

// =============================================================================
// Account Events
// =============================================================================

// AccountStatusChanged is published when the engine moves an account into or
// out of at_risk. The status field is the only Account mutation this engine
// performs.
type AccountStatusChanged struct {
	BaseEvent
	AccountID uuid.UUID `json:"accountId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e AccountStatusChanged) EventName() string { return "accounts.status.changed" }
