// Package event defines the relationship change events emitted by the
// coordinators after a successful commit.
package event

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Type identifies a relationship change event.
type Type string

const (
	// TypeTenantAccepted is emitted after a redemption commits.
	TypeTenantAccepted Type = "tenant.accepted"
	// TypeTenantRemoved is emitted after a removal commits.
	TypeTenantRemoved Type = "tenant.removed"
)

// Event describes one committed relationship change. Events are emitted
// strictly after commit, never before, so consumers are never notified about
// a rolled-back write.
type Event struct {
	ID         string
	Type       Type
	OwnerID    string
	OccupantID string
	PropertyID string
	UnitID     string
	InviteID   string
	OccurredAt time.Time
}

// New builds an event with a fresh identifier.
func New(eventType Type, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
	}
}

// Dispatcher consumes change events. Dispatch is fire-and-forget: the engine
// does not wait for delivery and does not retry on the consumer's behalf.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event)
}

// NopDispatcher discards all events.
type NopDispatcher struct{}

// Dispatch implements Dispatcher.
func (NopDispatcher) Dispatch(context.Context, Event) {}

// LogDispatcher writes events to a standard logger, mainly for local runs.
type LogDispatcher struct {
	Logger *log.Logger
}

// Dispatch implements Dispatcher.
func (d LogDispatcher) Dispatch(_ context.Context, evt Event) {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("event %s type=%s owner=%s occupant=%s property=%s unit=%s",
		evt.ID, evt.Type, evt.OwnerID, evt.OccupantID, evt.PropertyID, evt.UnitID)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, evt Event)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, evt Event) {
	if f != nil {
		f(ctx, evt)
	}
}
