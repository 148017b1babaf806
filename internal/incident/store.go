package incident

import (
	"context"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Store is the persistence boundary for events and incident aggregates.
//
// InsertEvent is the idempotency check: it must atomically reject an
// event_id that was stored before. PutIncident must replace the aggregate
// atomically so readers never observe a partially-updated incident; the
// Service serializes writers per key, so implementations only need atomic
// replacement, not per-key coordination of their own.
type Store interface {
	// InsertEvent appends the event. Returns inserted=false when the
	// event_id already exists; that is not an error.
	InsertEvent(ctx context.Context, ev *event.Event) (inserted bool, err error)

	// GetEvent retrieves a stored event by event_id.
	GetEvent(ctx context.Context, eventID string) (*event.Event, bool, error)

	// ListEventsByKey returns all events correlated to one incident key,
	// in arrival order. Ordering for display is the caller's concern.
	ListEventsByKey(ctx context.Context, key Key) ([]*event.Event, error)

	// GetIncident retrieves the aggregate for a key.
	GetIncident(ctx context.Context, key Key) (*Incident, bool, error)

	// PutIncident creates or replaces the aggregate.
	PutIncident(ctx context.Context, in *Incident) error

	// ListIncidents returns a snapshot of every aggregate.
	ListIncidents(ctx context.Context) ([]*Incident, error)
}
