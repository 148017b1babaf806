// Package memstore provides an in-memory implementation of incident.Store.
// It is the default store when no database-url is configured.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

// Store holds events and incident aggregates in memory. All values are
// copied on the way in and out, so a committed aggregate is replaced
// atomically and readers never observe partial updates.
type Store struct {
	mu         sync.RWMutex
	events     map[string]*event.Event             // event_id -> event
	incidents  map[incident.Key]*incident.Incident // correlation key -> aggregate
	eventIDsBy map[incident.Key][]string           // correlation key -> event_ids, arrival order
}

// New initializes an empty Store.
func New() *Store {
	return &Store{
		events:     make(map[string]*event.Event),
		incidents:  make(map[incident.Key]*incident.Incident),
		eventIDsBy: make(map[incident.Key][]string),
	}
}

// InsertEvent appends the event, rejecting a previously seen event_id.
func (s *Store) InsertEvent(_ context.Context, ev *event.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[ev.EventID]; ok {
		return false, nil
	}
	cp := *ev
	s.events[ev.EventID] = &cp
	key := incident.KeyFor(ev)
	s.eventIDsBy[key] = append(s.eventIDsBy[key], ev.EventID)
	return true, nil
}

// GetEvent retrieves an event by event_id. Returns a copy.
func (s *Store) GetEvent(_ context.Context, eventID string) (*event.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return nil, false, nil
	}
	cp := *ev
	return &cp, true, nil
}

// ListEventsByKey returns copies of the events for one key in arrival order.
func (s *Store) ListEventsByKey(_ context.Context, key incident.Key) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.eventIDsBy[key]
	out := make([]*event.Event, 0, len(ids))
	for _, id := range ids {
		cp := *s.events[id]
		out = append(out, &cp)
	}
	return out, nil
}

// GetIncident retrieves the aggregate for a key. Returns a copy.
func (s *Store) GetIncident(_ context.Context, key incident.Key) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.incidents[key]
	if !ok {
		return nil, false, nil
	}
	return in.Clone(), true, nil
}

// PutIncident stores a copy of the aggregate, replacing it atomically.
func (s *Store) PutIncident(_ context.Context, in *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incidents[in.Key()] = in.Clone()
	return nil
}

// ListIncidents returns a snapshot of every aggregate.
func (s *Store) ListIncidents(_ context.Context) ([]*incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*incident.Incident, 0, len(s.incidents))
	for _, in := range s.incidents {
		out = append(out, in.Clone())
	}
	return out, nil
}
