package incident

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Filter narrows ListIncidents. Zero-valued fields impose no constraint;
// set fields combine with logical AND. Status matches case-insensitively.
type Filter struct {
	Status    string
	Severity  string
	Namespace string
	Service   string
	Priority  string
	Auto      *bool
}

func (f Filter) matches(in *Incident) bool {
	if f.Status != "" && !strings.EqualFold(f.Status, string(in.Status)) {
		return false
	}
	if f.Severity != "" && f.Severity != in.CurrentSeverity {
		return false
	}
	if f.Namespace != "" && f.Namespace != in.Namespace {
		return false
	}
	if f.Service != "" && f.Service != in.Service {
		return false
	}
	if f.Priority != "" && f.Priority != in.CurrentPriority {
		return false
	}
	if f.Auto != nil && *f.Auto != in.Auto {
		return false
	}
	return true
}

// Detail is one incident plus its full event timeline.
type Detail struct {
	Incident *Incident      `json:"incident"`
	Events   []*event.Event `json:"events"`
}

// ListIncidents returns the incidents matching the filter, most recently
// observed first.
func (s *Service) ListIncidents(ctx context.Context, f Filter) ([]*Incident, error) {
	incidents, err := s.store.ListIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	out := make([]*Incident, 0, len(incidents))
	for _, in := range incidents {
		if f.matches(in) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastObservedAt.Equal(out[j].LastObservedAt) {
			return out[i].LastObservedAt.After(out[j].LastObservedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// IncidentDetail returns the aggregate for a key with its timeline sorted by
// observed_at descending. ok=false when the key is unknown.
func (s *Service) IncidentDetail(ctx context.Context, key Key) (*Detail, bool, error) {
	in, ok, err := s.store.GetIncident(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("get incident: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	evs, err := s.store.ListEventsByKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("list events: %w", err)
	}
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].ObservedAt.Equal(evs[j].ObservedAt) {
			return evs[i].ObservedAt.After(evs[j].ObservedAt)
		}
		return evs[i].EventID > evs[j].EventID
	})

	return &Detail{Incident: in, Events: evs}, true, nil
}

// GetEvent retrieves one stored event by event_id.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*event.Event, bool, error) {
	return s.store.GetEvent(ctx, eventID)
}
