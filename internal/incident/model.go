package incident

import (
	"slices"
	"time"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Status tracks whether an incident is currently firing.
type Status string

const (
	// StatusOpen means the most recent alert state for the incident is firing.
	StatusOpen Status = "OPEN"

	// StatusResolved means the most recent alert state is resolved.
	// Resolved incidents remain queryable indefinitely.
	StatusResolved Status = "RESOLVED"
)

// Quality flags recorded on the aggregate when ingestion observes something
// worth surfacing to the dashboard.
const (
	// FlagOutOfOrder marks incidents that received at least one event older
	// than last_observed_at at the time of delivery.
	FlagOutOfOrder = "out_of_order"

	// FlagReopened marks incidents that transitioned RESOLVED -> OPEN at
	// least once.
	FlagReopened = "reopened"

	// FlagMissingTimestamp marks incidents correlated from an event that
	// arrived without observed_at and was stamped at receipt.
	FlagMissingTimestamp = "missing_timestamp"
)

// Key identifies one incident: a producer-supplied dedupe key scoped to the
// service it was observed on.
type Key struct {
	DedupeKey string `json:"dedupe_key"`
	Namespace string `json:"namespace"`
	Service   string `json:"service"`
}

// KeyFor derives the incident key for an event.
func KeyFor(ev *event.Event) Key {
	return Key{
		DedupeKey: ev.DedupeKey,
		Namespace: ev.Service.Namespace,
		Service:   ev.Service.Name,
	}
}

// String renders the key for log fields.
func (k Key) String() string {
	return k.Namespace + "/" + k.Service + "/" + k.DedupeKey
}

// Incident is the mutable aggregate for one correlated fault. The current_*
// fields mirror the decision of the most recent event by observed_at; the
// timeline itself lives in the event store.
type Incident struct {
	ID              string    `json:"id"`
	DedupeKey       string    `json:"dedupe_key"`
	Namespace       string    `json:"namespace"`
	Service         string    `json:"service"`
	Status          Status    `json:"status"`
	CurrentSeverity string    `json:"current_severity"`
	CurrentAction   string    `json:"current_action,omitempty"`
	CurrentPriority string    `json:"current_priority,omitempty"`
	Auto            bool      `json:"auto"`
	RiskScore       float64   `json:"risk_score,omitempty"`
	ReasonCodes     []string  `json:"reason_codes,omitempty"`
	FirstObservedAt time.Time `json:"first_observed_at"`
	LastObservedAt  time.Time `json:"last_observed_at"`
	EventCount      int       `json:"event_count"`
	QualityFlags    []string  `json:"quality_flags,omitempty"`
}

// Key returns the correlation key of the incident.
func (in *Incident) Key() Key {
	return Key{DedupeKey: in.DedupeKey, Namespace: in.Namespace, Service: in.Service}
}

// Clone returns a deep copy safe to hand to readers.
func (in *Incident) Clone() *Incident {
	cp := *in
	cp.ReasonCodes = slices.Clone(in.ReasonCodes)
	cp.QualityFlags = slices.Clone(in.QualityFlags)
	return &cp
}

// NewFromEvent creates the aggregate for the first event of a key.
func NewFromEvent(id string, ev *event.Event) *Incident {
	k := KeyFor(ev)
	in := &Incident{
		ID:              id,
		DedupeKey:       k.DedupeKey,
		Namespace:       k.Namespace,
		Service:         k.Service,
		Status:          statusFor(ev),
		FirstObservedAt: ev.ObservedAt,
		LastObservedAt:  ev.ObservedAt,
		EventCount:      1,
	}
	in.mirror(ev)
	return in
}

// Apply folds one newly accepted event into the aggregate. Latest-by-time
// wins: the current_* fields, last_observed_at and status only move when the
// event is at least as recent as everything applied before it. Stale events
// still count toward event_count and are flagged, but cannot regress the
// aggregate.
//
// reopenOnFiring controls the RESOLVED -> OPEN transition; when false a
// resolved incident stays resolved and only a fresh key reopens tracking.
func (in *Incident) Apply(ev *event.Event, reopenOnFiring bool) {
	in.EventCount++

	if ev.ObservedAt.Before(in.LastObservedAt) {
		in.addFlag(FlagOutOfOrder)
		return
	}

	in.LastObservedAt = ev.ObservedAt
	in.mirror(ev)

	next := statusFor(ev)
	if in.Status == StatusResolved && next == StatusOpen {
		if !reopenOnFiring {
			return
		}
		in.addFlag(FlagReopened)
	}
	in.Status = next
}

// mirror copies the event's decision fields onto the aggregate.
func (in *Incident) mirror(ev *event.Event) {
	in.CurrentSeverity = ev.Alert.Severity
	in.CurrentAction = ev.Decision.Action
	in.CurrentPriority = ev.Decision.Priority
	in.Auto = ev.Decision.Auto
	in.RiskScore = ev.Decision.RiskScore
	in.ReasonCodes = slices.Clone(ev.Decision.ReasonCodes)
}

func (in *Incident) addFlag(flag string) {
	if !slices.Contains(in.QualityFlags, flag) {
		in.QualityFlags = append(in.QualityFlags, flag)
	}
}

func statusFor(ev *event.Event) Status {
	if ev.Resolved() {
		return StatusResolved
	}
	return StatusOpen
}
