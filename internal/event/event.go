// Package event defines the AlertEvent wire model: the immutable record a
// producer delivers to the ingest webhook. Events are validated once on
// receipt and never mutated or deleted afterwards.
package event

import (
	"errors"
	"time"
)

// Alert states a producer may report.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// ErrMissingEventID is returned when an event arrives without an event_id.
var ErrMissingEventID = errors.New("event_id is required")

// Service identifies the workload an event was observed on.
type Service struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// Alert carries the alert classification reported by the producer.
type Alert struct {
	Type     string `json:"type,omitempty"`
	Severity string `json:"severity"`
	State    string `json:"state"` // "firing" or "resolved"
}

// Decision is the scheduler/automation verdict attached to the event.
type Decision struct {
	Action      string   `json:"action,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Auto        bool     `json:"auto"`
	RiskScore   float64  `json:"risk_score,omitempty"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// Link is an optional reference to an external artifact (runbook, dashboard).
type Link struct {
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// Event is one alert delivery. EventID is globally unique and is the
// idempotency token; DedupeKey plus the service identity correlates a stream
// of events into a single incident.
//
// Evidence, Impact and Context are free-form per alert source and are kept
// opaque at this layer.
type Event struct {
	EventID    string         `json:"event_id"`
	DedupeKey  string         `json:"dedupe_key"`
	Service    Service        `json:"service"`
	ObservedAt time.Time      `json:"observed_at"`
	Alert      Alert          `json:"alert"`
	Decision   Decision       `json:"decision"`
	Evidence   map[string]any `json:"evidence,omitempty"`
	Impact     map[string]any `json:"impact,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Links      []Link         `json:"links,omitempty"`
}

// Validate checks the minimal preconditions for ingestion.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return ErrMissingEventID
	}
	return nil
}

// Resolved reports whether the event carries a resolved alert state.
// Any state other than "resolved" is treated as firing.
func (e *Event) Resolved() bool {
	return e.Alert.State == StateResolved
}
