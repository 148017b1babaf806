package pgstore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/incident/pgstore"
	"github.com/linnemanlabs/beacon/internal/postgres"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("BEACON_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BEACON_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

// uniqueEvent builds an event with run-unique identifiers so reruns against a
// persistent database never collide.
func uniqueEvent(suffix string) *event.Event {
	run := ulid.Make().String()
	return &event.Event{
		EventID:    fmt.Sprintf("evt-%s-%s", run, suffix),
		DedupeKey:  "dk-" + run,
		Service:    event.Service{Namespace: "prod", Name: "api"},
		ObservedAt: time.Now().Truncate(time.Microsecond).UTC(),
		Alert:      event.Alert{Type: "error_rate", Severity: "critical", State: event.StateFiring},
		Decision: event.Decision{
			Action:      "rollback",
			Priority:    "p1",
			Auto:        true,
			RiskScore:   0.87,
			ReasonCodes: []string{"deploy_recent"},
		},
		Evidence: map[string]any{"error_rate": 0.31},
	}
}

func TestInsertAndGetEvent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := uniqueEvent("a")
	inserted, err := s.InsertEvent(ctx, ev)
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if !inserted {
		t.Fatal("InsertEvent returned inserted=false for new event_id")
	}

	got, ok, err := s.GetEvent(ctx, ev.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if !ok {
		t.Fatal("GetEvent returned ok=false")
	}

	if got.EventID != ev.EventID || got.DedupeKey != ev.DedupeKey {
		t.Errorf("identity mismatch: got %s/%s", got.EventID, got.DedupeKey)
	}
	if !got.ObservedAt.Equal(ev.ObservedAt) {
		t.Errorf("observed_at: got %v, want %v", got.ObservedAt, ev.ObservedAt)
	}
	if got.Alert.Severity != "critical" || got.Alert.State != "firing" {
		t.Errorf("alert: got %+v", got.Alert)
	}
	if got.Decision.Action != "rollback" || !got.Decision.Auto {
		t.Errorf("decision: got %+v", got.Decision)
	}
	if got.Evidence["error_rate"] != 0.31 {
		t.Errorf("evidence: got %v", got.Evidence)
	}
}

func TestInsertEvent_Duplicate(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := uniqueEvent("dup")
	if _, err := s.InsertEvent(ctx, ev); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	inserted, err := s.InsertEvent(ctx, ev)
	if err != nil {
		t.Fatalf("InsertEvent re-delivery: %v", err)
	}
	if inserted {
		t.Error("re-delivery of same event_id must report inserted=false")
	}
}

func TestGetEvent_Missing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.GetEvent(context.Background(), "evt-nonexistent-"+ulid.Make().String())
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ok {
		t.Error("GetEvent returned ok=true for nonexistent event_id")
	}
}

func TestListEventsByKey(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := uniqueEvent("l1")
	second := uniqueEvent("l2")
	second.EventID = first.EventID + "-2"
	second.DedupeKey = first.DedupeKey
	second.ObservedAt = first.ObservedAt.Add(time.Minute)

	for _, ev := range []*event.Event{first, second} {
		if _, err := s.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("InsertEvent %s: %v", ev.EventID, err)
		}
	}

	key := incident.Key{DedupeKey: first.DedupeKey, Namespace: "prod", Service: "api"}
	evs, err := s.ListEventsByKey(ctx, key)
	if err != nil {
		t.Fatalf("ListEventsByKey: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("events = %d, want 2", len(evs))
	}
	if evs[0].EventID != first.EventID || evs[1].EventID != second.EventID {
		t.Errorf("arrival order broken: %s, %s", evs[0].EventID, evs[1].EventID)
	}
}

func TestPutAndGetIncident(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := uniqueEvent("inc")
	in := incident.NewFromEvent(ulid.Make().String(), ev)
	in.QualityFlags = []string{"out_of_order"}

	if err := s.PutIncident(ctx, in); err != nil {
		t.Fatalf("PutIncident: %v", err)
	}

	got, ok, err := s.GetIncident(ctx, in.Key())
	if err != nil {
		t.Fatalf("GetIncident: %v", err)
	}
	if !ok {
		t.Fatal("GetIncident returned ok=false")
	}

	if got.ID != in.ID {
		t.Errorf("ID: got %s, want %s", got.ID, in.ID)
	}
	if got.Status != incident.StatusOpen {
		t.Errorf("status: got %s, want OPEN", got.Status)
	}
	if got.EventCount != 1 {
		t.Errorf("event_count: got %d, want 1", got.EventCount)
	}
	if !got.FirstObservedAt.Equal(in.FirstObservedAt) {
		t.Errorf("first_observed_at: got %v, want %v", got.FirstObservedAt, in.FirstObservedAt)
	}
	if len(got.ReasonCodes) != 1 || got.ReasonCodes[0] != "deploy_recent" {
		t.Errorf("reason_codes: got %v", got.ReasonCodes)
	}
	if len(got.QualityFlags) != 1 || got.QualityFlags[0] != "out_of_order" {
		t.Errorf("quality_flags: got %v", got.QualityFlags)
	}
}

func TestPutIncident_Upsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := uniqueEvent("up")
	in := incident.NewFromEvent(ulid.Make().String(), ev)
	if err := s.PutIncident(ctx, in); err != nil {
		t.Fatalf("PutIncident initial: %v", err)
	}

	later := *ev
	later.EventID = ev.EventID + "-2"
	later.ObservedAt = ev.ObservedAt.Add(time.Minute)
	later.Alert.State = event.StateResolved
	in.Apply(&later, true)

	if err := s.PutIncident(ctx, in); err != nil {
		t.Fatalf("PutIncident update: %v", err)
	}

	got, ok, err := s.GetIncident(ctx, in.Key())
	if err != nil || !ok {
		t.Fatalf("GetIncident: ok=%v err=%v", ok, err)
	}
	if got.Status != incident.StatusResolved {
		t.Errorf("status: got %s, want RESOLVED", got.Status)
	}
	if got.EventCount != 2 {
		t.Errorf("event_count: got %d, want 2", got.EventCount)
	}
	if !got.LastObservedAt.Equal(later.ObservedAt) {
		t.Errorf("last_observed_at: got %v, want %v", got.LastObservedAt, later.ObservedAt)
	}
}

func TestGetIncident_Missing(t *testing.T) {
	s := openStore(t)

	key := incident.Key{DedupeKey: "dk-missing-" + ulid.Make().String(), Namespace: "prod", Service: "api"}
	_, ok, err := s.GetIncident(context.Background(), key)
	if err != nil {
		t.Fatalf("GetIncident: %v", err)
	}
	if ok {
		t.Error("GetIncident returned ok=true for nonexistent key")
	}
}

func TestListIncidents(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := uniqueEvent("list")
	in := incident.NewFromEvent(ulid.Make().String(), ev)
	if err := s.PutIncident(ctx, in); err != nil {
		t.Fatalf("PutIncident: %v", err)
	}

	list, err := s.ListIncidents(ctx)
	if err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}

	found := false
	for _, got := range list {
		if got.ID == in.ID {
			found = true
		}
	}
	if !found {
		t.Error("ListIncidents did not include the stored incident")
	}
}
