package incident

import (
	"context"
	"testing"
	"time"

	"github.com/linnemanlabs/beacon/internal/event"
)

// seedIncident ingests one event with the given key, severity and state,
// failing the test on error.
func seedIncident(t *testing.T, svc *Service, eventID, dedupeKey, ns, name, severity, state string, observed time.Time, auto bool) {
	t.Helper()
	ev := &event.Event{
		EventID:    eventID,
		DedupeKey:  dedupeKey,
		Service:    event.Service{Namespace: ns, Name: name},
		ObservedAt: observed,
		Alert:      event.Alert{Severity: severity, State: state},
		Decision:   event.Decision{Auto: auto},
	}
	if _, err := svc.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("seed %s: %v", eventID, err)
	}
}

func TestOverview_Empty(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)

	ov, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TotalIncidents != 0 || ov.OpenIncidents != 0 {
		t.Errorf("overview = %+v, want zero counts", ov)
	}
	if ov.LastUpdated.IsZero() {
		t.Error("last_updated should default to now for an empty set")
	}
}

func TestOverview_Counts(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	seedIncident(t, svc, "e1", "dk-1", "prod", "api", "critical", event.StateFiring, t0, true)
	seedIncident(t, svc, "e2", "dk-2", "prod", "api", "warning", event.StateFiring, t0.Add(time.Minute), false)
	seedIncident(t, svc, "e3", "dk-3", "prod", "worker", "critical", event.StateFiring, t0.Add(2*time.Minute), true)
	// resolve dk-3
	seedIncident(t, svc, "e4", "dk-3", "prod", "worker", "critical", event.StateResolved, t0.Add(3*time.Minute), true)

	ov, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	if ov.TotalIncidents != 3 {
		t.Errorf("total = %d, want 3", ov.TotalIncidents)
	}
	if ov.OpenIncidents != 2 || ov.ResolvedIncidents != 1 {
		t.Errorf("open/resolved = %d/%d, want 2/1", ov.OpenIncidents, ov.ResolvedIncidents)
	}
	if ov.BySeverity["critical"] != 2 || ov.BySeverity["warning"] != 1 {
		t.Errorf("by_severity = %v, want critical:2 warning:1", ov.BySeverity)
	}
	if ov.AutoActions != 2 || ov.ManualActions != 1 {
		t.Errorf("auto/manual = %d/%d, want 2/1", ov.AutoActions, ov.ManualActions)
	}
	if ov.AffectedServices != 2 {
		t.Errorf("affected_services = %d, want 2", ov.AffectedServices)
	}
	if !ov.LastUpdated.Equal(t0.Add(3 * time.Minute)) {
		t.Errorf("last_updated = %v, want latest observed_at", ov.LastUpdated)
	}
}

func TestServiceRollups_OpenOnly(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	seedIncident(t, svc, "e1", "dk-1", "prod", "api", "critical", event.StateFiring, t0, true)
	seedIncident(t, svc, "e2", "dk-2", "prod", "api", "warning", event.StateFiring, t0.Add(time.Minute), true)
	seedIncident(t, svc, "e3", "dk-3", "prod", "worker", "warning", event.StateFiring, t0, true)
	// resolved incidents drop out of rollups entirely
	seedIncident(t, svc, "e4", "dk-4", "prod", "batch", "critical", event.StateFiring, t0, true)
	seedIncident(t, svc, "e5", "dk-4", "prod", "batch", "critical", event.StateResolved, t0.Add(time.Minute), true)

	rollups, err := svc.ServiceRollups(context.Background())
	if err != nil {
		t.Fatalf("ServiceRollups: %v", err)
	}

	if len(rollups) != 2 {
		t.Fatalf("rollups = %d, want 2", len(rollups))
	}

	api := rollups[0]
	if api.Service != "api" {
		t.Fatalf("first rollup = %s, want api (most open incidents)", api.Service)
	}
	if api.OpenIncidents != 2 || api.CriticalCount != 1 {
		t.Errorf("api rollup = %+v, want 2 open 1 critical", api)
	}
	if api.BySeverity["critical"] != 1 || api.BySeverity["warning"] != 1 {
		t.Errorf("api by_severity = %v", api.BySeverity)
	}
	if !api.LastAlertAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("api last_alert_at = %v, want %v", api.LastAlertAt, t0.Add(time.Minute))
	}

	if rollups[1].Service != "worker" || rollups[1].OpenIncidents != 1 {
		t.Errorf("second rollup = %+v, want worker with 1 open", rollups[1])
	}
}

func TestServiceRollups_Ordering(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)
	t0 := time.Now()

	// same open count, tie broken by critical count then name
	seedIncident(t, svc, "e1", "dk-1", "prod", "alpha", "warning", event.StateFiring, t0, true)
	seedIncident(t, svc, "e2", "dk-2", "prod", "beta", "critical", event.StateFiring, t0, true)
	seedIncident(t, svc, "e3", "dk-3", "prod", "gamma", "warning", event.StateFiring, t0, true)

	rollups, err := svc.ServiceRollups(context.Background())
	if err != nil {
		t.Fatalf("ServiceRollups: %v", err)
	}

	got := []string{rollups[0].Service, rollups[1].Service, rollups[2].Service}
	want := []string{"beta", "alpha", "gamma"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
