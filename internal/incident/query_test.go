package incident

import (
	"context"
	"testing"
	"time"

	"github.com/linnemanlabs/beacon/internal/event"
)

func TestListIncidents_Filters(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	seedIncident(t, svc, "e1", "dk-1", "prod", "api", "critical", event.StateFiring, t0, true)
	seedIncident(t, svc, "e2", "dk-2", "prod", "worker", "warning", event.StateFiring, t0.Add(time.Minute), false)
	seedIncident(t, svc, "e3", "dk-3", "staging", "api", "critical", event.StateFiring, t0.Add(2*time.Minute), true)
	seedIncident(t, svc, "e4", "dk-3", "staging", "api", "critical", event.StateResolved, t0.Add(3*time.Minute), true)

	auto := true

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 3},
		{"status open", Filter{Status: "OPEN"}, 2},
		{"status case-insensitive", Filter{Status: "open"}, 2},
		{"status resolved", Filter{Status: "resolved"}, 1},
		{"severity critical", Filter{Severity: "critical"}, 2},
		{"namespace prod", Filter{Namespace: "prod"}, 2},
		{"service api", Filter{Service: "api"}, 2},
		{"auto true", Filter{Auto: &auto}, 2},
		{"combined", Filter{Namespace: "prod", Severity: "critical"}, 1},
		{"no match", Filter{Namespace: "dev"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			list, err := svc.ListIncidents(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListIncidents: %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("got %d incidents, want %d", len(list), tt.want)
			}
		})
	}
}

func TestListIncidents_SortedByLastObserved(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	seedIncident(t, svc, "e1", "dk-old", "prod", "api", "warning", event.StateFiring, t0, true)
	seedIncident(t, svc, "e2", "dk-new", "prod", "api", "warning", event.StateFiring, t0.Add(time.Hour), true)
	seedIncident(t, svc, "e3", "dk-mid", "prod", "api", "warning", event.StateFiring, t0.Add(time.Minute), true)

	list, err := svc.ListIncidents(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}

	got := []string{list[0].DedupeKey, list[1].DedupeKey, list[2].DedupeKey}
	want := []string{"dk-new", "dk-mid", "dk-old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestIncidentDetail(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	seedIncident(t, svc, "e1", "dk-1", "prod", "api", "critical", event.StateFiring, t0, true)
	seedIncident(t, svc, "e2", "dk-1", "prod", "api", "critical", event.StateFiring, t0.Add(time.Minute), true)
	seedIncident(t, svc, "e3", "dk-1", "prod", "api", "critical", event.StateResolved, t0.Add(2*time.Minute), true)

	key := Key{DedupeKey: "dk-1", Namespace: "prod", Service: "api"}
	detail, ok, err := svc.IncidentDetail(context.Background(), key)
	if err != nil {
		t.Fatalf("IncidentDetail: %v", err)
	}
	if !ok {
		t.Fatal("expected incident to exist")
	}

	if detail.Incident.EventCount != 3 {
		t.Errorf("event_count = %d, want 3", detail.Incident.EventCount)
	}
	if len(detail.Events) != 3 {
		t.Fatalf("timeline = %d events, want 3", len(detail.Events))
	}
	// newest first
	if detail.Events[0].EventID != "e3" || detail.Events[2].EventID != "e1" {
		t.Errorf("timeline order = %s..%s, want e3..e1", detail.Events[0].EventID, detail.Events[2].EventID)
	}
}

func TestIncidentDetail_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)

	_, ok, err := svc.IncidentDetail(context.Background(), Key{DedupeKey: "nope", Namespace: "prod", Service: "api"})
	if err != nil {
		t.Fatalf("IncidentDetail: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown key")
	}
}

func TestGetEvent(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil, nil)
	seedIncident(t, svc, "e1", "dk-1", "prod", "api", "critical", event.StateFiring, time.Now(), true)

	ev, ok, err := svc.GetEvent(context.Background(), "e1")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if !ok || ev.EventID != "e1" {
		t.Errorf("GetEvent = %+v ok=%v, want e1", ev, ok)
	}

	_, ok, err = svc.GetEvent(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown event_id")
	}
}
