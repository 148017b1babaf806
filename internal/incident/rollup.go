package incident

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Overview is the global rollup across all incidents. Derived on demand;
// never stored.
type Overview struct {
	TotalIncidents    int            `json:"total_incidents"`
	OpenIncidents     int            `json:"open_incidents"`
	ResolvedIncidents int            `json:"resolved_incidents"`
	BySeverity        map[string]int `json:"by_severity"`
	AutoActions       int            `json:"auto_actions"`
	ManualActions     int            `json:"manual_actions"`
	AffectedServices  int            `json:"affected_services"`
	LastUpdated       time.Time      `json:"last_updated"`
}

// ServiceRollup aggregates the currently OPEN incidents of one service.
type ServiceRollup struct {
	Namespace     string         `json:"namespace"`
	Service       string         `json:"service"`
	OpenIncidents int            `json:"open_incidents"`
	CriticalCount int            `json:"critical_count"`
	BySeverity    map[string]int `json:"by_severity"`
	LastAlertAt   time.Time      `json:"last_alert_at"`
}

// Overview scans the current incident set and derives the global counters.
// With no incidents, LastUpdated defaults to now.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	incidents, err := s.store.ListIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	ov := &Overview{BySeverity: make(map[string]int)}
	services := make(map[Key]struct{})

	for _, in := range incidents {
		ov.TotalIncidents++
		if in.Status == StatusOpen {
			ov.OpenIncidents++
		} else {
			ov.ResolvedIncidents++
		}
		if in.CurrentSeverity != "" {
			ov.BySeverity[in.CurrentSeverity]++
		}
		if in.Auto {
			ov.AutoActions++
		} else {
			ov.ManualActions++
		}
		services[Key{Namespace: in.Namespace, Service: in.Service}] = struct{}{}
		if in.LastObservedAt.After(ov.LastUpdated) {
			ov.LastUpdated = in.LastObservedAt
		}
	}

	ov.AffectedServices = len(services)
	if ov.LastUpdated.IsZero() {
		ov.LastUpdated = time.Now().UTC()
	}
	return ov, nil
}

// ServiceRollups groups OPEN incidents by (namespace, service). Results are
// sorted by open_incidents descending, then critical_count descending, then
// namespace/service ascending so rendering and tests are deterministic.
func (s *Service) ServiceRollups(ctx context.Context) ([]*ServiceRollup, error) {
	incidents, err := s.store.ListIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	byService := make(map[Key]*ServiceRollup)
	for _, in := range incidents {
		if in.Status != StatusOpen {
			continue
		}
		k := Key{Namespace: in.Namespace, Service: in.Service}
		sr, ok := byService[k]
		if !ok {
			sr = &ServiceRollup{
				Namespace:  in.Namespace,
				Service:    in.Service,
				BySeverity: make(map[string]int),
			}
			byService[k] = sr
		}
		sr.OpenIncidents++
		if in.CurrentSeverity != "" {
			sr.BySeverity[in.CurrentSeverity]++
		}
		if in.CurrentSeverity == "critical" {
			sr.CriticalCount++
		}
		if in.LastObservedAt.After(sr.LastAlertAt) {
			sr.LastAlertAt = in.LastObservedAt
		}
	}

	out := make([]*ServiceRollup, 0, len(byService))
	for _, sr := range byService {
		out = append(out, sr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenIncidents != out[j].OpenIncidents {
			return out[i].OpenIncidents > out[j].OpenIncidents
		}
		if out[i].CriticalCount != out[j].CriticalCount {
			return out[i].CriticalCount > out[j].CriticalCount
		}
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Service < out[j].Service
	})
	return out, nil
}
