package incident

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the correlation subsystem.
type Metrics struct {
	EventsTotal       *prometheus.CounterVec
	IncidentsCreated  prometheus.Counter
	IncidentsReopened prometheus.Counter
	IncidentsResolved prometheus.Counter
	CorrelateDuration prometheus.Histogram
	NotifyTotal       *prometheus.CounterVec
	BusDropsTotal     prometheus.Counter
}

// NewMetrics registers and returns correlation metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_events_ingested_total",
			Help: "Total ingested events by outcome.",
		}, []string{"outcome"}),
		IncidentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_incidents_created_total",
			Help: "Total incidents created.",
		}),
		IncidentsReopened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_incidents_reopened_total",
			Help: "Total RESOLVED to OPEN transitions.",
		}),
		IncidentsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_incidents_resolved_total",
			Help: "Total OPEN to RESOLVED transitions.",
		}),
		CorrelateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_correlate_duration_seconds",
			Help:    "Duration of the store-and-correlate path per accepted event.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us .. ~1.6s
		}),
		NotifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_notifications_total",
			Help: "Total best-effort notifier invocations by outcome.",
		}, []string{"outcome"}),
		BusDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_bus_dropped_total",
			Help: "Total bus messages dropped for slow subscribers.",
		}),
	}

	reg.MustRegister(
		m.EventsTotal,
		m.IncidentsCreated,
		m.IncidentsReopened,
		m.IncidentsResolved,
		m.CorrelateDuration,
		m.NotifyTotal,
		m.BusDropsTotal,
	)

	return m
}
