package ws

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the WebSocket fan-out.
type Metrics struct {
	Connections prometheus.Gauge
	SendsTotal  *prometheus.CounterVec
}

// NewMetrics registers and returns fan-out metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_ws_connections",
			Help: "Currently connected WebSocket subscribers.",
		}),
		SendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_ws_sends_total",
			Help: "Total WebSocket frames sent by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Connections, m.SendsTotal)
	return m
}
