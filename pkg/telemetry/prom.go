package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BridgeMetrics holds the Prometheus collectors exposed by the bridge
// daemon's metrics endpoint.
type BridgeMetrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	FramesServed    *prometheus.CounterVec
	BytesServed     *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewBridgeMetrics builds a self-contained registry so tests can run several
// bridges in one process without collector collisions.
func NewBridgeMetrics() *BridgeMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &BridgeMetrics{
		registry: reg,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devlink_bridge_sessions_active",
			Help: "Peer sessions currently attached to the bridge.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devlink_bridge_sessions_total",
			Help: "Peer sessions accepted, partitioned by surface.",
		}, []string{"surface"}),
		FramesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devlink_bridge_frames_served_total",
			Help: "Device frames served to peers, partitioned by surface.",
		}, []string{"surface"}),
		BytesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devlink_bridge_bytes_served_total",
			Help: "Payload bytes served to peers, partitioned by surface.",
		}, []string{"surface"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devlink_bridge_request_duration_seconds",
			Help:    "Device operation latency observed by the bridge.",
			Buckets: prometheus.DefBuckets,
		}, []string{"surface", "op"}),
	}

	reg.MustRegister(m.SessionsActive, m.SessionsTotal, m.FramesServed, m.BytesServed, m.RequestDuration)
	return m
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *BridgeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *BridgeMetrics) Registry() *prometheus.Registry {
	return m.registry
}
