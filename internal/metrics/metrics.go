// Package metrics exposes the relay's Prometheus metrics.
//
// The two connection series keep their established dashboard names:
//
//   - ws_server_new_connections_total (counter): connections ever accepted
//   - ws_server_connections_total (gauge): connections currently open
//
// Handler serves them, plus Go runtime and process collectors, in the
// Prometheus text exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	connectionsAccepted prometheus.Counter
	connectionsOpen     prometheus.Gauge
	frames              *prometheus.CounterVec
	sendFailures        prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_server_new_connections_total",
			Help: "a counter of all new connections to the server",
		}),
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_server_connections_total",
			Help: "an amount of ws connections to the server",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "frames_total",
			Help:      "Inbound frames and lifecycle events handled, by event.",
		}, []string{"event"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "send_failures_total",
			Help:      "Outbound frames a connection did not accept.",
		}),
	}

	m.registry.MustRegister(
		m.connectionsAccepted,
		m.connectionsOpen,
		m.frames,
		m.sendFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ConnectionOpened counts a newly registered connection.
func (m *Metrics) ConnectionOpened() {
	m.connectionsAccepted.Inc()
	m.connectionsOpen.Inc()
}

// ConnectionClosed counts a removed connection.
func (m *Metrics) ConnectionClosed() {
	m.connectionsOpen.Dec()
}

// EventHandled counts one handled frame.
func (m *Metrics) EventHandled(event string) {
	m.frames.WithLabelValues(event).Inc()
}

// SendFailed counts n rejected outbound frames.
func (m *Metrics) SendFailed(n int) {
	m.sendFailures.Add(float64(n))
}

// Registry returns the underlying registry, for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
