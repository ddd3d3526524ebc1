// Package monitoring exposes Prometheus metrics for terminal sessions, event
// delivery and the command surface.
//
// All Record and Inc helpers are safe on a nil *Metrics, so components can be
// constructed without metrics in tests.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Session metrics
	SessionsActive prometheus.Gauge
	Spawns         *prometheus.CounterVec
	Commands       *prometheus.CounterVec

	// Output metrics
	BytesRead     prometheus.Counter
	EventsEmitted *prometheus.CounterVec
	EventsDropped prometheus.Counter

	// Transport metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// Sidecar metrics
	SidecarRunning prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptyhost_sessions_active",
				Help: "Number of terminal sessions in the registry",
			},
		),
		Spawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyhost_spawns_total",
				Help: "Total number of spawn attempts",
			},
			[]string{"result"},
		),
		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyhost_commands_total",
				Help: "Total number of host commands",
			},
			[]string{"command", "result"},
		),

		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyhost_pty_bytes_read_total",
				Help: "Total bytes read from pty masters",
			},
		),
		EventsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyhost_events_emitted_total",
				Help: "Total number of session events emitted",
			},
			[]string{"kind"},
		),
		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyhost_events_dropped_total",
				Help: "Events dropped because a subscriber was not keeping up",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptyhost_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyhost_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction"},
		),

		SidecarRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptyhost_sidecar_running",
				Help: "1 while the sidecar process is running",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
