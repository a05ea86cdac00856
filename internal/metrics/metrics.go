// ABOUTME: Prometheus counters and gauges for the control node.
// ABOUTME: Per-instance registry with an HTTP handler for scraping.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coven_control"

// Metrics holds the control node's collectors.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsTotal prometheus.Counter
	AgentsConnected  prometheus.Gauge
	Handshakes       prometheus.Counter
	PongsReceived    prometheus.Counter
	MessagesSent     prometheus.Counter
	MessagesReceived *prometheus.CounterVec // encrypted: "true" or "false"
	ProtocolErrors   prometheus.Counter
	Restarts         prometheus.Counter
}

// New creates Metrics registered on a fresh registry along with the
// standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ConnectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total TCP connections accepted",
		}),
		AgentsConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_connected",
			Help:      "Agents currently registered",
		}),
		Handshakes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Handshake messages received from agents",
		}),
		PongsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pongs_received_total",
			Help:      "Pong replies received from agents",
		}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Content messages sent to agents",
		}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Content messages received from agents",
		}, []string{"encrypted"}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Frames dropped because they could not be decoded or decrypted",
		}),
		Restarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Listener restarts requested by the operator",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
