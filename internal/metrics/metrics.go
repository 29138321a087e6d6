// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ChunksSent    *prometheus.CounterVec
	Replies       *prometheus.CounterVec
	ParseFailures prometheus.Counter
	Connections   prometheus.Gauge
}

// New registers the collectors on a fresh registry so tests can build as
// many instances as they need.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ChunksSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chunkchat",
			Name:      "chunks_sent_total",
			Help:      "Reply chunks written to clients, by chunk type.",
		}, []string{"type"}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chunkchat",
			Name:      "replies_total",
			Help:      "Replies streamed, by producer and outcome.",
		}, []string{"producer", "outcome"}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chunkchat",
			Name:      "chunk_parse_failures_total",
			Help:      "Inbound chunk payloads rejected as unparseable.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chunkchat",
			Name:      "active_connections",
			Help:      "Open chat websocket connections.",
		}),
	}
	reg.MustRegister(
		m.ChunksSent,
		m.Replies,
		m.ParseFailures,
		m.Connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
