// Package metrics exposes Prometheus instrumentation for the request engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beacon_dapp"

// Metrics holds the collectors for one client instance.
type Metrics struct {
	registry *prometheus.Registry

	requestsSent     *prometheus.CounterVec
	requestsRejected *prometheus.CounterVec
	responses        *prometheus.CounterVec
	pending          prometheus.Gauge
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_sent_total",
			Help:      "Requests handed to the transport, by message type.",
		}, []string{"type"}),
		requestsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Requests refused before send, by message type and error code.",
		}, []string{"type", "code"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Inbound messages routed by the dispatcher, by outcome.",
		}, []string{"outcome"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Requests waiting for a response.",
		}),
	}
	m.registry.MustRegister(m.requestsSent, m.requestsRejected, m.responses, m.pending)
	return m
}

func (m *Metrics) RequestSent(kind string) {
	if m == nil {
		return
	}
	m.requestsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) RequestRejected(kind, code string) {
	if m == nil {
		return
	}
	m.requestsRejected.WithLabelValues(kind, code).Inc()
}

// ResponseRouted counts a dispatched message. outcome is one of
// "success", "failure", "unmatched", "acknowledge" or "undecodable".
func (m *Metrics) ResponseRouted(outcome string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// Registry returns the underlying registry, or nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
