// Package metrics exposes the tracker's Prometheus metrics on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "routingd"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActiveInterpreters prometheus.Gauge
	Transitions        *prometheus.CounterVec
	RecoverySearches   *prometheus.CounterVec
	EventsDecoded      *prometheus.CounterVec
	EventsDropped      *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ActiveInterpreters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_interpreters",
			Help:      "Number of transfers currently being tracked.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions committed by interpreters.",
		}, []string{"from", "to"}),
		RecoverySearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_searches_total",
			Help:      "Historical searches issued for expired interpreters, by waiting state and result.",
		}, []string{"state", "result"}),
		EventsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_decoded_total",
			Help:      "Chain events decoded, by domain and kind.",
		}, []string{"domain", "kind"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Chain events dropped because they could not be decoded.",
		}, []string{"domain"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ActiveInterpreters,
		m.Transitions,
		m.RecoverySearches,
		m.EventsDecoded,
		m.EventsDropped,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.ActiveInterpreters.Set(float64(n))
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveRecovery(state, result string) {
	if m == nil {
		return
	}
	m.RecoverySearches.WithLabelValues(state, result).Inc()
}

func (m *Metrics) ObserveDecoded(domain, kind string) {
	if m == nil {
		return
	}
	m.EventsDecoded.WithLabelValues(domain, kind).Inc()
}

func (m *Metrics) ObserveDropped(domain string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(domain).Inc()
}
