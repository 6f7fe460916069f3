// Package metrics exposes Prometheus counters for the verification-gated
// translation flow. Each Metrics value owns its own registry so the client,
// the widget bridge and the dev server never collide on the global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Translate outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeIdentity = "identity"
	OutcomeBlocked  = "blocked"
)

// Metrics bundles the counters used across lingogate
type Metrics struct {
	registry  *prometheus.Registry
	translate *prometheus.CounterVec
	pass      *prometheus.CounterVec
	widget    *prometheus.CounterVec
}

// New creates a Metrics value with a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		translate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingogate",
			Name:      "translate_requests_total",
			Help:      "Translation attempts by outcome.",
		}, []string{"outcome"}),
		pass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingogate",
			Name:      "pass_events_total",
			Help:      "Verification pass lifecycle events.",
		}, []string{"event"}),
		widget: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingogate",
			Name:      "widget_events_total",
			Help:      "Challenge widget callbacks and resets.",
		}, []string{"event"}),
	}
	m.registry.MustRegister(m.translate, m.pass, m.widget)
	return m
}

// Translate counts one translation attempt. Safe on a nil receiver.
func (m *Metrics) Translate(outcome string) {
	if m == nil {
		return
	}
	m.translate.WithLabelValues(outcome).Inc()
}

// Pass counts a pass event such as "issued" or "cleared"
func (m *Metrics) Pass(event string) {
	if m == nil {
		return
	}
	m.pass.WithLabelValues(event).Inc()
}

// Widget counts a widget event such as "success", "expired", "error" or "reset"
func (m *Metrics) Widget(event string) {
	if m == nil {
		return
	}
	m.widget.WithLabelValues(event).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
