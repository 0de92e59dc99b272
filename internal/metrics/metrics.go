// Package metrics counts submission outcomes and times remote calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "driver_activity"

// Outcome labels a finished submission attempt.
type Outcome string

const (
	OutcomeValidation     Outcome = "validation"
	OutcomeIdentityFailed Outcome = "identity_failed"
	OutcomeCreateFailed   Outcome = "create_failed"
	OutcomeSubmitted      Outcome = "submitted"
)

// Metrics owns a private registry. A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	remoteCalls *prometheus.HistogramVec
	selections  prometheus.Counter
}

// New builds the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission attempts grouped by outcome.",
		}, []string{"outcome"}),
		remoteCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_seconds",
			Help:      "Latency of host API calls grouped by method and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "result"}),
		selections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Activity selections made by the driver.",
		}),
	}
	m.registry.MustRegister(m.submissions, m.remoteCalls, m.selections)
	return m
}

// Registry exposes the underlying registry for handlers and tests.
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

// RecordSubmission counts one finished attempt.
func (m *Metrics) RecordSubmission(o Outcome) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(o)).Inc()
}

// RecordSelection counts one selection.
func (m *Metrics) RecordSelection() {
	if m == nil {
		return
	}
	m.selections.Inc()
}

// ObserveCall records how long a remote method took.
func (m *Metrics) ObserveCall(method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.remoteCalls.WithLabelValues(method, result).Observe(d.Seconds())
}
