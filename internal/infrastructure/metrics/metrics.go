// Package metrics exposes reconciliation and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prodledger/internal/domain/reconcile"
)

const namespace = "prodledger"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	applies       *prometheus.CounterVec
	applyDuration *prometheus.HistogramVec
	warnings      *prometheus.CounterVec
	failures      *prometheus.CounterVec

	batches         prometheus.Counter
	batchRequested  prometheus.Counter
	batchReconciled prometheus.Counter
	batchDeleted    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ reconcile.Observer = (*Metrics)(nil)

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		applies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "applies_total",
			Help:      "Deltas processed by the reconciliation engine.",
		}, []string{"direction", "applied"}),

		applyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "apply_duration_seconds",
			Help:      "Time to apply one delta, including the wait for the style lock.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),

		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "warnings_total",
			Help:      "Non-fatal reconciliation warnings.",
		}, []string{"code"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "failures_total",
			Help:      "Failed applies by error code.",
		}, []string{"code"}),

		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "batches_total",
			Help:      "Bulk delete requests processed.",
		}),
		batchRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "requested_items_total",
			Help:      "Ids received by bulk deletes.",
		}),
		batchReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "reconciled_items_total",
			Help:      "Ids reconciled by bulk deletes.",
		}),
		batchDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "deleted_items_total",
			Help:      "Targets removed by bulk deletes.",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.applies, m.applyDuration, m.warnings, m.failures,
		m.batches, m.batchRequested, m.batchReconciled, m.batchDeleted,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Applied implements reconcile.Observer.
func (m *Metrics) Applied(dir reconcile.Direction, applied bool, elapsed time.Duration) {
	m.applies.WithLabelValues(string(dir), strconv.FormatBool(applied)).Inc()
	m.applyDuration.WithLabelValues(string(dir)).Observe(elapsed.Seconds())
}

// Warned implements reconcile.Observer.
func (m *Metrics) Warned(code reconcile.WarningCode) {
	m.warnings.WithLabelValues(string(code)).Inc()
}

// Failed implements reconcile.Observer.
func (m *Metrics) Failed(code string) {
	m.failures.WithLabelValues(code).Inc()
}

// BatchFinished implements reconcile.Observer.
func (m *Metrics) BatchFinished(requested, reconciled int, deleted int64) {
	m.batches.Inc()
	m.batchRequested.Add(float64(requested))
	m.batchReconciled.Add(float64(reconciled))
	m.batchDeleted.Add(float64(deleted))
}

// ObserveHTTP records one finished request. route is the matched route
// template, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
