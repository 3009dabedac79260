// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formvault"

// Metrics groups every collector on its own registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	VersionsPublished    prometheus.Counter
	PublishConflicts     prometheus.Counter
	RecordOperations     *prometheus.CounterVec
	ValidationViolations *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		VersionsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_published_total",
			Help:      "Total number of schema versions published",
		}),

		PublishConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_conflicts_total",
			Help:      "Total number of publish attempts rejected by a concurrent publish",
		}),

		RecordOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_operations_total",
				Help:      "Total number of record operations by outcome",
			},
			[]string{"op", "outcome"},
		),

		ValidationViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_violations_total",
				Help:      "Total number of validation violations by kind",
			},
			[]string{"kind"},
		),
	}
}

// Registry returns the registry backing m
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latencies labelled by route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObservePublish records the outcome of one publish attempt
func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	switch {
	case err == nil:
		m.VersionsPublished.Inc()
	case errors.Is(err, domain.ErrConcurrentModification):
		m.PublishConflicts.Inc()
	}
}

// ObserveRecordOp records the outcome of a record operation
func (m *Metrics) ObserveRecordOp(op string, err error) {
	if m == nil {
		return
	}
	m.RecordOperations.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveViolations counts violations by kind
func (m *Metrics) ObserveViolations(violations []schema.Violation) {
	if m == nil {
		return
	}
	for _, v := range violations {
		m.ValidationViolations.WithLabelValues(string(v.Kind)).Inc()
	}
}

// Outcome maps an operation error onto a low-cardinality label
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidationFailed):
		return "invalid"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInUse):
		return "in_use"
	}
	return "error"
}
