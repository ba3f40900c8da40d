package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records service-level counters for the scoring engine.
type EngineMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, d time.Duration)
	RecordXPGranted(ctx context.Context, source string, xp int)
	RecordAwardSkipped(ctx context.Context, reason string)
	RecordEventPublished(ctx context.Context, eventType string, ok bool)
}

type PrometheusMetrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	xpGranted *prometheus.CounterVec
	skips     *prometheus.CounterVec
	published *prometheus.CounterVec
}

// NewPrometheusMetrics registers the engine collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena", Name: "operation_attempts_total",
			Help: "Service operations started.",
		}, []string{"service", "operation"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena", Name: "operation_success_total",
			Help: "Service operations that returned without error.",
		}, []string{"service", "operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena", Name: "operation_failures_total",
			Help: "Service operations that returned an error or panicked.",
		}, []string{"service", "operation"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arena", Name: "operation_duration_seconds",
			Help:    "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		xpGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena", Name: "xp_granted_total",
			Help: "XP appended to the ledger.",
		}, []string{"source"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena", Name: "award_skipped_total",
			Help: "Accepted submissions that earned no credit.",
		}, []string{"reason"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena", Name: "events_published_total",
			Help: "Notification events handed to the broker.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.attempts, m.successes, m.failures, m.durations, m.xpGranted, m.skips, m.published)
	return m
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(service, operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(service, operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(service, operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, d time.Duration) {
	m.durations.WithLabelValues(service, operation).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordXPGranted(_ context.Context, source string, xp int) {
	m.xpGranted.WithLabelValues(source).Add(float64(xp))
}

func (m *PrometheusMetrics) RecordAwardSkipped(_ context.Context, reason string) {
	m.skips.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordEventPublished(_ context.Context, eventType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.published.WithLabelValues(eventType, result).Inc()
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoOpMetrics) RecordXPGranted(context.Context, string, int)                           {}
func (NoOpMetrics) RecordAwardSkipped(context.Context, string)                             {}
func (NoOpMetrics) RecordEventPublished(context.Context, string, bool)                     {}
