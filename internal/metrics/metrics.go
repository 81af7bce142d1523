// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barrel_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "barrel_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	LifecycleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barrel_lifecycle_transitions_total",
		Help: "Committed lifecycle transitions by entity and action.",
	}, []string{"entity", "action"})

	EngineRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barrel_engine_rejections_total",
		Help: "Operations rejected by the engine, by reason code.",
	}, []string{"code"})

	AuditArchiveRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barrel_audit_archive_runs_total",
		Help: "Audit archive runs by result.",
	}, []string{"result"})
)

// Transition counts one committed transition.
func Transition(entity, action string) {
	LifecycleTransitions.WithLabelValues(entity, action).Inc()
}

// Rejection counts one rejected operation.
func Rejection(code string) {
	EngineRejections.WithLabelValues(code).Inc()
}
