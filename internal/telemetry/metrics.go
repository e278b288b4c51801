// Package telemetry wires the wrapper pipeline's operation/decision counters
// and per-operation tracing into the rest of mcpower-gate, grounded on the
// teacher's internal/adapter/inbound/http/metrics.go pattern and its unused
// go.opentelemetry.io/otel require block.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the wrapper pipeline records
// against. Unlike the teacher's gateway metrics (which tracked HTTP
// sessions and rate-limit buckets the single-upstream wrapper doesn't
// have), these are scoped to the operation pipeline: one record per
// inspected MCP call or hook invocation.
type Metrics struct {
	OperationsTotal         *prometheus.CounterVec
	PolicyDecisionsTotal    *prometheus.CounterVec
	RedactionDuration       prometheus.Histogram
	AuditDropsTotal         prometheus.Counter
}

// NewMetrics creates and registers the wrapper's metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		OperationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpower",
				Name:      "operations_total",
				Help:      "Total inspected operations, by method and direction",
			},
			[]string{"method", "direction"},
		),
		PolicyDecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpower",
				Name:      "policy_decisions_total",
				Help:      "Total enforcement outcomes, by decision",
			},
			[]string{"decision"}, // allow, block, confirm
		),
		RedactionDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "mcpower",
				Name:      "redaction_duration_seconds",
				Help:      "Time spent walking and redacting a single payload",
				Buckets:   prometheus.DefBuckets,
			},
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mcpower",
				Name:      "audit_drops_total",
				Help:      "Audit records dropped due to sink backpressure",
			},
		),
	}
}
