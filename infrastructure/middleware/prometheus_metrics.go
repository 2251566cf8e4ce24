// Package middleware provides cross-cutting concerns for the decision engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-langvote/internal/ports"
)

// Namespace prefixes every metric this package registers.
const Namespace = "langvote"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It exposes decision outcomes, stage and backend latency, confusion
// adjustments and session counts.
type PrometheusMetrics struct {
	stageLatency         *prometheus.HistogramVec
	backendLatency       *prometheus.HistogramVec
	backendRequests      *prometheus.CounterVec
	decisions            *prometheus.CounterVec
	decisionConfidence   *prometheus.HistogramVec
	confusionAdjustments *prometheus.CounterVec
	operationCounter     *prometheus.CounterVec
	systemGauges         *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers its
// metrics with reg. A nil reg uses the default Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of decisions and individual pipeline stages.",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
			},
			[]string{"operation", "stage"},
		),
		backendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      ports.MetricBackendLatency,
				Help:      "Latency of detection backend calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "status"},
		),
		backendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      ports.MetricBackendRequests,
				Help:      "Detection backend calls by outcome.",
			},
			[]string{"backend", "status"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      ports.MetricDecisions,
				Help:      "Decisions produced, by voting strategy and abstention reason.",
			},
			[]string{"strategy", "reason"},
		),
		decisionConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      ports.MetricDecisionConfidence,
				Help:      "Confidence of the winning language.",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"strategy"},
		),
		confusionAdjustments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      ports.MetricConfusionAdjustments,
				Help:      "Score adjustments made by the confusion resolver.",
			},
			[]string{"group", "boosted"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Counters without a dedicated metric.",
			},
			[]string{"operation", "unit"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "system_state",
				Help:      "Current system state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.stageLatency.WithLabelValues(operation, labelOr(labels, "stage", "all")).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricDecisions:
		pm.decisions.WithLabelValues(labels["strategy"], labelOr(labels, "reason", "none")).Add(value)
	case ports.MetricBackendRequests:
		pm.backendRequests.WithLabelValues(labels["backend"], labels["status"]).Add(value)
	case ports.MetricConfusionAdjustments:
		pm.confusionAdjustments.WithLabelValues(labels["group"], labels["boosted"]).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "unit", "unknown")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricBackendLatency:
		pm.backendLatency.WithLabelValues(labels["backend"], labels["status"]).Observe(value)
	case ports.MetricDecisionConfidence:
		pm.decisionConfidence.WithLabelValues(labels["strategy"]).Observe(value)
	default:
		pm.stageLatency.WithLabelValues(metric, labelOr(labels, "stage", "all")).Observe(value)
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
