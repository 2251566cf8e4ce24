package ports

// Metric names shared by the components that emit them and the collectors
// that route them.
const (
	// MetricStageLatency is the RecordLatency operation for one pipeline stage.
	MetricStageLatency = "stage"

	// MetricDecideLatency is the RecordLatency operation for a whole decision.
	MetricDecideLatency = "decide"

	// MetricDecisions counts decisions by strategy and reason.
	MetricDecisions = "decisions_total"

	// MetricDecisionConfidence samples the confidence of each decision.
	MetricDecisionConfidence = "decision_confidence"

	// MetricConfusionAdjustments counts confusion-resolver adjustments.
	MetricConfusionAdjustments = "confusion_adjustments_total"

	// MetricBackendLatency samples backend call latency in seconds.
	MetricBackendLatency = "backend_latency_seconds"

	// MetricBackendRequests counts backend calls by outcome.
	MetricBackendRequests = "backend_requests_total"

	// MetricActiveSessions reports the number of live conversation sessions.
	MetricActiveSessions = "active_sessions"
)
