package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Backend is an external language detector. Implementations wrap
// fastText, lingua, CLD3 and similar engines; the decision core treats them
// as black boxes.
type Backend interface {
	// Name returns the backend identifier used as BackendPrediction.Source
	// and as the key of reliability and weight tables.
	Name() string

	// Detect predicts the language of text.
	// Implementations should honor ctx cancellation and return a
	// *BackendError on failure.
	Detect(ctx context.Context, text string) (domain.BackendPrediction, error)
}

// BackendFunc adapts a plain function into a Backend.
type BackendFunc struct {
	BackendName string
	DetectFunc  func(ctx context.Context, text string) (domain.BackendPrediction, error)
}

// Name implements Backend.
func (f BackendFunc) Name() string { return f.BackendName }

// Detect implements Backend.
func (f BackendFunc) Detect(ctx context.Context, text string) (domain.BackendPrediction, error) {
	return f.DetectFunc(ctx, text)
}

// ScriptDetector reports which languages are consistent with the writing
// system of a text. The result feeds the tie-breaker's script bonus.
type ScriptDetector interface {
	// ScriptLanguages returns the script label and the languages written in it.
	ScriptLanguages(text string) (script string, languages []string)
}

// HintLookup consults an external hint dictionary (greetings, stop-words,
// user overrides). A found hint is treated as a highly confident
// synthetic prediction.
type HintLookup interface {
	// Lookup returns the hint for text and whether one matched.
	Lookup(ctx context.Context, text string) (domain.Hint, bool, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like decisions, adjustments, failures.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like active sessions.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like decision confidence.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
