package backends

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// metricsBackend records latency and outcome of every call.
type metricsBackend struct {
	next      ports.Backend
	collector ports.MetricsCollector
}

// Metrics creates middleware that reports each call to collector. A nil
// collector disables the middleware.
func Metrics(collector ports.MetricsCollector) Middleware {
	return func(next ports.Backend) ports.Backend {
		if collector == nil {
			return next
		}
		return &metricsBackend{
			next:      next,
			collector: collector,
		}
	}
}

func (m *metricsBackend) Name() string { return m.next.Name() }

// Detect forwards the call and records a latency histogram sample and a
// request counter labelled with the outcome.
func (m *metricsBackend) Detect(ctx context.Context, text string) (domain.BackendPrediction, error) {
	start := time.Now()
	p, err := m.next.Detect(ctx, text)

	labels := map[string]string{
		"backend": m.next.Name(),
		"status":  Status(err),
	}
	m.collector.RecordHistogram(ports.MetricBackendLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(ports.MetricBackendRequests, 1, labels)
	return p, err
}

// Status classifies a Detect error into a metric label.
func Status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ports.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ports.ErrInvalidResponse):
		return "invalid"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
