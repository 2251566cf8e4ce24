package backends

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// tracedBackend wraps each call in a span.
type tracedBackend struct {
	next   ports.Backend
	tracer trace.Tracer
}

// Tracing creates middleware that opens a "backend.detect" span per call.
func Tracing() Middleware {
	tracer := otel.Tracer("langvote-backends")
	return func(next ports.Backend) ports.Backend {
		return &tracedBackend{next: next, tracer: tracer}
	}
}

func (t *tracedBackend) Name() string { return t.next.Name() }

// Detect records the predicted language and confidence on success and the
// error otherwise.
func (t *tracedBackend) Detect(ctx context.Context, text string) (domain.BackendPrediction, error) {
	ctx, span := t.tracer.Start(ctx, "backend.detect",
		trace.WithAttributes(
			attribute.String("backend.name", t.next.Name()),
			attribute.Int("text.length", len(text)),
		),
	)
	defer span.End()

	p, err := t.next.Detect(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return p, err
	}
	span.SetAttributes(
		attribute.String("prediction.language", p.Language),
		attribute.Float64("prediction.confidence", p.Confidence),
		attribute.Bool("prediction.reliable", p.Reliable),
	)
	return p, nil
}
