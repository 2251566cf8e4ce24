package units

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-langvote/infrastructure/confusion"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

var _ ports.Unit = (*ConfusionUnit)(nil)

// ConfusionUnit separates the top two languages of a known confusion group
// using lexical markers found in the text.
type ConfusionUnit struct {
	name     string
	resolver *confusion.Resolver
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
}

// NewConfusionUnit creates a ConfusionUnit. metrics may be nil.
func NewConfusionUnit(name string, resolver *confusion.Resolver, metrics ports.MetricsCollector) (*ConfusionUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: confusion resolver", ErrNilDependency)
	}
	return &ConfusionUnit{
		name:     name,
		resolver: resolver,
		metrics:  metrics,
		tracer:   otel.Tracer("confusion-unit"),
	}, nil
}

// WithMetrics returns a copy of the unit that reports adjustments to metrics.
func (cu *ConfusionUnit) WithMetrics(metrics ports.MetricsCollector) *ConfusionUnit {
	c := *cu
	c.metrics = metrics
	return &c
}

// Name returns the unit identifier.
func (cu *ConfusionUnit) Name() string { return cu.name }

// Execute resolves the working scores against the request text. The state
// is returned untouched when the resolver makes no adjustment.
func (cu *ConfusionUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	cfg := cu.resolver.Config()
	_, span := cu.tracer.Start(ctx, "ConfusionUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeConfusion),
			attribute.String("unit.id", cu.name),
			attribute.Float64("config.decisive_margin", cfg.DecisiveMargin),
		),
	)
	defer span.End()

	scores, err := requireScores(state)
	if err != nil {
		err = newUnitError(TypeConfusion, cu.name, err)
		span.RecordError(err)
		return state, err
	}
	text, _ := domain.Get(state, domain.KeyText)

	resolved, adj := cu.resolver.ResolveDetailed(text, scores)
	if adj.Delta == 0 {
		span.SetAttributes(attribute.Bool("confusion.adjusted", false))
		return state, nil
	}

	span.SetAttributes(
		attribute.Bool("confusion.adjusted", true),
		attribute.String("confusion.group", adj.Group),
		attribute.String("confusion.boosted", adj.Boosted),
		attribute.Float64("confusion.delta", adj.Delta),
	)
	if cu.metrics != nil {
		cu.metrics.RecordCounter(ports.MetricConfusionAdjustments, 1, map[string]string{
			"unit":    cu.name,
			"group":   adj.Group,
			"boosted": adj.Boosted,
		})
	}

	return state.WithStage(cu.name, resolved), nil
}

// Validate checks that the unit is ready to run.
func (cu *ConfusionUnit) Validate() error {
	if cu.resolver == nil {
		return fmt.Errorf("%w: confusion resolver", ErrNilDependency)
	}
	return nil
}

// CreateConfusionUnit is a factory that builds the resolver from a
// parameter map of ResolverConfig fields.
func CreateConfusionUnit(id string, config map[string]any) (*ConfusionUnit, error) {
	rc := confusion.DefaultResolverConfig()
	if v, ok := floatParam(config, "decisive_margin"); ok {
		rc.DecisiveMargin = v
	}
	if v, ok := floatParam(config, "step_per_match"); ok {
		rc.StepPerMatch = v
	}
	if v, ok := floatParam(config, "max_adjustment"); ok {
		rc.MaxAdjustment = v
	}

	resolver, err := confusion.NewResolver(rc)
	if err != nil {
		return nil, err
	}
	return NewConfusionUnit(id, resolver, nil)
}
