package units

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

var _ ports.Unit = (*ContextBoostUnit)(nil)

// ContextBoostUnit raises the scores of languages the conversation has
// recently used. It never introduces a language the voters did not score.
type ContextBoostUnit struct {
	name   string
	tracer trace.Tracer
}

// NewContextBoostUnit creates a ContextBoostUnit.
func NewContextBoostUnit(name string) (*ContextBoostUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &ContextBoostUnit{
		name:   name,
		tracer: otel.Tracer("context-boost-unit"),
	}, nil
}

// Name returns the unit identifier.
func (cb *ContextBoostUnit) Name() string { return cb.name }

// Execute adds the booster's ContextBoost to every scored language. A
// state without a booster passes through unchanged.
func (cb *ContextBoostUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := cb.tracer.Start(ctx, "ContextBoostUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeContextBoost),
			attribute.String("unit.id", cb.name),
		),
	)
	defer span.End()

	scores, err := requireScores(state)
	if err != nil {
		err = newUnitError(TypeContextBoost, cb.name, err)
		span.RecordError(err)
		return state, err
	}

	booster, ok := domain.Get(state, domain.KeyContextBooster)
	if !ok || booster == nil {
		span.SetAttributes(attribute.Bool("context.present", false))
		return state, nil
	}

	boosted := 0
	out := scores.Clone()
	for _, e := range scores.Entries() {
		if b := booster.ContextBoost(e.Language); b > 0 {
			out.Set(e.Language, e.Score+b)
			boosted++
		}
	}

	span.SetAttributes(
		attribute.Bool("context.present", true),
		attribute.Int("context.boosted_languages", boosted),
	)
	if boosted == 0 {
		return state, nil
	}
	return state.WithStage(cb.name, out), nil
}

// Validate checks that the unit is ready to run.
func (cb *ContextBoostUnit) Validate() error { return nil }

// CreateContextBoostUnit is a factory for the registry. The unit takes no
// parameters.
func CreateContextBoostUnit(id string, _ map[string]any) (*ContextBoostUnit, error) {
	return NewContextBoostUnit(id)
}
