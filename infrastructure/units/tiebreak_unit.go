package units

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-langvote/infrastructure/tiebreak"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

var _ ports.Unit = (*TieBreakUnit)(nil)

// TieBreakUnit applies reliability, script and allow-list adjustments to
// the working scores.
type TieBreakUnit struct {
	name    string
	breaker *tiebreak.TieBreaker
	tracer  trace.Tracer
}

// NewTieBreakUnit creates a TieBreakUnit around breaker.
func NewTieBreakUnit(name string, breaker *tiebreak.TieBreaker) (*TieBreakUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if breaker == nil {
		return nil, fmt.Errorf("%w: tie-breaker", ErrNilDependency)
	}
	return &TieBreakUnit{
		name:    name,
		breaker: breaker,
		tracer:  otel.Tracer("tie-break-unit"),
	}, nil
}

// Name returns the unit identifier.
func (tu *TieBreakUnit) Name() string { return tu.name }

// Execute binds the request's script and allow-list sets and resolves the
// working scores. Languages backed only by unreliable predictions are
// penalized.
func (tu *TieBreakUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := tu.tracer.Start(ctx, "TieBreakUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeTieBreak),
			attribute.String("unit.id", tu.name),
		),
	)
	defer span.End()

	scores, err := requireScores(state)
	if err != nil {
		err = newUnitError(TypeTieBreak, tu.name, err)
		span.RecordError(err)
		return state, err
	}
	script, _ := domain.Get(state, domain.KeyScriptLanguages)
	allowed, _ := domain.Get(state, domain.KeyAllowedLanguages)
	predictions, _ := domain.Get(state, domain.KeyPredictions)

	unreliable := UnreliableLanguages(predictions)
	resolved := tu.breaker.With(script, allowed).Resolve(scores, unreliable)

	span.SetAttributes(
		attribute.Int("tiebreak.script_languages", len(script)),
		attribute.Int("tiebreak.allowed_languages", len(allowed)),
		attribute.Int("tiebreak.unreliable_languages", len(unreliable)),
	)
	if resolved.Equal(scores) {
		return state, nil
	}
	return state.WithStage(tu.name, resolved), nil
}

// Validate checks that the unit is ready to run.
func (tu *TieBreakUnit) Validate() error {
	if tu.breaker == nil {
		return fmt.Errorf("%w: tie-breaker", ErrNilDependency)
	}
	return nil
}

// UnreliableLanguages returns, in first-seen order, the languages that
// only unreliable predictions voted for.
func UnreliableLanguages(predictions []domain.BackendPrediction) []string {
	var order []string
	reliable := make(map[string]bool)
	for _, p := range predictions {
		if !domain.IsDetermined(p.Language) {
			continue
		}
		prev, seen := reliable[p.Language]
		if !seen {
			order = append(order, p.Language)
		}
		reliable[p.Language] = prev || p.Reliable
	}

	var out []string
	for _, lang := range order {
		if !reliable[lang] {
			out = append(out, lang)
		}
	}
	return out
}

// CreateTieBreakUnit is a factory that builds the tie-breaker from a
// parameter map of tiebreak.Config fields.
func CreateTieBreakUnit(id string, config map[string]any) (*TieBreakUnit, error) {
	tc := tiebreak.DefaultConfig()
	if v, ok := floatParam(config, "unreliable_penalty"); ok {
		tc.UnreliablePenalty = v
	}
	if v, ok := floatParam(config, "script_bonus"); ok {
		tc.ScriptBonus = v
	}
	if v, ok := floatParam(config, "disallowed_penalty"); ok {
		tc.DisallowedPenalty = v
	}

	breaker, err := tiebreak.New(tc)
	if err != nil {
		return nil, err
	}
	return NewTieBreakUnit(id, breaker)
}
