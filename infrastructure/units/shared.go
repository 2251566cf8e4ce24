// Package units wraps each decision stage in a ports.Unit so the engine can
// run the stages as an ordered pipeline over domain.State.
package units

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Unit type labels used in span attributes and registry lookups.
const (
	TypeVote         = "vote"
	TypeConfusion    = "confusion"
	TypeContextBoost = "context_boost"
	TypeTieBreak     = "tie_break"
	TypeVerdict      = "verdict"
)

var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrNilDependency is returned when a unit is built without its stage component.
	ErrNilDependency = errors.New("unit dependency cannot be nil")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// missing reports a required state key that is absent.
func missing[T any](key domain.Key[T]) error {
	return &domain.MissingKeyError{Key: key.Name()}
}

// requireScores fetches the working score map, failing when no stage has
// produced one yet.
func requireScores(state domain.State) (*domain.ScoreMap, error) {
	scores, ok := domain.Get(state, domain.KeyScores)
	if !ok || scores == nil {
		return nil, missing(domain.KeyScores)
	}
	return scores, nil
}

func newUnitError(unitType, name string, err error) error {
	return fmt.Errorf("%s unit %s: %w", unitType, name, err)
}

// floatParam reads a numeric parameter, accepting the integer types that
// YAML and JSON decoders produce.
func floatParam(config map[string]any, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// intParam reads an integer parameter.
func intParam(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		n, err := safecast.Conv[int](v)
		return n, err == nil
	case uint64:
		n, err := safecast.Conv[int](v)
		return n, err == nil
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}
