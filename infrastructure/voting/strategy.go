// Package voting aggregates the predictions of several detection backends
// into a single score map. Four strategies are provided: hard (majority),
// soft (probability averaging), weighted (soft with per-backend weights)
// and consensus (agreement threshold with a fallback).
//
// Every strategy is immutable after construction and safe for concurrent
// use. Voting never fails: configuration is validated when a strategy is
// built, and an empty prediction list yields an empty ScoreMap.
package voting

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Strategy names accepted by configuration.
const (
	NameHard      = "hard"
	NameSoft      = "soft"
	NameWeighted  = "weighted"
	NameConsensus = "consensus"
)

// Names lists every strategy name in a fixed order.
func Names() []string {
	return []string{NameHard, NameSoft, NameWeighted, NameConsensus}
}

// ErrUnknownStrategy is returned when a strategy name is not recognized.
var ErrUnknownStrategy = errors.New("unknown voting strategy")

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Strategy combines backend predictions into language scores.
type Strategy interface {
	// Name returns the strategy's configuration name.
	Name() string

	// Vote aggregates predictions. weights maps a backend source to its
	// weight and, when non-nil, takes precedence over any weight the
	// strategy was configured with. The input is never modified.
	Vote(predictions []domain.BackendPrediction, weights map[string]float64) *domain.ScoreMap
}

// explicitWeight returns the weight of source from weights. Negative
// weights count as zero.
func explicitWeight(weights map[string]float64, source string) (float64, bool) {
	w, ok := weights[source]
	if !ok {
		return 0, false
	}
	if w < 0 {
		w = 0
	}
	return w, true
}

// divideAll returns a copy of sm with every score divided by denom. A
// non-positive denom zeroes every score but keeps the languages.
func divideAll(sm *domain.ScoreMap, denom float64) *domain.ScoreMap {
	out := domain.NewScoreMap()
	for _, e := range sm.Entries() {
		if denom <= 0 {
			out.Set(e.Language, 0)
			continue
		}
		out.Set(e.Language, e.Score/denom)
	}
	return out
}

// decodeParams decodes a loosely typed parameter map into out, rejecting
// unknown fields. Fields absent from params keep their current value.
func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	var node yaml.Node
	if err := node.Encode(params); err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	return decodeNode(node, out)
}

// decodeNode decodes a YAML node into out with strict field checking.
func decodeNode(node yaml.Node, out any) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	if err := encoder.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode YAML node: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to close YAML encoder: %w", err)
	}

	decoder := yaml.NewDecoder(&buf)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to decode parameters (check for typos): %w", err)
	}
	return nil
}

// configError wraps a validator failure as an invalid-configuration error.
func configError(strategy string, err error) error {
	return fmt.Errorf("%w: %s voting: %w", domain.ErrInvalidConfiguration, strategy, err)
}

// Create builds the strategy registered under name from a parameter map.
func Create(name string, params map[string]any) (Strategy, error) {
	switch name {
	case NameHard:
		return CreateHard(params)
	case NameSoft:
		return CreateSoft(params)
	case NameWeighted:
		return CreateWeighted(params)
	case NameConsensus:
		return CreateConsensus(params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
