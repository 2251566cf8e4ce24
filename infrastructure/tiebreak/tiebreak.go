// Package tiebreak performs the last adjustment of a score map before a
// language is chosen. It penalizes languages backed only by unreliable
// predictions, rewards languages that match the text's writing system and
// suppresses languages outside an allow-list.
package tiebreak

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Config defines the tie-breaker's tunable magnitudes.
type Config struct {
	// UnreliablePenalty multiplies the score of unreliable languages.
	UnreliablePenalty float64 `yaml:"unreliable_penalty" json:"unreliable_penalty" toml:"unreliable_penalty" validate:"gt=0,lte=1"`

	// ScriptBonus is added to languages consistent with the text's script.
	ScriptBonus float64 `yaml:"script_bonus" json:"script_bonus" toml:"script_bonus" validate:"gte=0,lte=1"`

	// DisallowedPenalty multiplies the score of languages outside a
	// non-empty allow-list. Keeping it above zero leaves the verdict a way
	// to report what was suppressed.
	DisallowedPenalty float64 `yaml:"disallowed_penalty" json:"disallowed_penalty" toml:"disallowed_penalty" validate:"gte=0,lt=1"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UnreliablePenalty: 0.8,
		ScriptBonus:       0.1,
		DisallowedPenalty: 0.1,
	}
}

// TieBreaker applies reliability, script and allow-list adjustments.
// A TieBreaker is immutable; With derives a copy bound to a request's
// script and allow-list sets.
type TieBreaker struct {
	config  Config
	script  map[string]struct{}
	allowed map[string]struct{}
}

// New creates a TieBreaker with empty script and allow-list sets.
func New(config Config) (*TieBreaker, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: tie-breaker: %w", domain.ErrInvalidConfiguration, err)
	}
	return &TieBreaker{config: config}, nil
}

// With returns a copy of tb using the given script-consistent languages
// and allow-list. An empty allow-list permits every language.
func (tb *TieBreaker) With(scriptLanguages, allowedLanguages []string) *TieBreaker {
	return &TieBreaker{
		config:  tb.config,
		script:  toSet(scriptLanguages),
		allowed: toSet(allowedLanguages),
	}
}

// Config returns the tie-breaker's configuration.
func (tb *TieBreaker) Config() Config { return tb.config }

// Allowed reports whether lang passes the allow-list.
func (tb *TieBreaker) Allowed(lang string) bool {
	if len(tb.allowed) == 0 {
		return true
	}
	_, ok := tb.allowed[lang]
	return ok
}

// ResolvePredictions scores each predicted language by the best
// confidence any prediction gave it, scaling unreliable predictions down,
// and then applies the script and allow-list adjustments.
func (tb *TieBreaker) ResolvePredictions(predictions []domain.BackendPrediction) *domain.ScoreMap {
	base := domain.NewScoreMap()
	for _, p := range predictions {
		if p.Language == "" {
			continue
		}
		conf := p.Confidence
		if !p.Reliable {
			conf *= tb.config.UnreliablePenalty
		}
		if prev, ok := base.Get(p.Language); !ok || conf > prev {
			base.Set(p.Language, conf)
		}
	}
	return tb.adjust(base)
}

// Resolve adjusts an incoming score map. Languages listed in unreliable
// are scaled down before the script and allow-list adjustments. Every
// input language is kept and none is added.
func (tb *TieBreaker) Resolve(scores *domain.ScoreMap, unreliable []string) *domain.ScoreMap {
	base := scores.Clone()
	for _, lang := range unreliable {
		if s, ok := base.Get(lang); ok {
			base.Set(lang, s*tb.config.UnreliablePenalty)
		}
	}
	return tb.adjust(base)
}

func (tb *TieBreaker) adjust(scores *domain.ScoreMap) *domain.ScoreMap {
	for _, e := range scores.Entries() {
		s := e.Score
		if _, ok := tb.script[e.Language]; ok {
			s += tb.config.ScriptBonus
		}
		if !tb.Allowed(e.Language) {
			s *= tb.config.DisallowedPenalty
		}
		scores.Set(e.Language, s)
	}
	return scores
}

func toSet(langs []string) map[string]struct{} {
	if len(langs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(langs))
	for _, l := range langs {
		set[l] = struct{}{}
	}
	return set
}
