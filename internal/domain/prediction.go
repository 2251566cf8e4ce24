// Package domain contains pure, dependency-free domain models and static
// language tables for the decision engine.
package domain

import (
	"fmt"
	"math"
)

// Language codes with special meaning across the engine.
const (
	// LangUndetermined is the ISO 639-2 code emitted when no language can be
	// decided with enough confidence.
	LangUndetermined = "und"

	// LangUnknown is the placeholder some backends emit for "no idea".
	LangUnknown = "unknown"
)

// IsDetermined reports whether lang names an actual language rather than
// an empty or placeholder value.
func IsDetermined(lang string) bool {
	return lang != "" && lang != LangUndetermined && lang != LangUnknown
}

// BackendPrediction is one backend's opinion about the language of a text.
// Values are immutable once created; callers must not modify Probabilities
// after handing a prediction to the engine.
type BackendPrediction struct {
	// Source identifies the backend that produced this prediction.
	Source string `json:"source" yaml:"source" msgpack:"source"`

	// Language is the predicted language code.
	Language string `json:"language" yaml:"language" msgpack:"language"`

	// Confidence is the backend's confidence in Language (0.0 to 1.0).
	Confidence float64 `json:"confidence" yaml:"confidence" msgpack:"confidence"`

	// Probabilities holds the full distribution when the backend exposes
	// one. It may be empty or a singleton.
	Probabilities map[string]float64 `json:"probabilities,omitempty" yaml:"probabilities,omitempty" msgpack:"probabilities,omitempty"`

	// Reliable reports whether the backend itself judged this prediction
	// trustworthy.
	Reliable bool `json:"reliable" yaml:"reliable" msgpack:"reliable"`
}

// NewPrediction builds a reliable prediction whose distribution is the
// singleton {language: confidence}.
func NewPrediction(source, language string, confidence float64) BackendPrediction {
	return BackendPrediction{
		Source:        source,
		Language:      language,
		Confidence:    confidence,
		Probabilities: map[string]float64{language: confidence},
		Reliable:      true,
	}
}

// Distribution returns the prediction's probability distribution as an
// insertion-ordered ScoreMap. The predicted language always comes first so
// that ties resolve toward the backend's own pick; remaining languages follow
// in lexical order. A prediction without a distribution yields the singleton
// {Language: Confidence}.
func (p BackendPrediction) Distribution() *ScoreMap {
	if len(p.Probabilities) == 0 {
		sm := NewScoreMap()
		if p.Language != "" {
			sm.Set(p.Language, p.Confidence)
		}
		return sm
	}

	sm := NewScoreMap()
	if prob, ok := p.Probabilities[p.Language]; ok {
		sm.Set(p.Language, prob)
	}
	for _, lang := range sortedKeys(p.Probabilities) {
		if lang == p.Language {
			continue
		}
		sm.Set(lang, p.Probabilities[lang])
	}
	return sm
}

// Validate checks the prediction's value constraints.
func (p BackendPrediction) Validate() error {
	if p.Source == "" {
		return fmt.Errorf("%w: empty source", ErrInvalidPrediction)
	}
	if p.Language == "" {
		return fmt.Errorf("%w: backend %s: empty language", ErrInvalidPrediction, p.Source)
	}
	if !validUnit(p.Confidence) {
		return fmt.Errorf("%w: backend %s: confidence %v outside [0, 1]",
			ErrInvalidPrediction, p.Source, p.Confidence)
	}
	for lang, prob := range p.Probabilities {
		if !validUnit(prob) {
			return fmt.Errorf("%w: backend %s: probability %v for %s outside [0, 1]",
				ErrInvalidPrediction, p.Source, prob, lang)
		}
	}
	return nil
}

func validUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
