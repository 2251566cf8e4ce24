package domain

import (
	"time"
)

// Reason explains why a Decision carries the undetermined language or why
// the engine distrusts its own answer.
type Reason string

// Reason codes attached to decisions.
const (
	// ReasonNone marks an ordinary decision.
	ReasonNone Reason = ""

	// ReasonNoSignal means no backend produced a usable prediction.
	ReasonNoSignal Reason = "no_signal"

	// ReasonLowConfidence means the best candidate scored below the
	// configured minimum confidence.
	ReasonLowConfidence Reason = "low_confidence"

	// ReasonNotAllowed means the best candidate is outside the allow-list.
	ReasonNotAllowed Reason = "not_allowed"
)

// Candidate is one ranked language option in a Decision.
type Candidate struct {
	// Language is the candidate language code.
	Language string `json:"lang"`

	// Confidence is the candidate's final score clamped to [0, 1].
	Confidence float64 `json:"confidence"`
}

// Hint is the result of an external hint-dictionary lookup. The engine
// treats it as a synthetic, highly confident backend prediction.
type Hint struct {
	// Language is the language the matched hint words belong to.
	Language string `json:"language"`

	// Strength is the match strength reported by the lookup (0.0 to 1.0).
	Strength float64 `json:"strength"`
}

// Decision is the final, explainable outcome of the decision engine.
type Decision struct {
	// ID uniquely identifies this decision (a UUID).
	ID string `json:"id"`

	// Language is the chosen language, or LangUndetermined.
	Language string `json:"lang"`

	// Confidence is the winning score clamped to [0, 1].
	Confidence float64 `json:"confidence"`

	// Reliable reports whether at least one reliable prediction backed the
	// chosen language.
	Reliable bool `json:"reliable"`

	// Reason is set when the decision abstains or is otherwise qualified.
	Reason Reason `json:"reason,omitempty"`

	// Strategy names the voting strategy that produced the scores.
	Strategy string `json:"strategy"`

	// Candidates lists the top-k languages by final score. Equal scores keep
	// the order in which languages were first seen.
	Candidates []Candidate `json:"candidates,omitempty"`

	// Scores is the final score map after every stage ran.
	Scores *ScoreMap `json:"scores,omitempty"`

	// Timestamp records when this decision was created.
	Timestamp time.Time `json:"timestamp"`
}

// IsUndetermined reports whether the engine abstained.
func (d *Decision) IsUndetermined() bool { return d.Language == LangUndetermined }
