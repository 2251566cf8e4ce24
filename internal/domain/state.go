package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Key names a State entry and fixes the type of the value stored under it.
type Key[T any] struct{ name string }

// State keys used by the decision pipeline.
var (
	// KeyText stores the text whose language is being decided.
	KeyText = Key[string]{"text"}

	// KeyPredictions stores the collected backend predictions.
	KeyPredictions = Key[[]BackendPrediction]{"predictions"}

	// KeyWeights stores explicit per-backend weights supplied with the request.
	KeyWeights = Key[map[string]float64]{"weights"}

	// KeyScores stores the working score map that each stage refines.
	KeyScores = Key[*ScoreMap]{"scores"}

	// KeyContextBooster stores the conversation history used for boosting.
	KeyContextBooster = Key[ContextBooster]{"context_booster"}

	// KeyScriptLanguages stores languages consistent with the text's script.
	KeyScriptLanguages = Key[[]string]{"script_languages"}

	// KeyAllowedLanguages stores the allow-list of permitted outputs.
	KeyAllowedLanguages = Key[[]string]{"allowed_languages"}

	// KeyTopK stores how many ranked candidates the decision should carry.
	KeyTopK = Key[int]{"top_k"}

	// KeyStrategy stores the name of the voting strategy that ran.
	KeyStrategy = Key[string]{"strategy"}

	// KeyDecision stores the final decision produced by the verdict stage.
	KeyDecision = Key[*Decision]{"decision"}

	// Execution context keys for tracking metadata across the pipeline.

	// KeyEngineID stores the identifier of the engine running the pipeline.
	KeyEngineID = Key[string]{"execution.engine_id"}

	// KeyExecutionID stores a unique identifier for this specific execution
	// instance, useful for tracing and correlation.
	KeyExecutionID = Key[string]{"execution.execution_id"}

	// KeyStageTrace accumulates the names of stages that changed the scores.
	KeyStageTrace = Key[[]string]{"execution.stage_trace"}
)

// ContextBooster supplies a conversation-derived boost for a language.
// Implementations live outside the domain package.
type ContextBooster interface {
	ContextBoost(language string) float64
}

// cloner is implemented by values whose unexported fields must survive the
// copy performed by State.
type cloner interface {
	CloneValue() any
}

// copyValue returns a copy of value that shares no mutable memory with it.
// State only ever holds the value types named by its keys; anything else,
// such as a ContextBooster without CloneValue, is stored as given and must
// be treated as read-only by its owner.
func copyValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case cloner:
		return v.CloneValue()
	case []string:
		return slices.Clone(v)
	case map[string]float64:
		return maps.Clone(v)
	case []BackendPrediction:
		if v == nil {
			return v
		}
		out := make([]BackendPrediction, len(v))
		for i, p := range v {
			p.Probabilities = maps.Clone(p.Probabilities)
			out[i] = p
		}
		return out
	case *Decision:
		if v == nil {
			return v
		}
		d := *v
		d.Candidates = slices.Clone(v.Candidates)
		if v.Scores != nil {
			d.Scores = v.Scores.Clone()
		}
		return &d
	default:
		return value
	}
}

// State is the immutable bag of values that flows through the decision
// pipeline. Every update returns a new State and leaves the receiver
// untouched, so a State may be shared freely across goroutines.
type State struct {
	data map[string]any
}

// NewState creates a new empty State.
func NewState() State {
	return State{data: make(map[string]any)}
}

// Get retrieves the value stored under key. ok is false when the key is
// absent or holds a value of another type. The result is a copy.
//
// Example:
//
//	scores, ok := Get(state, KeyScores)
//	if !ok {
//	    // no stage has voted yet
//	}
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}
	val, ok := copyValue(value).(T)
	return val, ok
}

// With returns a new State holding value under key.
//
// Example:
//
//	next := With(state, KeyText, "Eu tenho um problema")
func With[T any](s State, key Key[T], value T) State {
	data := maps.Clone(s.data)
	data[key.name] = copyValue(value)
	return State{data: data}
}

// WithMultiple returns a new State with every entry of updates applied in
// one copy. Keys are the Name of the corresponding typed Key.
func (s State) WithMultiple(updates map[string]any) State {
	data := maps.Clone(s.data)
	for k, v := range updates {
		data[k] = copyValue(v)
	}
	return State{data: data}
}

// Keys returns the names of all stored keys in lexical order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s.data))
}

// String renders the state for debugging.
func (s State) String() string {
	var b strings.Builder
	b.WriteString("State{")
	for i, k := range s.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%v", k, s.data[k])
	}
	b.WriteByte('}')
	return b.String()
}

// ExecutionContext identifies one pipeline run for logs and traces.
type ExecutionContext struct {
	// EngineID names the engine running the pipeline.
	EngineID string

	// ExecutionID is unique per Decide call and becomes the decision ID.
	ExecutionID string
}

// WithExecutionContext stamps the state with ec and starts an empty stage
// trace. Call it once before the first stage.
func (s State) WithExecutionContext(ec ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyEngineID.name:    ec.EngineID,
		KeyExecutionID.name: ec.ExecutionID,
		KeyStageTrace.name:  []string{},
	})
}

// GetExecutionContext returns the execution metadata; ok is false unless
// both identifiers are present.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	engineID, ok1 := Get(s, KeyEngineID)
	executionID, ok2 := Get(s, KeyExecutionID)
	if !ok1 || !ok2 {
		return ExecutionContext{}, false
	}
	return ExecutionContext{EngineID: engineID, ExecutionID: executionID}, true
}

// WithStage records that stage adjusted the scores and stores the new map.
func (s State) WithStage(stage string, scores *ScoreMap) State {
	trace, _ := Get(s, KeyStageTrace)
	return s.WithMultiple(map[string]any{
		KeyScores.name:     scores,
		KeyStageTrace.name: append(trace, stage),
	})
}

// Name returns the string name of the key, used in error messages.
func (k Key[T]) Name() string { return k.name }
