// Package conversation tracks the languages detected over the recent turns
// of a conversation and turns that history into a small score boost for
// the next decision.
//
// A Context is plain mutable state owned by one session. It performs no
// locking; Store provides per-session serialization for callers that
// handle many sessions concurrently.
package conversation

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Defaults applied when options or snapshots leave a field unset.
const (
	DefaultMaxTurns    = 2
	DefaultDecayFactor = 0.9
)

// Boost formula constants.
const (
	distributionBoost = 0.15
	streakStep        = 0.02
	maxStreakBonus    = 0.1
	maxBoost          = 0.3
	minStreak         = 2
)

// Package-level validator instance for option validation.
var validate = validator.New()

// timeSource stamps new turns.
var timeSource = time.Now

var _ domain.ContextBooster = (*Context)(nil)

// Turn is one recorded message. An empty Language means detection failed.
type Turn struct {
	Text       string    `json:"text" msgpack:"text"`
	Language   string    `json:"detected_language,omitempty" msgpack:"detected_language,omitempty"`
	Confidence float64   `json:"confidence" msgpack:"confidence"`
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Options configures a Context.
type Options struct {
	// MaxTurns bounds the history; the oldest turn is evicted first.
	MaxTurns int `yaml:"max_turns" json:"max_turns" toml:"max_turns" validate:"min=1"`

	// DecayFactor down-weights older turns exponentially.
	DecayFactor float64 `yaml:"decay_factor" json:"decay_factor" toml:"decay_factor" validate:"gt=0,lte=1"`
}

// DefaultOptions returns Options with the default history size and decay.
func DefaultOptions() Options {
	return Options{MaxTurns: DefaultMaxTurns, DecayFactor: DefaultDecayFactor}
}

// withDefaults fills zero fields with defaults.
func (o Options) withDefaults() Options {
	if o.MaxTurns == 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	if o.DecayFactor == 0 {
		o.DecayFactor = DefaultDecayFactor
	}
	return o
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: conversation: %w", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

// Context is a bounded, oldest-first history of conversation turns.
type Context struct {
	opts  Options
	turns []Turn
	now   func() time.Time
}

// New creates an empty Context. Zero option fields take their defaults.
func New(opts Options) (*Context, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Context{opts: opts, now: timeSource}, nil
}

// NewDefault creates an empty Context with default options.
func NewDefault() *Context {
	return &Context{opts: DefaultOptions(), now: timeSource}
}

// MaxTurns returns the history capacity.
func (c *Context) MaxTurns() int { return c.opts.MaxTurns }

// DecayFactor returns the recency decay factor.
func (c *Context) DecayFactor() float64 { return c.opts.DecayFactor }

// AddTurn records a message and evicts the oldest turn once the history
// exceeds MaxTurns. Confidence is clamped to [0, 1].
func (c *Context) AddTurn(text, language string, confidence float64) {
	c.appendTurn(Turn{
		Text:       text,
		Language:   language,
		Confidence: clampUnit(confidence),
		Timestamp:  c.now(),
	})
}

func (c *Context) appendTurn(t Turn) {
	c.turns = append(c.turns, t)
	if over := len(c.turns) - c.opts.MaxTurns; over > 0 {
		c.turns = slices.Delete(c.turns, 0, over)
	}
}

// Turns returns a copy of the history, oldest first.
func (c *Context) Turns() []Turn { return slices.Clone(c.turns) }

// LastTurn returns the most recent turn.
func (c *Context) LastTurn() (Turn, bool) {
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// Len returns the number of turns held.
func (c *Context) Len() int { return len(c.turns) }

// Clear drops every turn.
func (c *Context) Clear() { c.turns = nil }

// LanguageDistribution weights each turn by decay^(age) * confidence, where
// age is 0 for the newest turn, and normalizes the per-language sums to 1.
// Turns without a determined language are skipped. Languages appear in the
// order of their oldest surviving turn.
func (c *Context) LanguageDistribution() *domain.ScoreMap {
	weights := domain.NewScoreMap()
	var total float64
	n := len(c.turns)
	for i, t := range c.turns {
		if !domain.IsDetermined(t.Language) {
			continue
		}
		w := math.Pow(c.opts.DecayFactor, float64(n-1-i)) * t.Confidence
		weights.Add(t.Language, w)
		total += w
	}
	if total <= 0 {
		return domain.NewScoreMap()
	}
	dist := domain.NewScoreMap()
	for _, e := range weights.Entries() {
		dist.Set(e.Language, e.Score/total)
	}
	return dist
}

// DominantLanguage returns the language with the largest share of the
// distribution. On exact ties the first maximal language in distribution
// order wins.
func (c *Context) DominantLanguage() (string, bool) {
	best, ok := c.LanguageDistribution().Max()
	return best.Language, ok
}

// LanguageStreak counts consecutive turns, newest first, that share the
// newest turn's language. It returns ("", 0) when the history is empty or
// the newest turn has no determined language.
func (c *Context) LanguageStreak() (string, int) {
	last, ok := c.LastTurn()
	if !ok || !domain.IsDetermined(last.Language) {
		return "", 0
	}
	count := 0
	for i := len(c.turns) - 1; i >= 0 && c.turns[i].Language == last.Language; i-- {
		count++
	}
	return last.Language, count
}

// ContextBoost returns a bonus in [0, 0.3] for language: 0.15 times its
// share of the distribution, plus 0.02 per streak turn (capped at 0.1)
// when language is on a streak of at least two.
func (c *Context) ContextBoost(language string) float64 {
	share, ok := c.LanguageDistribution().Get(language)
	if !ok {
		return 0
	}
	boost := share * distributionBoost
	if lang, count := c.LanguageStreak(); lang == language && count >= minStreak {
		boost += math.Min(float64(count)*streakStep, maxStreakBonus)
	}
	return math.Min(boost, maxBoost)
}

// Clone returns an independent copy of the context.
func (c *Context) Clone() *Context {
	return &Context{opts: c.opts, turns: slices.Clone(c.turns), now: c.now}
}

// CloneValue lets a Context travel through domain.State intact.
func (c *Context) CloneValue() any {
	if c == nil {
		return c
	}
	return c.Clone()
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
