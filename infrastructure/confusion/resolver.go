package confusion

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-langvote/internal/domain"
)

// validate is shared; validator.Validate caches struct metadata and is
// safe for concurrent use.
var validate = validator.New()

// ResolverConfig tunes how aggressively lexical evidence moves scores.
type ResolverConfig struct {
	// DecisiveMargin is the lead above which the top language is considered
	// a clear winner and left alone.
	DecisiveMargin float64 `yaml:"decisive_margin" json:"decisive_margin" toml:"decisive_margin" validate:"gte=0,lte=1"`

	// StepPerMatch is the score moved per marker hit of difference.
	StepPerMatch float64 `yaml:"step_per_match" json:"step_per_match" toml:"step_per_match" validate:"gt=0,lte=1"`

	// MaxAdjustment caps the score moved in a single resolution.
	MaxAdjustment float64 `yaml:"max_adjustment" json:"max_adjustment" toml:"max_adjustment" validate:"gt=0,lte=1"`
}

// DefaultResolverConfig returns the tuned defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		DecisiveMargin: 0.3,
		StepPerMatch:   0.1,
		MaxAdjustment:  0.3,
	}
}

// Adjustment describes what a resolution changed. A zero Delta means the
// scores passed through untouched.
type Adjustment struct {
	Group   string
	Boosted string
	Reduced string
	Hits    map[string]int
	Delta   float64
}

// Resolver uses discriminating words and character fragments to separate
// languages that detectors routinely confuse. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	config ResolverConfig
	groups []domain.ConfusionGroup
}

// NewResolver creates a Resolver over the builtin confusion table.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: resolver: %w", domain.ErrInvalidConfiguration, err)
	}
	return &Resolver{config: config, groups: domain.ConfusionGroups()}, nil
}

// Config returns the resolver's configuration.
func (r *Resolver) Config() ResolverConfig { return r.config }

// ConfusedGroup returns the stored group that contains every candidate.
// The full group is returned, so {no, da} yields {da, no, sv}.
func (r *Resolver) ConfusedGroup(candidates ...string) (domain.ConfusionGroup, bool) {
	for _, g := range r.groups {
		if g.Covers(candidates...) {
			return g, true
		}
	}
	return domain.ConfusionGroup{}, false
}

// DiscriminatingFeatures returns the marker words of a and b from the group
// containing both. ok is false when no such group exists.
func (r *Resolver) DiscriminatingFeatures(a, b string) (aWords, bWords []string, ok bool) {
	if a == b {
		return nil, nil, false
	}
	g, found := r.ConfusedGroup(a, b)
	if !found {
		return nil, nil, false
	}
	return append([]string(nil), g.Words[a]...), append([]string(nil), g.Words[b]...), true
}

// Resolve returns a copy of scores in which the leading pair of confusable
// languages has been nudged toward the one whose markers appear more often
// in text. Languages are never added or removed.
func (r *Resolver) Resolve(text string, scores *domain.ScoreMap) *domain.ScoreMap {
	out, _ := r.ResolveDetailed(text, scores)
	return out
}

// ResolveDetailed is Resolve plus a description of the applied change.
func (r *Resolver) ResolveDetailed(text string, scores *domain.ScoreMap) (*domain.ScoreMap, Adjustment) {
	out := scores.Clone()
	ranked := scores.Ranked()
	if len(ranked) < 2 {
		return out, Adjustment{}
	}
	first, second := ranked[0], ranked[1]
	if first.Score-second.Score > r.config.DecisiveMargin {
		return out, Adjustment{}
	}
	g, ok := r.ConfusedGroup(first.Language, second.Language)
	if !ok {
		return out, Adjustment{}
	}

	// A Caser is stateful, so each call folds with its own.
	caser := cases.Fold()
	folded := caser.String(text)
	words := tokenize(folded)
	markers := markerWords(caser, g)
	hits := map[string]int{
		first.Language:  countHits(caser, g, first.Language, folded, words, markers),
		second.Language: countHits(caser, g, second.Language, folded, words, markers),
	}
	adj := Adjustment{Group: g.Key(), Hits: hits}

	diff := hits[first.Language] - hits[second.Language]
	if diff == 0 {
		return out, adj
	}
	winner, loser := first.Language, second.Language
	if diff < 0 {
		winner, loser = loser, winner
		diff = -diff
	}

	delta := math.Min(float64(diff)*r.config.StepPerMatch, r.config.MaxAdjustment)
	out.Set(winner, out.Score(winner)+delta)
	out.Set(loser, math.Max(out.Score(loser)-delta, 0))

	adj.Boosted, adj.Reduced, adj.Delta = winner, loser, delta
	return out, adj
}

// countHits counts whole-word marker matches plus fragment occurrences.
// Letter fragments are only searched in words that are not markers, so a
// marker word never scores twice; punctuation fragments are searched in the
// whole text.
func countHits(caser cases.Caser, g domain.ConfusionGroup, lang, folded string, words map[string]int, markers map[string]struct{}) int {
	n := 0
	for _, w := range g.Words[lang] {
		n += words[caser.String(w)]
	}
	for _, f := range g.Fragments[lang] {
		f = caser.String(f)
		if !strings.ContainsFunc(f, unicode.IsLetter) {
			n += strings.Count(folded, f)
			continue
		}
		for word, count := range words {
			if _, ok := markers[word]; !ok {
				n += count * strings.Count(word, f)
			}
		}
	}
	return n
}

// markerWords returns the folded marker words of every member of g.
func markerWords(caser cases.Caser, g domain.ConfusionGroup) map[string]struct{} {
	set := make(map[string]struct{})
	for _, words := range g.Words {
		for _, w := range words {
			set[caser.String(w)] = struct{}{}
		}
	}
	return set
}

// tokenize splits text on anything that is not a letter or a mark and
// counts each word.
func tokenize(text string) map[string]int {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r)
	})
	counts := make(map[string]int, len(fields))
	for _, f := range fields {
		counts[f]++
	}
	return counts
}
