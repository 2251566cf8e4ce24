// Package confusion scores how closely two languages are related and
// repairs score maps in which a detector has confused near-identical
// languages such as Spanish and Portuguese.
package confusion

import (
	"slices"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Similarity scores returned by SimilarityScore.
const (
	SimilarityIdentical  = 1.0
	SimilarityConfused   = 0.9
	SimilaritySameFamily = 0.6
	SimilarityUnrelated  = 0.0
)

// Similarity answers relatedness questions over the static family and
// confusion tables. It holds no mutable state and is safe for concurrent use.
type Similarity struct {
	groups []domain.ConfusionGroup
}

// NewSimilarity returns a Similarity backed by the builtin tables.
func NewSimilarity() *Similarity {
	return &Similarity{groups: domain.ConfusionGroups()}
}

// Family returns the family label of code; ok is false for unknown codes.
func (s *Similarity) Family(code string) (string, bool) {
	return domain.LanguageFamily(code)
}

// AreRelated reports whether a and b are distinct languages that share a
// family or a confusion group.
func (s *Similarity) AreRelated(a, b string) bool {
	if a == b {
		return false
	}
	return s.confused(a, b) || s.sameFamily(a, b)
}

// RelatedLanguages returns every language sharing a family or a confusion
// group with code, excluding code itself, in lexical order.
func (s *Similarity) RelatedLanguages(code string) []string {
	seen := make(map[string]struct{})
	if family, ok := s.Family(code); ok {
		for _, m := range domain.FamilyMembers(family) {
			seen[m] = struct{}{}
		}
	}
	for _, g := range s.groups {
		if g.Contains(code) {
			for _, m := range g.Languages {
				seen[m] = struct{}{}
			}
		}
	}
	delete(seen, code)

	related := make([]string, 0, len(seen))
	for m := range seen {
		related = append(related, m)
	}
	slices.Sort(related)
	return related
}

// SimilarityScore rates how alike two languages are: 1.0 when identical,
// 0.9 when they share a confusion group, 0.6 when they share a family and
// 0.0 otherwise.
func (s *Similarity) SimilarityScore(a, b string) float64 {
	switch {
	case a == b:
		return SimilarityIdentical
	case s.confused(a, b):
		return SimilarityConfused
	case s.sameFamily(a, b):
		return SimilaritySameFamily
	default:
		return SimilarityUnrelated
	}
}

func (s *Similarity) confused(a, b string) bool {
	for _, g := range s.groups {
		if g.Covers(a, b) {
			return true
		}
	}
	return false
}

func (s *Similarity) sameFamily(a, b string) bool {
	fa, ok := s.Family(a)
	if !ok {
		return false
	}
	fb, ok := s.Family(b)
	return ok && fa == fb
}
