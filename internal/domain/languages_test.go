package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageFamily(t *testing.T) {
	tests := []struct {
		code   string
		family string
		ok     bool
	}{
		{"es", FamilyRomance, true},
		{"sv", FamilyGermanic, true},
		{"uk", FamilySlavic, true},
		{"ja", FamilyCJK, true},
		{"ms", FamilyAustronesian, true},
		{"xx", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			family, ok := LanguageFamily(tt.code)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.family, family)
		})
	}

	assert.Empty(t, FamilyMembers("nope"))
	assert.Equal(t, []string{"ja", "ko", "zh"}, FamilyMembers(FamilyCJK))
}

func TestConfusionGroups(t *testing.T) {
	groups := ConfusionGroups()
	require.NotEmpty(t, groups)

	keys := make(map[string]bool)
	for _, g := range groups {
		assert.GreaterOrEqual(t, len(g.Languages), 2, "group %s must have two members", g.Key())
		assert.False(t, keys[g.Key()], "duplicate group %s", g.Key())
		keys[g.Key()] = true

		// A marker listed for one member must not appear for another, or
		// it would push both members equally.
		owner := make(map[string]string)
		for lang, words := range g.Words {
			for _, w := range words {
				prev, dup := owner["w:"+w]
				assert.False(t, dup, "word %q shared by %s and %s", w, prev, lang)
				owner["w:"+w] = lang
			}
		}
		for lang, frags := range g.Fragments {
			for _, f := range frags {
				prev, dup := owner["f:"+f]
				assert.False(t, dup, "fragment %q shared by %s and %s", f, prev, lang)
				owner["f:"+f] = lang
			}
		}
	}

	for _, g := range groups {
		var frags []string
		for _, fs := range g.Fragments {
			frags = append(frags, fs...)
		}
		for i, a := range frags {
			for j, b := range frags {
				if i != j {
					assert.NotContains(t, a, b, "fragment %q overlaps %q in %s", a, b, g.Key())
				}
			}
		}
	}

	assert.True(t, keys["es|pt"])
	assert.True(t, keys["da|no|sv"])
	assert.True(t, keys["ja|zh"])
}

func TestConfusionGroup_Covers(t *testing.T) {
	g := newConfusionGroup(map[string][]string{"no": nil, "da": nil, "sv": nil}, nil)

	assert.Equal(t, "da|no|sv", g.Key())
	assert.True(t, g.Covers("no", "da"))
	assert.False(t, g.Covers("no", "en"))
	assert.False(t, g.Covers())
}

func TestReliabilityTable(t *testing.T) {
	t.Run("builtin ratings", func(t *testing.T) {
		table := DefaultReliabilityTable()
		assert.Equal(t, 5, table.Rating("fasttext"))
		assert.Equal(t, 2, table.Rating("langid"))
		assert.Equal(t, DefaultReliability, table.Rating("homegrown"))
		assert.InDelta(t, 0.8, table.Weight("cld3"), 1e-9)
	})

	t.Run("overrides", func(t *testing.T) {
		table, err := NewReliabilityTable(map[string]int{"homegrown": 1, "langid": 4})
		require.NoError(t, err)
		assert.Equal(t, 1, table.Rating("homegrown"))
		assert.Equal(t, 4, table.Rating("langid"))
		assert.Equal(t, 5, table.Rating("lingua"))
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := NewReliabilityTable(map[string]int{"bad": 6, "": 3})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Errors, 2)
	})

	t.Run("nil table falls back to default", func(t *testing.T) {
		var table *ReliabilityTable
		assert.Equal(t, DefaultReliability, table.Rating("fasttext"))
	})
}
