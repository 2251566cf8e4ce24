package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
	"sort"
	"strings"
)

// ScoreEntry pairs a language code with its score.
type ScoreEntry struct {
	Language string  `json:"language"`
	Score    float64 `json:"score"`
}

// ScoreMap maps language codes to non-negative scores while remembering
// the order in which languages were first inserted. Scores need not sum to
// one. Every ordering decision made over a ScoreMap (argmax, ranking,
// top-two) walks languages in insertion order, so exact ties always resolve
// to the first-inserted language.
//
// A ScoreMap is not safe for concurrent mutation. Pipeline stages never
// mutate their input; they Clone and return the copy.
type ScoreMap struct {
	order  []string
	scores map[string]float64
}

// NewScoreMap creates an empty ScoreMap.
func NewScoreMap() *ScoreMap {
	return &ScoreMap{scores: make(map[string]float64)}
}

// NewScoreMapFromEntries creates a ScoreMap holding entries in the given order.
// Later duplicates overwrite the score but keep the first position.
func NewScoreMapFromEntries(entries ...ScoreEntry) *ScoreMap {
	sm := NewScoreMap()
	for _, e := range entries {
		sm.Set(e.Language, e.Score)
	}
	return sm
}

// Set assigns score to lang, appending lang to the order when it is new.
// Negative and NaN scores are stored as zero.
func (sm *ScoreMap) Set(lang string, score float64) {
	if math.IsNaN(score) || score < 0 {
		score = 0
	}
	if _, ok := sm.scores[lang]; !ok {
		sm.order = append(sm.order, lang)
	}
	sm.scores[lang] = score
}

// Add increments the score of lang by delta, inserting it when absent.
func (sm *ScoreMap) Add(lang string, delta float64) {
	sm.Set(lang, sm.scores[lang]+delta)
}

// Delete removes lang from the map.
func (sm *ScoreMap) Delete(lang string) {
	if _, ok := sm.scores[lang]; !ok {
		return
	}
	delete(sm.scores, lang)
	sm.order = slices.DeleteFunc(sm.order, func(l string) bool { return l == lang })
}

// Get returns the score of lang and whether it is present.
func (sm *ScoreMap) Get(lang string) (float64, bool) {
	if sm == nil {
		return 0, false
	}
	s, ok := sm.scores[lang]
	return s, ok
}

// Score returns the score of lang, or zero when absent.
func (sm *ScoreMap) Score(lang string) float64 {
	s, _ := sm.Get(lang)
	return s
}

// Has reports whether lang is present.
func (sm *ScoreMap) Has(lang string) bool {
	_, ok := sm.Get(lang)
	return ok
}

// Len returns the number of languages in the map.
func (sm *ScoreMap) Len() int {
	if sm == nil {
		return 0
	}
	return len(sm.order)
}

// Languages returns the languages in insertion order.
func (sm *ScoreMap) Languages() []string {
	if sm == nil {
		return nil
	}
	return slices.Clone(sm.order)
}

// Entries returns all entries in insertion order.
func (sm *ScoreMap) Entries() []ScoreEntry {
	if sm == nil {
		return nil
	}
	entries := make([]ScoreEntry, 0, len(sm.order))
	for _, lang := range sm.order {
		entries = append(entries, ScoreEntry{Language: lang, Score: sm.scores[lang]})
	}
	return entries
}

// Map returns a plain map copy of the scores.
func (sm *ScoreMap) Map() map[string]float64 {
	out := make(map[string]float64, sm.Len())
	for _, e := range sm.Entries() {
		out[e.Language] = e.Score
	}
	return out
}

// Total returns the sum of all scores.
func (sm *ScoreMap) Total() float64 {
	var total float64
	for _, e := range sm.Entries() {
		total += e.Score
	}
	return total
}

// Clone returns a deep copy of the map. Cloning a nil map yields an empty one.
func (sm *ScoreMap) Clone() *ScoreMap {
	out := NewScoreMap()
	if sm == nil {
		return out
	}
	out.order = slices.Clone(sm.order)
	for k, v := range sm.scores {
		out.scores[k] = v
	}
	return out
}

// CloneValue lets State store ScoreMaps without losing unexported fields.
func (sm *ScoreMap) CloneValue() any {
	if sm == nil {
		return sm
	}
	return sm.Clone()
}

// Equal reports whether both maps hold the same languages with identical
// scores. Insertion order is not compared.
func (sm *ScoreMap) Equal(other *ScoreMap) bool {
	if sm.Len() != other.Len() {
		return false
	}
	for _, e := range sm.Entries() {
		s, ok := other.Get(e.Language)
		if !ok || s != e.Score {
			return false
		}
	}
	return true
}

// Max returns the first entry holding the maximal score.
func (sm *ScoreMap) Max() (ScoreEntry, bool) {
	var best ScoreEntry
	found := false
	for _, e := range sm.Entries() {
		if !found || e.Score > best.Score {
			best = e
			found = true
		}
	}
	return best, found
}

// Ranked returns all entries sorted by descending score. Equal scores keep
// their insertion order.
func (sm *ScoreMap) Ranked() []ScoreEntry {
	entries := sm.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

// Top returns at most k highest-ranked entries. A non-positive k returns
// every entry.
func (sm *ScoreMap) Top(k int) []ScoreEntry {
	ranked := sm.Ranked()
	if k <= 0 || k >= len(ranked) {
		return ranked
	}
	return ranked[:k]
}

// MarshalJSON encodes the map as a JSON object whose keys follow insertion
// order.
func (sm *ScoreMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range sm.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Language)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String renders the map in insertion order for debugging.
func (sm *ScoreMap) String() string {
	parts := make([]string, 0, sm.Len())
	for _, e := range sm.Entries() {
		parts = append(parts, e.Language+":"+formatScore(e.Score))
	}
	return "ScoreMap{" + strings.Join(parts, " ") + "}"
}

func formatScore(s float64) string {
	b, _ := json.Marshal(math.Round(s*1e4) / 1e4)
	return string(b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
