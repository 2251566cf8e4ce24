package units

import (
	"sync"
	"time"

	"github.com/ahrav/go-langvote/internal/domain"
)

// recordingMetrics captures counter increments for assertions.
type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	labels   []map[string]string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: make(map[string]float64)}
}

func (m *recordingMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (m *recordingMetrics) RecordGauge(string, float64, map[string]string)         {}
func (m *recordingMetrics) RecordHistogram(string, float64, map[string]string)     {}

func (m *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric] += value
	m.labels = append(m.labels, labels)
}

// mapBooster is a fixed ContextBooster.
type mapBooster map[string]float64

func (b mapBooster) ContextBoost(lang string) float64 { return b[lang] }

func pred(source, lang string, conf float64, reliable bool) domain.BackendPrediction {
	p := domain.NewPrediction(source, lang, conf)
	p.Reliable = reliable
	return p
}

func scoresOf(entries ...domain.ScoreEntry) *domain.ScoreMap {
	return domain.NewScoreMapFromEntries(entries...)
}

func stateWithScores(scores *domain.ScoreMap) domain.State {
	return domain.With(domain.NewState(), domain.KeyScores, scores)
}

func stageTrace(state domain.State) []string {
	t, _ := domain.Get(state, domain.KeyStageTrace)
	return t
}
