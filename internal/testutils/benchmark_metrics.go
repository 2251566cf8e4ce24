package testutils

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Tally counts outcomes for one slice of the dataset.
type Tally struct {
	Total     int
	Correct   int
	Abstained int
}

// Accuracy returns Correct / Total, or zero for an empty tally.
func (t Tally) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total)
}

// BenchmarkMetrics accumulates decision outcomes over a benchmark run. It is
// safe for concurrent use.
type BenchmarkMetrics struct {
	mu sync.Mutex

	overall      Tally
	errors       int
	byDifficulty map[string]*Tally
	byLanguage   map[string]*Tally

	// confusions counts "truth->decided" pairs for wrong determined decisions.
	confusions map[string]int

	latencies  []float64
	confidence []float64
	correct    []float64
}

// NewBenchmarkMetrics creates an empty metrics accumulator.
func NewBenchmarkMetrics() *BenchmarkMetrics {
	return &BenchmarkMetrics{
		byDifficulty: make(map[string]*Tally),
		byLanguage:   make(map[string]*Tally),
		confusions:   make(map[string]int),
	}
}

// RecordDecision records the outcome for one sample. A non-nil err counts
// as an error and nothing else is recorded.
func (m *BenchmarkMetrics) RecordDecision(
	sample BenchmarkSample,
	decision *domain.Decision,
	latency time.Duration,
	err error,
) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil || decision == nil {
		m.errors++
		return
	}

	abstained := decision.IsUndetermined()
	correct := decision.Language == sample.GroundTruth
	for _, t := range []*Tally{&m.overall, m.tally(m.byDifficulty, sample.Difficulty), m.tally(m.byLanguage, sample.GroundTruth)} {
		t.Total++
		if correct {
			t.Correct++
		}
		if abstained {
			t.Abstained++
		}
	}
	if !correct && !abstained {
		m.confusions[sample.GroundTruth+"->"+decision.Language]++
	}

	m.latencies = append(m.latencies, latency.Seconds())
	m.confidence = append(m.confidence, decision.Confidence)
	if correct {
		m.correct = append(m.correct, 1)
	} else {
		m.correct = append(m.correct, 0)
	}
}

func (m *BenchmarkMetrics) tally(by map[string]*Tally, key string) *Tally {
	if key == "" {
		key = "unspecified"
	}
	t, ok := by[key]
	if !ok {
		t = &Tally{}
		by[key] = t
	}
	return t
}

// Overall returns the tally over every recorded decision.
func (m *BenchmarkMetrics) Overall() Tally {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overall
}

// Errors returns the number of failed decisions.
func (m *BenchmarkMetrics) Errors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors
}

// ByDifficulty returns a copy of the per-difficulty tallies.
func (m *BenchmarkMetrics) ByDifficulty() map[string]Tally {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTallies(m.byDifficulty)
}

// ByLanguage returns a copy of the per-language tallies.
func (m *BenchmarkMetrics) ByLanguage() map[string]Tally {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTallies(m.byLanguage)
}

// Confusions returns a copy of the wrong-decision counts keyed "truth->decided".
func (m *BenchmarkMetrics) Confusions() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.confusions))
	for k, v := range m.confusions {
		out[k] = v
	}
	return out
}

// LatencyQuantile returns the q-quantile of decision latency.
func (m *BenchmarkMetrics) LatencyQuantile(q float64) time.Duration {
	m.mu.Lock()
	sorted := slices.Clone(m.latencies)
	m.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)
	return time.Duration(stat.Quantile(q, stat.Empirical, sorted, nil) * float64(time.Second))
}

// CalibrationGap returns the mean confidence minus accuracy. Positive values
// mean the engine is overconfident.
func (m *BenchmarkMetrics) CalibrationGap() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.confidence) == 0 {
		return 0
	}
	return stat.Mean(m.confidence, nil) - stat.Mean(m.correct, nil)
}

func copyTallies(by map[string]*Tally) map[string]Tally {
	out := make(map[string]Tally, len(by))
	for k, t := range by {
		out[k] = *t
	}
	return out
}

// WriteReport writes a plain-text summary of the run to w.
func (m *BenchmarkMetrics) WriteReport(w io.Writer) error {
	overall := m.Overall()
	byDifficulty := m.ByDifficulty()
	byLanguage := m.ByLanguage()
	confusions := m.Confusions()

	lines := []string{
		fmt.Sprintf("samples:     %d (errors %d)", overall.Total, m.Errors()),
		fmt.Sprintf("accuracy:    %.3f", overall.Accuracy()),
		fmt.Sprintf("abstained:   %d", overall.Abstained),
		fmt.Sprintf("calibration: %+.3f", m.CalibrationGap()),
		fmt.Sprintf("latency:     p50=%s p95=%s", m.LatencyQuantile(0.5), m.LatencyQuantile(0.95)),
	}
	for _, d := range []string{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if t, ok := byDifficulty[d]; ok {
			lines = append(lines, fmt.Sprintf("  %-8s %.3f (%d/%d)", d, t.Accuracy(), t.Correct, t.Total))
		}
	}
	for _, lang := range sortedKeys(byLanguage) {
		t := byLanguage[lang]
		lines = append(lines, fmt.Sprintf("  %-8s %.3f (%d/%d)", lang, t.Accuracy(), t.Correct, t.Total))
	}
	for _, pair := range sortedKeys(confusions) {
		lines = append(lines, fmt.Sprintf("  confused %s: %d", pair, confusions[pair]))
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecideFunc decides the language of one benchmark sample.
type DecideFunc func(ctx context.Context, sample BenchmarkSample) (*domain.Decision, error)

// RunBenchmark feeds every sample of dataset to decide with at most
// concurrency samples in flight. Decision errors are recorded, not
// returned; only context cancellation aborts the run.
func RunBenchmark(
	ctx context.Context,
	dataset *BenchmarkDataset,
	decide DecideFunc,
	concurrency int,
) (*BenchmarkMetrics, error) {
	metrics := NewBenchmarkMetrics()
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, sample := range dataset.Samples {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			decision, err := decide(gctx, sample)
			metrics.RecordDecision(sample, decision, time.Since(start), err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return metrics, err
	}
	if err := ctx.Err(); err != nil {
		return metrics, err
	}
	return metrics, nil
}
