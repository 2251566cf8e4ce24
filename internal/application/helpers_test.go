package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// recordingMetrics is a MetricsCollector that remembers every call.
type recordingMetrics struct {
	mu         sync.Mutex
	latencies  map[string][]map[string]string
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
	labels     map[string][]map[string]string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		latencies:  make(map[string][]map[string]string),
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		labels:     make(map[string][]map[string]string),
	}
}

func (m *recordingMetrics) RecordLatency(op string, _ time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[op] = append(m.latencies[op], labels)
}

func (m *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric] += value
	m.labels[metric] = append(m.labels[metric], labels)
}

func (m *recordingMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metric] = value
}

func (m *recordingMetrics) RecordHistogram(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metric] = append(m.histograms[metric], value)
}

// stubExecutable appends its ID to KeyStageTrace or fails with err.
type stubExecutable struct {
	id  string
	err error
}

func (s *stubExecutable) ID() string { return s.id }

func (s *stubExecutable) Execute(_ context.Context, state domain.State) (domain.State, error) {
	if s.err != nil {
		return state, s.err
	}
	scores, _ := domain.Get(state, domain.KeyScores)
	return state.WithStage(s.id, scores), nil
}

// stubUnit is a no-op unit for custom factory registration.
type stubUnit struct {
	name    string
	invalid bool
}

func (u *stubUnit) Name() string { return u.name }

func (u *stubUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	return state, nil
}

func (u *stubUnit) Validate() error {
	if u.invalid {
		return errors.New("stub misconfigured")
	}
	return nil
}

// fakeHints returns a fixed hint or error.
type fakeHints struct {
	hint  domain.Hint
	found bool
	err   error
}

func (f fakeHints) Lookup(context.Context, string) (domain.Hint, bool, error) {
	return f.hint, f.found, f.err
}

// fakeScripts reports a fixed script.
type fakeScripts struct {
	script    string
	languages []string
}

func (f fakeScripts) ScriptLanguages(string) (string, []string) {
	return f.script, f.languages
}

func pred(source, lang string, conf float64) domain.BackendPrediction {
	return domain.NewPrediction(source, lang, conf)
}

// staticBackend answers with a prediction for its name, or fails.
func staticBackend(name, lang string, conf float64) ports.Backend {
	return ports.BackendFunc{
		BackendName: name,
		DetectFunc: func(ctx context.Context, _ string) (domain.BackendPrediction, error) {
			if err := ctx.Err(); err != nil {
				return domain.BackendPrediction{}, err
			}
			return pred(name, lang, conf), nil
		},
	}
}

func failingBackend(name string, err error) ports.Backend {
	return ports.BackendFunc{
		BackendName: name,
		DetectFunc: func(context.Context, string) (domain.BackendPrediction, error) {
			return domain.BackendPrediction{}, ports.NewBackendError(name, "detect", err)
		},
	}
}

// slowBackend answers after delay unless ctx ends first.
func slowBackend(name, lang string, delay time.Duration) ports.Backend {
	return ports.BackendFunc{
		BackendName: name,
		DetectFunc: func(ctx context.Context, _ string) (domain.BackendPrediction, error) {
			select {
			case <-time.After(delay):
				return pred(name, lang, 0.9), nil
			case <-ctx.Done():
				return domain.BackendPrediction{}, ctx.Err()
			}
		},
	}
}
