// Package testutils provides benchmark datasets and accuracy metrics for
// exercising the decision engine against recorded backend behaviour. These
// components are intended for internal test suites and tooling and are not
// part of the public API.
package testutils

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/ahrav/go-langvote/internal/domain"
)

// GenerateSampleBenchmarkDataset creates a synthetic dataset of size samples.
// The same seed always yields the same dataset.
//
// Roughly half the samples are easy, three in ten medium and the rest hard.
// Every sample's predictions come from BenchmarkBackends in order.
func GenerateSampleBenchmarkDataset(size int, seed uint64) *BenchmarkDataset {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	dataset := &BenchmarkDataset{
		Metadata: DatasetMetadata{
			Name:        "Synthetic Confusable Languages",
			Version:     "1.0.0",
			License:     "MIT",
			Source:      "Generated for testing",
			Description: "Chat messages in commonly confused languages with simulated backend predictions.",
			Seed:        seed,
			Size:        size,
		},
		Samples: make([]BenchmarkSample, 0, size),
	}

	langs := PhraseLanguages()
	for i := range size {
		lang := langs[rng.IntN(len(langs))]

		var difficulty string
		switch roll := rng.IntN(10); {
		case roll < 5:
			difficulty = DifficultyEasy
		case roll < 8:
			difficulty = DifficultyMedium
		default:
			difficulty = DifficultyHard
		}

		dataset.Samples = append(dataset.Samples, generateSample(rng, i, lang, difficulty))
	}
	return dataset
}

func generateSample(rng *rand.Rand, index int, lang, difficulty string) BenchmarkSample {
	sibling := confusableSibling(rng, lang)
	n := len(BenchmarkBackends)

	// wrong[i] marks backends that report the sibling instead of lang.
	wrong := make([]bool, n)
	switch difficulty {
	case DifficultyMedium:
		wrong[rng.IntN(n)] = true
	case DifficultyHard:
		for i := range wrong {
			wrong[i] = true
		}
		wrong[rng.IntN(n)] = false
	}

	predictions := make([]domain.BackendPrediction, 0, n)
	correctRank := 0
	for i, backend := range BenchmarkBackends {
		if wrong[i] {
			predictions = append(predictions, simulatedPrediction(rng, backend, sibling, lang, difficulty, false, 0))
			continue
		}
		predictions = append(predictions, simulatedPrediction(rng, backend, lang, sibling, difficulty, true, correctRank))
		correctRank++
	}

	return BenchmarkSample{
		ID:          fmt.Sprintf("s%d", index),
		Text:        RandomPhrase(rng, lang),
		GroundTruth: lang,
		Predictions: predictions,
		Difficulty:  difficulty,
	}
}

// simulatedPrediction draws a confidence for a backend picking lang, with the
// remaining mass assigned to other. Correct picks on medium samples get
// decreasing bands by rank so the majority stays clearly ahead.
func simulatedPrediction(
	rng *rand.Rand,
	backend, lang, other, difficulty string,
	correct bool,
	rank int,
) domain.BackendPrediction {
	var lo, hi float64
	switch {
	case difficulty == DifficultyEasy:
		lo, hi = 0.80, 0.95
	case difficulty == DifficultyMedium && correct && rank == 0:
		lo, hi = 0.75, 0.85
	case difficulty == DifficultyMedium && correct:
		lo, hi = 0.65, 0.75
	case difficulty == DifficultyMedium:
		lo, hi = 0.45, 0.55
	case correct:
		lo, hi = 0.50, 0.60
	default:
		lo, hi = 0.55, 0.65
	}
	conf := lo + rng.Float64()*(hi-lo)

	return domain.BackendPrediction{
		Source:     backend,
		Language:   lang,
		Confidence: conf,
		Probabilities: map[string]float64{
			lang:  conf,
			other: (1 - conf) * 0.8,
		},
		Reliable: true,
	}
}

// confusableSibling picks another member of lang's confusion group.
func confusableSibling(rng *rand.Rand, lang string) string {
	for _, g := range domain.ConfusionGroups() {
		if !g.Contains(lang) {
			continue
		}
		others := slices.DeleteFunc(slices.Clone(g.Languages), func(l string) bool { return l == lang })
		return others[rng.IntN(len(others))]
	}
	return domain.LangUnknown
}
