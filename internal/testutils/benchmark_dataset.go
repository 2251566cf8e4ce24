package testutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-langvote/internal/domain"
)

// ErrInvalidDataset is returned when a benchmark dataset fails validation.
var ErrInvalidDataset = errors.New("invalid benchmark dataset")

var datasetValidator = validator.New()

// BenchmarkDataset is a collection of labelled messages with recorded backend
// predictions for measuring decision accuracy.
type BenchmarkDataset struct {
	// Samples contains every labelled message.
	Samples []BenchmarkSample `json:"samples"`

	// Metadata describes the dataset itself.
	Metadata DatasetMetadata `json:"metadata"`
}

// BenchmarkSample is one message with its known language and the
// predictions backends made for it.
type BenchmarkSample struct {
	// ID uniquely identifies this sample in the dataset.
	ID string `json:"id"`

	// Text is the message being classified.
	Text string `json:"text"`

	// GroundTruth is the language the message is actually written in.
	GroundTruth string `json:"ground_truth"`

	// Predictions are the recorded backend outputs.
	Predictions []domain.BackendPrediction `json:"predictions"`

	// Difficulty indicates how much the backends disagree.
	Difficulty string `json:"difficulty,omitempty"`
}

// DatasetMetadata contains provenance information for a dataset.
type DatasetMetadata struct {
	Name        string `json:"name" validate:"required"`
	Version     string `json:"version" validate:"required"`
	License     string `json:"license" validate:"required"`
	Source      string `json:"source" validate:"required"`
	Description string `json:"description"`
	Seed        uint64 `json:"seed,omitempty"`
	Size        int    `json:"sample_count" validate:"gt=0"`
}

// LoadBenchmarkDataset loads and validates a benchmark dataset from a JSON file.
func LoadBenchmarkDataset(path string) (*BenchmarkDataset, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var dataset BenchmarkDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}

	if err := ValidateBenchmarkDataset(&dataset); err != nil {
		return nil, fmt.Errorf("dataset validation failed: %w", err)
	}
	return &dataset, nil
}

// ValidateBenchmarkDataset checks completeness and consistency of a dataset.
func ValidateBenchmarkDataset(dataset *BenchmarkDataset) error {
	if dataset == nil {
		return fmt.Errorf("%w: dataset is nil", ErrInvalidDataset)
	}

	if err := datasetValidator.Struct(dataset.Metadata); err != nil {
		return fmt.Errorf("%w: metadata: %w", ErrInvalidDataset, err)
	}
	if !isCompatibleLicense(dataset.Metadata.License) {
		return fmt.Errorf("%w: license %s is not in the list of compatible licenses",
			ErrInvalidDataset, dataset.Metadata.License)
	}

	if len(dataset.Samples) < MinimumDatasetSize {
		return fmt.Errorf("%w: dataset must contain at least %d samples, found %d",
			ErrInvalidDataset, MinimumDatasetSize, len(dataset.Samples))
	}
	if dataset.Metadata.Size != len(dataset.Samples) {
		return fmt.Errorf("%w: metadata size (%d) doesn't match actual sample count (%d)",
			ErrInvalidDataset, dataset.Metadata.Size, len(dataset.Samples))
	}

	seenIDs := make(map[string]bool, len(dataset.Samples))
	for i := range dataset.Samples {
		s := &dataset.Samples[i]
		if err := validateSample(s); err != nil {
			return fmt.Errorf("%w: sample %d: %w", ErrInvalidDataset, i, err)
		}
		if seenIDs[s.ID] {
			return fmt.Errorf("%w: duplicate sample ID: %s", ErrInvalidDataset, s.ID)
		}
		seenIDs[s.ID] = true
	}
	return nil
}

func validateSample(s *BenchmarkSample) error {
	if s.ID == "" {
		return errors.New("sample ID is required")
	}
	if strings.TrimSpace(s.Text) == "" {
		return errors.New("sample text is required")
	}
	if !domain.IsDetermined(s.GroundTruth) {
		return fmt.Errorf("ground truth %q is not a language", s.GroundTruth)
	}
	if len(s.Predictions) < MinimumPredictionCount {
		return fmt.Errorf("sample must have at least %d predictions, found %d",
			MinimumPredictionCount, len(s.Predictions))
	}
	for j, p := range s.Predictions {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("prediction %d: %w", j, err)
		}
	}
	return nil
}

// DatasetStatistics provides summary statistics about a benchmark dataset.
type DatasetStatistics struct {
	TotalSamples    int
	LanguageCount   map[string]int
	DifficultyCount map[string]int

	// AvgPredictions is the mean number of predictions per sample.
	AvgPredictions float64

	// Disagreements counts samples where at least one backend missed the
	// ground truth.
	Disagreements int
}

// ComputeDatasetStatistics analyzes a benchmark dataset and returns summary statistics.
func ComputeDatasetStatistics(dataset *BenchmarkDataset) *DatasetStatistics {
	stats := &DatasetStatistics{
		TotalSamples:    len(dataset.Samples),
		LanguageCount:   make(map[string]int),
		DifficultyCount: make(map[string]int),
	}

	total := 0
	for _, s := range dataset.Samples {
		stats.LanguageCount[s.GroundTruth]++
		difficulty := s.Difficulty
		if difficulty == "" {
			difficulty = "unspecified"
		}
		stats.DifficultyCount[difficulty]++

		total += len(s.Predictions)
		for _, p := range s.Predictions {
			if p.Language != s.GroundTruth {
				stats.Disagreements++
				break
			}
		}
	}

	if stats.TotalSamples > 0 {
		stats.AvgPredictions = float64(total) / float64(stats.TotalSamples)
	}
	return stats
}

func isCompatibleLicense(license string) bool {
	return CompatibleLicenses[strings.ToLower(strings.TrimSpace(license))]
}

// SaveBenchmarkDataset writes a benchmark dataset to a JSON file, creating
// parent directories as needed.
func SaveBenchmarkDataset(dataset *BenchmarkDataset, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write dataset file: %w", err)
	}
	return nil
}
