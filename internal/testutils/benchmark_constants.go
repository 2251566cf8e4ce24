package testutils

// Dataset size constants
const (
	// MinimumDatasetSize is the minimum number of samples required for a valid benchmark dataset.
	MinimumDatasetSize = 50

	// DefaultDatasetSize is the number of samples generated when no size is given.
	DefaultDatasetSize = 500

	// MinimumPredictionCount is the minimum number of backend predictions per sample.
	MinimumPredictionCount = 1
)

// Difficulty levels
const (
	// DifficultyEasy samples have every backend agreeing on the truth.
	DifficultyEasy = "easy"

	// DifficultyMedium samples have one backend pick a confusable sibling.
	DifficultyMedium = "medium"

	// DifficultyHard samples have most backends pick a confusable sibling
	// with more confidence than the rest; only the text's markers point at
	// the truth.
	DifficultyHard = "hard"
)

// BenchmarkBackends names the simulated backends in prediction order.
var BenchmarkBackends = []string{"fasttext", "lingua", "langid"}

// CompatibleLicenses lists licenses accepted for benchmark datasets.
var CompatibleLicenses = map[string]bool{
	"mit":           true,
	"apache-2.0":    true,
	"apache 2.0":    true,
	"cc-by":         true,
	"cc-by-4.0":     true,
	"cc0":           true,
	"public domain": true,
	"bsd":           true,
	"bsd-3-clause":  true,
}
