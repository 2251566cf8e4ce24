package main

import (
	"context"
	"fmt"
	"time"

	"fortio.org/safecast"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-langvote/internal/application"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/testutils"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Generate or run accuracy benchmarks",
}

var benchGenerateCmd = &cobra.Command{
	Use:   "generate <output.json>",
	Short: "Write a synthetic benchmark dataset of confusable languages",
	Args:  cobra.ExactArgs(1),
	RunE:  runBenchGenerate,
}

var benchRunCmd = &cobra.Command{
	Use:   "run <dataset.json>",
	Short: "Run the engine over a benchmark dataset and report accuracy",
	Args:  cobra.ExactArgs(1),
	RunE:  runBenchRun,
}

func init() {
	benchGenerateCmd.Flags().Int("size", testutils.DefaultDatasetSize, "number of samples to generate")
	benchGenerateCmd.Flags().Uint64("seed", 0, "generator seed (0 picks one from the clock)")
	benchRunCmd.Flags().Int("concurrency", 8, "samples decided in parallel")

	benchCmd.AddCommand(benchGenerateCmd)
	benchCmd.AddCommand(benchRunCmd)
}

func runBenchGenerate(cmd *cobra.Command, args []string) error {
	size, err := cmd.Flags().GetInt("size")
	if err != nil {
		return fmt.Errorf("failed to get size flag: %w", err)
	}
	if size < testutils.MinimumDatasetSize {
		return fmt.Errorf("size must be at least %d", testutils.MinimumDatasetSize)
	}
	seed, err := cmd.Flags().GetUint64("seed")
	if err != nil {
		return fmt.Errorf("failed to get seed flag: %w", err)
	}
	if seed == 0 {
		if seed, err = safecast.Conv[uint64](time.Now().UnixNano()); err != nil {
			return fmt.Errorf("failed to derive seed: %w", err)
		}
	}

	dataset := testutils.GenerateSampleBenchmarkDataset(size, seed)
	if err := testutils.SaveBenchmarkDataset(dataset, args[0]); err != nil {
		return err
	}

	stats := testutils.ComputeDatasetStatistics(dataset)
	out := cmd.OutOrStdout()
	color.New(color.FgGreen, color.Bold).Fprintf(out, "✓ %s\n", args[0])
	fmt.Fprintf(out, "  samples:       %d (seed %d)\n", stats.TotalSamples, seed)
	fmt.Fprintf(out, "  difficulties:  %v\n", stats.DifficultyCount)
	fmt.Fprintf(out, "  languages:     %v\n", stats.LanguageCount)
	fmt.Fprintf(out, "  disagreements: %d\n", stats.Disagreements)
	return nil
}

func runBenchRun(cmd *cobra.Command, args []string) error {
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return fmt.Errorf("failed to get concurrency flag: %w", err)
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dataset, err := testutils.LoadBenchmarkDataset(args[0])
	if err != nil {
		return err
	}
	engine, err := loadEngine(cmd, application.WithLogger(logger))
	if err != nil {
		return err
	}

	decide := func(ctx context.Context, s testutils.BenchmarkSample) (*domain.Decision, error) {
		return engine.Decide(ctx, application.Request{Text: s.Text, Predictions: s.Predictions})
	}
	metrics, err := testutils.RunBenchmark(cmd.Context(), dataset, decide, concurrency)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color.New(color.Bold).Fprintf(out, "%s %s (strategy %s)\n",
		dataset.Metadata.Name, dataset.Metadata.Version, engine.Strategy())
	return metrics.WriteReport(out)
}
