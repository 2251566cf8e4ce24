package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-langvote/internal/application"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an engine configuration and print its pipeline",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engine, err := loadEngine(cmd, application.WithLogger(logger))
	if err != nil {
		return err
	}

	cfg := engine.Config()
	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen, color.Bold)
	ok.Fprintf(out, "✓ %s %s\n", cfg.Name, cfg.Version)
	fmt.Fprintf(out, "  strategy: %s\n", engine.Strategy())
	fmt.Fprintf(out, "  stages:   %v\n", engine.Stages())
	fmt.Fprintf(out, "  context:  max_turns=%d decay=%.2f\n", cfg.Context.MaxTurns, cfg.Context.DecayFactor)
	for _, b := range cfg.Backends {
		fmt.Fprintf(out, "  backend:  %s (timeout=%dms retries=%d rate=%.1f/s)\n",
			b.Name, b.TimeoutMS, b.Retries, b.RateLimit)
	}
	return nil
}
