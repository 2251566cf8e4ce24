// Command langvote combines language predictions from several detection
// backends into one decision.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ahrav/go-langvote/internal/application"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "langvote",
	Short:         "Decide the language of a text from several backend predictions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		mode, err := cmd.Flags().GetString("color")
		if err != nil {
			return fmt.Errorf("failed to get color flag: %w", err)
		}
		switch mode {
		case "auto":
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		default:
			return fmt.Errorf("unknown color mode %q (auto|on|off)", mode)
		}
		return nil
	},
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(benchCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "engine configuration file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger builds a console logger writing to stderr at the level named
// by the --log-level flag.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	levelName, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// loadEngine builds the engine from --config, or the default engine when
// the flag is empty.
func loadEngine(cmd *cobra.Command, opts ...application.Option) (*application.Engine, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		return application.NewDefaultEngine(opts...)
	}
	return application.NewConfigLoader(opts...).LoadFromFile(cmd.Context(), path)
}
