package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-langvote/infrastructure/backends"
	"github.com/ahrav/go-langvote/infrastructure/middleware"
	"github.com/ahrav/go-langvote/internal/application"
	"github.com/ahrav/go-langvote/internal/conversation"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// cliSession is the session ID used for --session files.
const cliSession = "cli"

var decideCmd = &cobra.Command{
	Use:   "decide [flags] <request.json|->",
	Short: "Decide the language of a request file",
	Long: `Reads a JSON request holding the text and backend predictions and prints
the decision. With --replay the predictions are treated as recorded backend
output and pass through the configured backend middleware first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecide,
}

func init() {
	decideCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	decideCmd.Flags().Bool("replay", false, "replay predictions through backend middleware")
	decideCmd.Flags().String("session", "", "conversation snapshot file (.json or .msgpack), created when missing")
	decideCmd.Flags().String("metrics-out", "", "write Prometheus metrics in text format to this file")
}

func runDecide(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unknown format %q (pretty|json)", format)
	}
	replay, err := cmd.Flags().GetBool("replay")
	if err != nil {
		return fmt.Errorf("failed to get replay flag: %w", err)
	}
	sessionPath, err := cmd.Flags().GetString("session")
	if err != nil {
		return fmt.Errorf("failed to get session flag: %w", err)
	}
	metricsOut, err := cmd.Flags().GetString("metrics-out")
	if err != nil {
		return fmt.Errorf("failed to get metrics-out flag: %w", err)
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	req, err := readRequest(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	engine, err := loadEngine(cmd,
		application.WithLogger(logger),
		application.WithMetrics(middleware.NewPrometheusMetrics(registry)),
	)
	if err != nil {
		return err
	}

	if replay {
		recorded := make([]ports.Backend, len(req.Predictions))
		for i, p := range req.Predictions {
			recorded[i] = backends.Static(p)
		}
		collected, err := engine.Collect(cmd.Context(), req.Text, recorded...)
		if err != nil && !errors.Is(err, application.ErrNoBackends) {
			return err
		}
		req.Predictions = collected
	}

	var decision *domain.Decision
	if sessionPath == "" {
		decision, err = engine.Decide(cmd.Context(), req)
	} else {
		decision, err = decideWithSession(cmd, engine, sessionPath, req)
	}
	if err != nil {
		return err
	}

	if metricsOut != "" {
		if err := prometheus.WriteToTextfile(metricsOut, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(decision)
	}
	printDecision(cmd.OutOrStdout(), decision)
	return nil
}

// readRequest decodes a JSON request from path, or from stdin for "-".
func readRequest(stdin io.Reader, path string) (application.Request, error) {
	var req application.Request

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return req, fmt.Errorf("failed to read request: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode request: %w", err)
	}
	return req, nil
}

// decideWithSession restores the conversation from path, decides within
// it and writes the updated conversation back.
func decideWithSession(
	cmd *cobra.Command,
	engine *application.Engine,
	path string,
	req application.Request,
) (*domain.Decision, error) {
	format := conversation.FormatJSON
	if strings.EqualFold(filepath.Ext(path), ".msgpack") {
		format = conversation.FormatMsgpack
	}

	store, err := engine.NewSessionStore()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read session: %w", err)
	default:
		restored, err := conversation.UnmarshalSnapshot(data, format)
		if err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		if err := store.Restore(cliSession, restored.Snapshot()); err != nil {
			return nil, err
		}
	}

	decision, err := engine.DecideSession(cmd.Context(), store, cliSession, req)
	if err != nil {
		return nil, err
	}

	snap, _ := store.Snapshot(cliSession)
	updated, err := conversation.FromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	out, err := conversation.MarshalSnapshot(updated, format)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}
	return decision, nil
}

func printDecision(w io.Writer, d *domain.Decision) {
	bold := color.New(color.Bold)
	if d.IsUndetermined() {
		color.New(color.FgYellow, color.Bold).Fprintf(w, "%s", d.Language)
		fmt.Fprintf(w, "  (%s)\n", d.Reason)
	} else {
		color.New(color.FgGreen, color.Bold).Fprintf(w, "%s", d.Language)
		fmt.Fprintf(w, "  confidence=%.3f reliable=%t\n", d.Confidence, d.Reliable)
	}

	bold.Fprintf(w, "strategy: ")
	fmt.Fprintln(w, d.Strategy)
	if len(d.Candidates) > 0 {
		bold.Fprintln(w, "candidates:")
		for i, c := range d.Candidates {
			fmt.Fprintf(w, "  %d. %-4s %.3f\n", i+1, c.Language, c.Confidence)
		}
	}
	color.New(color.Faint).Fprintf(w, "id: %s\n", d.ID)
}
