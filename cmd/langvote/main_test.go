package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-langvote/internal/conversation"
)

const spanishRequest = `{
  "text": "hola, ¿cómo estás?",
  "predictions": [
    {"source": "fasttext", "language": "es", "confidence": 0.9, "reliable": true},
    {"source": "lingua", "language": "es", "confidence": 0.8, "reliable": true},
    {"source": "langid", "language": "pt", "confidence": 0.6, "reliable": true}
  ]
}`

// execute runs the root command with args after resetting every flag left
// over from previous runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range []*cobra.Command{decideCmd, validateCmd, benchGenerateCmd, benchRunCmd} {
		reset(c.Flags())
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--color", "off", "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDecide_JSON(t *testing.T) {
	req := writeFile(t, "req.json", spanishRequest)

	out, err := execute(t, "decide", "--format", "json", req)
	require.NoError(t, err)

	var decision map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decision))
	assert.Equal(t, "es", decision["lang"])
	assert.NotEmpty(t, decision["id"])
}

func TestDecide_Pretty(t *testing.T) {
	req := writeFile(t, "req.json", spanishRequest)

	out, err := execute(t, "decide", "--replay", req)
	require.NoError(t, err)
	assert.Contains(t, out, "es")
	assert.Contains(t, out, "candidates:")
}

func TestDecide_Errors(t *testing.T) {
	req := writeFile(t, "req.json", spanishRequest)

	_, err := execute(t, "decide", "--format", "xml", req)
	assert.ErrorContains(t, err, "unknown format")

	_, err = execute(t, "decide", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read request")

	bad := writeFile(t, "bad.json", `{"text": "x", "surprise": true}`)
	_, err = execute(t, "decide", bad)
	assert.ErrorContains(t, err, "failed to decode request")

	_, err = execute(t, "--color", "sometimes", "decide", req)
	assert.ErrorContains(t, err, "unknown color mode")
}

func TestDecide_SessionAndMetrics(t *testing.T) {
	dir := t.TempDir()
	req := writeFile(t, "req.json", spanishRequest)
	session := filepath.Join(dir, "session.msgpack")
	metrics := filepath.Join(dir, "metrics.prom")

	for range 2 {
		_, err := execute(t, "decide", "--session", session, "--metrics-out", metrics, req)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(session)
	require.NoError(t, err)
	restored, err := conversation.UnmarshalSnapshot(data, conversation.FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())
	lang, ok := restored.DominantLanguage()
	require.True(t, ok)
	assert.Equal(t, "es", lang)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "langvote_decisions_total")
	assert.Contains(t, string(prom), `langvote_system_state{metric="active_sessions"} 1`)
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ langvote 1.0.0")
	assert.Contains(t, out, "stages:")

	cfg := writeFile(t, "engine.yaml", `
version: "2.0.0"
name: chat
strategy:
  name: soft
stages:
  - id: tie_break
    type: tie_break
  - id: verdict
    type: verdict
backends:
  - name: fasttext
    timeout_ms: 300
`)
	out, err = execute(t, "--config", cfg, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ chat 2.0.0")
	assert.Contains(t, out, "strategy: soft")
	assert.Contains(t, out, "backend:  fasttext")

	broken := writeFile(t, "broken.yaml", "version: \"1.0.0\"\nstrategy:\n  name: sotf\n")
	_, err = execute(t, "--config", broken, "validate")
	assert.ErrorContains(t, err, `did you mean "soft"`)
}

func TestBench(t *testing.T) {
	dataset := filepath.Join(t.TempDir(), "bench", "dataset.json")

	out, err := execute(t, "bench", "generate", "--size", "60", "--seed", "9", dataset)
	require.NoError(t, err)
	assert.Contains(t, out, "samples:       60 (seed 9)")

	out, err = execute(t, "bench", "run", "--concurrency", "2", dataset)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy weighted")
	assert.Contains(t, out, "samples:     60 (errors 0)")

	_, err = execute(t, "bench", "generate", "--size", "3", dataset)
	assert.ErrorContains(t, err, "size must be at least")
}
