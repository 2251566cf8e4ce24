package conversation

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Format selects a snapshot encoding.
type Format string

// Supported snapshot encodings.
const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// Snapshot is the serializable form of a Context.
type Snapshot struct {
	MaxTurns    int     `json:"max_turns,omitempty" msgpack:"max_turns,omitempty"`
	DecayFactor float64 `json:"decay_factor,omitempty" msgpack:"decay_factor,omitempty"`
	Turns       []Turn  `json:"turns" msgpack:"turns"`
}

// Snapshot captures the context's options and turns.
func (c *Context) Snapshot() Snapshot {
	turns := c.Turns()
	if turns == nil {
		turns = []Turn{}
	}
	return Snapshot{
		MaxTurns:    c.opts.MaxTurns,
		DecayFactor: c.opts.DecayFactor,
		Turns:       turns,
	}
}

// FromSnapshot rebuilds a Context. Unset options take their defaults and
// only the most recent MaxTurns turns are kept.
func FromSnapshot(s Snapshot) (*Context, error) {
	c, err := New(Options{MaxTurns: s.MaxTurns, DecayFactor: s.DecayFactor})
	if err != nil {
		return nil, err
	}
	for _, t := range s.Turns {
		t.Confidence = clampUnit(t.Confidence)
		if t.Timestamp.IsZero() {
			t.Timestamp = c.now()
		}
		c.appendTurn(t)
	}
	return c, nil
}

// UnmarshalJSON decodes a turn whose timestamp is either an RFC 3339
// string, as written by MarshalSnapshot, or floating-point seconds since
// the Unix epoch. Turns are always encoded with RFC 3339 timestamps.
func (t *Turn) UnmarshalJSON(data []byte) error {
	type plain Turn
	var raw struct {
		plain
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*t = Turn(raw.plain)
	t.Timestamp = ts
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var ts time.Time
		if err := json.Unmarshal(raw, &ts); err != nil {
			return time.Time{}, fmt.Errorf("decode turn timestamp: %w", err)
		}
		return ts, nil
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, fmt.Errorf("decode turn timestamp: %w", err)
	}
	whole, frac := math.Modf(secs)
	sec, err := safecast.Convert[int64](whole)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode turn timestamp %v: %w", secs, err)
	}
	return time.Unix(sec, int64(math.Round(frac*1e9))).UTC(), nil
}

// MarshalSnapshot encodes the context in the given format.
func MarshalSnapshot(c *Context, format Format) ([]byte, error) {
	snap := c.Snapshot()
	switch format {
	case FormatJSON:
		return json.Marshal(snap)
	case FormatMsgpack:
		return msgpack.Marshal(snap)
	default:
		return nil, fmt.Errorf("%w: unsupported snapshot format %q", domain.ErrInvalidConfiguration, format)
	}
}

// UnmarshalSnapshot decodes a context previously encoded with
// MarshalSnapshot.
func UnmarshalSnapshot(data []byte, format Format) (*Context, error) {
	var snap Snapshot
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode json snapshot: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode msgpack snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported snapshot format %q", domain.ErrInvalidConfiguration, format)
	}
	return FromSnapshot(snap)
}

// HistoryEntry is a stored detection outcome used to rebuild a context
// without the original texts.
type HistoryEntry struct {
	Language   string  `json:"lang" msgpack:"lang"`
	Confidence float64 `json:"confidence" msgpack:"confidence"`
}

// UnmarshalJSON accepts both "lang" and "detected_language" keys.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lang             string  `json:"lang"`
		DetectedLanguage string  `json:"detected_language"`
		Confidence       float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Language = raw.Lang
	if e.Language == "" {
		e.Language = raw.DetectedLanguage
	}
	e.Confidence = raw.Confidence
	return nil
}

// FromHistory builds a Context from past detection outcomes, oldest first.
// Entries without a language are skipped and only the most recent
// MaxTurns entries are kept.
func FromHistory(entries []HistoryEntry, opts Options) (*Context, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	now := c.now()
	for _, e := range entries {
		if e.Language == "" {
			continue
		}
		c.appendTurn(Turn{
			Language:   e.Language,
			Confidence: clampUnit(e.Confidence),
			Timestamp:  now,
		})
	}
	return c, nil
}
