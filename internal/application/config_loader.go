package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// Format identifies a configuration file syntax.
type Format string

// Supported configuration formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for configuration files whose extension
// maps to no known Format.
var ErrUnsupportedFormat = errors.New("unsupported configuration format")

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ParseConfig decodes data over DefaultEngineConfig. Decoding is strict:
// unknown fields are rejected in both formats. The result is not yet
// validated; NewEngine validates it.
func ParseConfig(data []byte, format Format) (*EngineConfig, error) {
	config := DefaultEngineConfig()

	switch format {
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("YAML decode failed: %w", err)
		}
	case FormatTOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&config)
		if err != nil {
			return nil, fmt.Errorf("TOML decode failed: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("TOML decode failed: unknown fields %s", strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return &config, nil
}

// ConfigLoader turns configuration files into ready Engines. Engines are
// cached by the hash of their normalized configuration so identical
// configurations share one Engine.
type ConfigLoader struct {
	// opts are applied to every Engine the loader builds.
	opts []Option
	// cache maps a config hash to its compiled Engine. Cached engines are
	// shared and must not be reconfigured.
	cache   map[string]*Engine
	cacheMu sync.RWMutex
	// sf collapses concurrent builds of the same configuration.
	sf singleflight.Group
}

// NewConfigLoader creates a loader whose engines are built with opts.
func NewConfigLoader(opts ...Option) *ConfigLoader {
	return &ConfigLoader{
		opts:  opts,
		cache: make(map[string]*Engine),
	}
}

// LoadFromFile loads the engine described by path. The format follows
// the file extension.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*Engine, error) {
	cleanPath := filepath.Clean(path)

	format, err := FormatFromPath(cleanPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.load(ctx, data, format)
}

// LoadFromReader loads the engine described by r in the given format.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader, format Format) (*Engine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(ctx, data, format)
}

func (cl *ConfigLoader) load(ctx context.Context, data []byte, format Format) (*Engine, error) {
	config, err := ParseConfig(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Hash the normalized config so YAML and TOML spellings of the same
	// engine share a cache entry.
	hash, err := configHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if engine, ok := cl.cached(hash); ok {
			return engine, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		engine, err := NewEngine(*config, cl.opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build engine: %w", err)
		}
		cl.store(hash, engine)
		return engine, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

// configHash returns the SHA-256 of the config re-encoded as YAML.
func configHash(config *EngineConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func (cl *ConfigLoader) cached(hash string) (*Engine, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()
	engine, ok := cl.cache[hash]
	return engine, ok
}

func (cl *ConfigLoader) store(hash string, engine *Engine) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()
	cl.cache[hash] = engine
}

// CacheSize returns the number of cached engines.
func (cl *ConfigLoader) CacheSize() int {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()
	return len(cl.cache)
}

// ClearCache drops every cached engine.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()
	cl.cache = make(map[string]*Engine)
}
