// Package config manages the persistent rxrank configuration (config.toml in
// the .rxrank/ directory) and its viper/cobra bindings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/rxrank/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// CurrentV is the only config.toml layout version understood.
	CurrentV = 0
)

// Configer reads and writes config.toml in one resolved .rxrank/ directory.
// With no directory resolved it serves defaults and refuses to save.
type Configer struct {
	targetPath string
}

// NewConfiger resolves the .rxrank/ directory from override, the working
// directory or the home directory.
func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &Configer{}, nil
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return &Configer{targetPath: path}, nil
}

// GetTarget returns the config.toml path, or "" when none was resolved.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// Dir returns the directory holding config.toml. Relative artifact paths are
// resolved against it.
func (c *Configer) Dir() string {
	if c.targetPath == "" {
		return ""
	}
	return filepath.Dir(c.targetPath)
}

// LoadConfig returns the merged defaults and config.toml. A missing file
// yields NewDefaultConfig().
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewDefaultConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	fillEmpty(cfg, NewDefaultConfig())
	return cfg, nil
}

// fillEmpty restores defaults for required keys written as "" or 0 in the
// file. Optional keys (graph artifact, DSNs, credentials) stay empty.
func fillEmpty(cfg, def *Config) {
	for _, p := range []struct{ dst, src *string }{
		{&cfg.Artifacts.Embeddings, &def.Artifacts.Embeddings},
		{&cfg.Artifacts.Mappings, &def.Artifacts.Mappings},
		{&cfg.API.Listen, &def.API.Listen},
		{&cfg.Client.APITarget, &def.Client.APITarget},
		{&cfg.Fallback.Encoder, &def.Fallback.Encoder},
		{&cfg.Fallback.Fanout, &def.Fallback.Fanout},
		{&cfg.Fallback.Timeout, &def.Fallback.Timeout},
		{&cfg.Graph.Provider, &def.Graph.Provider},
		{&cfg.Records.Provider, &def.Records.Provider},
		{&cfg.Neo4j.User, &def.Neo4j.User},
	} {
		if *p.dst == "" {
			*p.dst = *p.src
		}
	}
	if cfg.Fallback.MaxConcurrent == 0 {
		cfg.Fallback.MaxConcurrent = def.Fallback.MaxConcurrent
	}
}

// SaveConfig writes cfg to config.toml through a temp file and rename, so a
// concurrent reader never sees a partial document.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.targetPath == "" {
		return errors.New("cannot save config: no .rxrank directory (run rxrank init)")
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.targetPath), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.targetPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue validates value for key and persists it.
func (c *Configer) SetConfigValue(key, value string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := k.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the stored (or default) value of key as a string.
func (c *Configer) GetConfigValue(key string) (string, error) {
	if _, err := lookupKey(key); err != nil {
		return "", err
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return KeyValue(cfg, key)
}

var presets = map[string]func(*Config){
	// Everything on local disk: JSON graph and records next to the artifacts.
	"local": func(cfg *Config) {
		cfg.Artifacts.Graph = "graph.json"
		cfg.Artifacts.Records = "records.json"
		cfg.Graph.Provider = "file"
		cfg.Records.Provider = "file"
	},
	"neo4j": func(cfg *Config) {
		cfg.Graph.Provider = "neo4j"
		cfg.Records.Provider = "neo4j"
		cfg.Neo4j.URI = "neo4j://localhost:7687"
	},
	// Trained encoder served next to the API.
	"sidecar": func(cfg *Config) {
		cfg.Artifacts.Graph = "graph.json"
		cfg.Graph.Provider = "file"
		cfg.Fallback.Encoder = "http"
		cfg.Fallback.EncoderTarget = "http://localhost:8090"
		cfg.Fallback.Timeout = "10s"
	},
}

// PresetConfig returns the defaults adjusted for a named deployment preset.
func PresetConfig(name string) (*Config, error) {
	apply, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
	cfg := NewDefaultConfig()
	apply(cfg)
	return cfg, nil
}

// ValidPresetNames returns the recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "neo4j", "sidecar"}
}

// ParseConfigTOML decodes data over NewDefaultConfig(), so absent keys keep
// their defaults, booleans included.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}

// ParseFanout parses a comma separated per-hop neighbor cap such as "10,5".
func ParseFanout(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid fanout %q: expected two hops", s)
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid fanout %q: each hop must be a positive integer", s)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseTimeout parses a positive duration such as "5s".
func ParseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be a positive duration", s)
	}
	return d, nil
}

// ResolvePath joins a relative artifact location onto dir. URIs and absolute
// paths are returned unchanged.
func ResolvePath(dir, location string) string {
	if location == "" || dir == "" || filepath.IsAbs(location) || strings.Contains(location, "://") {
		return location
	}
	return filepath.Join(dir, location)
}
