package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/rxrank/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RXRANK_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RXRANK_API_LISTEN, RXRANK_NEO4J_URI, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RXRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the viper precedence chain. Relative
// artifact paths are resolved against the directory of the config file in use.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Artifacts: ArtifactsConfig{
			Embeddings: v.GetString("artifacts.embeddings"),
			Mappings:   v.GetString("artifacts.mappings"),
			Graph:      v.GetString("artifacts.graph"),
			Records:    v.GetString("artifacts.records"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
		Fallback: FallbackConfig{
			Enabled:       v.GetBool("fallback.enabled"),
			Encoder:       v.GetString("fallback.encoder"),
			EncoderTarget: v.GetString("fallback.encoder_target"),
			Fanout:        v.GetString("fallback.fanout"),
			Timeout:       v.GetString("fallback.timeout"),
			MaxConcurrent: v.GetUint("fallback.max_concurrent"),
			RatePerSecond: v.GetFloat64("fallback.rate_per_second"),
			Seed:          v.GetUint64("fallback.seed"),
		},
		Graph: GraphConfig{
			Provider: v.GetString("graph.provider"),
		},
		Records: RecordsConfig{
			Provider: v.GetString("records.provider"),
			DSN:      v.GetString("records.dsn"),
		},
		Neo4j: Neo4jConfig{
			URI:      v.GetString("neo4j.uri"),
			User:     v.GetString("neo4j.user"),
			Password: v.GetString("neo4j.password"),
			Database: v.GetString("neo4j.database"),
		},
		Log: LogConfig{
			JSON: v.GetBool("log.json"),
			File: v.GetString("log.file"),
		},
	}

	if used := v.ConfigFileUsed(); used != "" {
		dir := filepath.Dir(used)
		cfg.Artifacts.Embeddings = ResolvePath(dir, cfg.Artifacts.Embeddings)
		cfg.Artifacts.Mappings = ResolvePath(dir, cfg.Artifacts.Mappings)
		cfg.Artifacts.Graph = ResolvePath(dir, cfg.Artifacts.Graph)
		cfg.Artifacts.Records = ResolvePath(dir, cfg.Artifacts.Records)
	}

	return cfg
}

// setViperDefaults registers NewDefaultConfig values under every key of the
// registry. Values go in as strings; viper's getters cast them back.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("version", d.Version)
	for _, k := range configKeys {
		v.SetDefault(k.name, k.get(d))
	}
}
