package config

import (
	"fmt"
	"strconv"
)

// configKey is one dotted key of config.toml with its accessors.
type configKey struct {
	name string
	get  func(c *Config) string
	set  func(c *Config, v string) error
}

// configKeys lists every settable key in config.toml section order.
var configKeys = []configKey{
	str("artifacts.embeddings", func(c *Config) *string { return &c.Artifacts.Embeddings }),
	str("artifacts.mappings", func(c *Config) *string { return &c.Artifacts.Mappings }),
	str("artifacts.graph", func(c *Config) *string { return &c.Artifacts.Graph }),
	str("artifacts.records", func(c *Config) *string { return &c.Artifacts.Records }),
	str("api.listen", func(c *Config) *string { return &c.API.Listen }),
	str("client.api_target", func(c *Config) *string { return &c.Client.APITarget }),
	boolean("fallback.enabled", func(c *Config) *bool { return &c.Fallback.Enabled }),
	str("fallback.encoder", func(c *Config) *string { return &c.Fallback.Encoder }),
	str("fallback.encoder_target", func(c *Config) *string { return &c.Fallback.EncoderTarget }),
	checked("fallback.fanout", func(c *Config) *string { return &c.Fallback.Fanout }, func(v string) error {
		_, err := ParseFanout(v)
		return err
	}),
	checked("fallback.timeout", func(c *Config) *string { return &c.Fallback.Timeout }, func(v string) error {
		_, err := ParseTimeout(v)
		return err
	}),
	{
		name: "fallback.max_concurrent",
		get: func(c *Config) string {
			if c.Fallback.MaxConcurrent == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Fallback.MaxConcurrent), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for fallback.max_concurrent: %w", err)
			}
			c.Fallback.MaxConcurrent = uint(n)
			return nil
		},
	},
	{
		name: "fallback.rate_per_second",
		get: func(c *Config) string {
			if c.Fallback.RatePerSecond == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Fallback.RatePerSecond, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid value for fallback.rate_per_second: %q", v)
			}
			c.Fallback.RatePerSecond = f
			return nil
		},
	},
	{
		name: "fallback.seed",
		get:  func(c *Config) string { return strconv.FormatUint(c.Fallback.Seed, 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for fallback.seed: %w", err)
			}
			c.Fallback.Seed = n
			return nil
		},
	},
	str("graph.provider", func(c *Config) *string { return &c.Graph.Provider }),
	str("records.provider", func(c *Config) *string { return &c.Records.Provider }),
	str("records.dsn", func(c *Config) *string { return &c.Records.DSN }),
	str("neo4j.uri", func(c *Config) *string { return &c.Neo4j.URI }),
	str("neo4j.user", func(c *Config) *string { return &c.Neo4j.User }),
	str("neo4j.password", func(c *Config) *string { return &c.Neo4j.Password }),
	str("neo4j.database", func(c *Config) *string { return &c.Neo4j.Database }),
	boolean("log.json", func(c *Config) *bool { return &c.Log.JSON }),
	str("log.file", func(c *Config) *string { return &c.Log.File }),
}

func str(name string, field func(c *Config) *string) configKey {
	return checked(name, field, nil)
}

// checked is a string key whose value must pass validate before it is stored.
func checked(name string, field func(c *Config) *string, validate func(string) error) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if validate != nil {
				if err := validate(v); err != nil {
					return err
				}
			}
			*field(c) = v
			return nil
		},
	}
}

func boolean(name string, field func(c *Config) *bool) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func lookupKey(name string) (configKey, error) {
	for _, k := range configKeys {
		if k.name == name {
			return k, nil
		}
	}
	return configKey{}, fmt.Errorf("unknown config key: %q", name)
}

// ValidConfigKeys returns every supported key in config.toml section order.
func ValidConfigKeys() []string {
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.name
	}
	return names
}

// IsValidConfigKey reports whether key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, err := lookupKey(key)
	return err == nil
}

// KeyValue returns the string form of key in cfg.
func KeyValue(cfg *Config, key string) (string, error) {
	k, err := lookupKey(key)
	if err != nil {
		return "", err
	}
	return k.get(cfg), nil
}
