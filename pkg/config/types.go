package config

// Config represents the persistent rxrank configuration stored as config.toml
// in the .rxrank/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	API       APIConfig       `toml:"api"`
	Client    ClientConfig    `toml:"client"`
	Fallback  FallbackConfig  `toml:"fallback"`
	Graph     GraphConfig     `toml:"graph"`
	Records   RecordsConfig   `toml:"records"`
	Neo4j     Neo4jConfig     `toml:"neo4j"`
	Log       LogConfig       `toml:"log"`
}

// ArtifactsConfig holds the locations of the load-time artifacts. Values are
// paths or URIs (file://, s3://, minio://).
type ArtifactsConfig struct {
	Embeddings string `toml:"embeddings,omitempty"`
	Mappings   string `toml:"mappings,omitempty"`
	Graph      string `toml:"graph,omitempty"`
	Records    string `toml:"records,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// FallbackConfig controls the cold-start neighborhood sampler.
type FallbackConfig struct {
	Enabled       bool    `toml:"enabled"`
	Encoder       string  `toml:"encoder,omitempty"`
	EncoderTarget string  `toml:"encoder_target,omitempty"`
	Fanout        string  `toml:"fanout,omitempty"`
	Timeout       string  `toml:"timeout,omitempty"`
	MaxConcurrent uint    `toml:"max_concurrent,omitempty"`
	RatePerSecond float64 `toml:"rate_per_second,omitempty"`
	Seed          uint64  `toml:"seed,omitempty"`
}

// GraphConfig selects the heterogeneous graph source used by the fallback.
type GraphConfig struct {
	Provider string `toml:"provider,omitempty"`
}

// RecordsConfig selects the clinical record reader.
type RecordsConfig struct {
	Provider string `toml:"provider,omitempty"`
	DSN      string `toml:"dsn,omitempty"`
}

// Neo4jConfig holds connection settings shared by the neo4j graph source and
// record reader.
type Neo4jConfig struct {
	URI      string `toml:"uri,omitempty"`
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"`
	Database string `toml:"database,omitempty"`
}

// LogConfig holds service logging settings.
type LogConfig struct {
	JSON bool   `toml:"json"`
	File string `toml:"file,omitempty"`
}
