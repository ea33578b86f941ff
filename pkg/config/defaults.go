package config

const (
	defaultEmbeddingsArtifact = "embeddings.json"
	defaultMappingsArtifact   = "mappings.json"

	defaultAPIListen       = ":8001"
	defaultClientAPITarget = "http://localhost:8001"

	defaultFallbackEncoder       = "propagation"
	defaultFallbackFanout        = "10,5"
	defaultFallbackTimeout       = "5s"
	defaultFallbackMaxConcurrent = 4

	defaultGraphProvider   = "none"
	defaultRecordsProvider = "none"

	defaultNeo4jUser = "neo4j"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Artifacts: ArtifactsConfig{
			Embeddings: defaultEmbeddingsArtifact,
			Mappings:   defaultMappingsArtifact,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Fallback: FallbackConfig{
			Enabled:       true,
			Encoder:       defaultFallbackEncoder,
			Fanout:        defaultFallbackFanout,
			Timeout:       defaultFallbackTimeout,
			MaxConcurrent: defaultFallbackMaxConcurrent,
		},
		Graph: GraphConfig{
			Provider: defaultGraphProvider,
		},
		Records: RecordsConfig{
			Provider: defaultRecordsProvider,
		},
		Neo4j: Neo4jConfig{
			User: defaultNeo4jUser,
		},
	}
}
