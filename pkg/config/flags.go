package config

import (
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// (e.g. --embeddings on "serve", "recommend" and "inspect") cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "embeddings").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "artifacts.embeddings").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagEmbeddings     = "embeddings"
	FlagMappings       = "mappings"
	FlagGraphArtifact  = "graph"
	FlagRecordsArt     = "records"
	FlagAPIListen      = "listen"
	FlagAPITarget      = "api-target"
	FlagGraphProvider  = "graph-provider"
	FlagRecordsProv    = "records-provider"
	FlagRecordsDSN     = "records-dsn"
	FlagEncoder        = "encoder"
	FlagEncoderTarget  = "encoder-target"
	FlagFanout         = "fanout"
	FlagFallbackTmout  = "fallback-timeout"
	FlagMaxConcurrent  = "fallback-max-concurrent"
	FlagNeo4jURI       = "neo4j-uri"
	FlagLogJSON        = "log-json"
)

// Flags is the shared registry used by every command.
var Flags = FlagSet{
	FlagEmbeddings:    {Name: "embeddings", Shorthand: "e", ViperKey: "artifacts.embeddings", Description: "Embedding artifact path or URI"},
	FlagMappings:      {Name: "mappings", Shorthand: "m", ViperKey: "artifacts.mappings", Description: "Mapping artifact path or URI"},
	FlagGraphArtifact: {Name: "graph", ViperKey: "artifacts.graph", Description: "Graph edge-list artifact for the file graph provider"},
	FlagRecordsArt:    {Name: "records", ViperKey: "artifacts.records", Description: "Record artifact for the file records provider"},
	FlagAPIListen:     {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:     {Name: "api-target", ViperKey: "client.api_target", Description: "rxrank API server URL"},
	FlagGraphProvider: {Name: "graph-provider", ViperKey: "graph.provider", Description: "Graph source for cold-start sampling (none, file, neo4j)"},
	FlagRecordsProv:   {Name: "records-provider", ViperKey: "records.provider", Description: "Record reader (none, file, sqlite, postgres, neo4j)"},
	FlagRecordsDSN:    {Name: "records-dsn", ViperKey: "records.dsn", Description: "DSN for the sqlite or postgres record reader"},
	FlagEncoder:       {Name: "encoder", ViperKey: "fallback.encoder", Description: "Cold-start encoder (propagation, http)"},
	FlagEncoderTarget: {Name: "encoder-target", ViperKey: "fallback.encoder_target", Description: "Base URL of the http encoder sidecar"},
	FlagFanout:        {Name: "fanout", ViperKey: "fallback.fanout", Description: "Per-hop neighbor caps for cold-start sampling"},
	FlagFallbackTmout: {Name: "fallback-timeout", ViperKey: "fallback.timeout", Description: "Per-request cold-start timeout"},
	FlagMaxConcurrent: {Name: "fallback-max-concurrent", ViperKey: "fallback.max_concurrent", Description: "Maximum concurrent cold-start samples"},
	FlagNeo4jURI:      {Name: "neo4j-uri", ViperKey: "neo4j.uri", Description: "Neo4j connection URI"},
	FlagLogJSON:       {Name: "log-json", ViperKey: "log.json", Description: "Emit JSON logs"},
}

// AddStringFlag registers the string flag fs[key] on cmd, defaulting to the
// value NewDefaultConfig holds for its viper key.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	if f, ok := fs[key]; ok {
		cmd.Flags().StringVarP(target, f.Name, f.Shorthand, defaults().GetString(f.ViperKey), f.Description)
	}
}

// AddUintFlag registers the uint flag fs[key] on cmd.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	if f, ok := fs[key]; ok {
		cmd.Flags().UintVarP(target, f.Name, f.Shorthand, defaults().GetUint(f.ViperKey), f.Description)
	}
}

// AddBoolFlag registers the bool flag fs[key] on cmd.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	if f, ok := fs[key]; ok {
		cmd.Flags().BoolVarP(target, f.Name, f.Shorthand, defaults().GetBool(f.ViperKey), f.Description)
	}
}

// BindRegisteredFlags binds the named, already-registered flags of cmd into
// v so they sit on top of the precedence chain. Keys missing from fs or not
// registered on cmd are skipped.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		f, ok := fs[key]
		if !ok {
			continue
		}
		if pf := cmd.Flags().Lookup(f.Name); pf != nil {
			_ = v.BindPFlag(f.ViperKey, pf)
		}
	}
}

// defaults is a viper instance holding only NewDefaultConfig values.
var defaults = sync.OnceValue(func() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
})
