// Package recommendutils builds a recommend.Engine from configuration.
package recommendutils

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/encoder/encoderutils"
	"github.com/papercomputeco/rxrank/pkg/fallback"
	"github.com/papercomputeco/rxrank/pkg/graph"
	"github.com/papercomputeco/rxrank/pkg/idmap"
	"github.com/papercomputeco/rxrank/pkg/neo4jdb"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/store"
)

const (
	GraphNone  = "none"
	GraphFile  = "file"
	GraphNeo4j = "neo4j"
)

// NewLoader returns a recommend.Loader that reads the artifacts named in cfg
// and wires the fallback sampler when it is enabled and a graph is
// configured.
func NewLoader(cfg *config.Config, opener *artifact.Opener, logger *slog.Logger) recommend.Loader {
	return func(ctx context.Context) (*recommend.Engine, error) {
		return Build(ctx, cfg, opener, logger)
	}
}

// Build loads and validates the store and resolver, then assembles the
// Engine.
func Build(ctx context.Context, cfg *config.Config, opener *artifact.Opener, logger *slog.Logger) (*recommend.Engine, error) {
	if opener == nil {
		opener = artifact.NewOpener(artifact.WithLogger(logger))
	}

	start := time.Now()
	emb, maps, err := opener.LoadModel(ctx, cfg.Artifacts.Embeddings, cfg.Artifacts.Mappings)
	if err != nil {
		return nil, err
	}

	st, err := store.Load(emb)
	if err != nil {
		return nil, err
	}

	res, err := idmap.Build(maps, st.QueryCount())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrLoad, err)
	}

	queryAlias, conceptAlias := res.Aliases()
	logger.Info("embedding store ready",
		"version", st.Version(),
		"dimension", st.Dimension(),
		"query_rows", st.QueryCount(),
		"candidates", st.CandidateCount(),
		"query_alias", queryAlias,
		"concept_alias", conceptAlias,
		"duration", time.Since(start),
	)
	if n := res.Collisions(); n > 0 {
		logger.Warn("duplicate ids in mapping artifact, first registration kept", "collisions", n)
	}

	opts := []recommend.Option{recommend.WithLogger(logger)}

	if cfg.Fallback.Enabled {
		sampler, closeGraph, err := newSampler(ctx, cfg, opener, st, logger)
		if err != nil {
			if closeGraph != nil {
				_ = closeGraph()
			}
			return nil, err
		}
		if sampler != nil {
			opts = append(opts, recommend.WithFallback(sampler))
		}
		if closeGraph != nil {
			opts = append(opts, recommend.WithCloser(closeGraph))
		}
	}

	return recommend.New(st, res, opts...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newSampler(ctx context.Context, cfg *config.Config, opener *artifact.Opener, st *store.Store, logger *slog.Logger) (*fallback.Sampler, closerFunc, error) {
	src, closeGraph, err := newGraphSource(ctx, cfg, opener, logger)
	if err != nil {
		return nil, nil, err
	}
	if src == nil {
		logger.Warn("fallback enabled but no graph provider configured, cold-start entities will fail", "graph_provider", cfg.Graph.Provider)
		return nil, nil, nil
	}

	fanout, err := config.ParseFanout(cfg.Fallback.Fanout)
	if err != nil {
		return nil, closeGraph, err
	}
	timeout, err := config.ParseTimeout(cfg.Fallback.Timeout)
	if err != nil {
		return nil, closeGraph, err
	}

	enc, err := encoderutils.NewEncoder(&encoderutils.NewEncoderOpts{
		ProviderType: cfg.Fallback.Encoder,
		TargetURL:    cfg.Fallback.EncoderTarget,
		Timeout:      timeout,
		Vectors:      st,
	})
	if err != nil {
		return nil, closeGraph, err
	}

	sampler, err := fallback.New(src, enc, st, fallback.Config{
		Fanout:        fanout,
		Seed:          cfg.Fallback.Seed,
		MaxConcurrent: int64(cfg.Fallback.MaxConcurrent),
		RatePerSecond: cfg.Fallback.RatePerSecond,
		Timeout:       timeout,
	}, logger)
	if err != nil {
		return nil, closeGraph, err
	}

	logger.Info("fallback sampler ready",
		"graph_provider", cfg.Graph.Provider,
		"encoder", cfg.Fallback.Encoder,
		"fanout", fanout,
		"timeout", timeout,
	)
	return sampler, closeGraph, nil
}

func newGraphSource(ctx context.Context, cfg *config.Config, opener *artifact.Opener, logger *slog.Logger) (graph.Source, closerFunc, error) {
	switch cfg.Graph.Provider {
	case "", GraphNone:
		return nil, nil, nil

	case GraphFile:
		if cfg.Artifacts.Graph == "" {
			return nil, nil, fmt.Errorf("graph provider %q requires artifacts.graph", GraphFile)
		}
		t, err := opener.LoadGraph(ctx, cfg.Artifacts.Graph)
		if err != nil {
			return nil, nil, err
		}
		g, err := graph.NewMemory(t)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("graph loaded", "nodes", g.NodeCount(), "edges", g.EdgeCount())
		return g, nil, nil

	case GraphNeo4j:
		client, err := NewNeo4jClient(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() error { return client.Close(context.Background()) }
		return graph.NewNeo4j(client, logger), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown graph provider: %q", cfg.Graph.Provider)
	}
}

// NewNeo4jClient connects with the [neo4j] settings of cfg.
func NewNeo4jClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*neo4jdb.Client, error) {
	return neo4jdb.New(ctx, neo4jdb.Config{
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	}, logger)
}
