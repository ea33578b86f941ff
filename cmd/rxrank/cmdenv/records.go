package cmdenv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/rxrank/cmd/rxrank/sqlitepath"
	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/recommend/recommendutils"
	"github.com/papercomputeco/rxrank/pkg/records"
	"github.com/papercomputeco/rxrank/pkg/records/recordsutils"
)

// RecordsReader builds the reader selected by records.provider. The returned
// func releases the reader and any neo4j client it owns.
func RecordsReader(ctx context.Context, cfg *config.Config, opener *artifact.Opener, logger *slog.Logger) (records.Reader, func(), error) {
	opts := &recordsutils.NewReaderOpts{
		ProviderType: cfg.Records.Provider,
		DSN:          cfg.Records.DSN,
		Artifact:     cfg.Artifacts.Records,
		Opener:       opener,
		Logger:       logger,
	}

	closeClient := func() {}

	switch opts.ProviderType {
	case recordsutils.ProviderSQLite:
		dsn, err := sqlitepath.ResolveRecordsDB(opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		opts.DSN = dsn

	case recordsutils.ProviderNeo4j:
		client, err := recommendutils.NewNeo4jClient(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		opts.Neo4j = client
		closeClient = func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Error("closing neo4j client", "error", err)
			}
		}
	}

	reader, err := recordsutils.NewReader(ctx, opts)
	if err != nil {
		closeClient()
		return nil, nil, fmt.Errorf("creating records reader: %w", err)
	}

	logger.Debug("records reader ready", "provider", opts.ProviderType)

	return reader, func() {
		if err := reader.Close(); err != nil {
			logger.Error("closing records reader", "error", err)
		}
		closeClient()
	}, nil
}
