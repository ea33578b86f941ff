// Package recordsutils builds the configured records.Reader.
package recordsutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/neo4jdb"
	"github.com/papercomputeco/rxrank/pkg/records"
	"github.com/papercomputeco/rxrank/pkg/records/inmemory"
	recordsneo4j "github.com/papercomputeco/rxrank/pkg/records/neo4j"
	"github.com/papercomputeco/rxrank/pkg/records/postgres"
	"github.com/papercomputeco/rxrank/pkg/records/sqlite"
)

const (
	ProviderNone     = "none"
	ProviderFile     = "file"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderNeo4j    = "neo4j"
)

// Providers lists every supported provider name.
var Providers = []string{ProviderNone, ProviderFile, ProviderSQLite, ProviderPostgres, ProviderNeo4j}

// Importer bulk-loads a records artifact into a SQL backend.
type Importer interface {
	records.Reader
	Import(ctx context.Context, rows []artifact.RecordRow) (int, error)
}

type NewReaderOpts struct {
	ProviderType string

	// DSN is the sqlite path or postgres connection string.
	DSN string

	// Artifact is the records artifact location for the file provider.
	Artifact string
	Opener   *artifact.Opener

	// Neo4j is used by the neo4j provider. The reader does not own it.
	Neo4j neo4jdb.Runner

	Logger *slog.Logger
}

// NewReader returns the reader for o.ProviderType. An empty provider is
// treated as "none".
func NewReader(ctx context.Context, o *NewReaderOpts) (records.Reader, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch o.ProviderType {
	case "", ProviderNone:
		return records.None{}, nil

	case ProviderFile:
		if o.Artifact == "" {
			return nil, errors.New("records artifact location is required for the file provider")
		}
		opener := o.Opener
		if opener == nil {
			opener = artifact.NewOpener(artifact.WithLogger(logger))
		}
		t, err := opener.LoadRecords(ctx, o.Artifact)
		if err != nil {
			return nil, err
		}
		r, err := inmemory.New(t)
		if err != nil {
			return nil, err
		}
		return r, nil

	case ProviderSQLite, ProviderPostgres:
		imp, err := NewImporter(ctx, o)
		if err != nil {
			return nil, err
		}
		return imp, nil

	case ProviderNeo4j:
		if o.Neo4j == nil {
			return nil, errors.New("neo4j connection is required for the neo4j provider")
		}
		return recordsneo4j.NewReader(o.Neo4j, nil, logger), nil

	default:
		return nil, fmt.Errorf("unknown records provider: %q (supported: %v)", o.ProviderType, Providers)
	}
}

// NewImporter opens a SQL-backed reader that can also import records.
func NewImporter(ctx context.Context, o *NewReaderOpts) (Importer, error) {
	if o.DSN == "" {
		return nil, fmt.Errorf("records dsn is required for the %s provider", o.ProviderType)
	}

	switch o.ProviderType {
	case ProviderSQLite:
		r, err := sqlite.NewReader(o.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	case ProviderPostgres:
		r, err := postgres.NewReader(ctx, o.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("records provider %q does not support import", o.ProviderType)
	}
}
