package artifact

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/rxrank/pkg/vector/sqlitevec"
)

// LoadEmbeddings fetches and decodes the embedding artifact at raw. SQLite
// artifacts are spooled to disk when remote or compressed.
func (o *Opener) LoadEmbeddings(ctx context.Context, raw string) (*EmbeddingTables, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}

	_, format := Detect(loc.Name())
	if format == FormatSQLite {
		path, cleanup, err := o.LocalPath(ctx, loc)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		db, err := sqlitevec.Open(path, o.logger)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrDecode, raw, err)
		}
		defer db.Close()

		return ReadEmbeddingsSQLite(ctx, db)
	}

	var t *EmbeddingTables
	err = o.withReader(ctx, loc, func(r io.Reader) error {
		t, err = DecodeEmbeddingsJSON(r)
		return err
	})
	return t, err
}

// LoadMappings fetches and decodes the mapping artifact at raw. An empty
// location yields empty tables, so every id is synthesized.
func (o *Opener) LoadMappings(ctx context.Context, raw string) (*MappingTables, error) {
	if raw == "" {
		return &MappingTables{Sections: map[string][]Entry{}}, nil
	}

	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}

	var m *MappingTables
	err = o.withReader(ctx, loc, func(r io.Reader) error {
		m, err = DecodeMappings(r)
		return err
	})
	return m, err
}

// LoadGraph fetches and decodes the graph artifact at raw.
func (o *Opener) LoadGraph(ctx context.Context, raw string) (*GraphTables, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}

	var g *GraphTables
	err = o.withReader(ctx, loc, func(r io.Reader) error {
		g, err = DecodeGraph(r)
		return err
	})
	return g, err
}

// LoadRecords fetches and decodes the records artifact at raw.
func (o *Opener) LoadRecords(ctx context.Context, raw string) (*RecordTables, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}

	var t *RecordTables
	err = o.withReader(ctx, loc, func(r io.Reader) error {
		t, err = DecodeRecords(r)
		return err
	})
	return t, err
}

// LoadModel fetches the embedding and mapping artifacts concurrently.
func (o *Opener) LoadModel(ctx context.Context, embeddings, mappings string) (*EmbeddingTables, *MappingTables, error) {
	var (
		et *EmbeddingTables
		mt *MappingTables
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		et, err = o.LoadEmbeddings(gctx, embeddings)
		return err
	})
	g.Go(func() error {
		var err error
		mt, err = o.LoadMappings(gctx, mappings)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	o.logger.Info("artifacts loaded",
		"embeddings", embeddings,
		"mappings", mappings,
		"query_rows", len(et.Query),
		"concept_rows", len(et.Concept),
		"mapping_sections", len(mt.Sections),
	)

	return et, mt, nil
}

func (o *Opener) withReader(ctx context.Context, loc Location, fn func(io.Reader) error) error {
	rc, err := o.Open(ctx, loc)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := fn(rc); err != nil {
		return fmt.Errorf("%s: %w", loc.Raw, err)
	}
	return nil
}
