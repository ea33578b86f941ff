// Package neo4j reads patient records from the clinical knowledge graph.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/rxrank/pkg/neo4jdb"
	"github.com/papercomputeco/rxrank/pkg/records"
)

// queries maps each kind to a Cypher query taking $id. The first
// relationship per target node is kept, in element order.
var queries = map[records.Kind]string{
	records.KindDrug: `
MATCH (p:Patient {id: $id})-[r:PRESCRIBED]->(d:Drug)
WITH d, collect(r)[0] AS rel
RETURN toString(d.id) AS code, coalesce(d.name, '') AS name
ORDER BY code`,
	records.KindDiagnosis: `
MATCH (p:Patient {id: $id})-[r:DIAGNOSED_AS]->(d:Diagnosis)
WITH d, collect(r)[0] AS rel
RETURN toString(d.id) AS code, coalesce(d.name, '') AS name
ORDER BY code`,
	records.KindAdmission: `
MATCH (p:Patient {id: $id})-[r:ADMITTED]->(e:Encounter)
WITH e, collect(r)[0] AS rel
RETURN toString(e.id) AS code, coalesce(e.type, '') AS name
ORDER BY code`,
}

// visitQueries maps each visit kind to a Cypher query taking $id, the
// encounter id. Drugs are those prescribed for the visit's diagnoses.
var visitQueries = map[records.Kind]string{
	records.KindDiagnosis: `
MATCH (e:Encounter {id: $id})-[r:DIAGNOSED]->(d:Diagnosis)
WITH d, collect(r)[0] AS rel
RETURN toString(d.id) AS code, coalesce(d.name, '') AS name
ORDER BY code`,
	records.KindDrug: `
MATCH (e:Encounter {id: $id})-[:DIAGNOSED]->(:Diagnosis)-[r:PRESCRIBED_FOR]->(d:Drug)
WITH d, collect(r)[0] AS rel
RETURN toString(d.id) AS code, coalesce(d.name, '') AS name
ORDER BY code`,
}

const visitsQuery = `
MATCH (e:Encounter)
RETURN toString(e.id) AS visit
ORDER BY e.id
LIMIT $limit`

// Reader implements records.Reader with Cypher reads.
type Reader struct {
	runner neo4jdb.Runner
	closer func() error
	logger *slog.Logger
}

// NewReader wraps runner. closer, when non-nil, runs on Close.
func NewReader(runner neo4jdb.Runner, closer func() error, logger *slog.Logger) *Reader {
	return &Reader{runner: runner, closer: closer, logger: logger}
}

func (r *Reader) Records(ctx context.Context, queryID string, kind records.Kind, limit int) ([]records.Record, error) {
	id, err := records.NumericID(queryID)
	if err != nil {
		return nil, err
	}

	kinds := records.Kinds
	if kind != "" {
		kinds = []records.Kind{kind}
	}

	out, err := r.read(ctx, queries, kinds, id)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("neo4j records read", "query_id", queryID, "kind", string(kind), "rows", len(out))
	return records.Dedup(out, limit), nil
}

func (r *Reader) VisitRecords(ctx context.Context, visitID string, kind records.Kind, limit int) ([]records.Record, error) {
	kinds, err := records.VisitKindsFor(kind)
	if err != nil {
		return nil, err
	}
	id, err := records.NumericID(visitID)
	if err != nil {
		return nil, err
	}

	out, err := r.read(ctx, visitQueries, kinds, id)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("neo4j visit records read", "visit_id", visitID, "kind", string(kind), "rows", len(out))
	return records.Dedup(out, limit), nil
}

func (r *Reader) Visits(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = records.DefaultVisitsLimit
	}

	rows, err := r.runner.Read(ctx, visitsQuery, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("reading visits: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if v := neo4jdb.String(row, "visit"); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// read runs the query of each kind in turn with $id bound to id.
func (r *Reader) read(ctx context.Context, byKind map[records.Kind]string, kinds []records.Kind, id int64) ([]records.Record, error) {
	var out []records.Record
	for _, k := range kinds {
		cypher, ok := byKind[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q", records.ErrInvalidKind, k)
		}

		rows, err := r.runner.Read(ctx, cypher, map[string]any{"id": id})
		if err != nil {
			return nil, fmt.Errorf("reading %s records: %w", k, err)
		}
		for _, row := range rows {
			code := neo4jdb.String(row, "code")
			if code == "" {
				continue
			}
			out = append(out, records.Record{
				Code:   code,
				Name:   neo4jdb.String(row, "name"),
				Kind:   k,
				Source: "neo4j",
			})
		}
	}
	return out, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
