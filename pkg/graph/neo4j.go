package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/papercomputeco/rxrank/pkg/neo4jdb"
)

const (
	patientNeighborsCypher = `
MATCH (p:Patient {idx: $idx})-[:RELATES_TO]->(c:Concept)
RETURN DISTINCT 'concept' AS type, c.idx AS idx, 'relates_to' AS edge
`

	conceptNeighborsCypher = `
MATCH (c:Concept {idx: $idx})
OPTIONAL MATCH (p:Patient)-[:RELATES_TO]->(c)
WITH c, collect(DISTINCT p.idx) AS patients
OPTIONAL MATCH (c)-[:ASSOCIATED]-(o:Concept)
WITH patients, collect(DISTINCT o.idx) AS concepts
UNWIND [x IN patients | {type: 'patient', idx: x, edge: 'related_by'}] +
       [x IN concepts | {type: 'concept', idx: x, edge: 'associated'}] AS n
RETURN n.type AS type, n.idx AS idx, n.edge AS edge
`
)

// Neo4j is a Source over (:Patient {idx})-[:RELATES_TO]->(:Concept {idx})
// with optional (:Concept)-[:ASSOCIATED]-(:Concept) links.
type Neo4j struct {
	runner neo4jdb.Runner
	logger *slog.Logger
}

// NewNeo4j returns a Source backed by runner.
func NewNeo4j(runner neo4jdb.Runner, logger *slog.Logger) *Neo4j {
	return &Neo4j{runner: runner, logger: logger}
}

// Neighbors queries n's neighbors and returns them in canonical order.
func (g *Neo4j) Neighbors(ctx context.Context, n Node) ([]Neighbor, error) {
	cypher := patientNeighborsCypher
	if n.Type == NodeConcept {
		cypher = conceptNeighborsCypher
	}

	rows, err := g.runner.Read(ctx, cypher, map[string]any{"idx": int64(n.Index)})
	if err != nil {
		return nil, fmt.Errorf("%w: neighbors of %s: %w", ErrGraph, n, err)
	}

	out := make([]Neighbor, 0, len(rows))
	for _, row := range rows {
		idx, ok := neo4jdb.Int64(row, "idx")
		if !ok {
			// Nodes without an idx property cannot be addressed.
			continue
		}
		nt, err := ParseNodeType(neo4jdb.String(row, "type"))
		if err != nil {
			return nil, err
		}
		et, err := ParseEdgeType(neo4jdb.String(row, "edge"))
		if err != nil {
			return nil, err
		}
		out = append(out, Neighbor{Node: Node{Type: nt, Index: int(idx)}, Edge: et})
	}

	slices.SortFunc(out, compareNeighbors)
	out = slices.Compact(out)

	g.logger.Debug("neo4j neighbors", "node", n.String(), "count", len(out))

	return out, nil
}
