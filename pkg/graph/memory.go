package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/papercomputeco/rxrank/pkg/artifact"
)

// Memory is an immutable adjacency-list Source.
type Memory struct {
	adj   map[Node][]Neighbor
	edges int
}

// NewMemory builds adjacency lists from a graph artifact. Every edge is
// stored in both directions.
func NewMemory(t *artifact.GraphTables) (*Memory, error) {
	m := &Memory{adj: map[Node][]Neighbor{}}
	if t == nil {
		return m, nil
	}

	for i, e := range t.Edges {
		srcType, err := ParseNodeType(e.SrcType)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		dstType, err := ParseNodeType(e.DstType)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		et, err := ParseEdgeType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		if err := m.add(Node{Type: srcType, Index: e.Src}, Node{Type: dstType, Index: e.Dst}, et); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}

	for i, pc := range t.PatientConcept {
		if err := m.add(Node{Type: NodeQuery, Index: pc[0]}, Node{Type: NodeConcept, Index: pc[1]}, EdgeRelatesTo); err != nil {
			return nil, fmt.Errorf("patient_concept %d: %w", i, err)
		}
	}

	for n, ns := range m.adj {
		slices.SortFunc(ns, compareNeighbors)
		m.adj[n] = slices.Compact(ns)
	}

	return m, nil
}

func (m *Memory) add(src, dst Node, et EdgeType) error {
	wantSrc, wantDst := et.endpoints()
	if src.Type != wantSrc || dst.Type != wantDst {
		return fmt.Errorf("%w: %s edge cannot join %s to %s", ErrGraph, et, src, dst)
	}
	if src.Index < 0 || dst.Index < 0 {
		return fmt.Errorf("%w: negative node index in %s -> %s", ErrGraph, src, dst)
	}

	m.adj[src] = append(m.adj[src], Neighbor{Node: dst, Edge: et})
	m.adj[dst] = append(m.adj[dst], Neighbor{Node: src, Edge: et.Reverse()})
	m.edges++
	return nil
}

// Neighbors returns a copy of n's adjacency list.
func (m *Memory) Neighbors(_ context.Context, n Node) ([]Neighbor, error) {
	return slices.Clone(m.adj[n]), nil
}

// NodeCount returns the number of nodes with at least one edge.
func (m *Memory) NodeCount() int { return len(m.adj) }

// EdgeCount returns the number of edges read, before deduplication.
func (m *Memory) EdgeCount() int { return m.edges }
