// Package graph models the heterogeneous patient/concept graph the cold-start
// sampler walks.
package graph

import (
	"cmp"
	"context"
	"errors"
	"fmt"
)

// ErrGraph is returned for malformed graph input or a failing graph backend.
var ErrGraph = errors.New("graph")

// NodeType is the closed set of node kinds.
type NodeType uint8

const (
	NodeQuery NodeType = iota
	NodeConcept
)

func (t NodeType) String() string {
	switch t {
	case NodeQuery:
		return "patient"
	case NodeConcept:
		return "concept"
	default:
		return fmt.Sprintf("NodeType(%d)", uint8(t))
	}
}

// ParseNodeType accepts "patient" (or "query") and "concept".
func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case "patient", "query":
		return NodeQuery, nil
	case "concept":
		return NodeConcept, nil
	default:
		return 0, fmt.Errorf("%w: unknown node type %q", ErrGraph, s)
	}
}

// EdgeType is the closed set of relations.
type EdgeType uint8

const (
	// EdgeRelatesTo runs query to concept.
	EdgeRelatesTo EdgeType = iota
	// EdgeRelatedBy is the reverse of EdgeRelatesTo.
	EdgeRelatedBy
	// EdgeAssociated links two concepts and is its own reverse.
	EdgeAssociated
)

func (t EdgeType) String() string {
	switch t {
	case EdgeRelatesTo:
		return "relates_to"
	case EdgeRelatedBy:
		return "related_by"
	case EdgeAssociated:
		return "associated"
	default:
		return fmt.Sprintf("EdgeType(%d)", uint8(t))
	}
}

// ParseEdgeType parses the String form of an EdgeType.
func ParseEdgeType(s string) (EdgeType, error) {
	switch s {
	case "relates_to":
		return EdgeRelatesTo, nil
	case "related_by", "rev_relates_to":
		return EdgeRelatedBy, nil
	case "associated":
		return EdgeAssociated, nil
	default:
		return 0, fmt.Errorf("%w: unknown edge type %q", ErrGraph, s)
	}
}

// Reverse returns the relation read from the other end.
func (t EdgeType) Reverse() EdgeType {
	switch t {
	case EdgeRelatesTo:
		return EdgeRelatedBy
	case EdgeRelatedBy:
		return EdgeRelatesTo
	default:
		return t
	}
}

// endpoints returns the node types an edge of type t connects.
func (t EdgeType) endpoints() (src, dst NodeType) {
	switch t {
	case EdgeRelatesTo:
		return NodeQuery, NodeConcept
	case EdgeRelatedBy:
		return NodeConcept, NodeQuery
	default:
		return NodeConcept, NodeConcept
	}
}

// Node addresses one entity by type and internal index. For concepts the
// index is the global concept index.
type Node struct {
	Type  NodeType
	Index int
}

func (n Node) String() string {
	return fmt.Sprintf("%s:%d", n.Type, n.Index)
}

// Neighbor is a node reached over an edge of the given type.
type Neighbor struct {
	Node Node
	Edge EdgeType
}

// Edge connects two subgraph-local node positions.
type Edge struct {
	Src  int
	Dst  int
	Type EdgeType
}

// Subgraph is a sampled neighborhood. Nodes[0] is the anchor.
type Subgraph struct {
	Nodes []Node
	Edges []Edge
}

// Anchor returns the node the subgraph was sampled around.
func (s *Subgraph) Anchor() Node {
	return s.Nodes[0]
}

// Source returns the neighbors of a node in a deterministic order. Unknown
// nodes have no neighbors.
type Source interface {
	Neighbors(ctx context.Context, n Node) ([]Neighbor, error)
}

// compareNeighbors orders neighbors by edge type, node type, then index.
func compareNeighbors(a, b Neighbor) int {
	if c := cmp.Compare(a.Edge, b.Edge); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Node.Type, b.Node.Type); c != 0 {
		return c
	}
	return cmp.Compare(a.Node.Index, b.Node.Index)
}
