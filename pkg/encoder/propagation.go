package encoder

import (
	"context"

	"github.com/papercomputeco/rxrank/pkg/graph"
)

// VectorSource exposes stored embeddings by index.
type VectorSource interface {
	QueryVector(i int) ([]float32, bool)
	ConceptVector(global int) ([]float32, bool)
	Dimension() int
}

// Propagation encodes in process from stored embeddings. Concepts and stored
// patients keep their vectors; any other patient node, the anchor included,
// gets the mean of the stored concept vectors it links to in the subgraph,
// or a zero vector when it links to none. Concepts without a stored vector
// encode as zero.
type Propagation struct {
	vectors VectorSource
}

// NewPropagation returns a Propagation encoder over vs.
func NewPropagation(vs VectorSource) *Propagation {
	return &Propagation{vectors: vs}
}

// Encode returns one vector per node of sg.
func (p *Propagation) Encode(ctx context.Context, sg *graph.Subgraph) ([][]float32, error) {
	dim := p.vectors.Dimension()
	out := make([][]float32, len(sg.Nodes))

	known := make([]bool, len(sg.Nodes))
	for i, n := range sg.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			v  []float32
			ok bool
		)
		switch n.Type {
		case graph.NodeConcept:
			v, ok = p.vectors.ConceptVector(n.Index)
		case graph.NodeQuery:
			if i > 0 {
				v, ok = p.vectors.QueryVector(n.Index)
			}
		}
		if ok {
			out[i] = append([]float32(nil), v...)
			known[i] = n.Type == graph.NodeConcept
		}
	}

	sums := make([][]float64, len(sg.Nodes))
	counts := make([]int, len(sg.Nodes))
	for _, e := range sg.Edges {
		for _, pair := range [2][2]int{{e.Src, e.Dst}, {e.Dst, e.Src}} {
			self, other := pair[0], pair[1]
			if out[self] != nil || sg.Nodes[self].Type != graph.NodeQuery || !known[other] {
				continue
			}
			if sums[self] == nil {
				sums[self] = make([]float64, dim)
			}
			for j, x := range out[other] {
				sums[self][j] += float64(x)
			}
			counts[self]++
		}
	}

	for i := range out {
		if out[i] != nil {
			continue
		}
		out[i] = make([]float32, dim)
		if counts[i] == 0 {
			continue
		}
		for j := range out[i] {
			out[i][j] = float32(sums[i][j] / float64(counts[i]))
		}
	}

	return out, nil
}

// Close is a no-op.
func (p *Propagation) Close() error { return nil }

var _ Encoder = (*Propagation)(nil)
