package graph_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/graph"
	"github.com/papercomputeco/rxrank/pkg/logger"
)

func patient(i int) graph.Node { return graph.Node{Type: graph.NodeQuery, Index: i} }
func concept(i int) graph.Node { return graph.Node{Type: graph.NodeConcept, Index: i} }

type fakeRunner struct {
	rows   []map[string]any
	err    error
	cypher string
	params map[string]any
}

func (f *fakeRunner) Read(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.cypher = cypher
	f.params = params
	return f.rows, f.err
}

var _ = Describe("types", func() {
	It("round trips node and edge names", func() {
		for _, t := range []graph.NodeType{graph.NodeQuery, graph.NodeConcept} {
			Expect(graph.ParseNodeType(t.String())).To(Equal(t))
		}
		for _, t := range []graph.EdgeType{graph.EdgeRelatesTo, graph.EdgeRelatedBy, graph.EdgeAssociated} {
			Expect(graph.ParseEdgeType(t.String())).To(Equal(t))
		}
		Expect(graph.ParseNodeType("query")).To(Equal(graph.NodeQuery))
	})

	It("rejects unknown names", func() {
		_, err := graph.ParseNodeType("drug")
		Expect(err).To(MatchError(graph.ErrGraph))
		_, err = graph.ParseEdgeType("prescribed")
		Expect(err).To(MatchError(graph.ErrGraph))
	})

	It("reverses relations", func() {
		Expect(graph.EdgeRelatesTo.Reverse()).To(Equal(graph.EdgeRelatedBy))
		Expect(graph.EdgeRelatedBy.Reverse()).To(Equal(graph.EdgeRelatesTo))
		Expect(graph.EdgeAssociated.Reverse()).To(Equal(graph.EdgeAssociated))
	})

	It("formats nodes", func() {
		Expect(concept(12).String()).To(Equal("concept:12"))
		Expect(patient(3).String()).To(Equal("patient:3"))
	})
})

var _ = Describe("Memory", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("adds reverse edges and orders neighbors", func() {
		m, err := graph.NewMemory(&artifact.GraphTables{
			Edges: []artifact.GraphEdge{
				{SrcType: "concept", Src: 5, DstType: "concept", Dst: 2, Type: "associated"},
			},
			PatientConcept: [][2]int{{0, 5}, {0, 1}, {1, 5}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(m.EdgeCount()).To(Equal(4))
		Expect(m.NodeCount()).To(Equal(5))

		ns, err := m.Neighbors(ctx, patient(0))
		Expect(err).NotTo(HaveOccurred())
		Expect(ns).To(Equal([]graph.Neighbor{
			{Node: concept(1), Edge: graph.EdgeRelatesTo},
			{Node: concept(5), Edge: graph.EdgeRelatesTo},
		}))

		ns, err = m.Neighbors(ctx, concept(5))
		Expect(err).NotTo(HaveOccurred())
		Expect(ns).To(Equal([]graph.Neighbor{
			{Node: patient(0), Edge: graph.EdgeRelatedBy},
			{Node: patient(1), Edge: graph.EdgeRelatedBy},
			{Node: concept(2), Edge: graph.EdgeAssociated},
		}))
	})

	It("drops duplicate edges", func() {
		m, err := graph.NewMemory(&artifact.GraphTables{
			PatientConcept: [][2]int{{0, 1}, {0, 1}},
			Edges: []artifact.GraphEdge{
				{SrcType: "concept", Src: 1, DstType: "patient", Dst: 0, Type: "related_by"},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		ns, err := m.Neighbors(ctx, patient(0))
		Expect(err).NotTo(HaveOccurred())
		Expect(ns).To(HaveLen(1))
	})

	It("returns no neighbors for unknown nodes", func() {
		m, err := graph.NewMemory(nil)
		Expect(err).NotTo(HaveOccurred())

		ns, err := m.Neighbors(ctx, patient(42))
		Expect(err).NotTo(HaveOccurred())
		Expect(ns).To(BeEmpty())
	})

	It("hands out copies", func() {
		m, err := graph.NewMemory(&artifact.GraphTables{PatientConcept: [][2]int{{0, 1}}})
		Expect(err).NotTo(HaveOccurred())

		ns, _ := m.Neighbors(ctx, patient(0))
		ns[0].Node.Index = 99

		again, _ := m.Neighbors(ctx, patient(0))
		Expect(again[0].Node.Index).To(Equal(1))
	})

	DescribeTable("rejects malformed edges",
		func(e artifact.GraphEdge) {
			_, err := graph.NewMemory(&artifact.GraphTables{Edges: []artifact.GraphEdge{e}})
			Expect(err).To(MatchError(graph.ErrGraph))
		},
		Entry("unknown node type", artifact.GraphEdge{SrcType: "drug", DstType: "concept", Type: "associated"}),
		Entry("unknown edge type", artifact.GraphEdge{SrcType: "concept", DstType: "concept", Type: "treats"}),
		Entry("wrong endpoints", artifact.GraphEdge{SrcType: "concept", DstType: "concept", Type: "relates_to"}),
		Entry("negative index", artifact.GraphEdge{SrcType: "concept", Src: -1, DstType: "concept", Type: "associated"}),
	)
})

var _ = Describe("Neo4j", func() {
	It("queries patient neighbors by idx", func() {
		r := &fakeRunner{rows: []map[string]any{
			{"type": "concept", "idx": int64(9), "edge": "relates_to"},
			{"type": "concept", "idx": int64(3), "edge": "relates_to"},
			{"type": "concept", "idx": nil, "edge": "relates_to"},
		}}
		g := graph.NewNeo4j(r, logger.Nop())

		ns, err := g.Neighbors(context.Background(), patient(4))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.cypher).To(ContainSubstring("MATCH (p:Patient {idx: $idx})"))
		Expect(r.params).To(HaveKeyWithValue("idx", int64(4)))
		Expect(ns).To(Equal([]graph.Neighbor{
			{Node: concept(3), Edge: graph.EdgeRelatesTo},
			{Node: concept(9), Edge: graph.EdgeRelatesTo},
		}))
	})

	It("queries concept neighbors with both relations", func() {
		r := &fakeRunner{rows: []map[string]any{
			{"type": "concept", "idx": int64(2), "edge": "associated"},
			{"type": "patient", "idx": int64(8), "edge": "related_by"},
		}}
		g := graph.NewNeo4j(r, logger.Nop())

		ns, err := g.Neighbors(context.Background(), concept(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.cypher).To(ContainSubstring("ASSOCIATED"))
		Expect(ns).To(Equal([]graph.Neighbor{
			{Node: patient(8), Edge: graph.EdgeRelatedBy},
			{Node: concept(2), Edge: graph.EdgeAssociated},
		}))
	})

	It("wraps backend failures", func() {
		g := graph.NewNeo4j(&fakeRunner{err: errors.New("connection reset")}, logger.Nop())

		_, err := g.Neighbors(context.Background(), patient(0))
		Expect(err).To(MatchError(graph.ErrGraph))
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
	})

	It("rejects rows with unknown types", func() {
		g := graph.NewNeo4j(&fakeRunner{rows: []map[string]any{
			{"type": "drug", "idx": int64(1), "edge": "relates_to"},
		}}, logger.Nop())

		_, err := g.Neighbors(context.Background(), patient(0))
		Expect(err).To(MatchError(graph.ErrGraph))
	})
})
