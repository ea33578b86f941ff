package recommend_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/encoder"
	"github.com/papercomputeco/rxrank/pkg/fallback"
	"github.com/papercomputeco/rxrank/pkg/graph"
	"github.com/papercomputeco/rxrank/pkg/idmap"
	"github.com/papercomputeco/rxrank/pkg/logger"
	"github.com/papercomputeco/rxrank/pkg/rank"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/store"
	testutils "github.com/papercomputeco/rxrank/pkg/utils/test"
)

// scenarioTables is the dimension-4 fixture: two stored patients and three
// candidate concepts.
func scenarioTables() *artifact.EmbeddingTables {
	return &artifact.EmbeddingTables{
		Query: [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
		},
		Concept: [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.5, 0.5, 0, 0},
		},
		CandidateIndices: []int{0, 1, 2},
		HasIndices:       true,
	}
}

// scenarioMappings registers the stored patients, two cold-start patients and
// a block of extra ids. Concept 2 has no external id.
func scenarioMappings() *artifact.MappingTables {
	patients := []artifact.Entry{
		{External: "P-A", Index: 0},
		{External: "P-B", Index: 1},
		{External: "P-COLD", Index: 5},
		{External: "P-LONELY", Index: 6},
	}
	for i := range 15 {
		patients = append(patients, artifact.Entry{External: fmt.Sprintf("P-%02d", i), Index: 10 + i})
	}

	return &artifact.MappingTables{Sections: map[string][]artifact.Entry{
		artifact.AliasPidToIdx: patients,
		artifact.AliasCuiToIdx: {
			{External: "C-A", Index: 0},
			{External: "C-B", Index: 1},
		},
	}}
}

func coldGraph() graph.Source {
	g, err := graph.NewMemory(&artifact.GraphTables{
		PatientConcept: [][2]int{{5, 0}, {5, 2}, {5, 7}, {6, 7}},
	})
	Expect(err).NotTo(HaveOccurred())
	return g
}

func build(tables *artifact.EmbeddingTables) (*store.Store, *idmap.Resolver) {
	s, err := store.Load(tables)
	Expect(err).NotTo(HaveOccurred())
	r, err := idmap.Build(scenarioMappings(), s.QueryCount())
	Expect(err).NotTo(HaveOccurred())
	return s, r
}

var _ = Describe("Engine", func() {
	var (
		ctx    context.Context
		st     *store.Store
		res    *idmap.Resolver
		enc    *testutils.MockEncoder
		engine *recommend.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		st, res = build(scenarioTables())

		enc = testutils.NewMockEncoder(4)
		enc.Vectors = map[graph.Node][]float32{
			{Type: graph.NodeQuery, Index: 5}:   {1, 0, 0, 0},
			{Type: graph.NodeConcept, Index: 0}: {0.5, 0, 0, 0},
			{Type: graph.NodeConcept, Index: 2}: {2, 0, 0, 0},
			{Type: graph.NodeConcept, Index: 7}: {9, 0, 0, 0},
		}

		sampler, err := fallback.New(coldGraph(), enc, st, fallback.Config{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		engine, err = recommend.New(st, res,
			recommend.WithFallback(sampler),
			recommend.WithLogger(logger.Nop()),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("stored query entities", func() {
		It("ranks the dimension-4 scenario", func() {
			resp, err := engine.Recommend(ctx, recommend.Request{QueryID: "P-A", K: 2})
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.QueryID).To(Equal("P-A"))
			Expect(resp.Source).To(Equal(recommend.SourceStore))
			Expect(resp.Recommendations).To(Equal([]recommend.Recommendation{
				{ExternalID: "C-A", Score: 1.0, GlobalConceptIndex: 0},
				{ExternalID: "C0000002", Score: 0.5, GlobalConceptIndex: 2},
			}))
		})

		It("returns min(k, candidate count) results", func() {
			for _, k := range []int{1, 2, 3, 4, 50} {
				resp, err := engine.Recommend(ctx, recommend.Request{QueryID: "P-B", K: k})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Recommendations).To(HaveLen(min(k, st.CandidateCount())))
			}
		})

		It("round-trips external ids through the candidate index set", func() {
			resp, err := engine.Recommend(ctx, recommend.Request{QueryID: "P-A", K: 3})
			Expect(err).NotTo(HaveOccurred())

			seen := map[int]string{}
			for _, r := range resp.Recommendations {
				seen[r.GlobalConceptIndex] = r.ExternalID
			}
			for local := range st.CandidateCount() {
				g := st.CandidateGlobalIndex(local)
				Expect(seen).To(HaveKeyWithValue(g, res.ExternalForCandidate(g)))
			}
		})

		It("resolves a padded id", func() {
			resp, err := engine.Recommend(ctx, recommend.Request{QueryID: "  P-A ", K: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Recommendations[0].GlobalConceptIndex).To(Equal(0))
		})

		It("never samples the graph", func() {
			for _, id := range []string{"P-A", "P-B"} {
				_, err := engine.Recommend(ctx, recommend.Request{QueryID: id})
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(enc.Calls()).To(BeZero())
		})
	})

	Describe("k handling", func() {
		var wide *recommend.Engine

		BeforeEach(func() {
			// Eight candidates with two exact ties.
			tables := &artifact.EmbeddingTables{
				Query: [][]float32{{1, 1, 0}},
				Concept: [][]float32{
					{0.1, 0, 0}, {0.9, 0, 0}, {0.4, 0.4, 0}, {0.2, 0, 1},
					{0.8, 0, 0}, {0, 0.9, 0}, {0.4, 0.4, 0}, {0, 0, 5},
				},
				CandidateIndices: []int{0, 1, 2, 3, 4, 5, 6, 7},
				HasIndices:       true,
			}
			s, r := build(tables)

			var err error
			wide, err = recommend.New(s, r, recommend.WithLogger(logger.Nop()))
			Expect(err).NotTo(HaveOccurred())
		})

		It("defaults a non-positive k to 5", func() {
			for _, k := range []int{0, -1, -100} {
				resp, err := wide.Recommend(ctx, recommend.Request{QueryID: "P-A", K: k})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Recommendations).To(HaveLen(rank.DefaultK))
			}
		})

		It("orders by descending score with ties in ascending index", func() {
			resp, err := wide.Recommend(ctx, recommend.Request{QueryID: "P-A", K: 8})
			Expect(err).NotTo(HaveOccurred())

			var globals []int
			for _, r := range resp.Recommendations {
				globals = append(globals, r.GlobalConceptIndex)
			}
			Expect(globals).To(Equal([]int{1, 5, 2, 4, 6, 3, 0, 7}))

			for i := 1; i < len(resp.Recommendations); i++ {
				Expect(resp.Recommendations[i].Score).To(BeNumerically("<=", resp.Recommendations[i-1].Score))
			}
		})

		It("is identical across repeated calls", func() {
			first, err := wide.Recommend(ctx, recommend.Request{QueryID: "P-A", K: 8})
			Expect(err).NotTo(HaveOccurred())
			for range 20 {
				again, err := wide.Recommend(ctx, recommend.Request{QueryID: "P-A", K: 8})
				Expect(err).NotTo(HaveOccurred())
				Expect(again).To(Equal(first))
			}
		})

		It("rejects k above the maximum", func() {
			_, err := wide.Recommend(ctx, recommend.Request{QueryID: "P-A", K: rank.MaxK + 1})
			Expect(recommend.KindOf(err)).To(Equal(recommend.KindValidation))
		})
	})

	Describe("unknown ids", func() {
		It("returns a NotFound payload with sample ids", func() {
			_, err := engine.Recommend(ctx, recommend.Request{QueryID: "P-404"})

			var nf *recommend.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.QueryID).To(Equal("P-404"))
			Expect(nf.Message).To(ContainSubstring("P-404"))
			Expect(nf.SampleIDs).To(HaveLen(recommend.MaxSampleIDs))
			Expect(nf.SampleIDs).NotTo(ContainElement("P-404"))
			Expect(nf.SampleIDs[0]).To(Equal("P-A"))

			Expect(recommend.KindOf(err)).To(Equal(recommend.KindNotFound))
			Expect(enc.Calls()).To(BeZero())
		})

		It("honors a smaller sample size", func() {
			small, err := recommend.New(st, res, recommend.WithSampleSize(3))
			Expect(err).NotTo(HaveOccurred())

			_, err = small.Recommend(ctx, recommend.Request{QueryID: "nope"})
			var nf *recommend.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.SampleIDs).To(Equal([]string{"P-A", "P-B", "P-COLD"}))
		})

		It("rejects a blank id as invalid", func() {
			_, err := engine.Recommend(ctx, recommend.Request{QueryID: "   "})
			Expect(recommend.KindOf(err)).To(Equal(recommend.KindValidation))
		})
	})

	Describe("cold-start query entities", func() {
		It("scores the sampled candidates", func() {
			resp, err := engine.Recommend(ctx, recommend.Request{QueryID: "P-COLD", K: 5})
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Source).To(Equal(recommend.SourceFallback))
			Expect(resp.Recommendations).To(Equal([]recommend.Recommendation{
				{ExternalID: "C0000002", Score: 2, GlobalConceptIndex: 2},
				{ExternalID: "C-A", Score: 0.5, GlobalConceptIndex: 0},
			}))
			Expect(enc.Calls()).To(Equal(int64(1)))
		})

		It("returns an empty list when no candidate is reached", func() {
			resp, err := engine.Recommend(ctx, recommend.Request{QueryID: "P-LONELY"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Recommendations).To(BeEmpty())
			Expect(resp.Recommendations).NotTo(BeNil())
		})

		It("classifies encoder failures as retryable encode errors", func() {
			enc.Err = errors.New("model unavailable")

			_, err := engine.Recommend(ctx, recommend.Request{QueryID: "P-COLD"})
			Expect(recommend.KindOf(err)).To(Equal(recommend.KindEncode))
			Expect(err).To(MatchError(encoder.ErrEncode))
			Expect(recommend.IsRetryable(err)).To(BeTrue())
		})

		It("is an internal error without a sampler", func() {
			bare, err := recommend.New(st, res)
			Expect(err).NotTo(HaveOccurred())
			Expect(bare.FallbackEnabled()).To(BeFalse())

			_, err = bare.Recommend(ctx, recommend.Request{QueryID: "P-COLD"})
			Expect(recommend.KindOf(err)).To(Equal(recommend.KindInternal))
			Expect(err).To(MatchError(recommend.ErrNoFallback))
		})
	})

	Describe("ListQueryIDs", func() {
		It("returns every id below the default size and reports the total", func() {
			l := engine.ListQueryIDs(0)
			Expect(l.IDs).To(HaveLen(19))
			Expect(l.Total).To(Equal(19))
			Expect(l.IDs[:2]).To(Equal([]string{"P-A", "P-B"}))
		})

		It("limits to n", func() {
			Expect(engine.ListQueryIDs(3).IDs).To(Equal([]string{"P-A", "P-B", "P-COLD"}))
		})
	})

	It("closes the sampler encoder", func() {
		enc.Block = true
		Expect(engine.Close()).To(Succeed())

		// Close released the mock, so a blocked Encode returns at once.
		_, err := engine.Recommend(ctx, recommend.Request{QueryID: "P-COLD"})
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Assemble", func() {
	It("maps local hits to global ids and rounds scores", func() {
		_, res := build(scenarioTables())
		globals := []int{2, 0}

		out := recommend.Assemble(
			[]rank.Hit{{Local: 1, Score: 0.123456}, {Local: 0, Score: -0.00004}},
			func(l int) int { return globals[l] },
			res,
		)
		Expect(out).To(Equal([]recommend.Recommendation{
			{ExternalID: "C-A", Score: 0.1235, GlobalConceptIndex: 0},
			{ExternalID: "C0000002", Score: 0, GlobalConceptIndex: 2},
		}))
	})
})
