package store_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/store"
	"github.com/papercomputeco/rxrank/pkg/vector"
)

func scenarioTables() *artifact.EmbeddingTables {
	return &artifact.EmbeddingTables{
		Version: "1",
		Query:   [][]float32{{1, 0, 0, 0}},
		Concept: [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.5, 0.5, 0, 0},
			{0, 0, 1, 0},
		},
		CandidateIndices: []int{0, 1, 2},
		HasIndices:       true,
	}
}

var _ = Describe("Store", func() {
	Describe("Load", func() {
		It("derives the candidate matrix from the index set", func() {
			t := scenarioTables()
			t.CandidateIndices = []int{2, 0}

			s, err := store.Load(t)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Dimension()).To(Equal(4))
			Expect(s.QueryCount()).To(Equal(1))
			Expect(s.ConceptCount()).To(Equal(4))
			Expect(s.CandidateCount()).To(Equal(2))
			Expect(s.CandidateMatrix().Row(0)).To(Equal([]float32{0.5, 0.5, 0, 0}))
			Expect(s.CandidateGlobalIndex(0)).To(Equal(2))
			Expect(s.CandidateGlobalIndex(1)).To(Equal(0))
			Expect(s.CandidateGlobals()).To(Equal([]int{2, 0}))
			Expect(s.Version()).To(Equal("1"))
		})

		It("does not alias the caller's tables", func() {
			t := scenarioTables()
			s, err := store.Load(t)
			Expect(err).NotTo(HaveOccurred())

			t.Concept[0][0] = 42
			t.CandidateIndices[0] = 3
			Expect(s.CandidateMatrix().Row(0)).To(Equal([]float32{1, 0, 0, 0}))
			Expect(s.CandidateGlobalIndex(0)).To(Equal(0))
		})

		It("accepts an empty candidate index set", func() {
			t := scenarioTables()
			t.CandidateIndices = []int{}

			s, err := store.Load(t)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.CandidateCount()).To(Equal(0))
		})

		It("accepts a pre-gathered candidate matrix without a concept matrix", func() {
			s, err := store.Load(&artifact.EmbeddingTables{
				Query:            [][]float32{{1, 1}},
				Candidate:        [][]float32{{1, 0}, {0, 1}},
				CandidateIndices: []int{40, 7},
				HasIndices:       true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.CandidateCount()).To(Equal(2))
			Expect(s.CandidateGlobalIndex(0)).To(Equal(40))
			Expect(s.IsCandidate(7)).To(BeTrue())

			v, ok := s.ConceptVector(7)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]float32{0, 1}))

			_, ok = s.ConceptVector(8)
			Expect(ok).To(BeFalse())
		})

		It("uses identity globals for a pre-gathered matrix without indices", func() {
			s, err := store.Load(&artifact.EmbeddingTables{
				Query:     [][]float32{{1}},
				Candidate: [][]float32{{1}, {2}, {3}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.CandidateGlobals()).To(Equal([]int{0, 1, 2}))
		})

		DescribeTable("rejects invalid tables with ErrLoad",
			func(mutate func(*artifact.EmbeddingTables)) {
				t := scenarioTables()
				mutate(t)
				_, err := store.Load(t)
				Expect(err).To(MatchError(store.ErrLoad))
			},
			Entry("empty query matrix", func(t *artifact.EmbeddingTables) { t.Query = nil }),
			Entry("empty concept matrix", func(t *artifact.EmbeddingTables) { t.Concept = nil }),
			Entry("missing index set", func(t *artifact.EmbeddingTables) {
				t.CandidateIndices = nil
				t.HasIndices = false
			}),
			Entry("ragged query rows", func(t *artifact.EmbeddingTables) { t.Query = [][]float32{{1, 0, 0, 0}, {1}} }),
			Entry("ragged concept rows", func(t *artifact.EmbeddingTables) { t.Concept[1] = []float32{0, 1} }),
			Entry("query and concept dimensions differ", func(t *artifact.EmbeddingTables) {
				t.Query = [][]float32{{1, 0, 0}}
			}),
			Entry("index past the concept matrix", func(t *artifact.EmbeddingTables) { t.CandidateIndices = []int{0, 4} }),
			Entry("negative index", func(t *artifact.EmbeddingTables) { t.CandidateIndices = []int{-1} }),
			Entry("duplicate index", func(t *artifact.EmbeddingTables) { t.CandidateIndices = []int{1, 2, 1} }),
			Entry("pre-gathered dimension mismatch", func(t *artifact.EmbeddingTables) {
				t.Candidate = [][]float32{{1, 0}}
			}),
			Entry("pre-gathered length mismatch", func(t *artifact.EmbeddingTables) {
				t.Candidate = [][]float32{{1, 0, 0, 0}}
				t.CandidateIndices = []int{0, 1}
			}),
			Entry("pre-gathered index past the concept matrix", func(t *artifact.EmbeddingTables) {
				t.Candidate = [][]float32{{1, 0, 0, 0}}
				t.CandidateIndices = []int{9}
			}),
		)

		It("rejects nil tables", func() {
			_, err := store.Load(nil)
			Expect(err).To(MatchError(store.ErrLoad))
		})

		It("tags dimension errors", func() {
			t := scenarioTables()
			t.Query = [][]float32{{1, 0}}
			_, err := store.Load(t)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})
	})

	Describe("accessors", func() {
		var s *store.Store

		BeforeEach(func() {
			var err error
			s, err = store.Load(scenarioTables())
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns query rows and reports cold starts", func() {
			v, ok := s.QueryVector(0)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]float32{1, 0, 0, 0}))

			_, ok = s.QueryVector(1)
			Expect(ok).To(BeFalse())
			_, ok = s.QueryVector(-1)
			Expect(ok).To(BeFalse())
		})

		It("tracks candidate membership", func() {
			Expect(s.IsCandidate(2)).To(BeTrue())
			Expect(s.IsCandidate(3)).To(BeFalse())
			Expect(s.IsCandidate(-5)).To(BeFalse())
		})

		It("returns concept rows by global index", func() {
			v, ok := s.ConceptVector(3)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]float32{0, 0, 1, 0}))

			_, ok = s.ConceptVector(4)
			Expect(ok).To(BeFalse())
		})
	})
})
