package encoder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rxrank/pkg/encoder"
	"github.com/papercomputeco/rxrank/pkg/encoder/encoderutils"
	"github.com/papercomputeco/rxrank/pkg/graph"
)

type fakeVectors struct {
	query   map[int][]float32
	concept map[int][]float32
	dim     int
}

func (f fakeVectors) QueryVector(i int) ([]float32, bool) {
	v, ok := f.query[i]
	return v, ok
}

func (f fakeVectors) ConceptVector(g int) ([]float32, bool) {
	v, ok := f.concept[g]
	return v, ok
}

func (f fakeVectors) Dimension() int { return f.dim }

func patient(i int) graph.Node { return graph.Node{Type: graph.NodeQuery, Index: i} }
func concept(i int) graph.Node { return graph.Node{Type: graph.NodeConcept, Index: i} }

var _ = Describe("Propagation", func() {
	vectors := fakeVectors{
		query: map[int][]float32{1: {9, 9}},
		concept: map[int][]float32{
			10: {1, 0},
			11: {0, 1},
			12: {1, 1},
		},
		dim: 2,
	}

	It("gives the anchor the mean of its concept neighbors", func() {
		sg := &graph.Subgraph{
			Nodes: []graph.Node{patient(0), concept(10), concept(11), patient(1), concept(12)},
			Edges: []graph.Edge{
				{Src: 0, Dst: 1, Type: graph.EdgeRelatesTo},
				{Src: 0, Dst: 2, Type: graph.EdgeRelatesTo},
				{Src: 1, Dst: 3, Type: graph.EdgeRelatedBy},
				{Src: 3, Dst: 4, Type: graph.EdgeRelatesTo},
			},
		}

		out, err := encoder.NewPropagation(vectors).Encode(context.Background(), sg)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(5))
		Expect(out[0]).To(Equal([]float32{0.5, 0.5}))
		Expect(out[1]).To(Equal([]float32{1, 0}))
		Expect(out[3]).To(Equal([]float32{9, 9}))
		Expect(out[4]).To(Equal([]float32{1, 1}))
	})

	It("encodes an isolated anchor as zero", func() {
		sg := &graph.Subgraph{Nodes: []graph.Node{patient(0)}}

		out, err := encoder.NewPropagation(vectors).Encode(context.Background(), sg)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([][]float32{{0, 0}}))
	})

	It("ignores a stored row for the anchor", func() {
		sg := &graph.Subgraph{
			Nodes: []graph.Node{patient(1), concept(11)},
			Edges: []graph.Edge{{Src: 0, Dst: 1, Type: graph.EdgeRelatesTo}},
		}

		out, err := encoder.NewPropagation(vectors).Encode(context.Background(), sg)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[0]).To(Equal([]float32{0, 1}))
	})

	It("encodes concepts without a stored vector as zero and leaves them out of the mean", func() {
		sg := &graph.Subgraph{
			Nodes: []graph.Node{patient(0), concept(10), concept(99)},
			Edges: []graph.Edge{
				{Src: 0, Dst: 1, Type: graph.EdgeRelatesTo},
				{Src: 0, Dst: 2, Type: graph.EdgeRelatesTo},
			},
		}

		out, err := encoder.NewPropagation(vectors).Encode(context.Background(), sg)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[0]).To(Equal([]float32{1, 0}))
		Expect(out[2]).To(Equal([]float32{0, 0}))
	})

	It("does not alias stored vectors", func() {
		sg := &graph.Subgraph{Nodes: []graph.Node{patient(0), concept(10)}}

		out, err := encoder.NewPropagation(vectors).Encode(context.Background(), sg)
		Expect(err).NotTo(HaveOccurred())
		out[1][0] = 7
		Expect(vectors.concept[10]).To(Equal([]float32{1, 0}))
	})

	It("stops on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := encoder.NewPropagation(vectors).Encode(ctx, &graph.Subgraph{Nodes: []graph.Node{patient(0)}})
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("HTTP", func() {
	var sg *graph.Subgraph

	BeforeEach(func() {
		sg = &graph.Subgraph{
			Nodes: []graph.Node{patient(3), concept(10)},
			Edges: []graph.Edge{{Src: 0, Dst: 1, Type: graph.EdgeRelatesTo}},
		}
	})

	It("posts the subgraph and decodes embeddings", func() {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/v1/encode"))
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"embeddings": [[0.1, 0.2], [0.3, 0.4]]}`))
		}))
		defer srv.Close()

		enc := encoder.NewHTTP(encoder.HTTPConfig{BaseURL: srv.URL + "/"})
		defer enc.Close()

		out, err := enc.Encode(context.Background(), sg)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([][]float32{{0.1, 0.2}, {0.3, 0.4}}))

		Expect(got["nodes"]).To(Equal([]any{
			map[string]any{"type": "patient", "index": 3.0},
			map[string]any{"type": "concept", "index": 10.0},
		}))
		Expect(got["edges"]).To(Equal([]any{
			map[string]any{"src": 0.0, "dst": 1.0, "type": "relates_to"},
		}))
	})

	It("wraps non-200 responses", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := encoder.NewHTTP(encoder.HTTPConfig{BaseURL: srv.URL}).Encode(context.Background(), sg)
		Expect(err).To(MatchError(encoder.ErrEncode))
		Expect(err.Error()).To(ContainSubstring("status 503"))
		Expect(err.Error()).To(ContainSubstring("model not loaded"))
	})

	It("wraps malformed bodies", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings": "nope"}`))
		}))
		defer srv.Close()

		_, err := encoder.NewHTTP(encoder.HTTPConfig{BaseURL: srv.URL}).Encode(context.Background(), sg)
		Expect(err).To(MatchError(encoder.ErrEncode))
	})

	It("wraps transport failures", func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := encoder.NewHTTP(encoder.HTTPConfig{BaseURL: url}).Encode(context.Background(), sg)
		Expect(err).To(MatchError(encoder.ErrEncode))
	})
})

var _ = Describe("NewEncoder", func() {
	It("builds the propagation encoder by default", func() {
		enc, err := encoderutils.NewEncoder(&encoderutils.NewEncoderOpts{Vectors: fakeVectors{dim: 2}})
		Expect(err).NotTo(HaveOccurred())
		Expect(enc).To(BeAssignableToTypeOf(&encoder.Propagation{}))
	})

	It("requires vectors for propagation", func() {
		_, err := encoderutils.NewEncoder(&encoderutils.NewEncoderOpts{ProviderType: encoderutils.ProviderPropagation})
		Expect(err).To(HaveOccurred())
	})

	It("builds the http encoder", func() {
		enc, err := encoderutils.NewEncoder(&encoderutils.NewEncoderOpts{ProviderType: encoderutils.ProviderHTTP, TargetURL: "http://encoder:8090"})
		Expect(err).NotTo(HaveOccurred())
		Expect(enc).To(BeAssignableToTypeOf(&encoder.HTTP{}))
	})

	It("rejects unknown providers", func() {
		_, err := encoderutils.NewEncoder(&encoderutils.NewEncoderOpts{ProviderType: "torch"})
		Expect(err).To(MatchError(ContainSubstring("unsupported encoder provider")))
	})
})
