// Package fallback samples a bounded neighborhood around a cold-start query
// entity and encodes it, producing a query vector and the candidate vectors
// that appear in the sample.
package fallback

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/rxrank/pkg/encoder"
	"github.com/papercomputeco/rxrank/pkg/graph"
	"github.com/papercomputeco/rxrank/pkg/vector"
)

const (
	DefaultMaxConcurrent = 4
	DefaultTimeout       = 5 * time.Second
)

// DefaultFanout is the per-hop neighbor cap.
var DefaultFanout = []int{10, 5}

// Candidates reports which global concept indices are recommendable.
type Candidates interface {
	IsCandidate(global int) bool
}

// Config tunes the sampler. Zero values take the defaults.
type Config struct {
	Fanout        []int
	Seed          uint64
	MaxConcurrent int64
	RatePerSecond float64
	Timeout       time.Duration
}

// Sample is the encoded result for one cold-start entity. Candidates row i
// belongs to global concept index Globals[i]; Globals is ascending.
type Sample struct {
	QueryVector []float32
	Candidates  vector.Matrix
	Globals     []int
	Subgraph    *graph.Subgraph
}

// Stats counts sampler activity since construction.
type Stats struct {
	Calls    int64
	Failures int64
}

// Sampler is safe for concurrent use.
type Sampler struct {
	source     graph.Source
	enc        encoder.Encoder
	candidates Candidates
	logger     *slog.Logger

	fanout  []int
	seed    uint64
	timeout time.Duration
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	calls    atomic.Int64
	failures atomic.Int64
}

// New validates cfg and returns a Sampler. A nil logger uses slog.Default.
func New(source graph.Source, enc encoder.Encoder, candidates Candidates, cfg Config, logger *slog.Logger) (*Sampler, error) {
	if source == nil || enc == nil || candidates == nil {
		return nil, errors.New("fallback: graph source, encoder and candidate set are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fanout := cfg.Fanout
	if len(fanout) == 0 {
		fanout = DefaultFanout
	}
	for hop, f := range fanout {
		if f <= 0 {
			return nil, fmt.Errorf("fallback: fanout for hop %d must be positive, got %d", hop+1, f)
		}
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Sampler{
		source:     source,
		enc:        enc,
		candidates: candidates,
		logger:     logger,
		fanout:     slices.Clone(fanout),
		seed:       cfg.Seed,
		timeout:    timeout,
		sem:        semaphore.NewWeighted(maxConcurrent),
	}
	if cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(1, int(cfg.RatePerSecond)))
	}

	return s, nil
}

// SampleAndEncode builds the neighborhood of query entity queryIndex, encodes
// it with exactly one encoder call and keeps the candidate concepts.
// Every failure wraps encoder.ErrEncode; a timeout also wraps
// context.DeadlineExceeded.
func (s *Sampler) SampleAndEncode(ctx context.Context, queryIndex int) (*Sample, error) {
	s.calls.Add(1)

	sample, err := s.sampleAndEncode(ctx, queryIndex)
	if err != nil {
		s.failures.Add(1)
		s.logger.Warn("cold-start sample failed", "query_index", queryIndex, "error", err)
		return nil, err
	}

	s.logger.Debug("cold-start sample encoded",
		"query_index", queryIndex,
		"nodes", len(sample.Subgraph.Nodes),
		"edges", len(sample.Subgraph.Edges),
		"candidates", len(sample.Globals),
	)
	return sample, nil
}

func (s *Sampler) sampleAndEncode(ctx context.Context, queryIndex int) (*Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, encodeErr(ctx, "waiting for rate limiter", err)
		}
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, encodeErr(ctx, "waiting for an encoder slot", err)
	}
	defer s.sem.Release(1)

	sg, err := s.sample(ctx, queryIndex)
	if err != nil {
		return nil, encodeErr(ctx, "sampling neighborhood", err)
	}

	vecs, err := s.enc.Encode(ctx, sg)
	if err != nil {
		return nil, encodeErr(ctx, "encoding subgraph", err)
	}
	if err := validate(vecs, len(sg.Nodes)); err != nil {
		return nil, err
	}

	return s.collect(sg, vecs)
}

// sample walks len(fanout) hops out from the anchor. Over-cap neighbor lists
// are subsampled with a PCG stream seeded by the sampler seed and the anchor
// index, so the same anchor always yields the same subgraph.
func (s *Sampler) sample(ctx context.Context, queryIndex int) (*graph.Subgraph, error) {
	anchor := graph.Node{Type: graph.NodeQuery, Index: queryIndex}
	sg := &graph.Subgraph{Nodes: []graph.Node{anchor}}

	local := map[graph.Node]int{anchor: 0}
	edges := map[graph.Edge]bool{}
	rng := rand.New(rand.NewPCG(s.seed, uint64(queryIndex)))

	frontier := []int{0}
	for _, fan := range s.fanout {
		var next []int
		for _, pos := range frontier {
			ns, err := s.source.Neighbors(ctx, sg.Nodes[pos])
			if err != nil {
				return nil, err
			}

			for _, nb := range choose(ns, fan, rng) {
				dst, seen := local[nb.Node]
				if !seen {
					dst = len(sg.Nodes)
					local[nb.Node] = dst
					sg.Nodes = append(sg.Nodes, nb.Node)
					next = append(next, dst)
				}

				e := graph.Edge{Src: pos, Dst: dst, Type: nb.Edge}
				if !edges[e] {
					edges[e] = true
					sg.Edges = append(sg.Edges, e)
				}
			}
		}
		frontier = next
	}

	return sg, nil
}

// choose returns up to n neighbors, keeping their source order.
func choose(ns []graph.Neighbor, n int, rng *rand.Rand) []graph.Neighbor {
	if len(ns) <= n {
		return ns
	}

	picked := rng.Perm(len(ns))[:n]
	slices.Sort(picked)

	out := make([]graph.Neighbor, n)
	for i, p := range picked {
		out[i] = ns[p]
	}
	return out
}

func validate(vecs [][]float32, nodes int) error {
	if len(vecs) != nodes {
		return fmt.Errorf("%w: encoder returned %d vectors for %d nodes", encoder.ErrEncode, len(vecs), nodes)
	}

	dim := len(vecs[0])
	if dim == 0 {
		return fmt.Errorf("%w: encoder returned an empty anchor vector", encoder.ErrEncode)
	}
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: node %d has dimension %d, anchor has %d", encoder.ErrEncode, i, len(v), dim)
		}
	}
	return nil
}

type candidateRow struct {
	global int
	vec    []float32
}

func (s *Sampler) collect(sg *graph.Subgraph, vecs [][]float32) (*Sample, error) {
	var rows []candidateRow
	for i, n := range sg.Nodes {
		if n.Type == graph.NodeConcept && s.candidates.IsCandidate(n.Index) {
			rows = append(rows, candidateRow{global: n.Index, vec: vecs[i]})
		}
	}
	slices.SortFunc(rows, func(a, b candidateRow) int { return cmp.Compare(a.global, b.global) })

	globals := make([]int, len(rows))
	data := make([]float32, 0, len(rows)*len(vecs[0]))
	for i, r := range rows {
		globals[i] = r.global
		data = append(data, r.vec...)
	}

	m, err := vector.FromFlat(len(rows), len(vecs[0]), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", encoder.ErrEncode, err)
	}

	return &Sample{
		QueryVector: slices.Clone(vecs[0]),
		Candidates:  m,
		Globals:     globals,
		Subgraph:    sg,
	}, nil
}

// encodeErr wraps err with encoder.ErrEncode, adding the context error when
// the deadline or cancellation caused the failure.
func encodeErr(ctx context.Context, step string, err error) error {
	if errors.Is(err, encoder.ErrEncode) {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return fmt.Errorf("%s: %w: %w", step, err, ctxErr)
		}
		return fmt.Errorf("%s: %w", step, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %s: %w: %w", encoder.ErrEncode, step, err, ctxErr)
	}
	return fmt.Errorf("%w: %s: %w", encoder.ErrEncode, step, err)
}

// Stats returns a snapshot of the sampler counters.
func (s *Sampler) Stats() Stats {
	return Stats{Calls: s.calls.Load(), Failures: s.failures.Load()}
}

// Close releases the encoder.
func (s *Sampler) Close() error {
	return s.enc.Close()
}
