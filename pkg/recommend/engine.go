// Package recommend assembles ranked recommendations from the embedding
// store, falling back to an encoded neighborhood sample for cold-start
// query entities.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/papercomputeco/rxrank/pkg/encoder"
	"github.com/papercomputeco/rxrank/pkg/fallback"
	"github.com/papercomputeco/rxrank/pkg/idmap"
	"github.com/papercomputeco/rxrank/pkg/rank"
	"github.com/papercomputeco/rxrank/pkg/store"
)

const (
	// MaxSampleIDs caps the valid ids carried by a NotFoundError.
	MaxSampleIDs = 10

	// DefaultListSize is the listing size when none is requested.
	DefaultListSize = 20

	SourceStore    = "store"
	SourceFallback = "fallback"
)

// ErrNoFallback is returned for cold-start entities when no sampler is wired.
var ErrNoFallback = errors.New("query entity has no stored embedding and fallback is disabled")

// Sampler produces an encoded neighborhood for a cold-start query index.
type Sampler interface {
	SampleAndEncode(ctx context.Context, queryIndex int) (*fallback.Sample, error)
}

// Request asks for the top K candidates for QueryID. K <= 0 means
// rank.DefaultK.
type Request struct {
	QueryID string `json:"query_id"`
	K       int    `json:"k,omitempty"`
}

// Recommendation is one ranked candidate.
type Recommendation struct {
	ExternalID         string  `json:"external_id"`
	Score              float64 `json:"score"`
	GlobalConceptIndex int     `json:"global_concept_index"`
}

// Response lists recommendations in descending score order.
type Response struct {
	QueryID         string           `json:"query_id"`
	Source          string           `json:"source"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Listing is a page of valid query ids.
type Listing struct {
	IDs   []string `json:"ids"`
	Total int      `json:"total"`
}

// Engine is immutable after New and safe for concurrent use.
type Engine struct {
	store    *store.Store
	resolver *idmap.Resolver
	sampler  Sampler
	logger   *slog.Logger

	sampleSize int
	closers    []io.Closer
}

// Option configures an Engine.
type Option func(*Engine)

// WithFallback enables the cold-start path.
func WithFallback(s Sampler) Option {
	return func(e *Engine) {
		e.sampler = s
		if c, ok := s.(io.Closer); ok {
			e.closers = append(e.closers, c)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSampleSize sets how many valid ids a NotFoundError carries, capped at
// MaxSampleIDs.
func WithSampleSize(n int) Option {
	return func(e *Engine) { e.sampleSize = max(0, min(n, MaxSampleIDs)) }
}

// WithCloser registers a resource released by Close, such as a graph
// database client.
func WithCloser(c io.Closer) Option {
	return func(e *Engine) { e.closers = append(e.closers, c) }
}

// New builds an Engine over a loaded store and resolver.
func New(s *store.Store, r *idmap.Resolver, opts ...Option) (*Engine, error) {
	if s == nil || r == nil {
		return nil, newError(KindLoad, "new engine", errors.New("store and resolver are required"))
	}

	e := &Engine{
		store:      s,
		resolver:   r,
		logger:     slog.Default(),
		sampleSize: MaxSampleIDs,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Recommend ranks the candidate subset for req.QueryID.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	const op = "recommend"

	if strings.TrimSpace(req.QueryID) == "" {
		return nil, newError(KindValidation, op, errors.New("query id is required"))
	}
	if req.K > rank.MaxK {
		return nil, newError(KindValidation, op, fmt.Errorf("k must be at most %d, got %d", rank.MaxK, req.K))
	}

	idx, err := e.resolver.ResolveQuery(req.QueryID)
	if err != nil {
		return nil, e.notFound(req.QueryID)
	}

	if q, ok := e.store.QueryVector(idx); ok {
		recs, err := e.rankStore(q, req.K)
		if err != nil {
			return nil, newError(KindInternal, op, err)
		}
		return &Response{QueryID: req.QueryID, Source: SourceStore, Recommendations: recs}, nil
	}

	if e.sampler == nil {
		return nil, newError(KindInternal, op, ErrNoFallback)
	}

	recs, err := e.rankFallback(ctx, idx, req.K)
	if err != nil {
		if errors.Is(err, encoder.ErrEncode) {
			return nil, newError(KindEncode, op, err)
		}
		return nil, newError(KindInternal, op, err)
	}

	e.logger.Debug("cold-start recommendation served",
		"query_id", req.QueryID,
		"results", len(recs),
	)
	return &Response{QueryID: req.QueryID, Source: SourceFallback, Recommendations: recs}, nil
}

func (e *Engine) rankStore(q []float32, k int) ([]Recommendation, error) {
	scores, err := rank.Score(q, e.store.CandidateMatrix())
	if err != nil {
		return nil, err
	}
	return Assemble(rank.TopK(scores, k), e.store.CandidateGlobalIndex, e.resolver), nil
}

func (e *Engine) rankFallback(ctx context.Context, idx, k int) ([]Recommendation, error) {
	sample, err := e.sampler.SampleAndEncode(ctx, idx)
	if err != nil {
		return nil, err
	}

	scores, err := rank.Score(sample.QueryVector, sample.Candidates)
	if err != nil {
		return nil, err
	}
	return Assemble(rank.TopK(scores, k), func(local int) int { return sample.Globals[local] }, e.resolver), nil
}

// Assemble turns ranked hits into recommendations. globalOf maps a local
// candidate index to its global concept index.
func Assemble(hits []rank.Hit, globalOf func(local int) int, r *idmap.Resolver) []Recommendation {
	out := make([]Recommendation, len(hits))
	for i, h := range hits {
		g := globalOf(h.Local)
		out[i] = Recommendation{
			ExternalID:         r.ExternalForCandidate(g),
			Score:              rank.Round(h.Score),
			GlobalConceptIndex: g,
		}
	}
	return out
}

func (e *Engine) notFound(id string) *NotFoundError {
	trimmed := strings.TrimSpace(id)

	var sample []string
	for _, s := range e.resolver.SampleQueryIDs(e.sampleSize + 1) {
		if s == id || s == trimmed {
			continue
		}
		if len(sample) == e.sampleSize {
			break
		}
		sample = append(sample, s)
	}
	if sample == nil {
		sample = []string{}
	}

	return &NotFoundError{
		QueryID:   id,
		Message:   fmt.Sprintf("query id %q not found", id),
		SampleIDs: sample,
	}
}

// ListQueryIDs returns up to n valid query ids in mapping order. n <= 0
// means DefaultListSize.
func (e *Engine) ListQueryIDs(n int) Listing {
	if n <= 0 {
		n = DefaultListSize
	}
	return Listing{IDs: e.resolver.SampleQueryIDs(n), Total: e.resolver.QueryCount()}
}

// Store returns the underlying embedding store.
func (e *Engine) Store() *store.Store { return e.store }

// Resolver returns the underlying identifier resolver.
func (e *Engine) Resolver() *idmap.Resolver { return e.resolver }

// FallbackEnabled reports whether cold-start entities can be served.
func (e *Engine) FallbackEnabled() bool { return e.sampler != nil }

// Close releases the encoder and any registered resources.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
