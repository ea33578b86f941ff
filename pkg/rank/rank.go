// Package rank scores candidate vectors against a query vector and selects a
// deterministic top-K.
package rank

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/papercomputeco/rxrank/pkg/vector"
)

const (
	// DefaultK replaces a missing or non-positive k.
	DefaultK = 5

	// MaxK bounds k; larger values are rejected as invalid input.
	MaxK = 1000
)

// Hit is one ranked candidate: its local index and full-precision score.
type Hit struct {
	Local int
	Score float64
}

// Score returns the inner product of q with every row of m.
func Score(q []float32, m vector.Matrix) ([]float64, error) {
	if m.Empty() {
		return []float64{}, nil
	}
	if len(q) != m.Dim() {
		return nil, fmt.Errorf("%w: query has dimension %d, candidates %d", vector.ErrDimensionMismatch, len(q), m.Dim())
	}

	out := make([]float64, m.Rows())
	for i := range out {
		// Lengths already match, Dot cannot fail here.
		out[i], _ = vector.Dot(q, m.Row(i))
	}
	return out, nil
}

// NormalizeK applies the default for k <= 0 and clamps to n.
func NormalizeK(k, n int) int {
	if k <= 0 {
		k = DefaultK
	}
	return min(k, n)
}

// TopK ranks scores by descending value, breaking ties by ascending index,
// and returns the first NormalizeK(k, len(scores)) hits.
func TopK(scores []float64, k int) []Hit {
	k = NormalizeK(k, len(scores))

	hits := make([]Hit, len(scores))
	for i, s := range scores {
		hits[i] = Hit{Local: i, Score: s}
	}

	slices.SortFunc(hits, compareHits)
	return hits[:k:k]
}

// compareHits is a total order: NaN ranks below every number and equal
// scores fall back to the local index.
func compareHits(a, b Hit) int {
	aNaN, bNaN := math.IsNaN(a.Score), math.IsNaN(b.Score)
	switch {
	case aNaN && !bNaN:
		return 1
	case !aNaN && bNaN:
		return -1
	case !aNaN && a.Score != b.Score:
		return cmp.Compare(b.Score, a.Score)
	}
	return cmp.Compare(a.Local, b.Local)
}

// Round rounds a score to four decimals for output.
func Round(score float64) float64 {
	return math.Round(score*1e4) / 1e4
}
