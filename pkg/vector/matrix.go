// Package vector provides the dense float32 table types that embeddings are
// stored and scored in.
package vector

import (
	"fmt"
)

// Matrix is an immutable row-major table of float32 vectors that all share
// one dimension.
type Matrix struct {
	rows int
	dim  int
	data []float32
}

// NewMatrix copies rows into a Matrix. Every row must have the same, non-zero
// length. An empty rows slice yields an empty Matrix.
func NewMatrix(rows [][]float32) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}

	dim := len(rows[0])
	if dim == 0 {
		return Matrix{}, fmt.Errorf("%w: row 0 is empty", ErrDimensionMismatch)
	}

	data := make([]float32, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return Matrix{}, fmt.Errorf("%w: row %d has dimension %d, expected %d", ErrDimensionMismatch, i, len(r), dim)
		}
		data = append(data, r...)
	}

	return Matrix{rows: len(rows), dim: dim, data: data}, nil
}

// FromFlat wraps an existing flat buffer of rows*dim values without copying.
// The caller must not mutate data afterwards.
func FromFlat(rows, dim int, data []float32) (Matrix, error) {
	if rows < 0 || dim < 0 || len(data) != rows*dim {
		return Matrix{}, fmt.Errorf("%w: %d values cannot form %dx%d", ErrDimensionMismatch, len(data), rows, dim)
	}
	return Matrix{rows: rows, dim: dim, data: data}, nil
}

// Rows returns the number of vectors.
func (m Matrix) Rows() int { return m.rows }

// Dim returns the shared vector dimension, 0 for an empty Matrix.
func (m Matrix) Dim() int { return m.dim }

// Empty reports whether the Matrix has no rows.
func (m Matrix) Empty() bool { return m.rows == 0 }

// Row returns a read-only view of row i. It panics when i is out of range,
// like a slice index.
func (m Matrix) Row(i int) []float32 {
	if i < 0 || i >= m.rows {
		panic(fmt.Sprintf("vector: row %d out of range [0,%d)", i, m.rows))
	}
	off := i * m.dim
	return m.data[off : off+m.dim : off+m.dim]
}

// Gather copies the rows at indices, in order, into a new Matrix.
func (m Matrix) Gather(indices []int) (Matrix, error) {
	out := make([]float32, 0, len(indices)*m.dim)
	for _, idx := range indices {
		if idx < 0 || idx >= m.rows {
			return Matrix{}, fmt.Errorf("%w: index %d outside [0,%d)", ErrOutOfRange, idx, m.rows)
		}
		out = append(out, m.Row(idx)...)
	}

	return Matrix{rows: len(indices), dim: m.dim, data: out}, nil
}

// Dot returns the inner product of a and b accumulated in float64.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}
