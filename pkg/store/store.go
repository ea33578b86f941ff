// Package store holds the immutable embedding tables a recommendation is
// scored against.
package store

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/vector"
)

// ErrLoad is returned when embedding tables are missing, empty or
// inconsistent. It is fatal at startup.
var ErrLoad = errors.New("invalid embedding store")

// Store is read-only after Load and safe for concurrent use.
type Store struct {
	version string

	query   vector.Matrix
	concept vector.Matrix

	candidate        vector.Matrix
	candidateGlobals []int
	candidateLocal   map[int]int
	candidateSet     *roaring.Bitmap
}

// Load validates the tables and derives the candidate matrix.
func Load(t *artifact.EmbeddingTables) (*Store, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no embedding tables", ErrLoad)
	}

	query, err := vector.NewMatrix(t.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: query matrix: %w", ErrLoad, err)
	}
	if query.Empty() {
		return nil, fmt.Errorf("%w: query matrix is empty", ErrLoad)
	}

	concept, err := vector.NewMatrix(t.Concept)
	if err != nil {
		return nil, fmt.Errorf("%w: concept matrix: %w", ErrLoad, err)
	}

	s := &Store{
		version: t.Version,
		query:   query,
		concept: concept,
	}

	if len(t.Candidate) > 0 {
		err = s.loadPregathered(t)
	} else {
		err = s.loadGathered(t)
	}
	if err != nil {
		return nil, err
	}

	s.candidateSet = roaring.New()
	s.candidateLocal = make(map[int]int, len(s.candidateGlobals))
	for local, g := range s.candidateGlobals {
		s.candidateSet.Add(uint32(g))
		s.candidateLocal[g] = local
	}
	s.candidateSet.RunOptimize()

	return s, nil
}

func (s *Store) loadGathered(t *artifact.EmbeddingTables) error {
	if s.concept.Empty() {
		return fmt.Errorf("%w: concept matrix is empty and no candidate matrix was supplied", ErrLoad)
	}
	if !t.HasIndices {
		return fmt.Errorf("%w: candidate index set is missing", ErrLoad)
	}
	if s.concept.Dim() != s.query.Dim() {
		return fmt.Errorf("%w: %w: query dimension %d, concept dimension %d",
			ErrLoad, vector.ErrDimensionMismatch, s.query.Dim(), s.concept.Dim())
	}
	if err := validateIndices(t.CandidateIndices, s.concept.Rows()); err != nil {
		return err
	}

	candidate, err := s.concept.Gather(t.CandidateIndices)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	s.candidate = candidate
	s.candidateGlobals = append([]int(nil), t.CandidateIndices...)
	return nil
}

func (s *Store) loadPregathered(t *artifact.EmbeddingTables) error {
	candidate, err := vector.NewMatrix(t.Candidate)
	if err != nil {
		return fmt.Errorf("%w: candidate matrix: %w", ErrLoad, err)
	}
	if candidate.Dim() != s.query.Dim() {
		return fmt.Errorf("%w: %w: query dimension %d, candidate dimension %d",
			ErrLoad, vector.ErrDimensionMismatch, s.query.Dim(), candidate.Dim())
	}
	if !s.concept.Empty() && s.concept.Dim() != s.query.Dim() {
		return fmt.Errorf("%w: %w: query dimension %d, concept dimension %d",
			ErrLoad, vector.ErrDimensionMismatch, s.query.Dim(), s.concept.Dim())
	}

	globals := t.CandidateIndices
	if !t.HasIndices {
		globals = make([]int, candidate.Rows())
		for i := range globals {
			globals[i] = i
		}
	}
	if len(globals) != candidate.Rows() {
		return fmt.Errorf("%w: candidate index set has %d entries, candidate matrix has %d rows",
			ErrLoad, len(globals), candidate.Rows())
	}

	bound := -1
	if !s.concept.Empty() {
		bound = s.concept.Rows()
	}
	if err := validateIndices(globals, bound); err != nil {
		return err
	}

	s.candidate = candidate
	s.candidateGlobals = append([]int(nil), globals...)
	return nil
}

// validateIndices checks entries are unique and in [0, bound). A negative
// bound only checks the lower limit.
func validateIndices(indices []int, bound int) error {
	seen := make(map[int]int, len(indices))
	for pos, idx := range indices {
		if idx < 0 || (bound >= 0 && idx >= bound) {
			return fmt.Errorf("%w: candidate index %d at position %d is outside the concept matrix", ErrLoad, idx, pos)
		}
		if first, dup := seen[idx]; dup {
			return fmt.Errorf("%w: candidate index %d repeated at positions %d and %d", ErrLoad, idx, first, pos)
		}
		seen[idx] = pos
	}
	return nil
}

// Version returns the artifact version string, if any.
func (s *Store) Version() string { return s.version }

// Dimension returns the shared embedding dimension.
func (s *Store) Dimension() int { return s.query.Dim() }

// QueryCount returns the number of query rows.
func (s *Store) QueryCount() int { return s.query.Rows() }

// QueryVector returns the stored vector for query index i. The second result
// is false when the entity has no row (cold start).
func (s *Store) QueryVector(i int) ([]float32, bool) {
	if i < 0 || i >= s.query.Rows() {
		return nil, false
	}
	return s.query.Row(i), true
}

// CandidateMatrix returns the cached candidate-only matrix.
func (s *Store) CandidateMatrix() vector.Matrix { return s.candidate }

// CandidateCount returns the number of candidates.
func (s *Store) CandidateCount() int { return s.candidate.Rows() }

// CandidateGlobalIndex maps a local candidate index to its global concept index.
func (s *Store) CandidateGlobalIndex(local int) int { return s.candidateGlobals[local] }

// CandidateGlobals returns a copy of the candidate index set.
func (s *Store) CandidateGlobals() []int { return append([]int(nil), s.candidateGlobals...) }

// IsCandidate reports whether global is in the candidate index set.
func (s *Store) IsCandidate(global int) bool {
	if global < 0 || uint64(global) > uint64(^uint32(0)) {
		return false
	}
	return s.candidateSet.Contains(uint32(global))
}

// ConceptCount returns the number of concept rows, 0 for stores built from a
// pre-gathered candidate matrix only.
func (s *Store) ConceptCount() int { return s.concept.Rows() }

// ConceptVector returns the stored vector for a global concept index. Stores
// built without a concept matrix fall back to the candidate row.
func (s *Store) ConceptVector(global int) ([]float32, bool) {
	if !s.concept.Empty() {
		if global < 0 || global >= s.concept.Rows() {
			return nil, false
		}
		return s.concept.Row(global), true
	}

	local, ok := s.candidateLocal[global]
	if !ok {
		return nil, false
	}
	return s.candidate.Row(local), true
}
