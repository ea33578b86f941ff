// Package artifact fetches, decompresses and decodes the load-time files
// rxrank serves from: embedding tables, id mapping tables, the graph edge
// list and the record table.
package artifact

import (
	"errors"
)

var (
	// ErrLocation is returned for an unparseable or unsupported artifact location.
	ErrLocation = errors.New("invalid artifact location")

	// ErrFetch is returned when an artifact cannot be read from its location.
	ErrFetch = errors.New("fetching artifact")

	// ErrDecode is returned when an artifact's content cannot be decoded.
	ErrDecode = errors.New("decoding artifact")
)

// EmbeddingTables is the decoded content of an embedding artifact. Rows are
// raw so that shape validation happens in one place, at store load.
type EmbeddingTables struct {
	Version string

	// Query holds one vector per query entity, by internal index.
	Query [][]float32

	// Concept holds one vector per concept, by global index. It may be empty
	// when Candidate is supplied.
	Concept [][]float32

	// CandidateIndices is the ordered candidate index set. HasIndices is false
	// when the artifact carried no index set at all.
	CandidateIndices []int
	HasIndices       bool

	// Candidate is an optional pre-gathered candidate matrix.
	Candidate [][]float32
}

// Entry is one external id to internal index pair.
type Entry struct {
	External string
	Index    int
}

// MappingTables is the decoded content of a mapping artifact: every
// recognized alias section with its entries in document order.
type MappingTables struct {
	Sections map[string][]Entry
}

// Section returns the entries for alias and whether the alias was present.
func (m *MappingTables) Section(alias string) ([]Entry, bool) {
	if m == nil || m.Sections == nil {
		return nil, false
	}
	e, ok := m.Sections[alias]
	return e, ok
}

// GraphEdge is one typed edge of the graph artifact. Node types are "patient"
// or "concept"; Type is the relation name.
type GraphEdge struct {
	SrcType string `json:"src_type"`
	Src     int    `json:"src"`
	DstType string `json:"dst_type"`
	Dst     int    `json:"dst"`
	Type    string `json:"type"`
}

// GraphTables is the decoded graph artifact. PatientConcept is the compact
// form: [patientIdx, conceptIdx] pairs.
type GraphTables struct {
	Edges          []GraphEdge `json:"edges"`
	PatientConcept [][2]int    `json:"patient_concept"`
}

// RecordRow is one row of the records artifact. VisitID, when set, ties a
// diagnosis to the visit it was made in, or a drug to the visit whose
// diagnosis it was prescribed for.
type RecordRow struct {
	PatientID string `json:"patient_id"`
	VisitID   string `json:"visit_id,omitempty"`
	Kind      string `json:"kind"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Source    string `json:"source"`
}

// RecordTables is the decoded records artifact.
type RecordTables struct {
	Records []RecordRow `json:"records"`
}
