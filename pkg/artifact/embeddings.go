package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/papercomputeco/rxrank/pkg/vector/sqlitevec"
)

type embeddingsDoc struct {
	Version          any         `json:"version"`
	Query            [][]float32 `json:"patient_embeddings"`
	Concept          [][]float32 `json:"concept_embeddings"`
	CandidateIndices *[]int      `json:"drug_concept_indices"`
	Candidate        [][]float32 `json:"drug_embeddings"`
}

// DecodeEmbeddingsJSON decodes a JSON embedding artifact.
func DecodeEmbeddingsJSON(r io.Reader) (*EmbeddingTables, error) {
	var doc embeddingsDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: embeddings json: %w", ErrDecode, err)
	}

	t := &EmbeddingTables{
		Query:     doc.Query,
		Concept:   doc.Concept,
		Candidate: doc.Candidate,
	}
	if doc.Version != nil {
		t.Version = fmt.Sprint(doc.Version)
	}
	if doc.CandidateIndices != nil {
		t.CandidateIndices = *doc.CandidateIndices
		t.HasIndices = true
	}
	return t, nil
}

// ReadEmbeddingsSQLite reads the embedding tables from an open sqlite-vec
// database. Absent tables decode as empty.
func ReadEmbeddingsSQLite(ctx context.Context, db *sqlitevec.DB) (*EmbeddingTables, error) {
	t := &EmbeddingTables{Version: "sqlite"}

	tables := []struct {
		name string
		dst  *[][]float32
	}{
		{sqlitevec.TableQuery, &t.Query},
		{sqlitevec.TableConcept, &t.Concept},
		{sqlitevec.TableCandidate, &t.Candidate},
	}
	for _, tbl := range tables {
		rows, err := db.ReadTable(ctx, tbl.name)
		if errors.Is(err, sqlitevec.ErrNoTable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		*tbl.dst = rows
	}

	indices, err := db.ReadIndices(ctx)
	switch {
	case errors.Is(err, sqlitevec.ErrNoTable):
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	default:
		t.CandidateIndices = indices
		t.HasIndices = true
	}

	return t, nil
}
