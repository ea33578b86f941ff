// Package records reads auxiliary clinical records keyed by external query id
// or by visit (encounter) id.
package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the record category.
type Kind string

const (
	KindDrug      Kind = "drug"
	KindDiagnosis Kind = "diagnosis"
	KindAdmission Kind = "admission"
)

// Kinds lists every record kind in display order.
var Kinds = []Kind{KindDrug, KindDiagnosis, KindAdmission}

// VisitKinds lists the kinds a visit lookup returns, in display order: the
// diagnoses made during the visit, then the drugs prescribed for them.
var VisitKinds = []Kind{KindDiagnosis, KindDrug}

// DefaultVisitsLimit caps Visits when the caller passes limit <= 0.
const DefaultVisitsLimit = 10

// ParseKind accepts a kind name, case-insensitively. An empty string means
// every kind and parses to "".
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "", KindDrug, KindDiagnosis, KindAdmission:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown record kind %q", ErrInvalidKind, s)
}

// ParseVisitKind is ParseKind restricted to VisitKinds.
func ParseVisitKind(s string) (Kind, error) {
	k, err := ParseKind(s)
	if err != nil {
		return "", err
	}
	if _, err := VisitKindsFor(k); err != nil {
		return "", err
	}
	return k, nil
}

// VisitKindsFor expands kind into the kinds a visit lookup reads: all of
// VisitKinds for "", kind itself otherwise.
func VisitKindsFor(kind Kind) ([]Kind, error) {
	switch kind {
	case "":
		return VisitKinds, nil
	case KindDiagnosis, KindDrug:
		return []Kind{kind}, nil
	}
	return nil, fmt.Errorf("%w: visits have no %q records", ErrInvalidKind, kind)
}

// Record is one clinical record row.
type Record struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Source string `json:"source,omitempty"`
}

// Reader looks up records for a query entity or a visit. Lookups return an
// empty slice, not an error, when the id has no records. kind "" matches
// every kind the lookup supports. Results are deduplicated per kind by Code
// and truncated to limit.
type Reader interface {
	Records(ctx context.Context, queryID string, kind Kind, limit int) ([]Record, error)

	// VisitRecords returns the diagnoses of visitID and the drugs prescribed
	// for them. kind must be "" or one of VisitKinds.
	VisitRecords(ctx context.Context, visitID string, kind Kind, limit int) ([]Record, error)

	// Visits lists up to limit visit ids in ascending numeric order.
	Visits(ctx context.Context, limit int) ([]string, error)

	Close() error
}

var (
	// ErrInvalidID is returned by readers that key on numeric ids when the
	// query id is not a non-negative integer.
	ErrInvalidID = errors.New("invalid record id")

	// ErrInvalidKind is returned for an unknown record kind.
	ErrInvalidKind = errors.New("invalid record kind")
)

// Dedup keeps the first record per (Kind, Code), in order, and truncates to
// limit. Records of different kinds never collapse into one. limit <= 0
// keeps everything.
func Dedup(recs []Record, limit int) []Record {
	type key struct {
		kind Kind
		code string
	}

	out := make([]Record, 0, len(recs))
	seen := make(map[key]bool, len(recs))
	for _, r := range recs {
		k := key{r.Kind, r.Code}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// NumericID parses a numeric patient id for SQL and graph backends.
func NumericID(queryID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(queryID), 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q is not a numeric patient id", ErrInvalidID, queryID)
	}
	return id, nil
}

// None is the Reader used when no record source is configured.
type None struct{}

func (None) Records(context.Context, string, Kind, int) ([]Record, error) {
	return []Record{}, nil
}

func (None) VisitRecords(context.Context, string, Kind, int) ([]Record, error) {
	return []Record{}, nil
}

func (None) Visits(context.Context, int) ([]string, error) {
	return []string{}, nil
}

func (None) Close() error { return nil }
