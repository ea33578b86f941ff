// Package inmemory serves records from a decoded records artifact.
package inmemory

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/records"
)

// Reader is read-only after New.
type Reader struct {
	byID    map[string][]records.Record
	byVisit map[int64][]records.Record
	visits  []int64
}

// New indexes rows by patient id and by visit id, keeping artifact order.
// Visit ids must be numeric.
func New(t *artifact.RecordTables) (*Reader, error) {
	r := &Reader{
		byID:    map[string][]records.Record{},
		byVisit: map[int64][]records.Record{},
	}
	if t == nil {
		return r, nil
	}

	for _, row := range t.Records {
		kind, err := records.ParseKind(row.Kind)
		if err != nil {
			return nil, err
		}
		rec := records.Record{
			Code:   row.Code,
			Name:   row.Name,
			Kind:   kind,
			Source: row.Source,
		}

		id := strings.TrimSpace(row.PatientID)
		r.byID[id] = append(r.byID[id], rec)

		if strings.TrimSpace(row.VisitID) == "" {
			continue
		}
		visit, err := records.NumericID(row.VisitID)
		if err != nil {
			return nil, err
		}
		if _, ok := r.byVisit[visit]; !ok {
			r.visits = append(r.visits, visit)
		}
		r.byVisit[visit] = append(r.byVisit[visit], rec)
	}
	slices.Sort(r.visits)
	return r, nil
}

func (r *Reader) Records(_ context.Context, queryID string, kind records.Kind, limit int) ([]records.Record, error) {
	all := r.byID[strings.TrimSpace(queryID)]
	if kind == "" {
		return records.Dedup(all, limit), nil
	}
	return records.Dedup(ofKinds(all, kind), limit), nil
}

func (r *Reader) VisitRecords(_ context.Context, visitID string, kind records.Kind, limit int) ([]records.Record, error) {
	kinds, err := records.VisitKindsFor(kind)
	if err != nil {
		return nil, err
	}
	visit, err := records.NumericID(visitID)
	if err != nil {
		return nil, err
	}
	return records.Dedup(ofKinds(r.byVisit[visit], kinds...), limit), nil
}

func (r *Reader) Visits(_ context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = records.DefaultVisitsLimit
	}
	n := min(limit, len(r.visits))
	out := make([]string, n)
	for i, v := range r.visits[:n] {
		out[i] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

// ofKinds returns the records of each kind in turn, keeping order within a
// kind.
func ofKinds(all []records.Record, kinds ...records.Kind) []records.Record {
	out := make([]records.Record, 0, len(all))
	for _, k := range kinds {
		for _, rec := range all {
			if rec.Kind == k {
				out = append(out, rec)
			}
		}
	}
	return out
}

// Patients returns the number of distinct patient ids.
func (r *Reader) Patients() int { return len(r.byID) }

func (r *Reader) Close() error { return nil }
