// Package sqlite provides a SQLite-backed record reader.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/records"
)

const schema = `
CREATE TABLE IF NOT EXISTS patient_records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL,
	kind       TEXT    NOT NULL,
	code       TEXT    NOT NULL,
	name       TEXT    NOT NULL DEFAULT '',
	source     TEXT    NOT NULL DEFAULT '',
	visit_id   INTEGER
);
CREATE INDEX IF NOT EXISTS patient_records_patient ON patient_records (patient_id, kind);
`

// visitIndex is created after migrate so tables from before visit_id existed
// get the column first.
const visitIndex = `CREATE INDEX IF NOT EXISTS patient_records_visit ON patient_records (visit_id, kind);`

// Reader implements records.Reader over the patient_records table.
type Reader struct {
	db *sql.DB
}

// NewReader opens dbPath and creates the patient_records table if needed.
// The dbPath can be a file path or ":memory:".
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Reader{db: db}, nil
}

func (r *Reader) Records(ctx context.Context, queryID string, kind records.Kind, limit int) ([]records.Record, error) {
	id, err := records.NumericID(queryID)
	if err != nil {
		return nil, err
	}

	query := `SELECT code, name, kind, source FROM patient_records WHERE patient_id = ?`
	args := []any{id}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY seq`

	out, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return records.Dedup(out, limit), nil
}

func (r *Reader) query(ctx context.Context, query string, args ...any) ([]records.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		var rec records.Record
		var k string
		if err := rows.Scan(&rec.Code, &rec.Name, &k, &rec.Source); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Kind = records.Kind(k)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return out, nil
}

// migrate adds visit_id to tables created before it existed.
func migrate(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('patient_records') WHERE name = 'visit_id'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspecting schema: %w", err)
	}
	if n == 0 {
		if _, err := db.Exec(`ALTER TABLE patient_records ADD COLUMN visit_id INTEGER`); err != nil {
			return fmt.Errorf("adding visit_id: %w", err)
		}
	}
	if _, err := db.Exec(visitIndex); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *Reader) VisitRecords(ctx context.Context, visitID string, kind records.Kind, limit int) ([]records.Record, error) {
	kinds, err := records.VisitKindsFor(kind)
	if err != nil {
		return nil, err
	}
	visit, err := records.NumericID(visitID)
	if err != nil {
		return nil, err
	}

	var out []records.Record
	for _, k := range kinds {
		recs, err := r.query(ctx,
			`SELECT code, name, kind, source FROM patient_records WHERE visit_id = ? AND kind = ? ORDER BY seq`,
			visit, string(k))
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return records.Dedup(out, limit), nil
}

func (r *Reader) Visits(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = records.DefaultVisitsLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT visit_id FROM patient_records WHERE visit_id IS NOT NULL ORDER BY visit_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying visits: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		out = append(out, strconv.FormatInt(id, 10))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading visits: %w", err)
	}
	return out, nil
}

// Import appends rows in one transaction and returns how many were written.
func (r *Reader) Import(ctx context.Context, rows []artifact.RecordRow) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO patient_records (patient_id, kind, code, name, source, visit_id) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing import: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		id, kind, visit, err := validate(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(kind), row.Code, row.Name, row.Source, visit); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return len(rows), nil
}

// validate checks a row for import. visit is nil when the row has no visit.
func validate(row artifact.RecordRow) (id int64, kind records.Kind, visit *int64, err error) {
	id, err = records.NumericID(row.PatientID)
	if err != nil {
		return 0, "", nil, err
	}
	kind, err = records.ParseKind(row.Kind)
	if err != nil {
		return 0, "", nil, err
	}
	if kind == "" {
		return 0, "", nil, fmt.Errorf("%w: kind is required", records.ErrInvalidKind)
	}
	if strings.TrimSpace(row.VisitID) != "" {
		v, err := records.NumericID(row.VisitID)
		if err != nil {
			return 0, "", nil, err
		}
		visit = &v
	}
	return id, kind, visit, nil
}

func (r *Reader) Close() error {
	return r.db.Close()
}
