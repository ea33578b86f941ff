// Package sqlitevec reads and writes embedding tables stored in SQLite with
// the sqlite-vec extension loaded.
//
// Each embedding table has the layout (idx INTEGER PRIMARY KEY, embedding BLOB)
// where embedding is a little-endian float32 vector. Candidate positions live
// in drug_concept_indices(pos INTEGER PRIMARY KEY, idx INTEGER).
package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/rxrank/pkg/vector"
)

const (
	TableQuery     = "patient_embeddings"
	TableConcept   = "concept_embeddings"
	TableCandidate = "drug_embeddings"
	TableIndices   = "drug_concept_indices"
)

// ErrNoTable is returned when a requested table is absent from the database.
var ErrNoTable = errors.New("table not found")

var embeddingTables = map[string]bool{
	TableQuery:     true,
	TableConcept:   true,
	TableCandidate: true,
}

// DB wraps a SQLite handle with sqlite-vec available.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the SQLite database at path and verifies sqlite-vec is loaded.
// Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*DB, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	logger.Debug("sqlite-vec database opened",
		"db_path", path,
		"vec_version", vecVersion,
	)

	return &DB{db: db, logger: logger}, nil
}

// HasTable reports whether the named table exists.
func (d *DB) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return n > 0, nil
}

// ReadTable returns the rows of an embedding table ordered by idx. Indices
// must be contiguous from 0, and every vector is checked with vec_length.
func (d *DB) ReadTable(ctx context.Context, name string) ([][]float32, error) {
	if !embeddingTables[name] {
		return nil, fmt.Errorf("unknown embedding table %q", name)
	}

	ok, err := d.HasTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, name)
	}

	// Table names come from the fixed set above, never from input.
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT idx, embedding, vec_length(embedding) FROM %s ORDER BY idx`, name,
	))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	defer rows.Close()

	var out [][]float32
	for rows.Next() {
		var (
			idx    int
			blob   []byte
			vecLen int
		)
		if err := rows.Scan(&idx, &blob, &vecLen); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", name, err)
		}
		if idx != len(out) {
			return nil, fmt.Errorf("%s: expected idx %d, found %d", name, len(out), idx)
		}

		v, err := vector.DecodeBlob(blob)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, idx, err)
		}
		if len(v) != vecLen {
			return nil, fmt.Errorf("%s row %d: %w: blob holds %d values, vec_length reports %d",
				name, idx, vector.ErrBlob, len(v), vecLen)
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", name, err)
	}

	d.logger.Debug("read embedding table",
		"table", name,
		"rows", len(out),
	)

	return out, nil
}

// ReadIndices returns the candidate index set ordered by pos.
func (d *DB) ReadIndices(ctx context.Context) ([]int, error) {
	ok, err := d.HasTable(ctx, TableIndices)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, TableIndices)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT idx FROM drug_concept_indices ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", TableIndices, err)
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", TableIndices, err)
		}
		out = append(out, idx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", TableIndices, err)
	}

	return out, nil
}

// WriteTable creates (or replaces) an embedding table and inserts rows in
// order, idx starting at 0.
func (d *DB) WriteTable(ctx context.Context, name string, rows [][]float32) error {
	if !embeddingTables[name] {
		return fmt.Errorf("unknown embedding table %q", name)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
		return fmt.Errorf("dropping %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %s (idx INTEGER PRIMARY KEY, embedding BLOB NOT NULL)`, name,
	)); err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s(idx, embedding) VALUES (?, ?)`, name))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", name, err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, i, vector.EncodeBlob(r)); err != nil {
			return fmt.Errorf("inserting %s row %d: %w", name, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("wrote embedding table",
		"table", name,
		"rows", len(rows),
	)

	return nil
}

// WriteIndices creates (or replaces) the candidate index table.
func (d *DB) WriteIndices(ctx context.Context, indices []int) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS drug_concept_indices`); err != nil {
		return fmt.Errorf("dropping %s: %w", TableIndices, err)
	}
	if _, err := tx.ExecContext(ctx,
		`CREATE TABLE drug_concept_indices (pos INTEGER PRIMARY KEY, idx INTEGER NOT NULL)`,
	); err != nil {
		return fmt.Errorf("creating %s: %w", TableIndices, err)
	}

	for pos, idx := range indices {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO drug_concept_indices(pos, idx) VALUES (?, ?)`, pos, idx,
		); err != nil {
			return fmt.Errorf("inserting %s pos %d: %w", TableIndices, pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}
