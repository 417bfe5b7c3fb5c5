// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
// It is the on-disk persistence choice: each collection maps to a metadata
// table plus a vec0 virtual table, so an index survives process restarts.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"regexp"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/inkwellco/corpus/pkg/vector"
)

// collectionName restricts collection names to identifier-safe characters,
// since they are interpolated into table names.
var collectionName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Driver implements vector.Driver using SQLite with the sqlite-vec extension.
type Driver struct {
	db     *sql.DB
	logger *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewDriver opens (or creates) the database at DBPath and verifies the
// sqlite-vec extension is available.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connections to load the sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating collections table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"vec_version", vecVersion,
	)

	return &Driver{db: db, logger: logger}, nil
}

// CreateCollection allocates the metadata and vec0 tables for a collection.
func (d *Driver) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if err := validateName(name); err != nil {
		return err
	}
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", vector.ErrDimension, dimensions)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections(name, dimensions) VALUES (?, ?)`,
		name, dimensions,
	)
	if err != nil {
		return fmt.Errorf("registering collection %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", vector.ErrExists, name)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE rec_%s (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			doc_id TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL,
			start_off INTEGER NOT NULL,
			end_off INTEGER NOT NULL,
			content TEXT NOT NULL
		)
	`, name)); err != nil {
		return fmt.Errorf("creating record table for %s: %w", name, err)
	}

	// vec0 virtual tables use integer rowids; rec_<name> provides the
	// mapping from chunk ids to rowids.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE vec_%s USING vec0(embedding float[%d] distance_metric=cosine)`,
		name, dimensions,
	)
	if _, err := tx.ExecContext(ctx, createVec); err != nil {
		return fmt.Errorf("creating vec0 table for %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("created sqlite-vec collection",
		"collection", name,
		"dimensions", dimensions,
	)

	return nil
}

// DropCollection removes a collection's tables and registry row.
func (d *Driver) DropCollection(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if _, err := d.dimensions(ctx, name); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS rec_%s`, name)); err != nil {
		return fmt.Errorf("dropping record table for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS vec_%s`, name)); err != nil {
		return fmt.Errorf("dropping vec0 table for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("unregistering collection %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("dropped sqlite-vec collection", "collection", name)

	return nil
}

// Add appends records to a collection within a single transaction.
func (d *Driver) Add(ctx context.Context, name string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateName(name); err != nil {
		return err
	}

	dims, err := d.dimensions(ctx, name)
	if err != nil {
		return err
	}

	for _, r := range records {
		if len(r.Embedding) != dims {
			return fmt.Errorf("%w: record %s has %d dimensions, collection %s has %d",
				vector.ErrDimension, r.ID, len(r.Embedding), name, dims)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	insertRec := fmt.Sprintf(
		`INSERT INTO rec_%s(chunk_id, doc_id, source, seq, start_off, end_off, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, name)
	insertVec := fmt.Sprintf(`INSERT INTO vec_%s(rowid, embedding) VALUES (?, ?)`, name)

	for _, r := range records {
		res, err := tx.ExecContext(ctx, insertRec,
			r.ID, r.DocumentID, r.Source, r.Seq, r.Start, r.End, r.Text)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}

		rowID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for record %s: %w", r.ID, err)
		}

		blob := serializeFloat32(r.Embedding)
		if _, err := tx.ExecContext(ctx, insertVec, rowID, blob); err != nil {
			return fmt.Errorf("inserting embedding for record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added records to sqlite-vec",
		"collection", name,
		"count", len(records),
	)

	return nil
}

// Query runs a KNN query via vec0 MATCH and joins back to the record table.
func (d *Driver) Query(ctx context.Context, name string, embedding []float32, topK int) ([]vector.Result, error) {
	if topK <= 0 {
		topK = 10
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	dims, err := d.dimensions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(embedding) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %s has %d",
			vector.ErrDimension, len(embedding), name, dims)
	}

	queryBlob := serializeFloat32(embedding)

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			r.chunk_id,
			r.doc_id,
			r.source,
			r.seq,
			r.start_off,
			r.end_off,
			r.content,
			v.distance
		FROM vec_%s v
		INNER JOIN rec_%s r ON r.rowid = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance, r.rowid
	`, name, name), queryBlob, topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.Result
	for rows.Next() {
		var rec vector.Record
		var distance float64
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Source, &rec.Seq,
			&rec.Start, &rec.End, &rec.Text, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		results = append(results, vector.Result{
			Record: rec,
			// Cosine distance is in [0, 2]; similarity = 1 - distance.
			Score: float32(1.0 - distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		"collection", name,
		"results", len(results),
	)

	return results, nil
}

// Count returns the number of records in a collection.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}

	if _, err := d.dimensions(ctx, name); err != nil {
		return 0, err
	}

	var n int
	if err := d.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM rec_%s`, name),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records in %s: %w", name, err)
	}

	return n, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

// dimensions looks up a collection's registered dimensionality.
func (d *Driver) dimensions(ctx context.Context, name string) (int, error) {
	var dims int
	err := d.db.QueryRowContext(ctx,
		`SELECT dimensions FROM collections WHERE name = ?`, name,
	).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", vector.ErrNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up collection %s: %w", name, err)
	}
	return dims, nil
}

func validateName(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

var _ vector.Driver = (*Driver)(nil)
