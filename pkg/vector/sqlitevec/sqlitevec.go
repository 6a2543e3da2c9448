// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
//
// Every index owns two tables: "<name>_docs" maps string document IDs to
// integer rowids and holds the source fields, and "<name>_vec" is the vec0
// virtual table holding the embeddings under the same rowids. Index schemas
// are recorded in the simsearch_indexes registry table.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// maxKNN is the largest k a vec0 KNN query accepts.
const maxKNN = 4096

// Driver implements vector.Driver using SQLite with sqlite-vec.
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

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("%w: database path is required", vector.ErrStoreUnavailable)
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, vector.Unavailable(err, "opening database")
	}

	// A ":memory:" database exists per connection, and SQLite serialises
	// writers anyway.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, vector.Unavailable(err, "sqlite-vec not available")
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS simsearch_indexes (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL,
			metric TEXT NOT NULL,
			text_fields TEXT NOT NULL DEFAULT '[]'
		)
	`)
	if err != nil {
		db.Close()
		return nil, vector.Unavailable(err, "creating index registry")
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:     db,
		logger: logger,
	}, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func docsTable(name string) string { return quote(name + "_docs") }

func vecTable(name string) string { return quote(name + "_vec") }

// distanceMetric maps a similarity metric onto a vec0 distance_metric.
func distanceMetric(m vector.Metric) (string, error) {
	switch m {
	case vector.MetricCosine:
		return "cosine", nil
	case vector.MetricL2:
		return "l2", nil
	default:
		return "", fmt.Errorf("%w: sqlite-vec does not support the %s metric", vector.ErrSchemaConflict, m)
	}
}

// score converts a vec0 distance into a similarity score.
func score(m vector.Metric, distance sql.NullFloat64) float64 {
	// vec0 reports a NULL cosine distance when either vector is zero
	if !distance.Valid {
		return 0
	}
	if m == vector.MetricCosine {
		return vector.ScoreOrZero(1 - distance.Float64)
	}
	return vector.ScoreOrZero(vector.L2Score(distance.Float64))
}

func (d *Driver) lookup(ctx context.Context, q querier, name string) (vector.Schema, error) {
	var (
		s      vector.Schema
		fields string
	)
	err := q.QueryRowContext(ctx,
		`SELECT name, dimensions, metric, text_fields FROM simsearch_indexes WHERE name = ?`, name,
	).Scan(&s.Name, &s.Dimensions, &s.Metric, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return vector.Schema{}, vector.IndexNotFound(name)
	}
	if err != nil {
		return vector.Schema{}, vector.Unavailable(err, "reading index registry")
	}
	if err := json.Unmarshal([]byte(fields), &s.TextFields); err != nil {
		return vector.Schema{}, vector.Unavailable(err, "decoding text fields")
	}
	if len(s.TextFields) == 0 {
		s.TextFields = nil
	}
	return s, nil
}

// CreateIndex creates the registry entry and tables for an index.
func (d *Driver) CreateIndex(ctx context.Context, schema vector.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	dm, err := distanceMetric(schema.Metric)
	if err != nil {
		return err
	}

	fields, err := json.Marshal(schema.TextFields)
	if err != nil {
		return fmt.Errorf("%w: encoding text fields: %v", vector.ErrSchemaConflict, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return vector.Unavailable(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := d.lookup(ctx, tx, schema.Name); err == nil {
		return fmt.Errorf("%w: index %q already exists", vector.ErrSchemaConflict, schema.Name)
	} else if !errors.Is(err, vector.ErrIndexNotFound) {
		return err
	}

	stmts := []string{
		`INSERT INTO simsearch_indexes(name, dimensions, metric, text_fields) VALUES (?, ?, ?, ?)`,
		fmt.Sprintf(`CREATE TABLE %s (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			fields TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}'
		)`, docsTable(schema.Name)),
		// vec0 virtual tables use integer rowids shared with the docs table.
		fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING vec0(embedding float[%d] distance_metric=%s)`,
			vecTable(schema.Name), schema.Dimensions, dm),
	}
	if _, err := tx.ExecContext(ctx, stmts[0], schema.Name, schema.Dimensions, string(schema.Metric), string(fields)); err != nil {
		return vector.Unavailable(err, "registering index")
	}
	for _, stmt := range stmts[1:] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return vector.Unavailable(err, "creating index tables")
		}
	}

	if err := tx.Commit(); err != nil {
		return vector.Unavailable(err, "committing transaction")
	}

	d.logger.Debug("created sqlite-vec index",
		"index", schema.Name,
		"dimensions", schema.Dimensions,
		"metric", schema.Metric,
	)
	return nil
}

// DeleteIndex drops the tables and registry entry of an index.
func (d *Driver) DeleteIndex(ctx context.Context, name string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return vector.Unavailable(err, "beginning transaction")
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, vecTable(name)),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, docsTable(name)),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return vector.Unavailable(err, "dropping index tables")
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM simsearch_indexes WHERE name = ?`, name); err != nil {
		return vector.Unavailable(err, "unregistering index")
	}

	if err := tx.Commit(); err != nil {
		return vector.Unavailable(err, "committing transaction")
	}

	d.logger.Debug("deleted sqlite-vec index", "index", name)
	return nil
}

// IndexExists reports whether the index is registered.
func (d *Driver) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := d.lookup(ctx, d.db, name)
	if errors.Is(err, vector.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Describe returns the registered schema of an index.
func (d *Driver) Describe(ctx context.Context, name string) (vector.Schema, error) {
	return d.lookup(ctx, d.db, name)
}

// BulkUpsert stores documents with their embeddings in one transaction. Each
// document is written inside its own savepoint so a rejected document does
// not abort the others. If a document with the same ID already exists, it is
// replaced.
func (d *Driver) BulkUpsert(ctx context.Context, name string, docs []vector.Document) ([]vector.ItemResult, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, vector.Unavailable(err, "beginning transaction")
	}
	defer tx.Rollback()

	schema, err := d.lookup(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	results := make([]vector.ItemResult, len(docs))
	for i, doc := range docs {
		results[i].ID = doc.ID

		if err := checkDocument(schema, doc); err != nil {
			results[i].Err = err
			continue
		}

		if _, err := tx.ExecContext(ctx, `SAVEPOINT upsert_doc`); err != nil {
			return nil, vector.Unavailable(err, "creating savepoint")
		}
		if err := d.upsert(ctx, tx, name, doc); err != nil {
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO upsert_doc`); rbErr != nil {
				return nil, vector.Unavailable(rbErr, "rolling back savepoint")
			}
			results[i].Err = vector.Rejected("%v", err)
		}
		if _, err := tx.ExecContext(ctx, `RELEASE upsert_doc`); err != nil {
			return nil, vector.Unavailable(err, "releasing savepoint")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, vector.Unavailable(err, "committing transaction")
	}

	d.logger.Debug("upserted documents into sqlite-vec",
		"index", name,
		"count", len(docs),
	)
	return results, nil
}

func checkDocument(schema vector.Schema, doc vector.Document) error {
	if doc.ID == "" {
		return vector.Rejected("missing document id")
	}
	if len(doc.Embedding) != schema.Dimensions {
		return vector.Rejected("embedding has %d dimensions, index %q expects %d",
			len(doc.Embedding), schema.Name, schema.Dimensions)
	}
	if !vector.Finite(doc.Embedding) {
		return vector.Rejected("embedding contains non-finite values")
	}
	return nil
}

func (d *Driver) upsert(ctx context.Context, tx *sql.Tx, name string, doc vector.Document) error {
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	embBlob, err := sqlite_vec.SerializeFloat32(doc.Embedding)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	var rowID int64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM %s WHERE doc_id = ?`, docsTable(name)), doc.ID,
	).Scan(&rowID)

	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET fields = ?, metadata = ? WHERE rowid = ?`, docsTable(name)),
			string(fields), string(metadata), rowID,
		); err != nil {
			return fmt.Errorf("updating document: %w", err)
		}

		// vec0 does not support UPDATE
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, vecTable(name)), rowID,
		); err != nil {
			return fmt.Errorf("deleting old embedding: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		result, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s(doc_id, fields, metadata) VALUES (?, ?, ?)`, docsTable(name)),
			doc.ID, string(fields), string(metadata),
		)
		if err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
		rowID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid: %w", err)
		}
	default:
		return fmt.Errorf("checking for existing document: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vecTable(name)),
		rowID, embBlob,
	); err != nil {
		return fmt.Errorf("inserting embedding: %w", err)
	}
	return nil
}

// Query runs a KNN MATCH against the vec0 table for approximate queries and
// scores every stored embedding for exhaustive ones.
func (d *Driver) Query(ctx context.Context, name string, q vector.Query) ([]vector.Hit, error) {
	schema, err := d.lookup(ctx, d.db, name)
	if err != nil {
		return nil, err
	}

	var hits []vector.Hit
	switch q.Strategy {
	case vector.StrategyANN:
		hits, err = d.knn(ctx, schema, q)
	default:
		hits, err = d.scan(ctx, schema, q)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Debug("queried sqlite-vec",
		"index", name,
		"strategy", q.Strategy,
		"results", len(hits),
	)
	return hits, nil
}

func (d *Driver) knn(ctx context.Context, schema vector.Schema, q vector.Query) ([]vector.Hit, error) {
	queryBlob, err := sqlite_vec.SerializeFloat32(q.Vector)
	if err != nil {
		return nil, fmt.Errorf("%w: serializing query embedding: %v", vector.ErrSchemaConflict, err)
	}

	k := min(max(q.NumCandidates, q.K), maxKNN)
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.doc_id, d.fields, d.metadata, v.distance
		FROM %s v
		INNER JOIN %s d ON d.rowid = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance
	`, vecTable(schema.Name), docsTable(schema.Name)), queryBlob, k)
	if err != nil {
		return nil, vector.Unavailable(err, "querying vectors")
	}
	defer rows.Close()

	var hits []vector.Hit
	for rows.Next() {
		var (
			h        vector.Hit
			fields   string
			metadata string
			distance sql.NullFloat64
		)
		if err := rows.Scan(&h.ID, &fields, &metadata, &distance); err != nil {
			return nil, vector.Unavailable(err, "scanning query result")
		}
		if err := decodeSource(fields, metadata, &h.Fields, &h.Metadata); err != nil {
			return nil, err
		}
		h.Score = score(schema.Metric, distance)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, vector.Unavailable(err, "iterating query results")
	}

	return vector.Rank(hits, q.K), nil
}

func (d *Driver) scan(ctx context.Context, schema vector.Schema, q vector.Query) ([]vector.Hit, error) {
	metric := schema.Metric
	if q.Metric != "" {
		metric = q.Metric
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.doc_id, d.fields, d.metadata, v.embedding
		FROM %s d
		INNER JOIN %s v ON v.rowid = d.rowid
	`, docsTable(schema.Name), vecTable(schema.Name)))
	if err != nil {
		return nil, vector.Unavailable(err, "scanning vectors")
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var (
			doc      vector.Document
			fields   string
			metadata string
			embBlob  []byte
		)
		if err := rows.Scan(&doc.ID, &fields, &metadata, &embBlob); err != nil {
			return nil, vector.Unavailable(err, "scanning document")
		}
		if err := decodeSource(fields, metadata, &doc.Fields, &doc.Metadata); err != nil {
			return nil, err
		}
		if doc.Embedding, err = vector.DecodeFloat32(embBlob); err != nil {
			return nil, vector.Unavailable(err, "decoding embedding")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, vector.Unavailable(err, "iterating documents")
	}

	return vector.ScoreAll(metric, q.Vector, docs, q.K)
}

func decodeSource(fields, metadata string, f *map[string]string, m *map[string]any) error {
	if err := json.Unmarshal([]byte(fields), f); err != nil {
		return vector.Unavailable(err, "decoding fields")
	}
	if err := json.Unmarshal([]byte(metadata), m); err != nil {
		return vector.Unavailable(err, "decoding metadata")
	}
	return nil
}

// Count returns the number of documents in the index.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	if _, err := d.lookup(ctx, d.db, name); err != nil {
		return 0, err
	}

	var n int
	if err := d.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, docsTable(name))).Scan(&n); err != nil {
		return 0, vector.Unavailable(err, "counting documents")
	}
	return n, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, name string, ids []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return vector.Unavailable(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := d.lookup(ctx, tx, name); err != nil {
		return err
	}

	for _, id := range ids {
		var rowID int64
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s WHERE doc_id = ?`, docsTable(name)), id,
		).Scan(&rowID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return vector.Unavailable(err, "looking up document")
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, vecTable(name)), rowID,
		); err != nil {
			return vector.Unavailable(err, "deleting embedding")
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, docsTable(name)), rowID,
		); err != nil {
			return vector.Unavailable(err, "deleting document")
		}
	}

	if err := tx.Commit(); err != nil {
		return vector.Unavailable(err, "committing transaction")
	}

	d.logger.Debug("deleted documents from sqlite-vec",
		"index", name,
		"count", len(ids),
	)
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
