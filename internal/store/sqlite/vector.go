// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// filterKey restricts metadata filter keys to plain identifiers.
var filterKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// VectorStore implements store.VectorStore backed by SQLite with sqlite-vec.
// Vectors are compared by cosine distance.
type VectorStore struct {
	db         *sql.DB
	dimensions int
}

// NewVectorStore opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table and companion metadata table.
func NewVectorStore(dbPath string, dimensions int) (*VectorStore, error) {
	if dimensions <= 0 {
		return nil, dserr.Errorf(dserr.CodeStoreInvalidInput, "vector dimensions must be positive, got %d", dimensions)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "opening vectors db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "pinging vectors db")
	}

	if err := migrateVector(db, dimensions); err != nil {
		_ = db.Close()
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "migrating vector tables")
	}

	return &VectorStore{db: db, dimensions: dimensions}, nil
}

func migrateVector(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	const metaDDL = `
CREATE TABLE IF NOT EXISTS vector_metadata (
	id       TEXT PRIMARY KEY,
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.Exec(metaDDL); err != nil {
		return fmt.Errorf("creating vector_metadata table: %w", err)
	}

	return nil
}

func (v *VectorStore) checkDims(vec []float32) error {
	if len(vec) != v.dimensions {
		return dserr.Errorf(dserr.CodeStoreDimensionMismatch,
			"embedding has %d dimensions, store expects %d", len(vec), v.dimensions)
	}
	return nil
}

// Store inserts or replaces a vector and its metadata.
func (v *VectorStore) Store(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	if id == "" {
		return dserr.New(dserr.CodeStoreInvalidInput, "vector id is required")
	}
	if err := v.checkDims(embedding); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeStoreInvalidInput, "serializing embedding")
	}

	metaJSON := []byte("{}")
	if len(metadata) > 0 {
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return dserr.Wrap(err, dserr.CodeStoreInvalidInput, "marshalling metadata")
		}
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "deleting existing vector "+id)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "inserting vector "+id)
	}

	const metaQ = `INSERT INTO vector_metadata(id, metadata) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata`
	if _, err := tx.ExecContext(ctx, metaQ, id, string(metaJSON)); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "upserting vector metadata "+id)
	}

	if err := tx.Commit(); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "committing vector store")
	}
	return nil
}

// Search returns the k nearest vectors, most similar first. Without filters
// it runs a vec0 KNN query. With filters it scans the rows whose metadata
// matches, since a KNN query would apply k before the filter.
func (v *VectorStore) Search(ctx context.Context, query []float32, k int, filters map[string]any) ([]store.VectorResult, error) {
	if k <= 0 {
		return nil, dserr.Errorf(dserr.CodeStoreInvalidInput, "k must be positive, got %d", k)
	}
	if err := v.checkDims(query); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreInvalidInput, "serializing query vector")
	}

	var (
		q    string
		args []any
	)
	if len(filters) == 0 {
		q = `SELECT v.id, v.distance, COALESCE(m.metadata, '{}')
FROM vectors v
LEFT JOIN vector_metadata m ON m.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`
		args = []any{blob, k}
	} else {
		where, fargs, err := filterClause(filters)
		if err != nil {
			return nil, err
		}
		q = `SELECT v.id, vec_distance_cosine(v.embedding, ?) AS distance, m.metadata
FROM vectors v
JOIN vector_metadata m ON m.id = v.id
WHERE ` + where + `
ORDER BY distance
LIMIT ?`
		args = append([]any{blob}, fargs...)
		args = append(args, k)
	}

	rows, err := v.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	results := []store.VectorResult{}
	for rows.Next() {
		var r store.VectorResult
		var distance float64
		var metaStr string

		if err := rows.Scan(&r.ID, &distance, &metaStr); err != nil {
			return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "scanning vector result")
		}
		r.Similarity = 1 - distance

		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &r.Metadata); err != nil {
				return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "unmarshalling vector metadata")
			}
		}

		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "iterating vector results")
	}

	return results, nil
}

// filterClause builds equality conditions on JSON metadata. Keys are sorted
// so the generated SQL is stable.
func filterClause(filters map[string]any) (string, []any, error) {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		if !filterKey.MatchString(key) {
			return "", nil, dserr.Errorf(dserr.CodeStoreInvalidInput, "invalid metadata filter key %q", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, 2*len(keys))
	for _, key := range keys {
		val := filters[key]
		switch tv := val.(type) {
		case bool:
			// json_extract yields 1/0 for JSON booleans.
			if tv {
				val = 1
			} else {
				val = 0
			}
		case string, int, int64, float64, float32:
		default:
			return "", nil, dserr.Errorf(dserr.CodeStoreInvalidInput,
				"metadata filter %q has unsupported type %T", key, val)
		}
		conds = append(conds, "json_extract(m.metadata, ?) = ?")
		args = append(args, "$."+key, val)
	}
	return strings.Join(conds, " AND "), args, nil
}

// Delete removes vectors and their metadata by ID.
func (v *VectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "deleting vectors")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_metadata WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "deleting vector metadata")
	}

	if err := tx.Commit(); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "committing vector delete")
	}
	return nil
}

// Close closes the underlying database connection.
func (v *VectorStore) Close() error {
	return v.db.Close()
}
