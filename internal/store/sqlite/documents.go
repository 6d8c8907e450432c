// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Compile-time interface checks.
var (
	_ store.DocumentStore = (*DocumentStore)(nil)
	_ store.AuditStore    = (*auditStore)(nil)
	_ store.Deduper       = (*DocumentStore)(nil)
)

// DocumentStore implements store.DocumentStore and store.AuditStore on one
// SQLite database.
type DocumentStore struct {
	db    *sql.DB
	audit *auditStore
}

// NewDocumentStore opens (or creates) a SQLite database at dbPath and
// initialises the documents and audit_log tables.
func NewDocumentStore(dbPath string) (*DocumentStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "opening documents db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "pinging documents db")
	}

	if err := migrateDocuments(db); err != nil {
		_ = db.Close()
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "migrating documents db")
	}

	return &DocumentStore{db: db, audit: &auditStore{db: db}}, nil
}

func migrateDocuments(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	category       TEXT NOT NULL,
	urgency        TEXT NOT NULL,
	customer_id    TEXT NOT NULL DEFAULT '',
	department     TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	filename       TEXT NOT NULL DEFAULT '',
	content_hash   TEXT NOT NULL DEFAULT '',
	document       TEXT NOT NULL,
	formatted_text TEXT NOT NULL DEFAULT '',
	analysis       TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
CREATE INDEX IF NOT EXISTS idx_documents_hash     ON documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_created  ON documents(created_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	action      TEXT NOT NULL DEFAULT '',
	document_id TEXT NOT NULL DEFAULT '',
	department  TEXT NOT NULL DEFAULT '',
	details     TEXT NOT NULL DEFAULT '{}',
	result      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_document  ON audit_log(document_id);
`
	_, err := db.Exec(ddl)
	return err
}

// AuditLog returns the audit store sharing this database.
func (s *DocumentStore) AuditLog() store.AuditStore { return s.audit }

// Close closes the underlying database connection.
func (s *DocumentStore) Close() error { return s.db.Close() }

// Put inserts or replaces a record.
func (s *DocumentStore) Put(ctx context.Context, rec *store.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	docJSON, err := json.Marshal(rec.Document)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeStoreInvalidInput, "marshalling document", dserr.FieldDocumentID(rec.ID()))
	}
	var analysis string
	if rec.Analysis != nil {
		b, err := json.Marshal(rec.Analysis)
		if err != nil {
			return dserr.Wrap(err, dserr.CodeStoreInvalidInput, "marshalling analysis", dserr.FieldDocumentID(rec.ID()))
		}
		analysis = string(b)
	}

	d := rec.Document
	const q = `INSERT INTO documents
	(id, category, urgency, customer_id, department, source, filename, content_hash, document, formatted_text, analysis, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	category = excluded.category,
	urgency = excluded.urgency,
	customer_id = excluded.customer_id,
	department = excluded.department,
	source = excluded.source,
	filename = excluded.filename,
	content_hash = excluded.content_hash,
	document = excluded.document,
	formatted_text = excluded.formatted_text,
	analysis = excluded.analysis`

	_, err = s.db.ExecContext(ctx, q,
		d.ID, string(d.Category), string(d.Urgency), d.Metadata.CustomerID, d.AssignedDepartment,
		string(d.Source), rec.Filename, rec.ContentHash, string(docJSON), rec.FormattedText, analysis,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "upserting document", dserr.FieldDocumentID(d.ID))
	}
	return nil
}

const recordColumns = `filename, content_hash, document, formatted_text, analysis, created_at`

// Get returns the record with id.
func (s *DocumentStore) Get(ctx context.Context, id string) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM documents WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dserr.New(dserr.CodeStoreEntityNotFound, "document not found: "+id, dserr.FieldDocumentID(id))
	}
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "querying document", dserr.FieldDocumentID(id))
	}
	return rec, nil
}

// FindByHash returns the newest record with content hash h.
func (s *DocumentStore) FindByHash(ctx context.Context, h string) (*store.Record, error) {
	if h == "" {
		return nil, dserr.New(dserr.CodeStoreInvalidInput, "content hash is required")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE content_hash = ? ORDER BY created_at DESC LIMIT 1`, h)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dserr.New(dserr.CodeStoreEntityNotFound, "no document with hash "+h)
	}
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "querying document by hash")
	}
	return rec, nil
}

// Seen implements store.Deduper on the content_hash index.
func (s *DocumentStore) Seen(ctx context.Context, h string) (string, error) {
	rec, err := s.FindByHash(ctx, h)
	if dserr.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.ID(), nil
}

// Remember is a no-op: Put already records the hash.
func (s *DocumentStore) Remember(context.Context, string, string) error { return nil }

// List returns records newest first.
func (s *DocumentStore) List(ctx context.Context, opts store.ListOpts) ([]*store.Record, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT ` + recordColumns + ` FROM documents`)

	var args []any
	if opts.Category != "" {
		qb.WriteString(` WHERE category = ?`)
		args = append(args, string(opts.Category))
	}
	qb.WriteString(` ORDER BY created_at DESC LIMIT ? OFFSET ?`)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "listing documents")
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var out []*store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "scanning document row")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "iterating document rows")
	}
	return out, nil
}

// Delete removes a record. Deleting an unknown id is not an error.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "deleting document", dserr.FieldDocumentID(id))
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*store.Record, error) {
	var rec store.Record
	var docJSON, analysisJSON, created string
	if err := sc.Scan(&rec.Filename, &rec.ContentHash, &docJSON, &rec.FormattedText, &analysisJSON, &created); err != nil {
		return nil, err
	}

	rec.Document = &document.Processed{}
	if err := json.Unmarshal([]byte(docJSON), rec.Document); err != nil {
		return nil, err
	}
	if analysisJSON != "" {
		rec.Analysis = &document.Structure{}
		if err := json.Unmarshal([]byte(analysisJSON), rec.Analysis); err != nil {
			return nil, err
		}
	}
	rec.CreatedAt = parseTime(created)
	return &rec, nil
}

// ---------- auditStore ----------

type auditStore struct {
	db *sql.DB
}

func (s *auditStore) Append(ctx context.Context, entry *store.AuditEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	details := "{}"
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return dserr.Wrap(err, dserr.CodeStoreInvalidInput, "marshalling audit details")
		}
		details = string(b)
	}

	const q = `INSERT INTO audit_log (id, timestamp, action, document_id, department, details, result)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		entry.ID, formatTime(entry.Timestamp), entry.Action, entry.DocumentID,
		entry.Department, details, entry.Result,
	)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "appending audit entry "+entry.ID)
	}
	return nil
}

func (s *auditStore) Query(ctx context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT id, timestamp, action, document_id, department, details, result FROM audit_log`)

	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.DocumentID != "" {
		conditions = append(conditions, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, formatTime(filter.To))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	qb.WriteString(" ORDER BY timestamp ASC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	qb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "querying audit log")
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var entries []*store.AuditEntry
	for rows.Next() {
		var e store.AuditEntry
		var ts, detailsJSON string
		if err := rows.Scan(&e.ID, &ts, &e.Action, &e.DocumentID, &e.Department, &detailsJSON, &e.Result); err != nil {
			return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "scanning audit row")
		}
		e.Timestamp = parseTime(ts)
		if detailsJSON != "" && detailsJSON != "{}" {
			if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
				return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "unmarshalling audit details")
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "iterating audit rows")
	}
	return entries, nil
}

// formatTime serialises a time for storage. Fixed-width so that string
// order matches time order.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
