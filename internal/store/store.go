// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package store

import "context"

// DocumentStore keeps processed documents together with the text that was
// classified and the recognition analysis.
type DocumentStore interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// FindByHash returns the most recent record with the given content hash.
	FindByHash(ctx context.Context, hash string) (*Record, error)
	List(ctx context.Context, opts ListOpts) ([]*Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// VectorStore manages embeddings and semantic search.
type VectorStore interface {
	Store(ctx context.Context, id string, embedding []float32, metadata map[string]any) error
	// Search returns up to k nearest vectors whose metadata equals every
	// entry of filters.
	Search(ctx context.Context, query []float32, k int, filters map[string]any) ([]VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	Close() error
}

// AuditStore manages the routing audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// Deduper remembers content hashes of ingested documents.
type Deduper interface {
	// Seen returns the document ID stored for hash, or "" when the hash is
	// unknown.
	Seen(ctx context.Context, hash string) (string, error)
	Remember(ctx context.Context, hash, documentID string) error
}
