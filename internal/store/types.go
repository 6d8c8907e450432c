// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package store

import (
	"time"

	"github.com/docsort-dev/docsort/internal/document"
)

// Record is a stored document.
type Record struct {
	Document *document.Processed
	// FormattedText is what the classifier and the embedder saw.
	FormattedText string
	// Analysis is the recognition result. Nil for e-mail bodies.
	Analysis    *document.Structure
	Filename    string
	ContentHash string
	CreatedAt   time.Time
}

// ID returns the document ID.
func (r *Record) ID() string {
	if r == nil || r.Document == nil {
		return ""
	}
	return r.Document.ID
}

// VectorResult represents a single result from a vector similarity search.
type VectorResult struct {
	ID string
	// Similarity is 1 - distance; 1.0 is an exact match.
	Similarity float64
	Metadata   map[string]any
}

// AuditEntry records a routing decision.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	Action     string
	DocumentID string
	Department string
	Details    map[string]any
	Result     string
}

// AuditFilter specifies criteria for querying audit entries.
type AuditFilter struct {
	Action     string
	DocumentID string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// ListOpts provides filtering and pagination for List.
type ListOpts struct {
	Category document.Category
	Limit    int
	Offset   int
}
