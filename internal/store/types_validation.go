// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package store

import (
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Validate checks that the Record can be persisted.
func (r *Record) Validate() error {
	if r == nil || r.Document == nil {
		return dserr.New(dserr.CodeStoreInvalidInput, "record: document is required")
	}
	if r.Document.ID == "" {
		return dserr.New(dserr.CodeStoreInvalidInput, "record: document ID is required")
	}
	if !r.Document.Category.Valid() {
		return dserr.Errorf(dserr.CodeStoreInvalidInput, "record: invalid category %q", r.Document.Category)
	}
	if !r.Document.Urgency.Valid() {
		return dserr.Errorf(dserr.CodeStoreInvalidInput, "record: invalid urgency %q", r.Document.Urgency)
	}
	if r.CreatedAt.IsZero() {
		return dserr.New(dserr.CodeStoreInvalidInput, "record: CreatedAt is required")
	}
	return nil
}

// Validate checks that the AuditEntry has all required fields set.
func (e *AuditEntry) Validate() error {
	if e.ID == "" {
		return dserr.New(dserr.CodeStoreInvalidInput, "audit entry: ID is required")
	}
	if e.Action == "" {
		return dserr.New(dserr.CodeStoreInvalidInput, "audit entry: Action is required")
	}
	if e.Timestamp.IsZero() {
		return dserr.New(dserr.CodeStoreInvalidInput, "audit entry: Timestamp is required")
	}
	return nil
}
