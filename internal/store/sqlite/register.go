// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", openStores)
}

func openStores(dataDir string, vectorDims int) (*store.Stores, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreDatabaseFailure, "creating data directory")
	}

	docs, err := NewDocumentStore(filepath.Join(dataDir, "documents.db"))
	if err != nil {
		return nil, dserr.With(err, dserr.Field("stage", "creating document store"))
	}

	vecs, err := NewVectorStore(filepath.Join(dataDir, "vectors.db"), vectorDims)
	if err != nil {
		_ = docs.Close()
		return nil, dserr.With(err, dserr.Field("stage", "creating vector store"))
	}

	return store.NewStores(docs, vecs, docs.AuditLog()), nil
}
