// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package store

import (
	"errors"
	"io"
	"sync"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// DefaultVectorDimensions matches mistral-embed.
const DefaultVectorDimensions = 1024

// Stores groups everything a backend provides.
type Stores struct {
	Documents DocumentStore
	Vectors   VectorStore
	Audit     AuditStore
	// closers are closed after Documents and Vectors, e.g. shared
	// database connections.
	closers []io.Closer
}

// NewStores assembles Stores. Backend packages use this so Close covers
// every resource they opened.
func NewStores(docs DocumentStore, vecs VectorStore, audit AuditStore, closers ...io.Closer) *Stores {
	return &Stores{Documents: docs, Vectors: vecs, Audit: audit, closers: closers}
}

// Close closes every store.
func (s *Stores) Close() error {
	var errs []error
	if s.Documents != nil {
		if err := s.Documents.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Vectors != nil {
		if err := s.Vectors.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Factory opens a backend's stores under dataDir.
type Factory func(dataDir string, vectorDims int) (*Stores, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates all stores for cfg.
func Open(cfg *StorageConfig) (*Stores, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, dserr.Errorf(dserr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	if cfg.DataDir == "" {
		return nil, dserr.New(dserr.CodeStoreInvalidInput, "storage data directory is required")
	}

	dims := DefaultVectorDimensions
	if cfg.VectorDimensions > 0 {
		dims = cfg.VectorDimensions
	}

	return factory(cfg.DataDir, dims)
}
