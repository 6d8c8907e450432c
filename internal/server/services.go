// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package server

import (
	"context"
	"slices"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/ingest"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// DocumentService is the ingestion surface the routes call. It is
// implemented by *ingest.Service.
type DocumentService interface {
	ProcessDocument(ctx context.Context, in ingest.Input) (*ingest.Result, error)
	ProcessEmail(ctx context.Context, email ingest.Email) (*ingest.EmailResult, error)
	Get(ctx context.Context, id string) (*store.Record, error)
	Analysis(ctx context.Context, id string) (*ingest.Analysis, error)
	Search(ctx context.Context, query string, n int, category document.Category) ([]store.VectorResult, error)
}

// Services holds dependencies injected into route handlers.
type Services struct {
	documents DocumentService
	pools     map[provider.Task]provider.Pool
}

// NewServices validates and bundles the route dependencies. Every pool must
// belong to a known task.
func NewServices(documents DocumentService, pools map[provider.Task]provider.Pool) (*Services, error) {
	if documents == nil {
		return nil, dserr.New(dserr.CodeServerConfigInvalid, "document service is required")
	}
	if len(pools) == 0 {
		return nil, dserr.New(dserr.CodeServerConfigInvalid, "at least one backend pool is required")
	}
	for task, p := range pools {
		if !task.Valid() || p == nil {
			return nil, dserr.Errorf(dserr.CodeServerConfigInvalid, "invalid pool for task %q", task)
		}
	}
	return &Services{documents: documents, pools: pools}, nil
}

// Documents returns the document service.
func (s *Services) Documents() DocumentService {
	return s.documents
}

// Pool returns the pool serving task.
func (s *Services) Pool(task provider.Task) (provider.Pool, error) {
	p, ok := s.pools[task]
	if !ok {
		return nil, dserr.Errorf(dserr.CodeDispatchTaskNotFound, "no backend pool for task %q", task)
	}
	return p, nil
}

// Tasks returns the configured tasks in stable order.
func (s *Services) Tasks() []provider.Task {
	tasks := make([]provider.Task, 0, len(s.pools))
	for _, t := range provider.Tasks {
		if _, ok := s.pools[t]; ok {
			tasks = append(tasks, t)
		}
	}
	return slices.Clip(tasks)
}
