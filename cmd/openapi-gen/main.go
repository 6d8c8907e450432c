// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/ingest"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/server"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/docsort-dev/docsort/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI document huma derives from the route types.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, dserr.Errorf(dserr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	svc, err := server.NewServices(stubDocuments{}, map[provider.Task]provider.Pool{
		provider.TaskClassification: stubPool(provider.TaskClassification),
		provider.TaskRecognition:    stubPool(provider.TaskRecognition),
	})
	if err != nil {
		return nil, dserr.Errorf(dserr.CodeCLISetupFailure, "creating services: %w", err)
	}
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op stubs for spec generation. Handlers are never invoked.

type stubDocuments struct{}

func (stubDocuments) ProcessDocument(context.Context, ingest.Input) (*ingest.Result, error) {
	return nil, nil
}

func (stubDocuments) ProcessEmail(context.Context, ingest.Email) (*ingest.EmailResult, error) {
	return nil, nil
}

func (stubDocuments) Get(context.Context, string) (*store.Record, error) { return nil, nil }

func (stubDocuments) Analysis(context.Context, string) (*ingest.Analysis, error) { return nil, nil }

func (stubDocuments) Search(context.Context, string, int, document.Category) ([]store.VectorResult, error) {
	return nil, nil
}

type stubPool provider.Task

func (p stubPool) Task() provider.Task       { return provider.Task(p) }
func (p stubPool) Status() health.PoolStatus { return health.PoolStatus{Task: string(p)} }
func (stubPool) Reset()                      {}
