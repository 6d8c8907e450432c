// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package recognize converts uploaded documents into structured text using
// the recognition backend pool.
package recognize

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Config tunes the recognition service.
type Config struct {
	// IncludeImages asks backends to return embedded page images.
	IncludeImages bool
}

type recognized struct {
	rec     *provider.Recognition
	backend string
}

// Service recognises documents.
type Service struct {
	catalog      *provider.Catalog[provider.Recognizer]
	orchestrator *provider.Orchestrator[provider.RecognitionRequest, recognized]
	cfg          Config
}

// New wires a Service to the recognition pool.
func New(catalog *provider.Catalog[provider.Recognizer], d *provider.Dispatcher, ocfg provider.OrchestratorConfig, cfg Config) (*Service, error) {
	if catalog == nil || d == nil {
		return nil, dserr.New(dserr.CodeConfigValidateInvalidValue, "recognize: catalog and dispatcher are required")
	}
	if d.Registry().Task() != provider.TaskRecognition {
		return nil, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"recognize: dispatcher serves %q, want %q", d.Registry().Task(), provider.TaskRecognition)
	}
	if err := catalog.Validate(d.Registry()); err != nil {
		return nil, err
	}

	s := &Service{catalog: catalog, cfg: cfg}
	o, err := provider.NewOrchestrator[provider.RecognitionRequest, recognized](d, s.invoke, ocfg)
	if err != nil {
		return nil, err
	}
	s.orchestrator = o
	return s, nil
}

// Pool exposes the orchestrator for status and reset.
func (s *Service) Pool() provider.Pool {
	return s.orchestrator
}

// Recognize extracts structure from data. Plain text skips the backends.
func (s *Service) Recognize(ctx context.Context, data []byte, docType string) (*document.Structure, error) {
	if len(data) == 0 {
		return nil, dserr.New(dserr.CodeDocumentInputInvalid, "recognize: document is empty")
	}

	if document.IsPlainText(docType) {
		if !utf8.Valid(data) {
			return nil, dserr.New(dserr.CodeDocumentInputInvalid, "recognize: text document is not valid UTF-8")
		}
		return document.TextStructure(string(data)), nil
	}

	r, err := s.orchestrator.Do(ctx, provider.RecognitionRequest{
		Data:          data,
		MIMEType:      document.MIMEType(docType),
		IncludeImages: s.cfg.IncludeImages,
	})
	if err != nil {
		return nil, err
	}

	st := document.FromRecognition(r.rec, docType)
	st.Backend = r.backend
	slog.Debug("document recognised",
		"backend", r.backend,
		"pages", st.PagesProcessed,
		"tables", len(st.Tables),
		"fields", len(st.Fields),
	)
	return st, nil
}

func (s *Service) invoke(ctx context.Context, backend string, req provider.RecognitionRequest) (recognized, error) {
	client, model, err := s.catalog.Resolve(backend)
	if err != nil {
		return recognized{}, err
	}

	req.Model = model
	rec, err := client.Recognize(ctx, req)
	if err != nil {
		return recognized{}, err
	}
	if rec == nil || len(rec.Pages) == 0 {
		return recognized{}, dserr.New(dserr.CodeProviderResponseInvalid,
			"recognize: backend returned no pages", dserr.FieldBackend(backend))
	}
	if rec.Model == "" {
		rec.Model = model
	}
	return recognized{rec: rec, backend: backend}, nil
}
