// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package ingest runs documents and e-mails through recognition,
// classification, embedding and storage, then hands them to routing.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/metrics"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/routing"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const (
	// DefaultSearchResults is used when a search asks for no particular count.
	DefaultSearchResults = 5
	// MaxSearchResults caps a single search.
	MaxSearchResults = 50
	// DefaultRouteTimeout bounds one background routing run.
	DefaultRouteTimeout = 30 * time.Second
)

// Router delivers a processed document to its department.
type Router interface {
	Route(ctx context.Context, doc *document.Processed) routing.Result
}

// Input is one document to ingest.
type Input struct {
	Filename string
	Data     []byte
	Source   document.Source
}

// Email is an e-mail body with optional attachments.
type Email struct {
	Subject     string
	From        string
	Body        string
	Attachments []Input
}

// Result is the outcome of ingesting one document.
type Result struct {
	Record *store.Record
	// Duplicate is set when the content was ingested before and Record is
	// the earlier one.
	Duplicate bool
}

// EmailResult is the outcome of ingesting an e-mail.
type EmailResult struct {
	// Primary is the part classified with the highest confidence. Only it is
	// routed.
	Primary   *store.Record
	Documents []*store.Record
}

// Deps are the collaborators of a Service.
type Deps struct {
	Recognizer Recognizer
	Classifier Classifier
	Embedder   provider.Embedder
	Documents  store.DocumentStore
	Vectors    store.VectorStore
	Router     Router
	// Deduper is optional; without it every upload is processed.
	Deduper store.Deduper
}

// Config tunes a Service.
type Config struct {
	// EmbeddingModel is passed to Deps.Embedder.
	EmbeddingModel string
	RouteTimeout   time.Duration
	Now            func() time.Time
}

// Service is the ingestion entry point.
type Service struct {
	deps     Deps
	cfg      Config
	pipeline *Pipeline
	wg       sync.WaitGroup
}

// New creates a Service. Every dependency except the deduper is required.
func New(deps Deps, cfg Config) (*Service, error) {
	switch {
	case deps.Recognizer == nil, deps.Classifier == nil, deps.Embedder == nil,
		deps.Documents == nil, deps.Vectors == nil, deps.Router == nil:
		return nil, dserr.New(dserr.CodeConfigValidateInvalidValue, "ingest: missing dependency")
	case cfg.EmbeddingModel == "":
		return nil, dserr.New(dserr.CodeConfigValidateInvalidValue, "ingest: embedding model is required")
	}
	if cfg.RouteTimeout <= 0 {
		cfg.RouteTimeout = DefaultRouteTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{deps: deps, cfg: cfg}
	s.pipeline = NewPipeline(
		&RecognizeStep{Recognizer: deps.Recognizer},
		&FormatStep{},
		&ClassifyStep{Classifier: deps.Classifier},
		&EnrichStep{},
		&EmbedStep{Embedder: deps.Embedder, Model: cfg.EmbeddingModel},
		&StoreStep{Documents: deps.Documents, Vectors: deps.Vectors, Now: cfg.Now},
	)
	return s, nil
}

// ProcessDocument ingests one document and routes it in the background.
func (s *Service) ProcessDocument(ctx context.Context, in Input) (*Result, error) {
	if in.Source == "" {
		in.Source = document.SourceScan
	}
	res, err := s.process(ctx, &State{Input: in})
	if err != nil {
		return nil, err
	}
	if !res.Duplicate {
		s.routeAsync(ctx, res.Record.Document)
	}
	return res, nil
}

// ProcessEmail ingests the body and every attachment. All parts are stored;
// only the most confident one is routed.
func (s *Service) ProcessEmail(ctx context.Context, email Email) (*EmailResult, error) {
	if email.Body == "" && len(email.Attachments) == 0 {
		return nil, dserr.New(dserr.CodeDocumentInputInvalid, "ingest: e-mail has neither body nor attachments")
	}

	parts := make([]Input, 0, len(email.Attachments)+1)
	if email.Body != "" {
		parts = append(parts, Input{Filename: "body.txt", Data: []byte(email.Body)})
	}
	parts = append(parts, email.Attachments...)

	out := &EmailResult{Documents: make([]*store.Record, 0, len(parts))}
	var primaryFresh bool
	for _, in := range parts {
		in.Source = document.SourceEmail
		res, err := s.process(ctx, &State{Input: in, Subject: email.Subject, Sender: email.From})
		if err != nil {
			return nil, err
		}
		out.Documents = append(out.Documents, res.Record)
		if out.Primary == nil || res.Record.Document.Confidence > out.Primary.Document.Confidence {
			out.Primary = res.Record
			primaryFresh = !res.Duplicate
		}
	}

	if primaryFresh {
		s.routeAsync(ctx, out.Primary.Document)
	}
	return out, nil
}

// process validates the input, short-circuits known content and runs the
// pipeline.
func (s *Service) process(ctx context.Context, state *State) (*Result, error) {
	in := state.Input
	if len(in.Data) == 0 {
		return nil, dserr.New(dserr.CodeDocumentInputInvalid, "ingest: document is empty")
	}
	if !in.Source.Valid() {
		return nil, dserr.Errorf(dserr.CodeDocumentInputInvalid, "ingest: unknown source %q", in.Source)
	}

	state.DocType = document.DocumentType(in.Filename)
	state.Hash = ContentHash(in.Data)

	if rec := s.lookupDuplicate(ctx, state.Hash); rec != nil {
		slog.Info("duplicate document skipped",
			"filename", in.Filename,
			"document_id", rec.ID(),
		)
		return &Result{Record: rec, Duplicate: true}, nil
	}

	if err := s.pipeline.Execute(ctx, state); err != nil {
		return nil, err
	}

	doc := state.Record.Document
	metrics.DocumentsProcessed.WithLabelValues(string(doc.Source), string(doc.Category), string(doc.Urgency)).Inc()
	slog.Info("document processed",
		"document_id", doc.ID,
		"filename", in.Filename,
		"category", doc.Category,
		"urgency", doc.Urgency,
		"department", doc.AssignedDepartment,
		"backend", doc.Backend,
	)

	if s.deps.Deduper != nil {
		if err := s.deps.Deduper.Remember(ctx, state.Hash, doc.ID); err != nil {
			slog.Warn("remembering content hash failed", "document_id", doc.ID, "error", err)
		}
	}
	return &Result{Record: state.Record}, nil
}

// lookupDuplicate returns the stored record for hash, if any. Lookup
// failures only cost a reprocessing, so they are logged and ignored.
func (s *Service) lookupDuplicate(ctx context.Context, hash string) *store.Record {
	if s.deps.Deduper == nil {
		return nil
	}
	id, err := s.deps.Deduper.Seen(ctx, hash)
	if err != nil {
		slog.Warn("duplicate lookup failed", "hash", hash, "error", err)
		return nil
	}
	if id == "" {
		return nil
	}
	rec, err := s.deps.Documents.Get(ctx, id)
	if err != nil {
		if !dserr.IsNotFound(err) {
			slog.Warn("loading duplicate failed", "document_id", id, "error", err)
		}
		return nil
	}
	return rec
}

// routeAsync routes doc on a context detached from the request, so a
// finished HTTP response does not cancel the notification.
func (s *Service) routeAsync(ctx context.Context, doc *document.Processed) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RouteTimeout)
		defer cancel()
		s.deps.Router.Route(rctx, doc)
	}()
}

// Wait blocks until every background routing run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Get returns a stored document.
func (s *Service) Get(ctx context.Context, id string) (*store.Record, error) {
	if id == "" {
		return nil, dserr.New(dserr.CodeStoreInvalidInput, "ingest: document id is required")
	}
	return s.deps.Documents.Get(ctx, id)
}

// Analysis summarises what recognition found in a stored document.
type Analysis struct {
	DocumentID     string            `json:"document_id"`
	DocumentType   string            `json:"document_type"`
	Language       string            `json:"language"`
	Model          string            `json:"model"`
	Backend        string            `json:"backend,omitempty"`
	PagesProcessed int               `json:"pages_processed"`
	DocSizeBytes   int               `json:"doc_size_bytes"`
	TableCount     int               `json:"table_count"`
	Fields         map[string]string `json:"extracted_fields"`
	HasTables      bool              `json:"has_tables"`
	HasForms       bool              `json:"has_forms"`
}

// Analysis returns the recognition analysis of a stored document.
func (s *Service) Analysis(ctx context.Context, id string) (*Analysis, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return AnalysisOf(rec), nil
}

// AnalysisOf builds the analysis of rec. Unknown values read "unknown".
func AnalysisOf(rec *store.Record) *Analysis {
	a := &Analysis{
		DocumentID:   rec.ID(),
		DocumentType: "unknown",
		Language:     "unknown",
		Fields:       map[string]string{},
	}
	st := rec.Analysis
	if st == nil {
		return a
	}
	if st.DocumentType != "" {
		a.DocumentType = st.DocumentType
	}
	if st.Language != "" {
		a.Language = st.Language
	}
	a.Model = st.Model
	a.Backend = st.Backend
	a.PagesProcessed = st.PagesProcessed
	a.DocSizeBytes = st.DocSizeBytes
	a.TableCount = len(st.Tables)
	a.HasTables = len(st.Tables) > 0
	a.HasForms = len(st.Fields) > 0
	for k, v := range st.Fields {
		a.Fields[k] = v
	}
	return a
}

// Search embeds query and returns the most similar stored documents,
// optionally restricted to one category.
func (s *Service) Search(ctx context.Context, query string, n int, category document.Category) ([]store.VectorResult, error) {
	if query == "" {
		return nil, dserr.New(dserr.CodeDocumentInputInvalid, "search: query is required")
	}
	if category != "" && !category.Valid() {
		return nil, dserr.Errorf(dserr.CodeDocumentInputInvalid, "search: unknown category %q", category)
	}
	if n <= 0 {
		n = DefaultSearchResults
	}
	n = min(n, MaxSearchResults)

	vec, err := embedOne(ctx, s.deps.Embedder, s.cfg.EmbeddingModel, query)
	if err != nil {
		return nil, err
	}

	var filters map[string]any
	if category != "" {
		filters = map[string]any{"category": string(category)}
	}
	return s.deps.Vectors.Search(ctx, vec, n, filters)
}

// ContentHash is the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
