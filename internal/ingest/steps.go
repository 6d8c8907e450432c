// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package ingest

import (
	"context"
	"time"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Recognizer extracts structure from a raw document.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, docType string) (*document.Structure, error)
}

// Classifier turns formatted text into a processed document.
type Classifier interface {
	Classify(ctx context.Context, text string) (*document.Processed, error)
}

// RecognizeStep runs recognition, or plain-text passthrough.
type RecognizeStep struct {
	Recognizer Recognizer
}

func (s *RecognizeStep) Name() string { return "recognize" }

func (s *RecognizeStep) Execute(ctx context.Context, state *State) error {
	st, err := s.Recognizer.Recognize(ctx, state.Input.Data, state.DocType)
	if err != nil {
		return err
	}
	state.Structure = st
	return nil
}

// FormatStep renders the structure as classifier input.
type FormatStep struct{}

func (s *FormatStep) Name() string { return "format" }

func (s *FormatStep) Execute(_ context.Context, state *State) error {
	if state.Structure == nil {
		return dserr.New(dserr.CodeIngestPipelineFailure, "format: no recognised structure")
	}
	state.Formatted = document.FormatForDownstream(state.Structure)
	return nil
}

// ClassifyStep runs the classification pool.
type ClassifyStep struct {
	Classifier Classifier
}

func (s *ClassifyStep) Name() string { return "classify" }

func (s *ClassifyStep) Execute(ctx context.Context, state *State) error {
	doc, err := s.Classifier.Classify(ctx, state.Formatted)
	if err != nil {
		return err
	}
	doc.Source = state.Input.Source
	state.Document = doc
	return nil
}

// EnrichStep lets pattern-matched banking fields override what the model
// reported, and fills e-mail metadata the model left empty.
type EnrichStep struct{}

func (s *EnrichStep) Name() string { return "enrich" }

func (s *EnrichStep) Execute(_ context.Context, state *State) error {
	doc := state.Document
	if doc == nil {
		return dserr.New(dserr.CodeIngestPipelineFailure, "enrich: no classified document")
	}

	if state.Structure != nil {
		f := state.Structure.Fields
		if v := f[document.FieldCustomerID]; v != "" {
			doc.Metadata.CustomerID = v
		}
		if v := f[document.FieldAccountNumber]; v != "" {
			doc.Metadata.AccountNumber = v
		}
		if v := f[document.FieldIBAN]; v != "" {
			doc.ExtractedInfo.IBAN = v
		}
		if v := f[document.FieldBIC]; v != "" {
			doc.ExtractedInfo.BIC = v
		}
	}

	if doc.Metadata.Subject == "" {
		doc.Metadata.Subject = state.Subject
	}
	if doc.Metadata.Email == "" {
		doc.Metadata.Email = state.Sender
	}
	return nil
}

// EmbedStep embeds the formatted text.
type EmbedStep struct {
	Embedder provider.Embedder
	Model    string
}

func (s *EmbedStep) Name() string { return "embed" }

func (s *EmbedStep) Execute(ctx context.Context, state *State) error {
	vec, err := embedOne(ctx, s.Embedder, s.Model, state.Formatted)
	if err != nil {
		return err
	}
	state.Embedding = vec
	return nil
}

// StoreStep persists the record and its vector. A failed vector write
// removes the record again so search and lookup stay consistent.
type StoreStep struct {
	Documents store.DocumentStore
	Vectors   store.VectorStore
	Now       func() time.Time
}

func (s *StoreStep) Name() string { return "store" }

func (s *StoreStep) Execute(ctx context.Context, state *State) error {
	rec := &store.Record{
		Document:      state.Document,
		FormattedText: state.Formatted,
		Analysis:      state.Structure,
		Filename:      state.Input.Filename,
		ContentHash:   state.Hash,
		CreatedAt:     s.Now().UTC(),
	}
	if err := s.Documents.Put(ctx, rec); err != nil {
		return err
	}

	if err := s.Vectors.Store(ctx, rec.ID(), state.Embedding, VectorMetadata(rec)); err != nil {
		if delErr := s.Documents.Delete(ctx, rec.ID()); delErr != nil {
			return dserr.Join(err, delErr)
		}
		return err
	}

	state.Record = rec
	return nil
}

// VectorMetadata is stored next to a document's embedding and is what
// search filters match against.
func VectorMetadata(rec *store.Record) map[string]any {
	doc := rec.Document
	meta := map[string]any{
		"category":     string(doc.Category),
		"urgency":      string(doc.Urgency),
		"department":   doc.AssignedDepartment,
		"source":       string(doc.Source),
		"processed_at": doc.ProcessedAt.UTC().Format(time.RFC3339),
		"confidence":   doc.Confidence,
	}
	if doc.Metadata.CustomerID != "" {
		meta["customer_id"] = doc.Metadata.CustomerID
	}
	if a := rec.Analysis; a != nil {
		meta["document_type"] = a.DocumentType
		meta["language"] = a.Language
		meta["has_tables"] = len(a.Tables) > 0
		meta["has_forms"] = len(a.Fields) > 0
		meta["pages"] = a.PagesProcessed
	}
	return meta
}

func embedOne(ctx context.Context, e provider.Embedder, model, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, dserr.Errorf(dserr.CodeProviderResponseInvalid,
			"embed: got %d vectors for one input", len(vecs))
	}
	return vecs[0], nil
}
