// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/ingest"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const letter = "Sehr geehrte Damen und Herren,\nKundennummer: KD123456\nIBAN DE89 3704 0044 0532 0130 00\nich beschwere mich."

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := ingest.New(ingest.Deps{}, ingest.Config{EmbeddingModel: "m"})
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeConfigValidateInvalidValue))
}

func TestProcessDocument(t *testing.T) {
	f := newFixture(t, false)

	res, err := f.svc.ProcessDocument(context.Background(), ingest.Input{Filename: "letter.txt", Data: []byte(letter)})
	require.NoError(t, err)
	f.svc.Wait()

	require.False(t, res.Duplicate)
	rec := res.Record
	require.NotNil(t, rec)
	doc := rec.Document

	assert.Equal(t, document.SourceScan, doc.Source)
	assert.Equal(t, "KD123456", doc.Metadata.CustomerID, "extracted field overrides the model")
	assert.Equal(t, "DE89370400440532013000", doc.ExtractedInfo.IBAN)
	assert.Equal(t, ingest.ContentHash([]byte(letter)), rec.ContentHash)
	assert.Equal(t, "letter.txt", rec.Filename)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.Contains(t, rec.FormattedText, "=== DOCUMENT TEXT ===")

	stored, err := f.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Same(t, rec, stored)

	vec, ok := f.vectors.stored[doc.ID]
	require.True(t, ok)
	assert.Equal(t, "complaints", vec.metadata["category"])
	assert.Equal(t, "high", vec.metadata["urgency"])
	assert.Equal(t, "KD123456", vec.metadata["customer_id"])
	assert.Equal(t, true, vec.metadata["has_forms"])

	require.Equal(t, []string{rec.FormattedText}, f.embedder.inputs)

	routed := f.router.Routed()
	require.Len(t, routed, 1)
	assert.Equal(t, doc.ID, routed[0].ID)
}

func TestProcessDocument_Duplicate(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.ProcessDocument(ctx, ingest.Input{Filename: "a.txt", Data: []byte(letter)})
	require.NoError(t, err)
	second, err := f.svc.ProcessDocument(ctx, ingest.Input{Filename: "b.txt", Data: []byte(letter)})
	require.NoError(t, err)
	f.svc.Wait()

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Record.ID(), second.Record.ID())
	assert.Equal(t, 1, f.classifier.Calls())
	assert.Len(t, f.router.Routed(), 1)
}

func TestProcessDocument_StaleDuplicateIsReprocessed(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.ProcessDocument(ctx, ingest.Input{Filename: "a.txt", Data: []byte(letter)})
	require.NoError(t, err)
	require.NoError(t, f.docs.Delete(ctx, first.Record.ID()))

	again, err := f.svc.ProcessDocument(ctx, ingest.Input{Filename: "a.txt", Data: []byte(letter)})
	require.NoError(t, err)
	f.svc.Wait()

	assert.False(t, again.Duplicate)
	assert.NotEqual(t, first.Record.ID(), again.Record.ID())
	assert.Equal(t, 2, f.classifier.Calls())
}

func TestProcessDocument_InvalidInput(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.ProcessDocument(context.Background(), ingest.Input{Filename: "a.pdf"})
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeDocumentInputInvalid))

	_, err = f.svc.ProcessDocument(context.Background(), ingest.Input{Filename: "a.pdf", Data: []byte("x"), Source: "fax"})
	require.Error(t, err)
	assert.True(t, dserr.IsInvalidInput(err))
	assert.Zero(t, f.classifier.Calls())
}

func TestProcessDocument_ClassifierExhausted(t *testing.T) {
	f := newFixture(t, false)
	f.classifier.err = &provider.ExhaustedError{
		Task:     provider.TaskClassification,
		Backend:  "mistral/mistral-large-latest",
		Attempts: 3,
		Err:      errors.New("upstream 503"),
	}

	_, err := f.svc.ProcessDocument(context.Background(), ingest.Input{Filename: "a.txt", Data: []byte(letter)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline step classify failed")

	var exhausted *provider.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)

	assert.Zero(t, f.docs.Len())
	assert.Empty(t, f.router.Routed())
}

func TestProcessDocument_VectorFailureRemovesRecord(t *testing.T) {
	f := newFixture(t, false)
	f.vectors.err = dserr.New(dserr.CodeStoreDimensionMismatch, "dimension mismatch")

	_, err := f.svc.ProcessDocument(context.Background(), ingest.Input{Filename: "a.txt", Data: []byte(letter)})
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeStoreDimensionMismatch))
	assert.Zero(t, f.docs.Len())
}

func TestProcessDocument_RecognitionFailure(t *testing.T) {
	f := newFixture(t, false)
	f.recognizer.err = dserr.New(dserr.CodeDocumentInputInvalid, "recognize: text document is not valid UTF-8")

	_, err := f.svc.ProcessDocument(context.Background(), ingest.Input{Filename: "a.txt", Data: []byte{0xff}})
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeDocumentInputInvalid))
	assert.Zero(t, f.classifier.Calls())
}

func TestProcessEmail(t *testing.T) {
	f := newFixture(t, false)
	f.classifier.confidence = func(text string) float64 {
		if strings.Contains(text, "Kreditantrag") {
			return 0.95
		}
		return 0.6
	}

	res, err := f.svc.ProcessEmail(context.Background(), ingest.Email{
		Subject: "Unterlagen",
		From:    "kunde@example.de",
		Body:    "Anbei meine Unterlagen.",
		Attachments: []ingest.Input{
			{Filename: "antrag.pdf", Data: []byte("Kreditantrag über 20.000 EUR")},
		},
	})
	require.NoError(t, err)
	f.svc.Wait()

	require.Len(t, res.Documents, 2)
	require.NotNil(t, res.Primary)
	assert.Equal(t, res.Documents[1].ID(), res.Primary.ID())

	for _, rec := range res.Documents {
		assert.Equal(t, document.SourceEmail, rec.Document.Source)
		assert.Equal(t, "Unterlagen", rec.Document.Metadata.Subject)
		assert.Equal(t, "kunde@example.de", rec.Document.Metadata.Email)
	}
	assert.Equal(t, 2, f.docs.Len())
	assert.Len(t, f.vectors.stored, 2)

	routed := f.router.Routed()
	require.Len(t, routed, 1)
	assert.Equal(t, res.Primary.ID(), routed[0].ID)
}

func TestProcessEmail_Empty(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.ProcessEmail(context.Background(), ingest.Email{Subject: "nothing"})
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeDocumentInputInvalid))
}

func TestSearch(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.ProcessDocument(ctx, ingest.Input{Filename: "a.txt", Data: []byte(letter)})
	require.NoError(t, err)
	f.svc.Wait()

	results, err := f.svc.Search(ctx, "Beschwerde Gebühren", 0, "")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, ingest.DefaultSearchResults, f.vectors.lastK)
	assert.Nil(t, f.vectors.filters)

	_, err = f.svc.Search(ctx, "Kredit", 500, document.CategoryLoanApplication)
	require.NoError(t, err)
	assert.Equal(t, ingest.MaxSearchResults, f.vectors.lastK)
	assert.Equal(t, map[string]any{"category": "loan_applications"}, f.vectors.filters)
}

func TestSearch_InvalidInput(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Search(context.Background(), "", 5, "")
	assert.True(t, dserr.IsInvalidInput(err))

	_, err = f.svc.Search(context.Background(), "x", 5, "mortgages")
	assert.True(t, dserr.IsInvalidInput(err))
}

func TestGetAndAnalysis(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.ProcessDocument(ctx, ingest.Input{Filename: "scan.pdf", Data: []byte(letter)})
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.svc.Get(ctx, res.Record.ID())
	require.NoError(t, err)
	assert.Equal(t, res.Record.ID(), got.ID())

	a, err := f.svc.Analysis(ctx, res.Record.ID())
	require.NoError(t, err)
	assert.Equal(t, "pdf", a.DocumentType)
	assert.Equal(t, "mistral-ocr-latest", a.Model)
	assert.Equal(t, "mistral/mistral-ocr-latest", a.Backend)
	assert.True(t, a.HasForms)
	assert.False(t, a.HasTables)
	assert.Equal(t, "KD123456", a.Fields[document.FieldCustomerID])

	_, err = f.svc.Get(ctx, "missing")
	assert.True(t, dserr.IsNotFound(err))
}

func TestAnalysisOf_WithoutStructure(t *testing.T) {
	a := ingest.AnalysisOf(&store.Record{Document: &document.Processed{ID: "doc-1"}})
	assert.Equal(t, "doc-1", a.DocumentID)
	assert.Equal(t, "unknown", a.DocumentType)
	assert.Equal(t, "unknown", a.Language)
	assert.Empty(t, a.Fields)
}
