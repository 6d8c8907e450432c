// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package ingest_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/ingest"
	"github.com/docsort-dev/docsort/internal/routing"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeRecognizer struct {
	err error
}

func (f *fakeRecognizer) Recognize(_ context.Context, data []byte, docType string) (*document.Structure, error) {
	if f.err != nil {
		return nil, f.err
	}
	st := document.TextStructure(string(data))
	if !document.IsPlainText(docType) {
		st.DocumentType = docType
		st.Model = "mistral-ocr-latest"
		st.Backend = "mistral/mistral-ocr-latest"
	}
	return st, nil
}

type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	err   error
	// confidence returns the confidence for a text; nil means 0.9.
	confidence func(text string) float64
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (*document.Processed, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	conf := 0.9
	if f.confidence != nil {
		conf = f.confidence(text)
	}
	doc := document.NewProcessed(text, &document.Classification{
		Category:   document.CategoryComplaint,
		Urgency:    document.UrgencyHigh,
		Metadata:   document.Metadata{CustomerID: "FROM-MODEL", Language: "de"},
		Confidence: conf,
	}, fixedNow)
	doc.AssignedDepartment = "complaints@bank.de"
	doc.RequiresImmediateAttention = true
	doc.Backend = "google/gemini-2.5-flash"
	return doc, nil
}

func (f *fakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEmbedder struct {
	err    error
	inputs []string
}

func (f *fakeEmbedder) Name() string { return "fake" }
func (f *fakeEmbedder) Close() error { return nil }

func (f *fakeEmbedder) Embed(_ context.Context, _ string, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, inputs...)
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type memDocuments struct {
	mu   sync.Mutex
	recs map[string]*store.Record
}

func newMemDocuments() *memDocuments {
	return &memDocuments{recs: make(map[string]*store.Record)}
}

func (m *memDocuments) Put(_ context.Context, rec *store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID()] = rec
	return nil
}

func (m *memDocuments) Get(_ context.Context, id string) (*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, dserr.New(dserr.CodeStoreEntityNotFound, "document not found")
	}
	return rec, nil
}

func (m *memDocuments) FindByHash(_ context.Context, hash string) (*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.ContentHash == hash {
			return rec, nil
		}
	}
	return nil, dserr.New(dserr.CodeStoreEntityNotFound, "document not found")
}

func (m *memDocuments) List(_ context.Context, _ store.ListOpts) ([]*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Record, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (m *memDocuments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

func (m *memDocuments) Close() error { return nil }

func (m *memDocuments) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

type storedVector struct {
	embedding []float32
	metadata  map[string]any
}

type memVectors struct {
	err     error
	stored  map[string]storedVector
	lastK   int
	filters map[string]any
}

func newMemVectors() *memVectors {
	return &memVectors{stored: make(map[string]storedVector)}
}

func (m *memVectors) Store(_ context.Context, id string, embedding []float32, metadata map[string]any) error {
	if m.err != nil {
		return m.err
	}
	m.stored[id] = storedVector{embedding: embedding, metadata: metadata}
	return nil
}

func (m *memVectors) Search(_ context.Context, _ []float32, k int, filters map[string]any) ([]store.VectorResult, error) {
	m.lastK = k
	m.filters = filters
	var out []store.VectorResult
	for id, v := range m.stored {
		out = append(out, store.VectorResult{ID: id, Similarity: 1, Metadata: v.metadata})
	}
	return out, nil
}

func (m *memVectors) Delete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.stored, id)
	}
	return nil
}

func (m *memVectors) Close() error { return nil }

type captureRouter struct {
	mu     sync.Mutex
	routed []*document.Processed
}

func (c *captureRouter) Route(_ context.Context, doc *document.Processed) routing.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routed = append(c.routed, doc)
	return routing.Result{DocumentID: doc.ID, Department: doc.AssignedDepartment, NotificationSent: true}
}

func (c *captureRouter) Routed() []*document.Processed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*document.Processed(nil), c.routed...)
}

type memDeduper struct {
	mu     sync.Mutex
	hashes map[string]string
}

func (m *memDeduper) Seen(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[hash], nil
}

func (m *memDeduper) Remember(_ context.Context, hash, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes == nil {
		m.hashes = make(map[string]string)
	}
	m.hashes[hash] = id
	return nil
}

type fixture struct {
	svc        *ingest.Service
	classifier *fakeClassifier
	recognizer *fakeRecognizer
	embedder   *fakeEmbedder
	docs       *memDocuments
	vectors    *memVectors
	router     *captureRouter
}

func newFixture(t *testing.T, withDedup bool) *fixture {
	t.Helper()
	f := &fixture{
		classifier: &fakeClassifier{},
		recognizer: &fakeRecognizer{},
		embedder:   &fakeEmbedder{},
		docs:       newMemDocuments(),
		vectors:    newMemVectors(),
		router:     &captureRouter{},
	}
	deps := ingest.Deps{
		Recognizer: f.recognizer,
		Classifier: f.classifier,
		Embedder:   f.embedder,
		Documents:  f.docs,
		Vectors:    f.vectors,
		Router:     f.router,
	}
	if withDedup {
		deps.Deduper = &memDeduper{}
	}

	svc, err := ingest.New(deps, ingest.Config{
		EmbeddingModel: "mistral-embed",
		Now:            func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}
