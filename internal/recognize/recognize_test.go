// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package recognize_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/recognize"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecognizer struct {
	name string
	err  error

	mu   sync.Mutex
	reqs []provider.RecognitionRequest
}

func (s *stubRecognizer) Name() string { return s.name }
func (s *stubRecognizer) Close() error { return nil }

func (s *stubRecognizer) Recognize(_ context.Context, req provider.RecognitionRequest) (*provider.Recognition, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Recognition{
		Pages: []provider.Page{
			{Index: 0, Markdown: "Kundennummer: KD123456\n\n| Datum | Betrag |\n|---|---|\n| 01.03. | 10,00 |"},
			{Index: 1, Markdown: "IBAN DE89 3704 0044 0532 0130 00"},
		},
		PagesProcessed: 2,
		DocSizeBytes:   len(req.Data),
	}, nil
}

func (s *stubRecognizer) Requests() []provider.RecognitionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.RecognitionRequest(nil), s.reqs...)
}

func newService(t *testing.T, recognizers ...*stubRecognizer) *recognize.Service {
	t.Helper()

	catalog := provider.NewCatalog[provider.Recognizer]()
	refs := make([]string, 0, len(recognizers))
	for _, r := range recognizers {
		catalog.Register(r.name, r)
		refs = append(refs, r.name+"/ocr-1")
	}
	reg, err := provider.NewRegistry(provider.TaskRecognition, refs)
	require.NoError(t, err)
	tracker, err := provider.NewHealthTracker(5 * time.Minute)
	require.NoError(t, err)

	ocfg := provider.DefaultOrchestratorConfig()
	ocfg.Sleep = func(context.Context, time.Duration) error { return nil }

	svc, err := recognize.New(catalog, provider.NewDispatcher(reg, tracker), ocfg, recognize.Config{IncludeImages: true})
	require.NoError(t, err)
	return svc
}

func TestRecognize_PlainTextSkipsBackends(t *testing.T) {
	r := &stubRecognizer{name: "mistral"}
	svc := newService(t, r)

	st, err := svc.Recognize(context.Background(), []byte("Kundennummer: KD998877"), "txt")
	require.NoError(t, err)
	assert.Equal(t, document.PassthroughModel, st.Model)
	assert.Equal(t, "KD998877", st.Fields[document.FieldCustomerID])
	assert.Empty(t, st.Backend)
	assert.Empty(t, r.Requests())
}

func TestRecognize_Binary(t *testing.T) {
	r := &stubRecognizer{name: "mistral"}
	svc := newService(t, r)

	st, err := svc.Recognize(context.Background(), []byte("%PDF-1.7 ..."), "pdf")
	require.NoError(t, err)

	assert.Equal(t, "mistral/ocr-1", st.Backend)
	assert.Equal(t, "ocr-1", st.Model)
	assert.Equal(t, 2, st.PagesProcessed)
	assert.Len(t, st.Tables, 1)
	assert.Equal(t, "DE89370400440532013000", st.Fields[document.FieldIBAN])

	reqs := r.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "ocr-1", reqs[0].Model)
	assert.Equal(t, "application/pdf", reqs[0].MIMEType)
	assert.True(t, reqs[0].IncludeImages)
}

func TestRecognize_ImageMIMEType(t *testing.T) {
	r := &stubRecognizer{name: "mistral"}
	svc := newService(t, r)

	_, err := svc.Recognize(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", r.Requests()[0].MIMEType)
}

func TestRecognize_RotatesOnRateLimit(t *testing.T) {
	limited := &stubRecognizer{name: "mistral", err: dserr.New(dserr.CodeProviderUpstreamRateLimited, "429")}
	healthy := &stubRecognizer{name: "google"}
	svc := newService(t, limited, healthy)

	st, err := svc.Recognize(context.Background(), []byte("%PDF"), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "google/ocr-1", st.Backend)

	status := svc.Pool().Status()
	assert.Equal(t, "google/ocr-1", status.Current)
}

func TestRecognize_Exhausted(t *testing.T) {
	r := &stubRecognizer{name: "mistral", err: errors.New("upstream 503")}
	svc := newService(t, r)

	_, err := svc.Recognize(context.Background(), []byte("%PDF"), "pdf")
	var exhausted *provider.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, provider.TaskRecognition, exhausted.Task)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestRecognize_InvalidInput(t *testing.T) {
	svc := newService(t, &stubRecognizer{name: "mistral"})

	_, err := svc.Recognize(context.Background(), nil, "pdf")
	assert.True(t, dserr.HasCode(err, dserr.CodeDocumentInputInvalid))

	_, err = svc.Recognize(context.Background(), []byte{0xff, 0xfe, 0xfd}, "txt")
	assert.True(t, dserr.HasCode(err, dserr.CodeDocumentInputInvalid))
}
