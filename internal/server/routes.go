// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/ingest"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/docsort-dev/docsort/pkg/health"
)

// exhaustedRetryAfter is the Retry-After sent when a whole pool failed.
const exhaustedRetryAfter = "30"

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "process-document",
		Method:       http.MethodPost,
		Path:         "/api/v1/documents",
		Summary:      "Recognise, classify, store and route one document",
		Tags:         []string{"documents"},
		MaxBodyBytes: s.cfg.MaxUploadBytes,
	}, s.handleProcessDocument)

	huma.Register(s.api, huma.Operation{
		OperationID:  "process-email",
		Method:       http.MethodPost,
		Path:         "/api/v1/emails",
		Summary:      "Process an e-mail body and its attachments",
		Tags:         []string{"documents"},
		MaxBodyBytes: s.cfg.MaxUploadBytes,
	}, s.handleProcessEmail)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents/{id}",
		Summary:     "Get a stored document",
		Tags:        []string{"documents"},
	}, s.handleGetDocument)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-document-analysis",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents/{id}/analysis",
		Summary:     "Get the extraction analysis of a document",
		Tags:        []string{"documents"},
	}, s.handleGetAnalysis)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-documents",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Semantic search over stored documents",
		Tags:        []string{"search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "dispatch-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/dispatch",
		Summary:     "Health of every backend pool",
		Tags:        []string{"dispatch"},
	}, s.handleDispatchStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "dispatch-reset",
		Method:      http.MethodPost,
		Path:        "/api/v1/dispatch/{task}/reset",
		Summary:     "Clear rate-limit marks and usage counts of one pool",
		Tags:        []string{"dispatch"},
	}, s.handleDispatchReset)
}

// --- Request/Response types for huma ---

type processDocumentInput struct {
	SourceType string `query:"source_type" enum:"scan,email,digital" default:"scan" doc:"How the document reached the bank"`
	RawBody    multipart.Form
}

// DocumentAIMetadata describes what recognition produced.
type DocumentAIMetadata struct {
	Model            string   `json:"model"`
	Backend          string   `json:"backend,omitempty"`
	PagesProcessed   int      `json:"pages_processed"`
	DetectedLanguage string   `json:"detected_language,omitempty"`
	ExtractedFields  []string `json:"extracted_fields"`
	TableCount       int      `json:"table_count"`
}

// ProcessedDocumentBody is the result of ingesting one document.
type ProcessedDocumentBody struct {
	DocumentID                 string                 `json:"document_id"`
	Category                   document.Category      `json:"category"`
	Urgency                    document.Urgency       `json:"urgency"`
	Department                 string                 `json:"department"`
	RequiresImmediateAttention bool                   `json:"requires_immediate_attention"`
	Confidence                 float64                `json:"confidence_score"`
	ExtractedInfo              document.ExtractedInfo `json:"extracted_info"`
	Backend                    string                 `json:"classification_backend,omitempty"`
	Duplicate                  bool                   `json:"duplicate"`
	DocumentAI                 *DocumentAIMetadata    `json:"document_ai_metadata,omitempty"`
}

type processDocumentOutput struct {
	Body ProcessedDocumentBody
}

type processEmailInput struct {
	RawBody multipart.Form
}

// DocumentSummary is a short view of one e-mail part.
type DocumentSummary struct {
	DocumentID string            `json:"document_id"`
	Category   document.Category `json:"category"`
	Urgency    document.Urgency  `json:"urgency"`
	Department string            `json:"department"`
}

type processEmailOutput struct {
	Body struct {
		Primary      DocumentSummary   `json:"primary_document"`
		AllDocuments []DocumentSummary `json:"all_documents"`
	}
}

type documentIDInput struct {
	ID string `path:"id" doc:"Document ID"`
}

// StoredDocumentBody is a stored document as returned by the API.
type StoredDocumentBody struct {
	Document      *document.Processed `json:"document"`
	Filename      string              `json:"filename,omitempty"`
	ContentHash   string              `json:"content_hash"`
	FormattedText string              `json:"formatted_text"`
	CreatedAt     time.Time           `json:"created_at"`
}

type getDocumentOutput struct {
	Body StoredDocumentBody
}

type getAnalysisOutput struct {
	Body *ingest.Analysis
}

type searchInput struct {
	Query    string `query:"query" required:"true" minLength:"1" doc:"Free-text query"`
	NResults int    `query:"n_results" default:"5" minimum:"1" maximum:"50" doc:"Number of results"`
	Category string `query:"category" enum:"loan_applications,account_inquiries,complaints,kyc_updates,general_correspondence" doc:"Restrict to one category"`
}

// SearchHit is one search result.
type SearchHit struct {
	DocumentID string         `json:"document_id"`
	Similarity float64        `json:"similarity_score"`
	Metadata   map[string]any `json:"metadata"`
}

type searchOutput struct {
	Body struct {
		Query   string      `json:"query"`
		Results []SearchHit `json:"results"`
	}
}

type dispatchStatusOutput struct {
	Body struct {
		Pools []health.PoolStatus `json:"pools"`
	}
}

type dispatchTaskInput struct {
	Task string `path:"task" enum:"classification,recognition" doc:"Backend pool"`
}

type dispatchResetOutput struct {
	Body health.PoolStatus
}

// --- Handlers ---

func (s *Server) handleProcessDocument(ctx context.Context, input *processDocumentInput) (*processDocumentOutput, error) {
	files := input.RawBody.File["file"]
	if len(files) == 0 {
		return nil, huma.Error400BadRequest("multipart field \"file\" is required")
	}

	in, err := readUpload(files[0])
	if err != nil {
		return nil, toHumaError(err, "reading upload")
	}
	in.Source = document.Source(input.SourceType)

	res, err := s.services.Documents().ProcessDocument(ctx, in)
	if err != nil {
		return nil, toHumaError(err, "processing document")
	}
	return &processDocumentOutput{Body: processedBody(res)}, nil
}

func (s *Server) handleProcessEmail(ctx context.Context, input *processEmailInput) (*processEmailOutput, error) {
	form := input.RawBody
	email := ingest.Email{
		Subject: formValue(form, "subject"),
		From:    formValue(form, "from"),
		Body:    formValue(form, "body"),
	}
	for _, fh := range form.File["attachments"] {
		in, err := readUpload(fh)
		if err != nil {
			return nil, toHumaError(err, "reading attachment")
		}
		email.Attachments = append(email.Attachments, in)
	}

	res, err := s.services.Documents().ProcessEmail(ctx, email)
	if err != nil {
		return nil, toHumaError(err, "processing e-mail")
	}

	out := &processEmailOutput{}
	out.Body.Primary = summary(res.Primary)
	out.Body.AllDocuments = make([]DocumentSummary, 0, len(res.Documents))
	for _, rec := range res.Documents {
		out.Body.AllDocuments = append(out.Body.AllDocuments, summary(rec))
	}
	return out, nil
}

func (s *Server) handleGetDocument(ctx context.Context, input *documentIDInput) (*getDocumentOutput, error) {
	rec, err := s.services.Documents().Get(ctx, input.ID)
	if err != nil {
		if dserr.IsNotFound(err) {
			return nil, huma.Error404NotFound(fmt.Sprintf("document %q not found", input.ID))
		}
		return nil, toHumaError(err, "loading document")
	}
	return &getDocumentOutput{Body: StoredDocumentBody{
		Document:      rec.Document,
		Filename:      rec.Filename,
		ContentHash:   rec.ContentHash,
		FormattedText: rec.FormattedText,
		CreatedAt:     rec.CreatedAt,
	}}, nil
}

func (s *Server) handleGetAnalysis(ctx context.Context, input *documentIDInput) (*getAnalysisOutput, error) {
	a, err := s.services.Documents().Analysis(ctx, input.ID)
	if err != nil {
		if dserr.IsNotFound(err) {
			return nil, huma.Error404NotFound(fmt.Sprintf("document %q not found", input.ID))
		}
		return nil, toHumaError(err, "loading analysis")
	}
	return &getAnalysisOutput{Body: a}, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	results, err := s.services.Documents().Search(ctx, input.Query, input.NResults, document.Category(input.Category))
	if err != nil {
		return nil, toHumaError(err, "searching documents")
	}

	out := &searchOutput{}
	out.Body.Query = input.Query
	out.Body.Results = make([]SearchHit, 0, len(results))
	for _, r := range results {
		out.Body.Results = append(out.Body.Results, SearchHit{DocumentID: r.ID, Similarity: r.Similarity, Metadata: r.Metadata})
	}
	return out, nil
}

func (s *Server) handleDispatchStatus(_ context.Context, _ *struct{}) (*dispatchStatusOutput, error) {
	out := &dispatchStatusOutput{}
	for _, task := range s.services.Tasks() {
		p, err := s.services.Pool(task)
		if err != nil {
			return nil, toHumaError(err, "dispatch status")
		}
		out.Body.Pools = append(out.Body.Pools, p.Status())
	}
	return out, nil
}

func (s *Server) handleDispatchReset(_ context.Context, input *dispatchTaskInput) (*dispatchResetOutput, error) {
	p, err := s.services.Pool(provider.Task(input.Task))
	if err != nil {
		return nil, toHumaError(err, "dispatch reset")
	}
	p.Reset()
	slog.Info("backend pool reset", "task", input.Task)
	return &dispatchResetOutput{Body: p.Status()}, nil
}

// --- helpers ---

// toHumaError maps a service error to an HTTP error. A pool that ran out of
// backends is a 503 with Retry-After; server-side failures are logged and
// reported without internals.
func toHumaError(err error, op string) error {
	var exhausted *provider.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		slog.Warn(op+" failed: backend pool exhausted",
			"task", exhausted.Task,
			"backend", exhausted.Backend,
			"attempts", exhausted.Attempts,
			"error", exhausted.Err,
		)
		return huma.ErrorWithHeaders(
			huma.Error503ServiceUnavailable(fmt.Sprintf("all %s backends are unavailable", exhausted.Task)),
			http.Header{"Retry-After": []string{exhaustedRetryAfter}},
		)
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(op + " timed out")
	}

	status := dserr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", "error", err, "code", dserr.CodeOf(err))
		return huma.NewError(status, op+" failed")
	}
	return huma.NewError(status, err.Error())
}

func readUpload(fh *multipart.FileHeader) (ingest.Input, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Input{}, dserr.Wrap(err, dserr.CodeServerRequestInvalid, "opening upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.Input{}, dserr.Wrap(err, dserr.CodeServerRequestInvalid, "reading upload")
	}
	return ingest.Input{Filename: fh.Filename, Data: data}, nil
}

func formValue(form multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func processedBody(res *ingest.Result) ProcessedDocumentBody {
	rec := res.Record
	doc := rec.Document
	body := ProcessedDocumentBody{
		DocumentID:                 doc.ID,
		Category:                   doc.Category,
		Urgency:                    doc.Urgency,
		Department:                 doc.AssignedDepartment,
		RequiresImmediateAttention: doc.RequiresImmediateAttention,
		Confidence:                 doc.Confidence,
		ExtractedInfo:              doc.ExtractedInfo,
		Backend:                    doc.Backend,
		Duplicate:                  res.Duplicate,
	}
	if st := rec.Analysis; st != nil {
		fields := make([]string, 0, len(st.Fields))
		for _, k := range document.FieldOrder {
			if _, ok := st.Fields[k]; ok {
				fields = append(fields, k)
			}
		}
		body.DocumentAI = &DocumentAIMetadata{
			Model:            st.Model,
			Backend:          st.Backend,
			PagesProcessed:   st.PagesProcessed,
			DetectedLanguage: st.Language,
			ExtractedFields:  slices.Clip(fields),
			TableCount:       len(st.Tables),
		}
	}
	return body
}

func summary(rec *store.Record) DocumentSummary {
	if rec == nil || rec.Document == nil {
		return DocumentSummary{}
	}
	return DocumentSummary{
		DocumentID: rec.Document.ID,
		Category:   rec.Document.Category,
		Urgency:    rec.Document.Urgency,
		Department: rec.Document.AssignedDepartment,
	}
}
