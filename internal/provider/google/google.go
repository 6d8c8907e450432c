// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package google

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const name = "google"

// pageBreak separates pages in a recognition reply.
const pageBreak = "<<<PAGE BREAK>>>"

const recognitionPrompt = "Transcribe this document into Markdown. " +
	"Keep the reading order, reproduce tables as Markdown tables and do not summarise or translate. " +
	"Separate pages with a line containing only " + pageBreak + ". " +
	"Return only the transcription."

// Config holds Google client configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Client implements provider.Completer, provider.Recognizer and
// provider.Embedder on the Gemini API.
type Client struct {
	client *genai.Client
}

var (
	_ provider.Completer  = (*Client)(nil)
	_ provider.Recognizer = (*Client)(nil)
	_ provider.Embedder   = (*Client)(nil)
)

// New creates a new Google client. Returns an error if the API key is missing.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, dserr.New(dserr.CodeProviderRequestInvalid, "google: missing api_key in config", dserr.FieldProvider(name))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, dserr.Wrapf(err, dserr.CodeProviderUpstreamFailure, "google: creating client")
	}
	return &Client{client: client}, nil
}

func (c *Client) Name() string { return name }

func (c *Client) Close() error { return nil }

// Complete runs a single-turn GenerateContent call.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	if req.Model == "" {
		return "", dserr.New(dserr.CodeProviderRequestInvalid, "google: model is required", dserr.FieldProvider(name))
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), buildConfig(req))
	if err != nil {
		return "", wrapError(err, "generate content")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", dserr.New(dserr.CodeProviderResponseInvalid, "google: empty response from model", dserr.FieldProvider(name))
	}
	return text, nil
}

// Recognize sends the document inline and asks the model for a Markdown
// transcription, one page per pageBreak-delimited section.
func (c *Client) Recognize(ctx context.Context, req provider.RecognitionRequest) (*provider.Recognition, error) {
	if req.Model == "" || len(req.Data) == 0 {
		return nil, dserr.New(dserr.CodeProviderRequestInvalid, "google: model and document data are required", dserr.FieldProvider(name))
	}

	mime := req.MIMEType
	if mime == "" {
		mime = "application/pdf"
	}

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: recognitionPrompt},
				{InlineData: &genai.Blob{MIMEType: mime, Data: req.Data}},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, nil)
	if err != nil {
		return nil, wrapError(err, "recognize document")
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil, dserr.New(dserr.CodeProviderResponseInvalid, "google: empty transcription", dserr.FieldProvider(name))
	}

	pages := splitPages(raw)
	return &provider.Recognition{
		Model:          req.Model,
		Pages:          pages,
		PagesProcessed: len(pages),
		DocSizeBytes:   len(req.Data),
	}, nil
}

// Embed returns one embedding per input.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(inputs))
	for _, in := range inputs {
		contents = append(contents, genai.NewContentFromText(in, genai.RoleUser))
	}

	resp, err := c.client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, wrapError(err, "embed content")
	}
	if len(resp.Embeddings) != len(inputs) {
		return nil, dserr.Errorf(dserr.CodeProviderResponseInvalid,
			"google: got %d embeddings for %d inputs", len(resp.Embeddings), len(inputs))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// buildConfig converts a CompletionRequest into a genai.GenerateContentConfig.
func buildConfig(req provider.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.SystemPrompt},
			},
		}
	}

	return cfg
}

func splitPages(raw string) []provider.Page {
	parts := strings.Split(raw, pageBreak)
	pages := make([]provider.Page, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pages = append(pages, provider.Page{Index: len(pages), Markdown: p})
	}
	return pages
}

func wrapError(err error, op string) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.WrapUpstream(err, name, apiErr.Code, op)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return provider.WrapUpstream(err, name, apiErrPtr.Code, op)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return provider.WrapUpstream(err, name, 0, op)
}
