// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package mistral is the Mistral client. Chat and embeddings go through the
// OpenAI-compatible API; document OCR uses the /ocr endpoint.
package mistral

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/provider/openai"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const (
	name = "mistral"

	// DefaultBaseURL is the public Mistral API.
	DefaultBaseURL = "https://api.mistral.ai/v1"
	// DefaultOCRModel is used when a recognition request names no model.
	DefaultOCRModel = "mistral-ocr-latest"
)

// Config holds Mistral client configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, defaults to DefaultBaseURL
}

// Client implements provider.Completer, provider.Recognizer and
// provider.Embedder.
type Client struct {
	*openai.Client
}

var (
	_ provider.Completer  = (*Client)(nil)
	_ provider.Recognizer = (*Client)(nil)
	_ provider.Embedder   = (*Client)(nil)
)

// New creates a Mistral client. Returns an error if the API key is missing.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	c, err := openai.New(openai.Config{
		Name:            name,
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		LegacyMaxTokens: true,
	})
	if err != nil {
		return nil, err
	}
	return &Client{Client: c}, nil
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type ocrImage struct {
	ID           string `json:"id"`
	TopLeftX     int    `json:"top_left_x"`
	TopLeftY     int    `json:"top_left_y"`
	BottomRightX int    `json:"bottom_right_x"`
	BottomRightY int    `json:"bottom_right_y"`
	ImageBase64  string `json:"image_base64"`
}

type ocrPage struct {
	Index      int        `json:"index"`
	Markdown   string     `json:"markdown"`
	Images     []ocrImage `json:"images"`
	Dimensions *struct {
		DPI    int `json:"dpi"`
		Height int `json:"height"`
		Width  int `json:"width"`
	} `json:"dimensions"`
}

type ocrResponse struct {
	Pages     []ocrPage `json:"pages"`
	Model     string    `json:"model"`
	UsageInfo struct {
		PagesProcessed int `json:"pages_processed"`
		DocSizeBytes   int `json:"doc_size_bytes"`
	} `json:"usage_info"`
}

// Recognize runs Mistral OCR on an inline base64 data URI.
func (c *Client) Recognize(ctx context.Context, req provider.RecognitionRequest) (*provider.Recognition, error) {
	if len(req.Data) == 0 {
		return nil, dserr.New(dserr.CodeProviderRequestInvalid, "mistral: document data is required", dserr.FieldProvider(name))
	}

	model := req.Model
	if model == "" {
		model = DefaultOCRModel
	}

	var resp ocrResponse
	if err := c.Post(ctx, "ocr", buildOCRRequest(model, req), &resp); err != nil {
		return nil, err
	}
	if len(resp.Pages) == 0 {
		return nil, dserr.New(dserr.CodeProviderResponseInvalid, "mistral: OCR returned no pages", dserr.FieldProvider(name))
	}

	return convertOCRResponse(resp, model), nil
}

func buildOCRRequest(model string, req provider.RecognitionRequest) ocrRequest {
	mime := req.MIMEType
	if mime == "" {
		mime = "application/pdf"
	}
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Data)

	doc := ocrDocument{Type: "document_url", DocumentURL: uri}
	if strings.HasPrefix(mime, "image/") {
		doc = ocrDocument{Type: "image_url", ImageURL: uri}
	}

	return ocrRequest{
		Model:              model,
		Document:           doc,
		IncludeImageBase64: req.IncludeImages,
	}
}

func convertOCRResponse(resp ocrResponse, model string) *provider.Recognition {
	out := &provider.Recognition{
		Model:          resp.Model,
		Pages:          make([]provider.Page, 0, len(resp.Pages)),
		PagesProcessed: resp.UsageInfo.PagesProcessed,
		DocSizeBytes:   resp.UsageInfo.DocSizeBytes,
	}
	if out.Model == "" {
		out.Model = model
	}
	if out.PagesProcessed == 0 {
		out.PagesProcessed = len(resp.Pages)
	}

	for _, p := range resp.Pages {
		page := provider.Page{Index: p.Index, Markdown: p.Markdown}
		for _, img := range p.Images {
			page.Images = append(page.Images, provider.PageImage{
				ID:           img.ID,
				TopLeftX:     img.TopLeftX,
				TopLeftY:     img.TopLeftY,
				BottomRightX: img.BottomRightX,
				BottomRightY: img.BottomRightY,
				ImageBase64:  img.ImageBase64,
			})
		}
		if p.Dimensions != nil {
			page.Dimensions = &provider.PageDimensions{
				DPI:    p.Dimensions.DPI,
				Height: p.Dimensions.Height,
				Width:  p.Dimensions.Width,
			}
		}
		out.Pages = append(out.Pages, page)
	}
	return out
}
