// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package anthropic

import (
	"context"
	"errors"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const (
	name             = "anthropic"
	defaultMaxTokens = 1024

	// jsonInstruction replaces a response-format switch, which the Messages
	// API does not have.
	jsonInstruction = "Respond with a single JSON object and nothing else."
)

// Config holds Anthropic client configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Client implements provider.Completer on the Anthropic Messages API.
type Client struct {
	client anthropicsdk.Client
}

var _ provider.Completer = (*Client)(nil)

// New creates a new Anthropic client. Returns an error if the API key is missing.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, dserr.New(dserr.CodeProviderRequestInvalid, "anthropic: missing api_key in config", dserr.FieldProvider(name))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{client: anthropicsdk.NewClient(opts...)}, nil
}

func (c *Client) Name() string { return name }

func (c *Client) Close() error { return nil }

// Complete sends one user message and concatenates the text blocks of the
// reply.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	params, err := buildParams(req)
	if err != nil {
		return "", err
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropicsdk.Error
		if errors.As(err, &apiErr) {
			return "", provider.WrapUpstream(err, name, apiErr.StatusCode, "messages")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", provider.WrapUpstream(err, name, 0, "messages")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", dserr.New(dserr.CodeProviderResponseInvalid, "anthropic: reply has no text content", dserr.FieldProvider(name))
	}
	return text, nil
}

// buildParams converts a CompletionRequest into Anthropic SDK MessageNewParams.
func buildParams(req provider.CompletionRequest) (anthropicsdk.MessageNewParams, error) {
	if req.Model == "" {
		return anthropicsdk.MessageNewParams{}, dserr.New(dserr.CodeProviderRequestInvalid, "anthropic: model is required", dserr.FieldProvider(name))
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	}

	system := req.SystemPrompt
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	return params, nil
}
