// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package openai

import (
	"context"
	"errors"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// OpenRouterBaseURL is the OpenAI-compatible endpoint of OpenRouter.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// Config holds the settings of an OpenAI-compatible client.
type Config struct {
	// Name is the provider name used in backend refs. Defaults to "openai".
	Name    string
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
	// Headers are sent with every request (OpenRouter attribution headers).
	Headers map[string]string
	// LegacyMaxTokens sends max_tokens instead of max_completion_tokens for
	// servers that only understand the older field.
	LegacyMaxTokens bool
}

// Client talks to any server that speaks the OpenAI chat and embeddings API.
// It implements provider.Completer and provider.Embedder.
type Client struct {
	client openaisdk.Client
	config Config
}

var (
	_ provider.Completer = (*Client)(nil)
	_ provider.Embedder  = (*Client)(nil)
)

// New creates a client. Returns an error if the API key is missing.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIKey == "" {
		return nil, dserr.New(dserr.CodeProviderRequestInvalid,
			cfg.Name+": missing api_key in config", dserr.FieldProvider(cfg.Name))
	}

	// Retries belong to the orchestrator, which also rotates backends.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &Client{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

// NewOpenRouter creates a client for OpenRouter with its attribution headers.
func NewOpenRouter(apiKey, baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}
	return New(Config{
		Name:    "openrouter",
		APIKey:  apiKey,
		BaseURL: baseURL,
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/docsort-dev/docsort",
			"X-Title":      "docsort",
		},
	})
}

func (c *Client) Name() string { return c.config.Name }

func (c *Client) Close() error { return nil }

// Complete sends a single-turn chat completion and returns the text of the
// first choice.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.wrapError(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", dserr.New(dserr.CodeProviderResponseInvalid,
			c.config.Name+": chat completion returned no choices", dserr.FieldProvider(c.config.Name))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", dserr.New(dserr.CodeProviderResponseInvalid,
			c.config.Name+": chat completion returned empty content", dserr.FieldProvider(c.config.Name))
	}
	return text, nil
}

// Embed returns one embedding per input, in input order.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
	})
	if err != nil {
		return nil, c.wrapError(err, "embeddings")
	}
	if len(resp.Data) != len(inputs) {
		return nil, dserr.Errorf(dserr.CodeProviderResponseInvalid,
			"%s: embeddings returned %d vectors for %d inputs", c.config.Name, len(resp.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) {
			return nil, dserr.Errorf(dserr.CodeProviderResponseInvalid,
				"%s: embedding index %d out of range", c.config.Name, idx)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}

// Post issues a raw JSON POST against the client's base URL. Used for
// vendor endpoints the SDK has no typed method for.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	if err := c.client.Post(ctx, path, body, result); err != nil {
		return c.wrapError(err, "POST "+path)
	}
	return nil
}

// buildParams converts a CompletionRequest into SDK params.
func (c *Client) buildParams(req provider.CompletionRequest) (openaisdk.ChatCompletionNewParams, error) {
	if req.Model == "" {
		return openaisdk.ChatCompletionNewParams{}, dserr.New(dserr.CodeProviderRequestInvalid,
			c.config.Name+": model is required", dserr.FieldProvider(c.config.Name))
	}

	var msgs []openaisdk.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, openaisdk.UserMessage(req.Prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
	}

	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	if req.MaxTokens > 0 {
		if c.config.LegacyMaxTokens {
			params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
		} else {
			params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
		}
	}

	if req.JSON {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params, nil
}

// wrapError tags SDK errors with a code derived from the HTTP status.
func (c *Client) wrapError(err error, op string) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return provider.WrapUpstream(err, c.config.Name, apiErr.StatusCode, op)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return provider.WrapUpstream(err, c.config.Name, 0, op)
}
