// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"strings"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

type keyEndpoint struct {
	baseURL string
	path    string
	header  func(h http.Header, key string)
	query   string
}

func bearer(h http.Header, key string) { h.Set("Authorization", "Bearer "+key) }

var keyEndpoints = map[string]keyEndpoint{
	"anthropic": {
		baseURL: "https://api.anthropic.com",
		path:    "/v1/models",
		header: func(h http.Header, key string) {
			h.Set("x-api-key", key)
			h.Set("anthropic-version", "2023-06-01")
		},
	},
	"openai":     {baseURL: "https://api.openai.com/v1", path: "/models", header: bearer},
	"openrouter": {baseURL: "https://openrouter.ai/api/v1", path: "/models", header: bearer},
	"mistral":    {baseURL: "https://api.mistral.ai/v1", path: "/models", header: bearer},
	// The Generative Language API takes the key as a query parameter.
	"google": {baseURL: "https://generativelanguage.googleapis.com/v1beta", path: "/models", query: "key"},
}

// KnownProviders lists the provider names CheckKey understands.
func KnownProviders() []string {
	return []string{"anthropic", "google", "mistral", "openai", "openrouter"}
}

// CheckKey lists models with key to confirm it is accepted. baseURL
// overrides the provider's public endpoint when non-empty.
func CheckKey(ctx context.Context, client *http.Client, name, key, baseURL string) error {
	ep, ok := keyEndpoints[name]
	if !ok {
		return dserr.New(dserr.CodeProviderNotFound, "unknown provider: "+name, dserr.FieldProvider(name))
	}
	if key == "" {
		return dserr.New(dserr.CodeProviderRequestInvalid, name+": api key is empty", dserr.FieldProvider(name))
	}
	if baseURL == "" {
		baseURL = ep.baseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+ep.path, nil)
	if err != nil {
		return dserr.Wrapf(err, dserr.CodeProviderRequestInvalid, "%s: building key check request", name)
	}
	if ep.header != nil {
		ep.header(req.Header, key)
	}
	if ep.query != "" {
		q := req.URL.Query()
		q.Set(ep.query, key)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := client.Do(req)
	if err != nil {
		return WrapUpstream(err, name, 0, "key check")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return dserr.Errorf(CodeForStatus(resp.StatusCode), "%s: key check failed (HTTP %d)", name, resp.StatusCode)
	}
	return nil
}
