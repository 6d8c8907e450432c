// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// defaultHTTPClient is used by commands that talk to a running server.
// Tests point commands at an httptest server instead.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// apiClient provides HTTP access to a running docsort server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.Contains(addr, "://") {
		base = "http://" + addr
	}
	return &apiClient{baseURL: strings.TrimRight(base, "/"), http: defaultHTTPClient}
}

func (c *apiClient) getJSON(path string, query url.Values, dest any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.do(http.MethodGet, target, dest)
}

func (c *apiClient) postJSON(path string, dest any) error {
	return c.do(http.MethodPost, c.baseURL+path, dest)
}

func (c *apiClient) do(method, target string, dest any) error {
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		return dserr.Errorf(dserr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return dserr.Errorf(dserr.CodeCLIGatewayNotRunning, "docsort is not running at %s", c.baseURL)
		}
		return dserr.Errorf(dserr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return dserr.Errorf(dserr.CodeCLIRequestFailure, "server returned status %d: %s", resp.StatusCode, problemDetail(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return dserr.Errorf(dserr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// problemDetail extracts the detail of a huma error body, or the raw text.
func problemDetail(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4096))
	var problem struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &problem) == nil && problem.Detail != "" {
		return problem.Detail
	}
	return strings.TrimSpace(string(body))
}

func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

// serverAddress resolves the --address flag, defaulting to server.listen.
func serverAddress(flag string) string {
	if flag != "" {
		return flag
	}
	return viper.GetString("server.listen")
}
