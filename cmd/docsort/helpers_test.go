// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"bytes"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/docsort-dev/docsort/internal/secrets"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string
}

func newMockSecretStore(kv ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		m.data[kv[i]] = kv[i+1]
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", dserr.Errorf(dserr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return dserr.Errorf(dserr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

var _ secrets.Store = (*mockSecretStore)(nil)

// isolate points HOME at a temp dir, installs store as the secret store and
// resets the global Viper afterwards. It returns the temp home.
func isolate(t *testing.T, store secrets.Store) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()

	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() {
		secretStoreFactory = orig
		viper.Reset()
	})
	return home
}

// execute runs the root command with args and returns its standard output.
// Logs go to a separate buffer.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// useServer routes CLI requests to srv and returns its address.
func useServer(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	orig := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	t.Cleanup(func() {
		defaultHTTPClient = orig
		srv.Close()
	})
	return strings.TrimPrefix(srv.URL, "http://")
}
