// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package secrets_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsort-dev/docsort/internal/secrets"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

func TestURI(t *testing.T) {
	assert.Equal(t, "keyring://docsort/mistral", secrets.URI("mistral"))
	assert.True(t, secrets.IsKeyringURI(secrets.URI("x")))
	assert.False(t, secrets.IsKeyringURI("sk-abc123"))
	assert.False(t, secrets.IsKeyringURI("vault://secret/key"))
}

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		uri         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{uri: "keyring://docsort/mistral", wantService: "docsort", wantKey: "mistral"},
		{uri: "keyring://docsort/path/to/key", wantService: "docsort", wantKey: "path/to/key"},
		{uri: "vault://secret/key", wantErr: true},
		{uri: "keyring://docsort/", wantErr: true},
		{uri: "keyring:///key", wantErr: true},
		{uri: "keyring://docsort", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			svc, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dserr.HasCode(err, dserr.CodeSecretInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantService, svc)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestResolveKeyringURI(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("docsort", "openai", "sk-oai"))

	val, err := secrets.ResolveKeyringURI(ks, "keyring://docsort/openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-oai", val)

	val, err = secrets.ResolveKeyringURI(ks, "literal-value")
	require.NoError(t, err)
	assert.Equal(t, "literal-value", val)

	_, err = secrets.ResolveKeyringURI(ks, "keyring://docsort/nonexistent")
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeSecretNotFound), "innermost code is kept")

	_, err = secrets.ResolveKeyringURI(ks, "keyring://bad")
	assert.True(t, dserr.HasCode(err, dserr.CodeSecretInvalidInput))
}

func TestResolveViperSecrets(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("docsort", "mistral", "mk-secret"))
	require.NoError(t, ks.Store("docsort", "redis", "hunter2"))

	v := viper.New()
	v.Set("providers.mistral.api_key", "keyring://docsort/mistral")
	v.Set("dedup.redis_password", "keyring://docsort/redis")
	v.Set("server.listen", "127.0.0.1:8000")

	require.NoError(t, secrets.ResolveViperSecrets(v, ks))

	assert.Equal(t, "mk-secret", v.GetString("providers.mistral.api_key"))
	assert.Equal(t, "hunter2", v.GetString("dedup.redis_password"))
	assert.Equal(t, "127.0.0.1:8000", v.GetString("server.listen"))
}

func TestResolveViperSecrets_ReportsUnresolvedKeys(t *testing.T) {
	ks := secrets.NewKeyringStore()

	v := viper.New()
	v.Set("providers.anthropic.api_key", "keyring://docsort/nonexistent-key")

	err := secrets.ResolveViperSecrets(v, ks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.anthropic.api_key")
	assert.Contains(t, err.Error(), "keyring://docsort/nonexistent-key")
	assert.Equal(t, "keyring://docsort/nonexistent-key", v.GetString("providers.anthropic.api_key"))
}
