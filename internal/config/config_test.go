// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsort-dev/docsort/internal/config"
	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

type mapStore map[string]string

func (m mapStore) Store(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}

func (m mapStore) Retrieve(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", dserr.New(dserr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m mapStore) Delete(service, key string) error {
	delete(m, service+"/"+key)
	return nil
}

func (m mapStore) List(string) ([]string, error) { return nil, nil }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docsort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Listen)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, provider.DefaultCooldown, cfg.Dispatch.Cooldown)
	assert.Equal(t, provider.DefaultMaxRetries, cfg.Dispatch.MaxRetries)
	assert.Equal(t, []string{"mistral/mistral-ocr-latest"}, cfg.Dispatch.Recognition)
	assert.Equal(t, "mistral/mistral-embed", cfg.Embedding.Backend)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 1024, cfg.Storage.EmbeddingDim)
	assert.Equal(t, "info@bank.de", cfg.Routing.DefaultDepartment)
	assert.Contains(t, cfg.Classification.UrgencyKeywords, "betrug")
	assert.Equal(t, 720*time.Hour, cfg.Dedup.TTL)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9000"
  rate_limit:
    requests_per_second: 2
    burst: 4
dispatch:
  cooldown: 90s
  classification: ["openai/gpt-4o-mini", "anthropic/claude-haiku-4-5"]
  recognition: ["google/gemini-2.0-flash"]
providers:
  openai:
    api_key: sk-test
  anthropic:
    api_key: ant-test
  google:
    api_key: g-test
embedding:
  backend: openai/text-embedding-3-small
routing:
  departments:
    complaints: beschwerden@bank.de
  kafka:
    brokers: ["kafka:9092"]
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.InDelta(t, 2.0, cfg.Server.RateLimit.RequestsPerSecond, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Dispatch.Cooldown)
	assert.Equal(t, []string{"openai/gpt-4o-mini", "anthropic/claude-haiku-4-5"}, cfg.Dispatch.Classification)
	assert.Equal(t, "sk-test", cfg.Providers["openai"].APIKey)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Routing.Kafka.Brokers)
	assert.Equal(t, "docsort.notifications", cfg.Routing.Kafka.Topic)
	assert.Equal(t, map[document.Category]string{document.CategoryComplaint: "beschwerden@bank.de"}, cfg.Departments())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DOCSORT_SERVER_LISTEN", "10.0.0.1:8080")
	t.Setenv("DOCSORT_DISPATCH_MAX_RETRIES", "5")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, 5, cfg.Dispatch.MaxRetries)
	assert.Equal(t, 5, cfg.OrchestratorConfig().MaxRetries)
}

func TestLoad_ResolvesKeyringValues(t *testing.T) {
	path := writeConfig(t, `
providers:
  mistral:
    api_key: keyring://docsort/mistral
`)
	store := mapStore{"docsort/mistral": "resolved-key"}

	cfg, err := config.Load(path, store)
	require.NoError(t, err)
	assert.Equal(t, "resolved-key", cfg.Providers["mistral"].APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeConfigLoadReadFailure))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: postgres
`)
	_, err := config.Load(path, nil)
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeConfigValidateInvalidValue))
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Listen = "no-port"
	cfg.Dispatch.Cooldown = 0
	cfg.Dispatch.Recognition = nil
	cfg.Classification.PromptLanguage = "fr"

	errs := cfg.Validate()
	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.True(t, dserr.HasCode(err, dserr.CodeConfigValidateInvalidValue))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *config.Config) { c.Server.Listen = "127.0.0.1:70000" },
			wantErr: "between 1 and 65535",
		},
		{
			name:    "bad trusted proxy",
			mutate:  func(c *config.Config) { c.Server.TrustedProxies = []string{"10.0.0.1"} },
			wantErr: "server.trusted_proxies[0]",
		},
		{
			name:    "rate without burst",
			mutate:  func(c *config.Config) { c.Server.RateLimit.RequestsPerSecond = 1 },
			wantErr: "server.rate_limit.burst",
		},
		{
			name:    "backend ref without model",
			mutate:  func(c *config.Config) { c.Dispatch.Classification = []string{"mistral"} },
			wantErr: "provider/model",
		},
		{
			name:    "duplicate backend",
			mutate:  func(c *config.Config) { c.Dispatch.Recognition = []string{"mistral/ocr", "mistral/ocr"} },
			wantErr: "listed twice",
		},
		{
			name: "unconfigured provider",
			mutate: func(c *config.Config) {
				c.Providers = map[string]config.ProviderConfig{"mistral": {APIKey: "k"}}
				c.Dispatch.Classification = []string{"openai/gpt-4o"}
			},
			wantErr: "which is not configured",
		},
		{
			name:    "unknown department category",
			mutate:  func(c *config.Config) { c.Routing.Departments = map[string]string{"mortgages": "x@bank.de"} },
			wantErr: "unknown category",
		},
		{
			name: "kafka without topic",
			mutate: func(c *config.Config) {
				c.Routing.Kafka = config.KafkaConfig{Brokers: []string{"kafka:9092"}}
			},
			wantErr: "routing.kafka.topic",
		},
		{
			name:    "redis url scheme",
			mutate:  func(c *config.Config) { c.Dedup.RedisURL = "http://localhost" },
			wantErr: "dedup.redis_url",
		},
		{
			name:    "zero embedding dim",
			mutate:  func(c *config.Config) { c.Storage.EmbeddingDim = 0 },
			wantErr: "storage.embedding_dim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0].Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfigYAMLIsValid(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(config.DefaultConfigYAML)))

	// The template references a keyring secret; the value itself is not checked.
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"mistral/mistral-large-latest", "mistral/ministral-8b-2410"}, cfg.Dispatch.Classification)
	assert.Equal(t, 720*time.Hour, cfg.Dedup.TTL)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docsort.yaml")
	want := config.Default()
	want.Providers = map[string]config.ProviderConfig{"mistral": {APIKey: "keyring://docsort/mistral"}}
	want.Dispatch.Cooldown = 2 * time.Minute

	require.NoError(t, config.Save(path, want, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, got.Dispatch.Cooldown)
	assert.Equal(t, "keyring://docsort/mistral", got.Providers["mistral"].APIKey)

	err = config.Save(path, want, false)
	assert.True(t, dserr.HasCode(err, dserr.CodeConfigAlreadyExists))
	assert.NoError(t, config.Save(path, want, true))
}
