// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/secrets"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. DOCSORT_SERVER_LISTEN.
const EnvPrefix = "DOCSORT"

// Config is the top-level docsort configuration.
type Config struct {
	Server         ServerConfig              `mapstructure:"server" yaml:"server"`
	Dispatch       DispatchConfig            `mapstructure:"dispatch" yaml:"dispatch"`
	Providers      map[string]ProviderConfig `mapstructure:"providers" yaml:"providers,omitempty"`
	Embedding      EmbeddingConfig           `mapstructure:"embedding" yaml:"embedding"`
	Storage        StorageConfig             `mapstructure:"storage" yaml:"storage"`
	Routing        RoutingConfig             `mapstructure:"routing" yaml:"routing"`
	Classification ClassificationConfig      `mapstructure:"classification" yaml:"classification"`
	Dedup          DedupConfig               `mapstructure:"dedup" yaml:"dedup"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen         string          `mapstructure:"listen" yaml:"listen"`
	CORSOrigins    []string        `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`
	TrustedProxies []string        `mapstructure:"trusted_proxies" yaml:"trusted_proxies,omitempty"`
	MaxUploadBytes int64           `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig limits ingest requests per client IP. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
	MaxVisitors       int     `mapstructure:"max_visitors" yaml:"max_visitors,omitempty"`
}

// DispatchConfig holds the backend pools and their retry policy.
type DispatchConfig struct {
	Cooldown    time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	BackoffUnit time.Duration `mapstructure:"backoff_unit" yaml:"backoff_unit"`
	// Classification and Recognition are ordered "provider/model" lists.
	Classification []string `mapstructure:"classification" yaml:"classification"`
	Recognition    []string `mapstructure:"recognition" yaml:"recognition"`
}

// ProviderConfig holds credentials and endpoint for a backend provider.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// EmbeddingConfig selects the embedding backend as "provider/model".
type EmbeddingConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"`
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`
	EmbeddingDim int    `mapstructure:"embedding_dim" yaml:"embedding_dim"`
}

// RoutingConfig maps categories to department mailboxes.
type RoutingConfig struct {
	Departments       map[string]string `mapstructure:"departments" yaml:"departments,omitempty"`
	DefaultDepartment string            `mapstructure:"default_department" yaml:"default_department"`
	Kafka             KafkaConfig       `mapstructure:"kafka" yaml:"kafka"`
}

// KafkaConfig enables the Kafka notifier when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers,omitempty"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// ClassificationConfig tunes the classifier prompt and urgency escalation.
type ClassificationConfig struct {
	PromptLanguage  string   `mapstructure:"prompt_language" yaml:"prompt_language"`
	UrgencyKeywords []string `mapstructure:"urgency_keywords" yaml:"urgency_keywords"`
}

// DedupConfig enables Redis-backed duplicate suppression when RedisURL is set.
type DedupConfig struct {
	RedisURL      string        `mapstructure:"redis_url" yaml:"redis_url,omitempty"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8000")
	v.SetDefault("server.max_upload_bytes", 50<<20)
	v.SetDefault("server.rate_limit.requests_per_second", 0)
	v.SetDefault("server.rate_limit.burst", 0)

	v.SetDefault("dispatch.cooldown", provider.DefaultCooldown)
	v.SetDefault("dispatch.max_retries", provider.DefaultMaxRetries)
	v.SetDefault("dispatch.backoff_unit", provider.DefaultBackoffUnit)
	v.SetDefault("dispatch.classification", []string{"mistral/mistral-large-latest", "mistral/ministral-8b-2410"})
	v.SetDefault("dispatch.recognition", []string{"mistral/mistral-ocr-latest"})

	v.SetDefault("embedding.backend", "mistral/mistral-embed")

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", defaultDataDir())
	v.SetDefault("storage.embedding_dim", 1024)

	v.SetDefault("routing.default_department", "info@bank.de")
	v.SetDefault("routing.kafka.topic", "docsort.notifications")

	v.SetDefault("classification.prompt_language", document.PromptEnglish)
	v.SetDefault("classification.urgency_keywords",
		[]string{"urgent", "dringend", "immediately", "sofort", "complaint", "beschwerde", "fraud", "betrug"})

	v.SetDefault("dedup.ttl", 30*24*time.Hour)
}

// SetupEnv binds DOCSORT_* environment variables and loads a .env file from
// the working directory when one exists.
func SetupEnv(v *viper.Viper) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from path (or defaults only when empty) with
// environment overrides. keyring:// values are resolved through store when
// it is non-nil.
func Load(path string, store secrets.Store) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, dserr.Errorf(dserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	if store != nil {
		if err := secrets.ResolveViperSecrets(v, store); err != nil {
			return nil, err
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dserr.Errorf(dserr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, dserr.Errorf(dserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Default returns the configuration made of defaults only.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateDispatch()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateRouting()...)
	errs = append(errs, c.validateClassification()...)
	errs = append(errs, c.validateDedup()...)

	return errs
}

func invalid(format string, args ...any) error {
	return dserr.Errorf(dserr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, invalid("server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
		} else if port, err := strconv.Atoi(portStr); err != nil {
			errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
		} else if port < 1 || port > 65535 {
			errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %d", port))
		}
	}

	if c.Server.MaxUploadBytes < 0 {
		errs = append(errs, invalid("server.max_upload_bytes must not be negative, got %d", c.Server.MaxUploadBytes))
	}

	for i, cidr := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			errs = append(errs, invalid("server.trusted_proxies[%d] must be a CIDR, got %q", i, cidr))
		}
	}

	rl := c.Server.RateLimit
	if rl.RequestsPerSecond < 0 {
		errs = append(errs, invalid("server.rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond))
	}
	if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be greater than 0 when rate limiting is enabled, got %d", rl.Burst))
	}

	return errs
}

func (c *Config) validateDispatch() []error {
	var errs []error

	if c.Dispatch.Cooldown <= 0 {
		errs = append(errs, invalid("dispatch.cooldown must be greater than 0, got %s", c.Dispatch.Cooldown))
	}
	if c.Dispatch.MaxRetries < 0 {
		errs = append(errs, invalid("dispatch.max_retries must not be negative, got %d", c.Dispatch.MaxRetries))
	}
	if c.Dispatch.BackoffUnit < 0 {
		errs = append(errs, invalid("dispatch.backoff_unit must not be negative, got %s", c.Dispatch.BackoffUnit))
	}

	pools := []struct {
		key  string
		refs []string
	}{
		{"dispatch.classification", c.Dispatch.Classification},
		{"dispatch.recognition", c.Dispatch.Recognition},
	}
	for _, p := range pools {
		if len(p.refs) == 0 {
			errs = append(errs, invalid("%s must list at least one backend", p.key))
			continue
		}
		seen := make(map[string]bool, len(p.refs))
		for i, ref := range p.refs {
			if seen[ref] {
				errs = append(errs, invalid("%s[%d] %q is listed twice", p.key, i, ref))
			}
			seen[ref] = true
			errs = append(errs, c.validateRef(p.key+"["+strconv.Itoa(i)+"]", ref)...)
		}
	}

	return errs
}

// validateRef checks the "provider/model" form and, when a providers
// section exists, that the provider is configured.
func (c *Config) validateRef(key, ref string) []error {
	name, _, err := provider.SplitRef(ref)
	if err != nil {
		return []error{invalid("%s must be in \"provider/model\" format, got %q", key, ref)}
	}
	// A nil map means no providers section (fresh install), which is valid.
	if c.Providers == nil {
		return nil
	}
	if _, ok := c.Providers[name]; !ok {
		return []error{invalid("%s %q references provider %q which is not configured", key, ref, name)}
	}
	return nil
}

func (c *Config) validateEmbedding() []error {
	if c.Embedding.Backend == "" {
		return []error{invalid("embedding.backend must not be empty")}
	}
	return c.validateRef("embedding.backend", c.Embedding.Backend)
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, invalid("storage.backend must be one of [sqlite], got %q", c.Storage.Backend))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, invalid("storage.data_dir must not be empty"))
	}
	if c.Storage.EmbeddingDim <= 0 {
		errs = append(errs, invalid("storage.embedding_dim must be greater than 0, got %d", c.Storage.EmbeddingDim))
	}

	return errs
}

func (c *Config) validateRouting() []error {
	var errs []error

	if c.Routing.DefaultDepartment == "" {
		errs = append(errs, invalid("routing.default_department must not be empty"))
	}
	for cat := range c.Routing.Departments {
		if !document.Category(cat).Valid() {
			errs = append(errs, invalid("routing.departments has unknown category %q", cat))
		}
	}
	if len(c.Routing.Kafka.Brokers) > 0 && c.Routing.Kafka.Topic == "" {
		errs = append(errs, invalid("routing.kafka.topic must not be empty when brokers are set"))
	}

	return errs
}

func (c *Config) validateClassification() []error {
	switch c.Classification.PromptLanguage {
	case document.PromptEnglish, document.PromptGerman:
		return nil
	default:
		return []error{invalid("classification.prompt_language must be one of [en, de], got %q", c.Classification.PromptLanguage)}
	}
}

func (c *Config) validateDedup() []error {
	var errs []error

	if c.Dedup.RedisURL != "" {
		u, err := url.Parse(c.Dedup.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, invalid("dedup.redis_url must be a redis:// or rediss:// URL, got %q", c.Dedup.RedisURL))
		}
	}
	if c.Dedup.TTL < 0 {
		errs = append(errs, invalid("dedup.ttl must not be negative, got %s", c.Dedup.TTL))
	}

	return errs
}

// Departments returns the department map keyed by category.
func (c *Config) Departments() map[document.Category]string {
	if len(c.Routing.Departments) == 0 {
		return nil
	}
	out := make(map[document.Category]string, len(c.Routing.Departments))
	for k, v := range c.Routing.Departments {
		out[document.Category(k)] = v
	}
	return out
}

// OrchestratorConfig returns the retry policy shared by both pools.
func (c *Config) OrchestratorConfig() provider.OrchestratorConfig {
	ocfg := provider.DefaultOrchestratorConfig()
	ocfg.MaxRetries = c.Dispatch.MaxRetries
	if c.Dispatch.BackoffUnit > 0 {
		ocfg.BackoffUnit = c.Dispatch.BackoffUnit
	}
	return ocfg
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docsort"
	}
	return filepath.Join(home, ".docsort")
}
