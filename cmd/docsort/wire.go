// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"

	"github.com/docsort-dev/docsort/internal/classify"
	"github.com/docsort-dev/docsort/internal/config"
	"github.com/docsort-dev/docsort/internal/ingest"
	"github.com/docsort-dev/docsort/internal/provider"
	anthropicprov "github.com/docsort-dev/docsort/internal/provider/anthropic"
	googleprov "github.com/docsort-dev/docsort/internal/provider/google"
	mistralprov "github.com/docsort-dev/docsort/internal/provider/mistral"
	openaiprov "github.com/docsort-dev/docsort/internal/provider/openai"
	"github.com/docsort-dev/docsort/internal/recognize"
	"github.com/docsort-dev/docsort/internal/routing"
	"github.com/docsort-dev/docsort/internal/server"
	"github.com/docsort-dev/docsort/internal/store"
	redisstore "github.com/docsort-dev/docsort/internal/store/redis"
	_ "github.com/docsort-dev/docsort/internal/store/sqlite" // register sqlite backend
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// catalogs holds one client catalog per capability. A provider that
// offers several capabilities is registered in each.
type catalogs struct {
	completers  *provider.Catalog[provider.Completer]
	recognizers *provider.Catalog[provider.Recognizer]
	embedders   *provider.Catalog[provider.Embedder]
}

func (c *catalogs) Close() error {
	return errors.Join(c.completers.Close(), c.recognizers.Close(), c.embedders.Close())
}

// buildCatalogs creates a client for every configured provider.
func buildCatalogs(ctx context.Context, cfg *config.Config) (*catalogs, error) {
	cats := &catalogs{
		completers:  provider.NewCatalog[provider.Completer](),
		recognizers: provider.NewCatalog[provider.Recognizer](),
		embedders:   provider.NewCatalog[provider.Embedder](),
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		pc := cfg.Providers[name]
		switch name {
		case "openai":
			c, err := openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
			if err != nil {
				return nil, err
			}
			cats.completers.Register(name, c)
			cats.embedders.Register(name, c)
		case "openrouter":
			c, err := openaiprov.NewOpenRouter(pc.APIKey, pc.BaseURL)
			if err != nil {
				return nil, err
			}
			cats.completers.Register(name, c)
		case "mistral":
			c, err := mistralprov.New(mistralprov.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
			if err != nil {
				return nil, err
			}
			cats.completers.Register(name, c)
			cats.recognizers.Register(name, c)
			cats.embedders.Register(name, c)
		case "google":
			c, err := googleprov.New(ctx, googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
			if err != nil {
				return nil, err
			}
			cats.completers.Register(name, c)
			cats.recognizers.Register(name, c)
			cats.embedders.Register(name, c)
		case "anthropic":
			c, err := anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
			if err != nil {
				return nil, err
			}
			cats.completers.Register(name, c)
		default:
			return nil, dserr.New(dserr.CodeProviderNotFound, "unknown provider: "+name, dserr.FieldProvider(name))
		}
		slog.Debug("provider registered", "provider", name)
	}
	return cats, nil
}

func newDispatcher(task provider.Task, backends []string, cfg *config.Config) (*provider.Dispatcher, error) {
	reg, err := provider.NewRegistry(task, backends)
	if err != nil {
		return nil, err
	}
	tracker, err := provider.NewHealthTracker(cfg.Dispatch.Cooldown)
	if err != nil {
		return nil, err
	}
	return provider.NewDispatcher(reg, tracker), nil
}

// App holds every wired subsystem.
type App struct {
	Config     *config.Config
	Classifier *classify.Service
	Recognizer *recognize.Service
	Ingest     *ingest.Service
	Stores     *store.Stores

	// closers run in reverse order on Close.
	closers []io.Closer
}

// Wire creates all subsystems from cfg. On error everything opened so far
// is closed again.
func Wire(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	cats, err := buildCatalogs(ctx, cfg)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "creating provider clients")
	}
	app.closers = append(app.closers, cats)

	ocfg := cfg.OrchestratorConfig()

	classDisp, err := newDispatcher(provider.TaskClassification, cfg.Dispatch.Classification, cfg)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "creating classification pool")
	}
	app.Classifier, err = classify.New(cats.completers, classDisp, ocfg, classify.Config{
		PromptLanguage:    cfg.Classification.PromptLanguage,
		Departments:       cfg.Departments(),
		DefaultDepartment: cfg.Routing.DefaultDepartment,
		UrgencyKeywords:   cfg.Classification.UrgencyKeywords,
	})
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "creating classifier")
	}

	recDisp, err := newDispatcher(provider.TaskRecognition, cfg.Dispatch.Recognition, cfg)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "creating recognition pool")
	}
	app.Recognizer, err = recognize.New(cats.recognizers, recDisp, ocfg, recognize.Config{})
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "creating recognizer")
	}

	embedder, model, err := cats.embedders.Resolve(cfg.Embedding.Backend)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "resolving embedding backend")
	}

	app.Stores, err = store.Open(&store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		DataDir:          cfg.Storage.DataDir,
		VectorDimensions: cfg.Storage.EmbeddingDim,
	})
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "opening stores")
	}
	app.closers = append(app.closers, app.Stores)

	deduper, err := app.deduper(ctx)
	if err != nil {
		return nil, err
	}

	router := routing.NewRouter(newNotifier(cfg), routing.WithAuditLog(app.Stores.Audit))
	app.closers = append(app.closers, router)

	app.Ingest, err = ingest.New(ingest.Deps{
		Recognizer: app.Recognizer,
		Classifier: app.Classifier,
		Embedder:   embedder,
		Documents:  app.Stores.Documents,
		Vectors:    app.Stores.Vectors,
		Router:     router,
		Deduper:    deduper,
	}, ingest.Config{EmbeddingModel: model})
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "creating ingest service")
	}

	slog.Info("docsort wired",
		"classification", cfg.Dispatch.Classification,
		"recognition", cfg.Dispatch.Recognition,
		"embedding", cfg.Embedding.Backend,
		"data_dir", cfg.Storage.DataDir,
	)
	return app, nil
}

// deduper picks Redis when configured and falls back to the document store.
func (a *App) deduper(ctx context.Context) (store.Deduper, error) {
	dc := a.Config.Dedup
	if dc.RedisURL != "" {
		d, rdb, err := redisstore.Dial(ctx, redisstore.Config{URL: dc.RedisURL, Password: dc.RedisPassword, TTL: dc.TTL})
		if err != nil {
			return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "connecting dedup cache")
		}
		a.closers = append(a.closers, rdb)
		return d, nil
	}
	if d, ok := a.Stores.Documents.(store.Deduper); ok {
		return d, nil
	}
	slog.Warn("duplicate suppression disabled: storage backend has no content-hash index")
	return nil, nil
}

func newNotifier(cfg *config.Config) routing.Notifier {
	if k := cfg.Routing.Kafka; len(k.Brokers) > 0 {
		slog.Info("department notifications go to kafka", "brokers", k.Brokers, "topic", k.Topic)
		return routing.NewKafkaNotifier(routing.NewKafkaWriter(routing.KafkaConfig{Brokers: k.Brokers, Topic: k.Topic}))
	}
	return routing.NewLogNotifier(slog.Default())
}

// Pools returns the backend pools by task.
func (a *App) Pools() map[provider.Task]provider.Pool {
	return map[provider.Task]provider.Pool{
		provider.TaskClassification: a.Classifier.Pool(),
		provider.TaskRecognition:    a.Recognizer.Pool(),
	}
}

// NewServer builds the HTTP server over the wired services.
func (a *App) NewServer() (*server.Server, error) {
	sc := a.Config.Server
	srv, err := server.New(server.Config{
		ListenAddr:     sc.Listen,
		CORSOrigins:    sc.CORSOrigins,
		TrustedProxies: sc.TrustedProxies,
		MaxUploadBytes: sc.MaxUploadBytes,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: sc.RateLimit.RequestsPerSecond,
			Burst:             sc.RateLimit.Burst,
			MaxVisitors:       sc.RateLimit.MaxVisitors,
		},
	})
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "creating server")
	}

	services, err := server.NewServices(a.Ingest, a.Pools())
	if err != nil {
		_ = srv.Close()
		return nil, dserr.Wrap(err, dserr.CodeCLISetupFailure, "creating services")
	}
	srv.RegisterServices(services)
	return srv, nil
}

// Close waits for in-flight routing and releases every resource.
func (a *App) Close() error {
	if a.Ingest != nil {
		a.Ingest.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
