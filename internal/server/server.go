// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// APIVersion is reported in the OpenAPI document.
const APIVersion = "1.0.0"

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// TrustedProxies are CIDRs whose X-Forwarded-For header is believed.
	// Empty means RemoteAddr is always used.
	TrustedProxies []string
	// RateLimit applies to the ingest routes only.
	RateLimit RateLimitConfig
	// MaxUploadBytes bounds a multipart upload. Defaults to 50 MiB.
	MaxUploadBytes int64
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services *Services

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with chi router, huma API, health and metrics
// endpoints, CORS and the ingest rate limiter.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, dserr.New(dserr.CodeServerConfigInvalid, "listen address is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Recognition of a long scan with retries can take minutes.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}

	srv := &Server{cfg: cfg, done: make(chan struct{})}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(cfg.TrustedProxies) > 0 {
		trusted, err := parseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			return nil, err
		}
		r.Use(trustedProxyRealIP(trusted))
	}
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(ingestOnly(rateLimitMiddleware(cfg.RateLimit, srv.done)))

	r.Handle("/metrics", promhttp.Handler())

	humaConfig := huma.DefaultConfig("docsort", APIVersion)
	humaConfig.Info.Description = "Banking document ingestion, classification and routing API"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "healthy", Service: "docsort"}}, nil
	})

	srv.router = r
	srv.api = api
	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return dserr.Wrapf(err, dserr.CodeServerConfigInvalid, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return dserr.Wrap(err, dserr.CodeServerInternalFailure, "serving http")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return dserr.Wrap(err, dserr.CodeServerInternalFailure, "shutting down")
	}

	return <-errCh
}

// Close stops background goroutines. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status  string `json:"status" example:"healthy" doc:"Health status"`
	Service string `json:"service" example:"docsort" doc:"Service name"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
