// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const (
	staleVisitorAfter = 10 * time.Minute
	cleanupInterval   = 5 * time.Minute
	defaultMaxVisitor = 10000
)

// RateLimitConfig configures per-IP rate limiting of the ingest routes.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps the number of tracked IPs; the least recently seen
	// are evicted first. Default: 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return dserr.Errorf(dserr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return dserr.Errorf(dserr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return dserr.Errorf(dserr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitor
	}
	return nil
}

// visitor is one IP's token bucket.
type visitor struct {
	tokens     float64
	lastSeen   time.Time
	lastRefill time.Time
}

// ipLimiter is a token bucket per client IP.
type ipLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	return &ipLimiter{cfg: cfg, now: time.Now, visitors: make(map[string]*visitor)}
}

// allow takes a token from ip's bucket.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{tokens: float64(l.cfg.Burst), lastRefill: now}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	v.tokens = min(v.tokens+now.Sub(v.lastRefill).Seconds()*l.cfg.RequestsPerSecond, float64(l.cfg.Burst))
	v.lastRefill = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// cleanup drops idle visitors, then evicts the least recently seen ones
// until at most MaxVisitors remain.
func (l *ipLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	type seen struct {
		ip   string
		last time.Time
	}
	live := make([]seen, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > staleVisitorAfter {
			delete(l.visitors, ip)
			continue
		}
		live = append(live, seen{ip: ip, last: v.lastSeen})
	}

	if l.cfg.MaxVisitors <= 0 || len(live) <= l.cfg.MaxVisitors {
		return
	}
	slices.SortFunc(live, func(a, b seen) int { return a.last.Compare(b.last) })
	evict := len(live) - l.cfg.MaxVisitors
	for _, s := range live[:evict] {
		delete(l.visitors, s.ip)
	}
	slog.Warn("rate limiter visitor cap enforced",
		"evicted", evict, "max_visitors", l.cfg.MaxVisitors)
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// rateLimitMiddleware enforces per-IP limits. It passes everything through
// when cfg.RequestsPerSecond is zero. done stops the cleanup goroutine.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := newIPLimiter(cfg)
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by IP, not by connection.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !l.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ingestOnly applies limit to POSTs on the ingest routes and lets every
// other request through untouched.
func ingestOnly(limit func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && isIngestPath(r.URL.Path) {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isIngestPath(p string) bool {
	p = strings.TrimSuffix(p, "/")
	return p == "/api/v1/documents" || p == "/api/v1/emails"
}
