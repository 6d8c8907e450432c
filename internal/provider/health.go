// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"cmp"
	"slices"
	"sync"
	"time"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/docsort-dev/docsort/pkg/health"
)

// DefaultCooldown is how long a rate-limited backend stays out of rotation.
const DefaultCooldown = 5 * time.Minute

// HealthTracker records per-backend usage and rate-limit marks for one
// registry. A backend is unavailable from the moment it is marked until
// mark+cooldown. Expired marks are only dropped by CleanupExpired, which the
// dispatcher calls on every selection; there is no background timer.
type HealthTracker struct {
	mu          sync.Mutex
	cooldown    time.Duration
	usage       map[string]int64
	rateLimited map[string]time.Time // backend → time it was marked
	nowFunc     func() time.Time     // for testing
}

// NewHealthTracker creates an empty tracker. Returns an error if cooldown is
// zero or negative.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		cooldown:    cooldown,
		usage:       make(map[string]int64),
		rateLimited: make(map[string]time.Time),
		nowFunc:     time.Now,
	}, nil
}

// Cooldown returns the configured cooldown.
func (h *HealthTracker) Cooldown() time.Duration {
	return h.cooldown
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Now returns the tracker's current time.
func (h *HealthTracker) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nowFunc()
}

// MarkRateLimited takes backend out of rotation for the cooldown period.
// Usage is unchanged.
func (h *HealthTracker) MarkRateLimited(backend string) {
	h.mu.Lock()
	h.rateLimited[backend] = h.nowFunc()
	h.mu.Unlock()
}

// MarkSuccess counts a successful call and clears any rate-limit mark.
func (h *HealthTracker) MarkSuccess(backend string) {
	h.mu.Lock()
	h.usage[backend]++
	delete(h.rateLimited, backend)
	h.mu.Unlock()
}

// isAvailableLocked reports whether backend is usable at now.
// The caller MUST hold h.mu.
func (h *HealthTracker) isAvailableLocked(backend string, now time.Time) bool {
	markedAt, ok := h.rateLimited[backend]
	if !ok {
		return true
	}
	return !now.Before(markedAt.Add(h.cooldown))
}

// IsAvailable reports whether backend has no mark or its cooldown has elapsed
// at now. The boundary is inclusive: at exactly mark+cooldown the backend is
// available again.
func (h *HealthTracker) IsAvailable(backend string, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isAvailableLocked(backend, now)
}

// cleanupExpiredLocked drops marks whose cooldown has elapsed and returns the
// backends that recovered. The caller MUST hold h.mu.
func (h *HealthTracker) cleanupExpiredLocked(now time.Time) []string {
	var recovered []string
	for backend, markedAt := range h.rateLimited {
		if !now.Before(markedAt.Add(h.cooldown)) {
			delete(h.rateLimited, backend)
			recovered = append(recovered, backend)
		}
	}
	return recovered
}

// CleanupExpired drops every mark whose cooldown has elapsed at now.
func (h *HealthTracker) CleanupExpired(now time.Time) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cleanupExpiredLocked(now)
}

// UsageCount returns the number of successful calls recorded for backend.
func (h *HealthTracker) UsageCount(backend string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.usage[backend]
}

// selection is the outcome of one pick under the tracker lock.
type selection struct {
	backend   string
	recovered []string
	exhausted bool
}

// selectNext drops expired marks and picks the least-used available backend
// not in exclude, all against one consistent view of tracker state. When
// nothing qualifies every mark is cleared and the pick widens to all of
// backends, exclude included. backends must not be empty.
func (h *HealthTracker) selectNext(backends, exclude []string) selection {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.nowFunc()
	sel := selection{recovered: h.cleanupExpiredLocked(now)}

	candidates := make([]string, 0, len(backends))
	for _, b := range backends {
		if slices.Contains(exclude, b) {
			continue
		}
		if h.isAvailableLocked(b, now) {
			candidates = append(candidates, b)
		}
	}

	if len(candidates) == 0 {
		sel.exhausted = true
		clear(h.rateLimited)
		candidates = backends
	}

	sel.backend = h.leastUsedLocked(candidates)
	return sel
}

// leastUsedLocked returns the candidate with the lowest usage count. The
// first minimum wins, so candidate order breaks ties. The caller MUST hold h.mu.
func (h *HealthTracker) leastUsedLocked(candidates []string) string {
	return slices.MinFunc(candidates, func(a, b string) int {
		return cmp.Compare(h.usage[a], h.usage[b])
	})
}

// LeastUsed returns the candidate with the lowest usage count, breaking ties
// by candidate order. Rate-limit marks are ignored. candidates must not be
// empty.
func (h *HealthTracker) LeastUsed(candidates []string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leastUsedLocked(candidates)
}

// Reset clears all marks and zeroes all usage counts. Calling it twice is the
// same as calling it once.
func (h *HealthTracker) Reset() {
	h.mu.Lock()
	clear(h.rateLimited)
	clear(h.usage)
	h.mu.Unlock()
}

// Status returns a snapshot of every backend in order at now. Expired marks
// are cleaned up first. The snapshot holds no references to tracker state.
func (h *HealthTracker) Status(backends []string, now time.Time) health.PoolStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cleanupExpiredLocked(now)

	st := health.PoolStatus{
		TotalBackends:   len(backends),
		Available:       []string{},
		RateLimited:     []string{},
		UsageCounts:     make(map[string]int64, len(backends)),
		Backends:        make([]health.BackendMetrics, 0, len(backends)),
		CooldownSeconds: h.cooldown.Seconds(),
		GeneratedAt:     now,
	}

	for _, b := range backends {
		m := health.BackendMetrics{
			Backend:    b,
			UsageCount: h.usage[b],
			Available:  h.isAvailableLocked(b, now),
		}
		if markedAt, ok := h.rateLimited[b]; ok {
			at := markedAt
			until := markedAt.Add(h.cooldown)
			m.RateLimitedAt = &at
			m.RateLimitedUntil = &until
		}

		st.UsageCounts[b] = m.UsageCount
		if m.Available {
			st.Available = append(st.Available, b)
		} else {
			st.RateLimited = append(st.RateLimited, b)
		}
		st.Backends = append(st.Backends, m)
	}
	return st
}
