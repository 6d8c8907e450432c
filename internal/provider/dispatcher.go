// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"log/slog"

	"github.com/docsort-dev/docsort/internal/metrics"
	"github.com/docsort-dev/docsort/pkg/health"
)

// Dispatcher picks the next backend for one task from its registry and
// health tracker.
type Dispatcher struct {
	registry *Registry
	tracker  *HealthTracker
}

// NewDispatcher pairs a registry with its tracker.
func NewDispatcher(registry *Registry, tracker *HealthTracker) *Dispatcher {
	return &Dispatcher{registry: registry, tracker: tracker}
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Tracker returns the dispatcher's health tracker.
func (d *Dispatcher) Tracker() *HealthTracker { return d.tracker }

// SelectNext returns the least-used available backend that is not in
// exclude, breaking ties by registry order.
//
// When nothing qualifies every rate-limit mark is cleared (usage counts are
// kept) and the choice widens to the whole registry, excluded backends
// included. The result is never empty. Callers that must not repeat a
// backend check the result against their own exclusions.
func (d *Dispatcher) SelectNext(exclude ...string) string {
	sel := d.tracker.selectNext(d.registry.Backends(), exclude)

	if len(sel.recovered) > 0 {
		slog.Info("backends recovered from rate limit",
			"task", d.registry.Task(),
			"backends", sel.recovered,
		)
	}
	if sel.exhausted {
		slog.Warn("all backends rate limited, clearing cooldowns",
			"task", d.registry.Task(),
			"excluded", exclude,
		)
		metrics.PoolExhausted.WithLabelValues(string(d.registry.Task())).Inc()
	}

	slog.Debug("selected backend",
		"task", d.registry.Task(),
		"backend", sel.backend,
	)
	return sel.backend
}

// Status reports the pool's state at the tracker's current time.
func (d *Dispatcher) Status() health.PoolStatus {
	st := d.tracker.Status(d.registry.Backends(), d.tracker.Now())
	st.Task = string(d.registry.Task())
	return st
}

// Reset clears every mark and usage count in the pool.
func (d *Dispatcher) Reset() {
	d.tracker.Reset()
	slog.Info("backend pool reset", "task", d.registry.Task())
}
