// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package health holds the JSON-safe snapshot types that describe the state
// of a dispatcher pool. They are shared by the HTTP API and the CLI.
package health

import "time"

// BackendMetrics is a point-in-time view of a single backend.
type BackendMetrics struct {
	Backend          string     `json:"backend"`
	UsageCount       int64      `json:"usage_count"`
	RateLimitedAt    *time.Time `json:"rate_limited_at,omitempty"`
	RateLimitedUntil *time.Time `json:"rate_limited_until,omitempty"`
	Available        bool       `json:"available"`
}

// PoolStatus summarises one task's pool of backends.
type PoolStatus struct {
	Task            string           `json:"task"`
	Current         string           `json:"current,omitempty"`
	TotalBackends   int              `json:"total_backends"`
	Available       []string         `json:"available"`
	RateLimited     []string         `json:"rate_limited"`
	UsageCounts     map[string]int64 `json:"usage_counts"`
	Backends        []BackendMetrics `json:"backends"`
	CooldownSeconds float64          `json:"cooldown_seconds"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
