// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendAttempts counts every backend invocation by its outcome.
	BackendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsort_backend_attempts_total",
			Help: "Total number of backend invocations by outcome",
		},
		[]string{"task", "backend", "outcome"},
	)

	// BackendRateLimited counts rate-limit marks placed on a backend.
	BackendRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsort_backend_rate_limited_total",
			Help: "Total number of times a backend was taken out of rotation",
		},
		[]string{"task", "backend"},
	)

	// Rotations counts switches from one backend to another within a call.
	Rotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsort_backend_rotations_total",
			Help: "Total number of backend rotations",
		},
		[]string{"task"},
	)

	// PoolExhausted counts selections that found every backend cooling down
	// and cleared all marks.
	PoolExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsort_pool_exhausted_total",
			Help: "Total number of times every backend in a pool was rate limited",
		},
		[]string{"task"},
	)

	// CallLatency tracks the wall time of a logical call, retries included.
	CallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsort_call_latency_seconds",
			Help:    "Logical call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task", "result"},
	)

	// DocumentsProcessed counts ingested documents.
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsort_documents_processed_total",
			Help: "Total number of processed documents",
		},
		[]string{"source", "category", "urgency"},
	)

	// Notifications counts department notifications by delivery result.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsort_notifications_total",
			Help: "Total number of department notifications",
		},
		[]string{"department", "result"},
	)
)
