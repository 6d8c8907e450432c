// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/docsort-dev/docsort/internal/metrics"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/docsort-dev/docsort/pkg/health"
)

const (
	// DefaultMaxRetries is how many times a transient failure is retried on
	// the same backend before it is rotated out.
	DefaultMaxRetries = 2
	// DefaultBackoffUnit is one unit of the 2^attempt backoff.
	DefaultBackoffUnit = time.Second

	maxBackoffShift = 16
)

// Invoke performs one request against one backend.
type Invoke[Req, Resp any] func(ctx context.Context, backend string, req Req) (Resp, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// OrchestratorConfig tunes retry and rotation.
type OrchestratorConfig struct {
	MaxRetries  int
	BackoffUnit time.Duration
	Classify    Classifier // nil = ClassifyError
	Sleep       SleepFunc  // nil = context-aware timer
}

// DefaultOrchestratorConfig returns the stock retry settings.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxRetries:  DefaultMaxRetries,
		BackoffUnit: DefaultBackoffUnit,
	}
}

// ExhaustedError is returned when every backend of a pool failed within one
// logical call. It unwraps to the last backend's error.
type ExhaustedError struct {
	Task     Task
	Backend  string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: all backends failed after %d attempts, last backend %s: %v",
		e.Task, e.Attempts, e.Backend, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Pool is the task-independent view of an orchestrator used by the API and
// CLI.
type Pool interface {
	Task() Task
	Status() health.PoolStatus
	Reset()
}

var _ Pool = (*Orchestrator[struct{}, struct{}])(nil)

// Orchestrator runs logical calls against one pool. It keeps a current
// backend across calls so a healthy backend keeps serving until it fails.
// Each backend is tried at most once per call, with up to MaxRetries extra
// attempts for transient failures.
type Orchestrator[Req, Resp any] struct {
	dispatcher  *Dispatcher
	invoke      Invoke[Req, Resp]
	maxRetries  int
	backoffUnit time.Duration
	classify    Classifier
	sleep       SleepFunc

	mu      sync.Mutex
	current string
}

// NewOrchestrator validates cfg and builds an Orchestrator.
func NewOrchestrator[Req, Resp any](d *Dispatcher, invoke Invoke[Req, Resp], cfg OrchestratorConfig) (*Orchestrator[Req, Resp], error) {
	if d == nil {
		return nil, dserr.New(dserr.CodeConfigValidateInvalidValue, "orchestrator: dispatcher is required")
	}
	if invoke == nil {
		return nil, dserr.New(dserr.CodeConfigValidateInvalidValue, "orchestrator: invoke function is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"orchestrator: max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.BackoffUnit < 0 {
		return nil, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"orchestrator: backoff unit must not be negative, got %s", cfg.BackoffUnit)
	}
	if cfg.Classify == nil {
		cfg.Classify = ClassifyError
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	return &Orchestrator[Req, Resp]{
		dispatcher:  d,
		invoke:      invoke,
		maxRetries:  cfg.MaxRetries,
		backoffUnit: cfg.BackoffUnit,
		classify:    cfg.Classify,
		sleep:       cfg.Sleep,
	}, nil
}

// Task returns the task served by this orchestrator.
func (o *Orchestrator[Req, Resp]) Task() Task {
	return o.dispatcher.Registry().Task()
}

// Current returns the backend that served the last successful call.
func (o *Orchestrator[Req, Resp]) Current() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator[Req, Resp]) setCurrent(backend string) {
	o.mu.Lock()
	o.current = backend
	o.mu.Unlock()
}

// Do runs req against the pool.
func (o *Orchestrator[Req, Resp]) Do(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	start := time.Now()
	task := string(o.Task())
	tracker := o.dispatcher.Tracker()
	size := o.dispatcher.Registry().Len()

	backend := o.startBackend()
	tried := make([]string, 0, size)
	attempts := 0
	var lastErr error

	for {
		tried = append(tried, backend)

		resp, outcome, n, err := o.callBackend(ctx, backend, req)
		attempts += n

		switch outcome {
		case OutcomeSuccess:
			tracker.MarkSuccess(backend)
			o.setCurrent(backend)
			metrics.CallLatency.WithLabelValues(task, "success").Observe(time.Since(start).Seconds())
			return resp, nil
		case OutcomeFatal:
			metrics.CallLatency.WithLabelValues(task, "fatal").Observe(time.Since(start).Seconds())
			return zero, dserr.With(err, dserr.FieldTask(task), dserr.FieldBackend(backend))
		}

		tracker.MarkRateLimited(backend)
		metrics.BackendRateLimited.WithLabelValues(task, backend).Inc()
		slog.Warn("backend rate limited, rotating",
			"task", task,
			"backend", backend,
			"outcome", outcome,
			"error", err,
		)
		lastErr = err

		if len(tried) >= size {
			break
		}
		next := o.dispatcher.SelectNext(tried...)
		if slices.Contains(tried, next) {
			// The pool was exhausted and the fallback handed back a backend
			// this call already used. Each backend is tried at most once.
			next = tracker.LeastUsed(o.untried(tried))
		}
		metrics.Rotations.WithLabelValues(task).Inc()
		slog.Info("rotating backend", "task", task, "from", backend, "to", next)
		backend = next
	}

	metrics.CallLatency.WithLabelValues(task, "exhausted").Observe(time.Since(start).Seconds())
	return zero, &ExhaustedError{
		Task:     o.Task(),
		Backend:  backend,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// untried returns the registry's backends not in tried, in registry order.
func (o *Orchestrator[Req, Resp]) untried(tried []string) []string {
	var out []string
	for _, b := range o.dispatcher.Registry().Backends() {
		if !slices.Contains(tried, b) {
			out = append(out, b)
		}
	}
	return out
}

// startBackend reuses the current backend while it is available.
func (o *Orchestrator[Req, Resp]) startBackend() string {
	tracker := o.dispatcher.Tracker()
	if cur := o.Current(); cur != "" && tracker.IsAvailable(cur, tracker.Now()) {
		return cur
	}
	return o.dispatcher.SelectNext()
}

// callBackend runs the same-backend retry loop and returns the final
// outcome together with the number of attempts made.
func (o *Orchestrator[Req, Resp]) callBackend(ctx context.Context, backend string, req Req) (Resp, Outcome, int, error) {
	var zero Resp
	task := string(o.Task())

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, OutcomeFatal, attempt, err
		}

		resp, err := o.invoke(ctx, backend, req)
		outcome := o.classify(err)
		metrics.BackendAttempts.WithLabelValues(task, backend, outcome.String()).Inc()

		switch outcome {
		case OutcomeSuccess:
			return resp, outcome, attempt + 1, nil
		case OutcomeRateLimited, OutcomeFatal:
			return zero, outcome, attempt + 1, err
		}

		if attempt >= o.maxRetries {
			return zero, OutcomeTransient, attempt + 1, err
		}

		wait := o.backoff(attempt)
		slog.Warn("transient backend error, retrying",
			"task", task,
			"backend", backend,
			"attempt", attempt+1,
			"wait", wait,
			"error", err,
		)
		if err := o.sleep(ctx, wait); err != nil {
			return zero, OutcomeFatal, attempt + 1, err
		}
	}
}

// backoff returns unit * 2^attempt.
func (o *Orchestrator[Req, Resp]) backoff(attempt int) time.Duration {
	return o.backoffUnit * time.Duration(1<<min(attempt, maxBackoffShift))
}

// Status reports the pool state including the current backend.
func (o *Orchestrator[Req, Resp]) Status() health.PoolStatus {
	st := o.dispatcher.Status()
	st.Current = o.Current()
	return st
}

// Reset clears the pool's health state and forgets the current backend.
func (o *Orchestrator[Req, Resp]) Reset() {
	o.dispatcher.Reset()
	o.setCurrent("")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
