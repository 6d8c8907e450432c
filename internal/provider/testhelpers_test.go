// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestDispatcher builds a classification pool over backends with a fake
// clock and the given cooldown.
func newTestDispatcher(t *testing.T, cooldown time.Duration, backends ...string) (*provider.Dispatcher, *fakeClock) {
	t.Helper()

	reg, err := provider.NewRegistry(provider.TaskClassification, backends)
	require.NoError(t, err)

	tracker, err := provider.NewHealthTracker(cooldown)
	require.NoError(t, err)

	clock := newFakeClock()
	tracker.SetNowFunc(clock.Now)

	return provider.NewDispatcher(reg, tracker), clock
}

// recordingSleeper captures requested waits without sleeping.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// scriptedBackend returns queued errors per backend and records the order
// of invocations. A backend with an empty script succeeds.
type scriptedBackend struct {
	mu      sync.Mutex
	scripts map[string][]error
	calls   []string
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{scripts: make(map[string][]error)}
}

func (s *scriptedBackend) Script(backend string, errs ...error) {
	s.mu.Lock()
	s.scripts[backend] = append(s.scripts[backend], errs...)
	s.mu.Unlock()
}

func (s *scriptedBackend) Invoke(_ context.Context, backend string, req string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, backend)
	if queue := s.scripts[backend]; len(queue) > 0 {
		err := queue[0]
		s.scripts[backend] = queue[1:]
		if err != nil {
			return "", err
		}
	}
	return backend + ":" + req, nil
}

func (s *scriptedBackend) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
