// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"slices"
	"strings"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Registry is the fixed, ordered list of backends serving one task. Order
// is the selection tie-breaker. A Registry is immutable after construction.
type Registry struct {
	task     Task
	backends []string // "provider/model" refs
}

// NewRegistry validates and freezes the backend list for task. The list
// must be non-empty, free of duplicates, and every entry must use the
// "provider/model" form.
func NewRegistry(task Task, backends []string) (*Registry, error) {
	if !task.Valid() {
		return nil, dserr.Errorf(dserr.CodeDispatchRegistryInvalid, "unknown task %q", task)
	}
	if len(backends) == 0 {
		return nil, dserr.New(dserr.CodeDispatchRegistryInvalid,
			"registry needs at least one backend", dserr.FieldTask(string(task)))
	}

	seen := make(map[string]struct{}, len(backends))
	for _, ref := range backends {
		if _, _, err := SplitRef(ref); err != nil {
			return nil, dserr.With(err, dserr.FieldTask(string(task)))
		}
		if _, dup := seen[ref]; dup {
			return nil, dserr.New(dserr.CodeDispatchRegistryInvalid,
				"duplicate backend "+ref, dserr.FieldTask(string(task)), dserr.FieldBackend(ref))
		}
		seen[ref] = struct{}{}
	}

	return &Registry{
		task:     task,
		backends: slices.Clone(backends),
	}, nil
}

// Task returns the task this registry serves.
func (r *Registry) Task() Task { return r.task }

// Backends returns a copy of the ordered backend list.
func (r *Registry) Backends() []string { return slices.Clone(r.backends) }

// Len returns the number of backends.
func (r *Registry) Len() int { return len(r.backends) }

// Contains reports whether ref is registered.
func (r *Registry) Contains(ref string) bool { return slices.Contains(r.backends, ref) }

// Providers returns the distinct provider names in registry order.
func (r *Registry) Providers() []string {
	var names []string
	for _, ref := range r.backends {
		name, _ := parseRef(ref)
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// SplitRef splits a "provider/model" ref and rejects empty halves.
func SplitRef(ref string) (providerName, model string, err error) {
	providerName, model = parseRef(ref)
	if providerName == "" || model == "" {
		return "", "", dserr.Errorf(dserr.CodeProviderInvalidModelRef,
			"backend %q must use provider/model format", ref)
	}
	return providerName, model, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
