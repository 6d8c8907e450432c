// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"slices"
	"sync"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Catalog maps provider names to clients of one capability and resolves
// "provider/model" refs against them.
type Catalog[C Client] struct {
	mu      sync.RWMutex
	clients map[string]C
}

// NewCatalog creates an empty Catalog.
func NewCatalog[C Client]() *Catalog[C] {
	return &Catalog[C]{clients: make(map[string]C)}
}

// Register adds a client under name, replacing any previous one.
func (c *Catalog[C]) Register(name string, client C) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[name] = client
}

// Get retrieves a client by provider name.
func (c *Catalog[C]) Get(name string) (C, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	client, ok := c.clients[name]
	if !ok {
		var zero C
		return zero, dserr.New(
			dserr.CodeProviderNotFound,
			"provider not found: "+name,
			dserr.FieldProvider(name),
		)
	}
	return client, nil
}

// Resolve looks up the client for ref and returns it with the model half.
func (c *Catalog[C]) Resolve(ref string) (C, string, error) {
	name, model, err := SplitRef(ref)
	if err != nil {
		var zero C
		return zero, "", err
	}
	client, err := c.Get(name)
	if err != nil {
		var zero C
		return zero, "", err
	}
	return client, model, nil
}

// Validate checks that every backend in reg resolves to a registered client.
func (c *Catalog[C]) Validate(reg *Registry) error {
	var errs []error
	for _, ref := range reg.Backends() {
		if _, _, err := c.Resolve(ref); err != nil {
			errs = append(errs, dserr.With(err, dserr.FieldTask(string(reg.Task())), dserr.FieldBackend(ref)))
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return dserr.Join(errs...)
}

// Names returns the registered provider names, sorted.
func (c *Catalog[C]) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.clients))
	for name := range c.clients {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close shuts down all registered clients.
func (c *Catalog[C]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, client := range c.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return dserr.Join(errs...)
	}
	return nil
}
