// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package secrets keeps provider API keys out of config files. Config values
// of the form keyring://service/key are resolved from the OS keyring at load
// time.
package secrets

// Service is the keyring service docsort stores its own keys under.
const Service = "docsort"

// Store provides secret storage operations.
type Store interface {
	// Store saves value under service and key, replacing any previous value.
	Store(service, key, value string) error

	// Retrieve fetches the value for service and key. A missing key yields
	// dserr.CodeSecretNotFound.
	Retrieve(service, key string) (string, error)

	// Delete removes the value for service and key. A missing key yields
	// dserr.CodeSecretNotFound.
	Delete(service, key string) error

	// List returns the key names stored under service.
	List(service string) ([]string, error)
}

// URI returns the keyring:// reference for a docsort key.
func URI(key string) string {
	return keyringScheme + Service + "/" + key
}
