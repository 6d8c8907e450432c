// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// indexSuffix names the entry holding a service's JSON key index. The OS
// keyrings cannot enumerate entries, so List reads this index instead.
const indexSuffix = "::keys-index"

// KeyringStore implements Store on the OS keyring (Keychain, Secret Service
// or Windows Credential Manager) via zalando/go-keyring.
type KeyringStore struct{}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkInput(op, service, key string) error {
	switch {
	case service == "":
		return dserr.New(dserr.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	case key == "":
		return dserr.New(dserr.CodeSecretInvalidInput, "secret "+op+": key must not be empty")
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkInput("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return dserr.Wrapf(err, dserr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkInput("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", dserr.Errorf(dserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", dserr.Wrapf(err, dserr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkInput("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return dserr.Errorf(dserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return dserr.Wrapf(err, dserr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.loadIndex(service)
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dserr.Wrapf(err, dserr.CodeSecretListFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, dserr.Wrapf(err, dserr.CodeSecretListFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) updateIndex(service string, update func([]string) []string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	keys = update(keys)

	indexKey := service + indexSuffix
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty key index failed", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return dserr.Wrapf(err, dserr.CodeSecretListFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return dserr.Wrapf(err, dserr.CodeSecretListFailure, "saving key index for service %s", service)
	}
	return nil
}
