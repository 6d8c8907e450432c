// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package secrets

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits keyring://service/key.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", dserr.Errorf(dserr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", dserr.Errorf(dserr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// ResolveKeyringURI returns the secret a keyring:// value points at, or value
// itself when it is not a keyring URI.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", dserr.Wrapf(err, dserr.CodeSecretResolveFailure, "resolving keyring URI %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets replaces every keyring:// string in v with its secret.
// Keys that cannot be resolved are reported together in one error.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var failed []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			slog.Debug("keyring value not resolved", "config_key", key, "error", err)
			failed = append(failed, dserr.Errorf(dserr.CodeSecretResolveFailure, "%s: %w", key, err))
			continue
		}
		v.Set(key, resolved)
	}
	if len(failed) > 0 {
		return dserr.Wrapf(errors.Join(failed...), dserr.CodeSecretResolveFailure,
			"%d config value(s) could not be read from the keyring", len(failed))
	}
	return nil
}
