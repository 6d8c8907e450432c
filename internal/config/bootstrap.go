// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

//go:embed docsort.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/docsort/docsort.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", dserr.Errorf(dserr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "docsort", "docsort.yaml"), nil
}

// BootstrapConfig writes the default commented config to path if it does not
// already exist. Returns the path written, or empty string if the file already
// existed or an error occurred (logged and skipped).
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	if err := writeFile(cfgPath, DefaultConfigYAML); err != nil {
		slog.Debug("skipping config bootstrap", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, dserr.Errorf(dserr.CodeConfigParseInvalidFormat, "encoding config: %w", err)
	}
	return out, nil
}

// Save writes cfg to path with owner-only permissions. An existing file is
// only replaced when overwrite is set.
func Save(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return dserr.Errorf(dserr.CodeConfigAlreadyExists, "config %s already exists", path)
		}
	}

	out, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := writeFile(path, out); err != nil {
		return dserr.Errorf(dserr.CodeConfigLoadReadFailure, "writing config %s: %w", path, err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
