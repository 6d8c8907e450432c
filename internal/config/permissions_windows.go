// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions is a no-op on Windows, which uses ACLs instead of
// mode bits.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("config permission check skipped on windows", "path", path)
	}
}
