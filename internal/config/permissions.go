// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// groupOrOtherRead are the mode bits that expose a file beyond its owner.
const groupOrOtherRead fs.FileMode = 0o044

// WarnInsecurePermissions logs a warning when the config file at path can be
// read by group or others. Provider keys often live in that file. Startup
// continues either way.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("config permission check skipped", "path", path, "error", err)
		return
	}

	if perm := info.Mode().Perm(); perm&groupOrOtherRead != 0 {
		slog.Warn("config file has insecure permissions, provider keys may be readable by other users",
			"path", path,
			"mode", perm,
			"recommended", "0600",
		)
	}
}
