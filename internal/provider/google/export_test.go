// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package google

// BuildConfig and SplitPages expose internals for white-box testing.
var (
	BuildConfig = buildConfig
	SplitPages  = splitPages
)
