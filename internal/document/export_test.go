// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package document

var CleanModelJSON = cleanModelJSON
