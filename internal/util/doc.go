// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across packages.
//
//   - AtomicWriteFile: crash-safe file replacement with fsync
//   - TruncateWidth, StringWidth, Preview, PadRight: column-aware text
//     helpers for terminal output and log previews
package util
