// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive commands
// of csf-assist.
//
// # Commands
//
//   - (none) / tui: full-screen assistant panel
//   - ask: one question, answer streamed to stdout
//   - chat: line-mode conversation with history and editing
//   - item: change an assessment item status or notes
//   - config: show, locate or initialize the configuration
//   - version, help
//
// Every command builds its collaborators through Setup, which loads the
// configuration and wires the logger, the service client and the metrics
// registry.
package cli
