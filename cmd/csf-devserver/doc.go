// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command csf-devserver runs a local assessment service for development.
//
// It serves the assistant chat stream and the assessment item endpoints
// that csf-assist talks to, backed by a SQLite file, plus a Prometheus
// /metrics listener.
//
// Usage:
//
//	csf-devserver [--config PATH] [--addr HOST:PORT] [--db PATH] [--fail-every N]
//
// Settings come from the [devserver] section of the csf-assist config
// and the CSF_DEVSERVER_* environment variables; flags win.
package main
