// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements a local stand-in for the assessment service.
//
// Endpoints:
//   - POST  /api/assistant/chat         - streamed assistant answer (SSE)
//   - GET   /api/assessment-items       - list items
//   - GET   /api/assessment-items/:id   - one item
//   - PATCH /api/assessment-items/:id   - update status and/or notes
//   - GET   /healthz                    - health check
//
// Answers are canned and streamed word by word so the client's decoder,
// cancellation and rendering paths can be exercised without the real
// service. Items are kept in SQLite through the storage package.
//
// Every Nth mutation can be made to fail on purpose to drive the client's
// rollback path.
package server
