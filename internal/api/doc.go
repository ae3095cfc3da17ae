// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the assessment service.
//
// Two endpoints are used:
//
//	POST  {base}/api/assistant/chat           streaming assistant reply
//	PATCH {base}/api/assessment-items/{id}     partial item update
//
// OpenChatStream returns a stream.ChunkSource over the response body; the
// caller decodes it with stream.Decoder. UpdateItem retries connection
// failures and 429/502/503/504 responses with exponential backoff and
// returns the server's canonical item state.
package api
