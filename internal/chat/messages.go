// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/stream"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// Messages produced by session commands. Every message carries the session ID
// so that results of a cancelled or superseded session are dropped.

// StreamOpenedMsg reports that the response stream is open.
type StreamOpenedMsg struct {
	SessionID string
	Source    stream.ChunkSource
}

// StreamOpenFailedMsg reports that the stream could not be opened.
type StreamOpenFailedMsg struct {
	SessionID string
	Err       error
}

// StreamChunkMsg delivers one raw chunk.
type StreamChunkMsg struct {
	SessionID string
	Data      []byte
}

// StreamEndMsg reports the end of the raw stream. Err is nil on a clean end.
type StreamEndMsg struct {
	SessionID string
	Err       error
}

// SessionDoneMsg is emitted once a session reaches a final state, for
// observers such as metrics or the front-end.
type SessionDoneMsg struct {
	SessionID string
	MessageID string
	Outcome   string
}
