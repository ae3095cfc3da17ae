// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs streaming assistant sessions.
//
// A session appends an empty streaming placeholder to the conversation, opens
// the response stream in a tea.Cmd and reads it one chunk per command. Each
// chunk is decoded by stream.Decoder and folded into the placeholder with the
// pure ApplyEvent transition.
//
// Outcomes:
//   - completion ([DONE] or clean end of stream): streaming flag cleared
//   - error record: error flag set, content cleared
//   - transport failure: error flag set plus a "switch to quick answers" action
//   - cancellation: streaming flag cleared, empty placeholder removed, never
//     an error; later results of the session are dropped
//
// # Usage
//
//	ctrl := chat.NewController(client, store)
//	handle, cmd, err := ctrl.Start(model.ModeAssisted, history, page)
//	...
//	// in Update:
//	return m, ctrl.Update(msg)
package chat
