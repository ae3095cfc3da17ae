// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mutation applies assessment item edits optimistically.
//
// Status changes are shown and sent at once. Notes are shown at once and sent
// after a quiet period, so a burst of keystrokes becomes one request. When a
// request fails, the affected fields return to the value the server last
// confirmed and a Notice is produced.
//
// The Engine is not safe for concurrent use. It is driven from a bubbletea
// Update loop:
//
//	cmd, err := engine.SetStatus(id, model.StatusCompliant)
//	...
//	case mutation.FlushMsg, mutation.ResultMsg:
//		cmd, notice := engine.Update(msg)
package mutation
