// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package panel is the full-screen terminal front end of the assistant.

The panel wraps a core.Model and renders its snapshots. Two surfaces share
the screen:

  - The item list, where statuses are changed with a single key and notes
    are edited in place. Edits show immediately and are saved in the
    background; a failed save restores the previous value and raises a
    notice.
  - The assistant panel, opened with Tab, holding the quick and assisted
    conversations. Ctrl+T switches between them.

All state lives in the core model; the panel only keeps view state such as
the selected row, the input line and scroll position.
*/
package panel
