// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the two conversations of one page visit.
//
// The quick conversation is answered locally from a knowledge base; the
// assisted conversation is filled by streaming sessions. They never share
// messages. Switching the visible mode only changes which one is shown.
// Navigating to a new page context empties both.
//
// # Usage
//
//	store := transcript.New(kb, cfg.Assistant.AssistedGreeting, model.ModeQuick)
//	store.Navigate("PR.AA-01 Identity management")
//	store.Open()                      // seeds the quick greeting
//	store.Show(model.ModeAssisted)    // seeds the assisted greeting
//	store.Navigate("DE.CM-01")        // both conversations emptied again
package transcript
