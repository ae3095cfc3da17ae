// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package core wires the assistant transcript, the streaming session
// controller and the item mutation engine into one bubbletea model.
//
// Model is the single owner of that state. Front-ends either embed it in
// their own tea.Model and forward messages to it, or drive it headless
// through Runtime, whose methods are safe to call from any goroutine.
// Observers registered with Subscribe receive an immutable Snapshot after
// every state change.
package core
