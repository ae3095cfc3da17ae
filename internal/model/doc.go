// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages and
// assessment items.
//
// This package defines the core domain types shared by the transcript store,
// the streaming session controller and the optimistic mutation engine.
//
// # Key Types
//
//   - Mode: one of the two independent conversations (quick, assisted)
//   - Conversation: insertion-ordered message log for one mode
//   - Message: single transcript entry with streaming and error state
//   - AssessmentItem: shared control row with status, notes and saving flag
//   - PendingMutation: unconfirmed change chain for one item field
//
// # Usage
//
//	conv := model.NewConversation(model.ModeAssisted)
//	conv.AddMessage(model.NewUserMessage("What does PR.AC-1 cover?", true))
//	conv.AddMessage(model.NewPlaceholder())
//
// Status values are validated against a StatusSet:
//
//	set := model.NewStatusSet(false)
//	status, err := set.Parse("partial")
package model
