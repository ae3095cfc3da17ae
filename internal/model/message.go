// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// SUGGESTED ACTIONS
// =============================================================================

// ActionKind identifies what a suggested follow-up does when chosen.
type ActionKind string

const (
	// ActionAsk sends the action label as a new user message.
	ActionAsk ActionKind = "ask"
	// ActionSwitchMode switches the visible conversation to Action.Mode.
	ActionSwitchMode ActionKind = "switch_mode"
)

// Action is a suggested follow-up attached to a message.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Label string     `json:"label"`
	Mode  Mode       `json:"mode,omitempty"`
}

// FallbackAction suggests leaving the networked conversation after a
// transport failure.
func FallbackAction() Action {
	return Action{
		Kind:  ActionSwitchMode,
		Label: "Switch to quick answers",
		Mode:  ModeQuick,
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in a conversation transcript.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is mutable while IsStreaming is set.
	Content string `json:"content"`

	// Streaming and failure state
	IsStreaming bool   `json:"is_streaming"`
	IsError     bool   `json:"is_error"`
	ErrorDetail string `json:"error_detail,omitempty"`

	// Suggested follow-up actions (quick answers and error fallbacks)
	Actions []Action `json:"actions,omitempty"`

	// Assisted marks messages that belong to the networked conversation.
	Assisted bool `json:"assisted"`

	// IsGreeting marks the synthesized greeting; it is never sent as history.
	IsGreeting bool `json:"is_greeting,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string, assisted bool) Message {
	msg := NewMessage(RoleUser, content)
	msg.Assisted = assisted
	return msg
}

// NewAssistantMessage creates a completed assistant message.
func NewAssistantMessage(content string, assisted bool) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.Assisted = assisted
	return msg
}

// NewPlaceholder creates the empty, streaming assistant message that a
// streaming session fills in.
func NewPlaceholder() Message {
	msg := NewMessage(RoleAssistant, "")
	msg.IsStreaming = true
	msg.Assisted = true
	return msg
}

// NewGreeting creates a greeting message for the given mode.
func NewGreeting(mode Mode, content string, actions []Action) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.Assisted = mode == ModeAssisted
	msg.IsGreeting = true
	msg.Actions = actions
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a fragment to a streaming message. It is a no-op once
// streaming has finished.
func (m *Message) AppendToken(token string) {
	if m.IsStreaming {
		m.Content += token
	}
}

// FinalizeStream clears the streaming flag, keeping the content.
func (m *Message) FinalizeStream() {
	m.IsStreaming = false
}

// MarkError ends streaming in the error state. The partial content is
// discarded and detail is kept for display.
func (m *Message) MarkError(detail string, actions ...Action) {
	m.IsStreaming = false
	m.IsError = true
	m.Content = ""
	m.ErrorDetail = detail
	if len(actions) > 0 {
		m.Actions = append([]Action(nil), actions...)
	}
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	if m.Actions != nil {
		m.Actions = append([]Action(nil), m.Actions...)
	}
	return m
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.NewString()
}
