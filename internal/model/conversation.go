// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// MaxMessages is the maximum number of messages kept per conversation.
// When exceeded, the oldest messages are pruned.
const MaxMessages = 500

// =============================================================================
// MODE TYPE
// =============================================================================

// Mode selects one of the two independent conversations of a page visit.
type Mode string

const (
	// ModeQuick is the non-networked, canned-answer conversation.
	ModeQuick Mode = "quick"
	// ModeAssisted is the networked, streaming conversation.
	ModeAssisted Mode = "assisted"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeQuick, ModeAssisted}

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeQuick || m == ModeAssisted
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return mode, nil
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an insertion-ordered message log for one mode.
type Conversation struct {
	Mode     Mode      `json:"mode"`
	Messages []Message `json:"messages"`
}

// NewConversation creates an empty conversation for mode.
func NewConversation(mode Mode) *Conversation {
	return &Conversation{
		Mode:     mode,
		Messages: make([]Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message to the conversation.
func (c *Conversation) AddMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.pruneOldMessages()
}

// GetMessageByID returns a pointer to the stored message, or nil.
func (c *Conversation) GetMessageByID(id string) *Message {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return &c.Messages[i]
		}
	}
	return nil
}

// RemoveMessage removes a message by ID.
func (c *Conversation) RemoveMessage(id string) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return true
		}
	}
	return false
}

// StreamingMessage returns the message currently being streamed, or nil.
func (c *Conversation) StreamingMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].IsStreaming {
			return &c.Messages[i]
		}
	}
	return nil
}

// ClearHistory removes all messages from the conversation.
func (c *Conversation) ClearHistory() {
	c.Messages = make([]Message, 0)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Clone returns a deep copy that shares no state with c.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{
		Mode:     c.Mode,
		Messages: make([]Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		out.Messages[i] = msg.Clone()
	}
	return out
}

// pruneOldMessages drops the oldest messages beyond MaxMessages. A streaming
// message is always the newest entry so it is never pruned.
func (c *Conversation) pruneOldMessages() {
	if len(c.Messages) <= MaxMessages {
		return
	}
	excess := len(c.Messages) - MaxMessages
	c.Messages = append(c.Messages[:0:0], c.Messages[excess:]...)
}
