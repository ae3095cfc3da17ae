// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"fmt"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// ErrUnknownMode is returned for a mode outside model.Modes.
var ErrUnknownMode = errors.New("unknown conversation mode")

// Greeter supplies the page-dependent opening of the quick conversation.
type Greeter interface {
	Greeting(page string) (string, []model.Action)
}

// GreeterFunc adapts a function to Greeter.
type GreeterFunc func(page string) (string, []model.Action)

// Greeting calls f.
func (f GreeterFunc) Greeting(page string) (string, []model.Action) {
	return f(page)
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the two conversations of a page visit and the panel state.
// It is owned by the event loop and is not safe for concurrent use.
type Store struct {
	conversations map[model.Mode]*model.Conversation
	seeded        map[model.Mode]bool

	greeter          Greeter
	assistedGreeting string

	visible model.Mode
	open    bool
	page    string
}

// New creates a store whose visible mode starts at mode.
func New(greeter Greeter, assistedGreeting string, mode model.Mode) *Store {
	if !mode.Valid() {
		mode = model.ModeQuick
	}
	s := &Store{
		conversations:    make(map[model.Mode]*model.Conversation, len(model.Modes)),
		seeded:           make(map[model.Mode]bool, len(model.Modes)),
		greeter:          greeter,
		assistedGreeting: assistedGreeting,
		visible:          mode,
	}
	for _, m := range model.Modes {
		s.conversations[m] = model.NewConversation(m)
	}
	return s
}

// Conversation returns a deep copy of the conversation for mode, or nil.
func (s *Store) Conversation(mode model.Mode) *model.Conversation {
	conv, ok := s.conversations[mode]
	if !ok {
		return nil
	}
	return conv.Clone()
}

// Append adds msg to the end of the conversation for mode.
func (s *Store) Append(mode model.Mode, msg model.Message) error {
	conv, ok := s.conversations[mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if msg.IsStreaming && conv.StreamingMessage() != nil {
		return fmt.Errorf("conversation %s already has a streaming message", mode)
	}
	conv.AddMessage(msg)
	return nil
}

// Update applies patch to the message id in place. It reports whether the
// message was found.
func (s *Store) Update(mode model.Mode, id string, patch func(*model.Message)) bool {
	conv, ok := s.conversations[mode]
	if !ok {
		return false
	}
	msg := conv.GetMessageByID(id)
	if msg == nil {
		return false
	}
	patch(msg)
	return true
}

// Message returns a copy of message id.
func (s *Store) Message(mode model.Mode, id string) (model.Message, bool) {
	conv, ok := s.conversations[mode]
	if !ok {
		return model.Message{}, false
	}
	msg := conv.GetMessageByID(id)
	if msg == nil {
		return model.Message{}, false
	}
	return msg.Clone(), true
}

// Remove deletes message id.
func (s *Store) Remove(mode model.Mode, id string) bool {
	conv, ok := s.conversations[mode]
	if !ok {
		return false
	}
	return conv.RemoveMessage(id)
}

// Reset empties the conversation for mode. The greeting will be seeded again
// on its next visible use.
func (s *Store) Reset(mode model.Mode) {
	if conv, ok := s.conversations[mode]; ok {
		conv.ClearHistory()
		delete(s.seeded, mode)
	}
}

// =============================================================================
// MODE LIFECYCLE
// =============================================================================

// Visible returns the visible mode.
func (s *Store) Visible() model.Mode {
	return s.visible
}

// Show makes mode the visible conversation. Message content of either
// conversation is never touched, apart from the one-time greeting seed when
// the panel is open.
func (s *Store) Show(mode model.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	s.visible = mode
	if s.open {
		s.seed(mode)
	}
	return nil
}

// Open opens the panel on the visible conversation.
func (s *Store) Open() {
	s.open = true
	s.seed(s.visible)
}

// Close closes the panel. Conversations are kept.
func (s *Store) Close() {
	s.open = false
}

// IsOpen reports whether the panel is open.
func (s *Store) IsOpen() bool {
	return s.open
}

// Page returns the current page context.
func (s *Store) Page() string {
	return s.page
}

// Navigate moves to a new page context: both conversations are emptied, the
// greeting seeds are re-armed and the panel is closed. Cancelling an active
// session is the caller's job and must happen first.
func (s *Store) Navigate(page string) {
	for _, m := range model.Modes {
		s.Reset(m)
	}
	s.open = false
	s.page = page
}

// seed appends the greeting the first time mode is shown in a page visit.
func (s *Store) seed(mode model.Mode) {
	if s.seeded[mode] {
		return
	}
	s.seeded[mode] = true

	conv := s.conversations[mode]
	if !conv.IsEmpty() {
		return
	}
	switch mode {
	case model.ModeAssisted:
		conv.AddMessage(model.NewGreeting(mode, s.assistedGreeting, nil))
	default:
		content, actions := "", []model.Action(nil)
		if s.greeter != nil {
			content, actions = s.greeter.Greeting(s.page)
		}
		if content == "" {
			return
		}
		conv.AddMessage(model.NewGreeting(mode, content, actions))
	}
}
