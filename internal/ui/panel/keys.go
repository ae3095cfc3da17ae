// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of the panel.
type KeyMap struct {
	// Global
	TogglePanel key.Binding
	ToggleMode  key.Binding
	Cancel      key.Binding
	Quit        key.Binding
	Help        key.Binding
	Dismiss     key.Binding

	// Conversation
	Submit   key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Items
	Up            key.Binding
	Down          key.Binding
	Compliant     key.Binding
	Partial       key.Binding
	NonCompliant  key.Binding
	NotApplicable key.Binding
	NotAssessed   key.Binding
	EditNotes     key.Binding
	Reload        key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		TogglePanel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "assistant panel"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "quick/assistant"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel/close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q", "ctrl+c"),
			key.WithHelp("C-q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "dismiss notice"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous item"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next item"),
		),
		Compliant: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "compliant"),
		),
		Partial: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "partial"),
		),
		NonCompliant: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "non-compliant"),
		),
		NotApplicable: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "not applicable"),
		),
		NotAssessed: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "not assessed"),
		),
		EditNotes: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "edit notes"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload items"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TogglePanel, k.ToggleMode, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.EditNotes, k.Reload},
		{k.Compliant, k.Partial, k.NonCompliant, k.NotApplicable, k.NotAssessed},
		{k.Submit, k.PageUp, k.PageDown, k.Cancel},
		{k.TogglePanel, k.ToggleMode, k.Dismiss, k.Quit},
	}
}

// statusKeys maps the status bindings to their values.
func (k KeyMap) statusKeys() []statusKey {
	return []statusKey{
		{k.Compliant, "compliant"},
		{k.Partial, "partial"},
		{k.NonCompliant, "non_compliant"},
		{k.NotApplicable, "not_applicable"},
		{k.NotAssessed, "not_assessed"},
	}
}

type statusKey struct {
	binding key.Binding
	status  string
}
