// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+C cancels a running answer before it quits.
	if msg.String() == "ctrl+c" && m.snap.Streaming {
		return m.forward(core.CancelStreamMsg{})
	}
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Dismiss) {
		if len(m.snap.Notices) == 0 {
			return m, nil
		}
		return m.forward(core.DismissNoticeMsg{ID: m.snap.Notices[0].ID})
	}

	switch m.focus {
	case focusNotes:
		return m.handleNotesKey(msg)
	case focusInput:
		return m.handleInputKey(msg)
	default:
		return m.handleItemsKey(msg)
	}
}

func (m Model) handleItemsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.TogglePanel):
		return m.openPanel()
	case key.Matches(msg, m.keys.ToggleMode):
		return m.toggleMode()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	case msg.String() == "q":
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.snap.Items)-1 {
			m.selected++
		}
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.loadItems()
	case key.Matches(msg, m.keys.EditNotes):
		return m.startEditing()
	}

	for _, sk := range m.keys.statusKeys() {
		if key.Matches(msg, sk.binding) {
			return m.setStatus(model.Status(sk.status))
		}
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.snap.Streaming {
			return m.forward(core.CancelStreamMsg{})
		}
		return m.closePanel()
	case key.Matches(msg, m.keys.TogglePanel):
		return m.closePanel()
	case key.Matches(msg, m.keys.ToggleMode):
		return m.toggleMode()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleNotesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Submit) || key.Matches(msg, m.keys.Cancel) {
		m.stopEditing()
		return m, nil
	}

	before := m.notes.Value()
	var inputCmd tea.Cmd
	m.notes, inputCmd = m.notes.Update(msg)
	if m.notes.Value() == before {
		return m, inputCmd
	}

	id, notes := m.editing, m.notes.Value()
	cmd, err := m.call(func(reply chan<- error) tea.Msg {
		return core.SetItemNotesMsg{ItemID: id, Notes: notes, Reply: reply}
	})
	if err != nil {
		m.stopEditing()
		return m, tea.Batch(inputCmd, m.setFlash(err.Error()))
	}
	return m, tea.Batch(inputCmd, cmd)
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (m Model) openPanel() (tea.Model, tea.Cmd) {
	m.core.Update(core.OpenPanelMsg{})
	m.focus = focusInput
	cmd := m.input.Focus()
	m.refresh()
	m.viewport.GotoBottom()
	return m, cmd
}

func (m Model) closePanel() (tea.Model, tea.Cmd) {
	m.input.Blur()
	m.focus = focusItems
	return m.forward(core.ClosePanelMsg{})
}

func (m Model) toggleMode() (tea.Model, tea.Cmd) {
	next := model.ModeAssisted
	if m.snap.Visible == model.ModeAssisted {
		next = model.ModeQuick
	}
	cmd, err := m.call(func(reply chan<- error) tea.Msg {
		return core.ShowModeMsg{Mode: next, Reply: reply}
	})
	if err != nil {
		return m, m.setFlash(err.Error())
	}
	m.viewport.GotoBottom()
	return m, cmd
}

func (m Model) setStatus(status model.Status) (tea.Model, tea.Cmd) {
	item, ok := m.selectedItem()
	if !ok {
		return m, nil
	}
	cmd, err := m.call(func(reply chan<- error) tea.Msg {
		return core.SetItemStatusMsg{ItemID: item.ID, Status: status, Reply: reply}
	})
	if err != nil {
		return m, m.setFlash(err.Error())
	}
	return m, cmd
}

func (m Model) startEditing() (tea.Model, tea.Cmd) {
	item, ok := m.selectedItem()
	if !ok {
		return m, nil
	}
	m.editing = item.ID
	m.focus = focusNotes
	m.notes.SetValue(item.Notes)
	m.notes.CursorEnd()
	cmd := m.notes.Focus()
	m.layout()
	return m, cmd
}

func (m *Model) stopEditing() {
	m.editing = ""
	m.notes.Blur()
	if m.focus == focusNotes {
		m.focus = focusItems
	}
	m.layout()
}

// submit sends the input line, or runs it as a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.command(text)
	}

	mode := m.snap.Visible
	cmd, err := m.call(func(reply chan<- error) tea.Msg {
		return core.SendMessageMsg{Mode: mode, Text: text, Reply: reply}
	})
	if err != nil {
		// Keep the text so it can be sent once the answer finishes.
		return m, m.setFlash(err.Error())
	}
	m.input.Reset()
	m.viewport.GotoBottom()
	return m, cmd
}

// command runs a slash command typed in the input line.
//
//	/1 .. /9        choose a suggested action of the last answer
//	/quick          show the quick conversation
//	/assisted       show the assisted conversation
//	/page <name>    change the page context
//	/cancel         cancel the running answer
func (m Model) command(text string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(text)
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))

	if n, err := strconv.Atoi(name); err == nil {
		actions := lastActions(m.snap.Conversation(m.snap.Visible))
		if n < 1 || n > len(actions) {
			return m, m.setFlash(fmt.Sprintf("no action %d", n))
		}
		action := actions[n-1]
		cmd, err := m.call(func(reply chan<- error) tea.Msg {
			return core.ChooseActionMsg{Action: action, Reply: reply}
		})
		if err != nil {
			return m, m.setFlash(err.Error())
		}
		m.viewport.GotoBottom()
		return m, cmd
	}

	switch name {
	case "quick", "assisted":
		mode := model.Mode(name)
		cmd, err := m.call(func(reply chan<- error) tea.Msg {
			return core.ShowModeMsg{Mode: mode, Reply: reply}
		})
		if err != nil {
			return m, m.setFlash(err.Error())
		}
		return m, cmd
	case "page":
		if len(parts) < 2 {
			return m, m.setFlash("usage: /page <name>")
		}
		m.core.Update(core.NavigateMsg{Page: parts[1]})
		// Navigation closes the panel; this command came from inside it.
		return m.openPanel()
	case "cancel":
		return m.forward(core.CancelStreamMsg{})
	}
	return m, m.setFlash("unknown command: " + parts[0])
}

// lastActions returns the suggested actions of the newest message that has
// any.
func lastActions(conv *model.Conversation) []model.Action {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if msg := conv.Messages[i]; msg.Role == model.RoleAssistant && len(msg.Actions) > 0 {
			return msg.Actions
		}
		if conv.Messages[i].Role == model.RoleUser {
			return nil
		}
	}
	return nil
}
