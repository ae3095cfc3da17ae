// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/ui/components"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/util"
)

// Fixed rows around the body: header, input or hint line, status bar.
const (
	headerHeight    = 1
	inputAreaHeight = 1
	statusBarHeight = 1
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	sections := []string{m.renderHeader()}
	if m.snap.PanelOpen {
		sections = append(sections, m.viewport.View())
	} else {
		sections = append(sections, m.renderItems())
	}
	if toasts := components.RenderToasts(m.theme, m.snap.Notices, m.width); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, m.renderInput(), m.renderStatusBar())
	if m.help.ShowAll {
		sections = append(sections, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// bodyHeight is what is left for the item list or the conversation.
func (m Model) bodyHeight() int {
	reserved := headerHeight + inputAreaHeight + statusBarHeight
	reserved += components.ToastHeight(components.RenderToasts(m.theme, m.snap.Notices, m.width))
	if m.help.ShowAll {
		reserved += lipgloss.Height(m.help.View(m.keys))
	}
	return m.height - reserved
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("CSF Assistant")
	page := m.snap.Page
	if page == "" {
		page = "no page"
	}
	line := title + " " + m.theme.Muted.Render("· "+page)
	return m.theme.Header.Width(max(m.width, 1)).MaxHeight(headerHeight).Render(line)
}

func (m Model) renderInput() string {
	switch {
	case m.focus == focusNotes:
		return m.notes.View()
	case m.snap.PanelOpen:
		return m.input.View()
	case m.flash != "":
		return m.theme.ErrorText.Render(m.flash)
	default:
		return m.help.ShortHelpView(m.keys.ShortHelp())
	}
}

func (m Model) renderStatusBar() string {
	saving := 0
	for _, item := range m.snap.Items {
		if item.Saving {
			saving++
		}
	}
	hint := "? help"
	if m.snap.PanelOpen && m.flash != "" {
		hint = m.flash
	}
	bar := components.StatusBar{
		Mode:      m.snap.Visible,
		Page:      m.snap.Page,
		Streaming: m.snap.Streaming,
		Spinner:   m.spinner.View(),
		Saving:    saving,
		Hint:      hint,
	}
	return bar.Render(m.theme, m.width)
}

// =============================================================================
// ITEMS
// =============================================================================

func (m Model) renderItems() string {
	height := max(m.bodyHeight(), 1)
	if len(m.snap.Items) == 0 {
		text := "No assessment items loaded. Press r to reload."
		if m.loading {
			text = "Loading items..."
		}
		return lipgloss.NewStyle().Height(height).Render(m.theme.Muted.Render(text))
	}

	// Keep the selection in the window.
	start := 0
	if m.selected >= height {
		start = m.selected - height + 1
	}
	end := min(start+height, len(m.snap.Items))

	idWidth := 4
	for _, item := range m.snap.Items {
		idWidth = max(idWidth, util.StringWidth(item.ID))
	}
	idWidth = min(idWidth, 24)

	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, m.renderItemRow(m.snap.Items[i], i == m.selected, idWidth))
	}
	return lipgloss.NewStyle().Height(height).Render(strings.Join(rows, "\n"))
}

func (m Model) renderItemRow(item model.AssessmentItem, selected bool, idWidth int) string {
	status := m.theme.Status(item.Status)
	statusWidth := 22
	notesWidth := m.width - idWidth - statusWidth - 16
	line := fmt.Sprintf("%s  %s  %s",
		util.PadRight(item.ID, idWidth),
		status+strings.Repeat(" ", max(statusWidth-lipgloss.Width(status), 0)),
		util.Preview(item.Notes, max(notesWidth, 8)))
	if item.Saving {
		line += " " + m.theme.Saving.Render("saving…")
	}
	if selected {
		return m.theme.ItemSelected.Render(line)
	}
	return m.theme.ItemRow.Render(line)
}

// =============================================================================
// CONVERSATION
// =============================================================================

func (m Model) renderConversation() string {
	conv := m.snap.Conversation(m.snap.Visible)
	width := max(m.width-2, 20)
	keep := make(map[string]bool, len(conv.Messages))

	var b strings.Builder
	for i, msg := range conv.Messages {
		keep[msg.ID] = true
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, width))
	}
	m.md.Forget(keep)
	if len(conv.Messages) > 0 {
		if actions := lastActions(conv); len(actions) > 0 {
			b.WriteString("\n")
			for i, a := range actions {
				fmt.Fprintf(&b, "\n  %s %s", m.theme.Muted.Render(fmt.Sprintf("/%d", i+1)), m.theme.Action.Render(a.Label))
			}
		}
	}
	return b.String()
}

func (m Model) renderMessage(msg model.Message, width int) string {
	wrap := lipgloss.NewStyle().Width(width)
	if msg.Role == model.RoleUser {
		return m.theme.UserLabel.Render("You") + "\n" + wrap.Render(msg.Content)
	}

	label := m.theme.AssistantLabel.Render("Assistant")
	switch {
	case msg.IsGreeting:
		return label + "\n" + m.theme.Greeting.Width(width).Render(msg.Content)
	case msg.IsStreaming && msg.Content == "":
		return label + "\n" + m.theme.Muted.Render(m.spinner.View()+" thinking")
	case msg.IsStreaming:
		return label + "\n" + wrap.Render(msg.Content+" "+m.spinner.View())
	case msg.IsError:
		body := ""
		if msg.Content != "" {
			body = wrap.Render(msg.Content) + "\n"
		}
		return label + "\n" + body + m.theme.ErrorText.Width(width).Render(msg.ErrorDetail)
	default:
		return label + "\n" + m.md.Render(msg.ID, msg.Content)
	}
}
