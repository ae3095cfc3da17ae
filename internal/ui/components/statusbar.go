// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/ui/styles"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar describes the bottom line of the panel.
type StatusBar struct {
	Mode      model.Mode
	Page      string
	Streaming bool
	Spinner   string
	Saving    int
	Hint      string
}

// Render renders the bar at width. The hint is dropped first when the
// terminal is narrow.
func (s StatusBar) Render(theme *styles.Theme, width int) string {
	left := []string{
		theme.Mode(model.ModeQuick, s.Mode == model.ModeQuick),
		theme.Mode(model.ModeAssisted, s.Mode == model.ModeAssisted),
	}
	if s.Page != "" {
		left = append(left, theme.Muted.Render("page: "+s.Page))
	}
	if s.Streaming {
		left = append(left, theme.AssistantLabel.Render(s.Spinner+" answering"))
	}
	if s.Saving > 0 {
		left = append(left, theme.Saving.Render("saving "+util.Plural(s.Saving, "item", "items")))
	}
	line := strings.Join(left, " ")

	if s.Hint != "" {
		gap := width - lipgloss.Width(line) - lipgloss.Width(s.Hint) - 2
		if gap > 0 {
			line += strings.Repeat(" ", gap) + theme.Muted.Render(s.Hint)
		}
	}
	if width > 2 {
		return theme.StatusBar.Width(width).MaxWidth(width).Render(line)
	}
	return theme.StatusBar.Render(line)
}
