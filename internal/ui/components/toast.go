// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/ui/styles"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/util"
)

// MaxVisibleToasts caps how many notices are stacked at once.
const MaxVisibleToasts = 3

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToast renders one failure notice.
func RenderToast(theme *styles.Theme, notice core.NoticeView, width int) string {
	maxWidth := 60
	if width > 0 && width-8 < maxWidth {
		maxWidth = width - 8
	}
	if maxWidth < 20 {
		maxWidth = 20
	}
	return theme.Toast.Width(maxWidth).Render(notice.Text)
}

// RenderToasts stacks the newest notices, newest at the bottom, right
// aligned to width. It returns "" when there is nothing to show.
func RenderToasts(theme *styles.Theme, notices []core.NoticeView, width int) string {
	if len(notices) == 0 {
		return ""
	}
	visible := notices
	if len(visible) > MaxVisibleToasts {
		visible = visible[len(visible)-MaxVisibleToasts:]
	}

	rendered := make([]string, 0, len(visible)+1)
	if hidden := len(notices) - len(visible); hidden > 0 {
		rendered = append(rendered, theme.Muted.Render(util.Plural(hidden, "more notice", "more notices")))
	}
	for _, n := range visible {
		rendered = append(rendered, RenderToast(theme, n, width))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width <= 0 {
		return stack
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}

// ToastHeight returns the rendered height of RenderToasts' output.
func ToastHeight(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
