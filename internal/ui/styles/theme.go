// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// Theme holds the styles of the assistant panel.
type Theme struct {
	ColorProfile termenv.Profile
	IsDark       bool

	Width  int
	Height int

	// Chrome
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	ModeActive  lipgloss.Style
	ModeIdle    lipgloss.Style
	Muted       lipgloss.Style

	// Conversation
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Greeting       lipgloss.Style
	ErrorText      lipgloss.Style
	Action         lipgloss.Style

	// Items
	ItemRow      lipgloss.Style
	ItemSelected lipgloss.Style
	Saving       lipgloss.Style

	// Input and notices
	InputPrompt lipgloss.Style
	Toast       lipgloss.Style
}

// NewTheme builds the theme for the current terminal. NO_COLOR and
// CLICOLOR_FORCE are honoured.
func NewTheme() *Theme {
	profile := termenv.EnvColorProfile()
	if profile == termenv.Ascii {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return NewThemeWithProfile(profile, lipgloss.HasDarkBackground())
}

// NewThemeWithProfile builds the theme for an explicit color profile.
func NewThemeWithProfile(profile termenv.Profile, dark bool) *Theme {
	t := &Theme{ColorProfile: profile, IsDark: dark, Width: 80, Height: 24}

	t.Header = lipgloss.NewStyle().Background(SurfaceDim).Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.StatusBar = lipgloss.NewStyle().Background(SurfaceDim).Foreground(TextSecondary).Padding(0, 1)
	t.ModeActive = lipgloss.NewStyle().Foreground(TextInverse).Background(Purple).Bold(true).Padding(0, 1)
	t.ModeIdle = lipgloss.NewStyle().Foreground(TextMuted).Padding(0, 1)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.Greeting = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.Action = lipgloss.NewStyle().Foreground(Cyan).Underline(true)

	t.ItemRow = lipgloss.NewStyle().Foreground(TextPrimary).Padding(0, 1)
	t.ItemSelected = lipgloss.NewStyle().Foreground(TextPrimary).Background(SelectionBg).Padding(0, 1)
	t.Saving = lipgloss.NewStyle().Foreground(Amber).Italic(true)

	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.Toast = lipgloss.NewStyle().
		Foreground(Rose).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)
	return t
}

// SetSize records the terminal size.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// Plain reports whether the terminal has no color support.
func (t *Theme) Plain() bool {
	return t.ColorProfile == termenv.Ascii
}

// Status renders an item status with its color and shape indicator.
func (t *Theme) Status(status model.Status) string {
	var color lipgloss.TerminalColor = TextMuted
	switch status {
	case model.StatusCompliant:
		color = Emerald
	case model.StatusPartial:
		color = Amber
	case model.StatusNonCompliant:
		color = Rose
	}
	label := StatusIndicators[string(status)] + " " + status.DisplayName()
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

// Mode renders a mode tab.
func (t *Theme) Mode(mode model.Mode, active bool) string {
	name := "Quick"
	if mode == model.ModeAssisted {
		name = "Assistant"
	}
	if active {
		return t.ModeActive.Render(name)
	}
	return t.ModeIdle.Render(name)
}
