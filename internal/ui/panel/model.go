// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/ui/styles"
)

// FlashDuration is how long a local error line stays in the status area.
const FlashDuration = 4 * time.Second

// ItemLister loads the assessment items shown in the list.
type ItemLister interface {
	ListItems(ctx context.Context) ([]*model.AssessmentItem, error)
}

// focus is the surface receiving keys.
type focus int

const (
	focusItems focus = iota
	focusInput
	focusNotes
)

// =============================================================================
// MESSAGES
// =============================================================================

type itemsLoadedMsg struct {
	items []*model.AssessmentItem
	err   error
}

type flashExpiredMsg struct {
	seq int
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model of the panel.
type Model struct {
	core   *core.Model
	lister ItemLister
	ctx    context.Context
	theme  *styles.Theme
	keys   KeyMap

	help     help.Model
	input    textinput.Model
	notes    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	md       *markdown

	snap     core.Snapshot
	focus    focus
	selected int
	editing  string

	flash    string
	flashSeq int
	loading  bool

	width  int
	height int
}

// Options configure a panel.
type Options struct {
	// Page is the initial page context.
	Page string

	// Theme defaults to styles.NewTheme().
	Theme *styles.Theme
}

// New creates a panel over c. Items are loaded through lister on Init.
func New(ctx context.Context, c *core.Model, lister ItemLister, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}

	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "Ask about this page..."
	in.CharLimit = 4096
	in.PromptStyle = theme.InputPrompt

	notes := textinput.New()
	notes.Prompt = "notes: "
	notes.CharLimit = 8192
	notes.PromptStyle = theme.InputPrompt

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	mdStyle := "dark"
	switch {
	case theme.Plain():
		mdStyle = "notty"
	case !theme.IsDark:
		mdStyle = "light"
	}

	m := Model{
		core:     c,
		lister:   lister,
		ctx:      ctx,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		input:    in,
		notes:    notes,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		md:       newMarkdown(mdStyle),
		width:    theme.Width,
		height:   theme.Height,
	}
	if opts.Page != "" {
		c.Update(core.NavigateMsg{Page: opts.Page})
	}
	m.layout()
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.loadItems())
}

// Snapshot returns the last rendered snapshot.
func (m Model) Snapshot() core.Snapshot {
	return m.snap
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Streaming {
			m.refresh()
		}
		return m, cmd

	case itemsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			return m, m.setFlash("Could not load items: " + msg.err.Error())
		}
		return m.forward(core.LoadItemsMsg{Items: msg.items})

	case flashExpiredMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
			m.layout()
		}
		return m, nil
	}
	return m.forward(msg)
}

// forward hands msg to the core model and re-renders.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	_, cmd := m.core.Update(msg)
	m.refresh()
	return m, cmd
}

// call sends a request carrying a reply channel and returns its result.
func (m *Model) call(build func(chan<- error) tea.Msg) (tea.Cmd, error) {
	ch := make(chan error, 1)
	_, cmd := m.core.Update(build(ch))
	m.refresh()
	select {
	case err := <-ch:
		return cmd, err
	default:
		return cmd, nil
	}
}

func (m Model) loadItems() tea.Cmd {
	if m.lister == nil {
		return nil
	}
	lister, ctx := m.lister, m.ctx
	return func() tea.Msg {
		items, err := lister.ListItems(ctx)
		return itemsLoadedMsg{items: items, err: err}
	}
}

func (m *Model) setFlash(text string) tea.Cmd {
	m.flashSeq++
	m.flash = text
	m.layout()
	seq := m.flashSeq
	return tea.Tick(FlashDuration, func(time.Time) tea.Msg {
		return flashExpiredMsg{seq: seq}
	})
}

// refresh copies the core state and re-renders the conversation.
func (m *Model) refresh() {
	prevNotices := len(m.snap.Notices)
	m.snap = m.core.Snapshot()
	if len(m.snap.Notices) != prevNotices {
		m.layout()
	}
	if m.selected >= len(m.snap.Items) {
		m.selected = max(len(m.snap.Items)-1, 0)
	}
	if m.editing != "" {
		if _, ok := m.snap.Item(m.editing); !ok {
			m.stopEditing()
		}
	}
	if !m.snap.PanelOpen && m.focus == focusInput {
		m.focus = focusItems
		m.input.Blur()
	}

	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if follow || m.snap.Streaming {
		m.viewport.GotoBottom()
	}
}

// layout sizes the viewport and inputs to the terminal.
func (m *Model) layout() {
	width := max(m.width, 20)
	m.input.Width = max(width-4, 10)
	m.notes.Width = max(width-10, 10)
	m.md.SetWidth(max(width-4, 20))
	m.viewport.Width = width
	m.viewport.Height = max(m.bodyHeight(), 1)
	m.help.Width = width
}

// selectedItem returns the highlighted item.
func (m Model) selectedItem() (model.AssessmentItem, bool) {
	if m.selected < 0 || m.selected >= len(m.snap.Items) {
		return model.AssessmentItem{}, false
	}
	return m.snap.Items[m.selected], true
}
