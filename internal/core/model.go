// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/unicode/norm"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/chat"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/config"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/logger"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/mutation"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/prefs"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/telemetry"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/transcript"
)

var (
	// ErrSessionActive is returned when an assisted message is sent while a
	// response is still streaming.
	ErrSessionActive = chat.ErrSessionActive

	// ErrEmptyMessage is returned for blank user text.
	ErrEmptyMessage = errors.New("message is empty")
)

// KnowledgeBase answers quick-mode questions without the network.
type KnowledgeBase interface {
	Greeting(page string) (string, []model.Action)
	Answer(page, question string) (string, []model.Action)
}

// Deps are the collaborators of a Model. Chat and Items are required.
type Deps struct {
	Config  *config.Config
	Chat    chat.Opener
	Items   mutation.Persister
	KB      KnowledgeBase
	Prefs   prefs.Store
	Log     *logger.Logger
	Metrics *telemetry.Metrics
}

// =============================================================================
// MODEL
// =============================================================================

// Model owns the assistant transcript, the streaming session and the shared
// assessment items. It must only be driven from one event loop.
type Model struct {
	cfg     *config.Config
	kb      KnowledgeBase
	store   *transcript.Store
	chat    *chat.Controller
	engine  *mutation.Engine
	prefs   prefs.Store
	current prefs.Prefs
	log     *logger.Logger

	notices   []*mutation.Notice
	observers []func(Snapshot)
}

// New creates a model. The remembered mode preference, when present,
// selects the initially visible conversation.
func New(ctx context.Context, deps Deps) *Model {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	kb := deps.KB
	if kb == nil {
		kb = FallbackKnowledgeBase{}
	}
	store := deps.Prefs
	if store == nil {
		store = prefs.NewMemoryStore(prefs.Prefs{})
	}

	mode, err := model.ParseMode(cfg.Assistant.DefaultMode)
	if err != nil {
		mode = model.ModeQuick
	}
	current, err := store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load preferences")
	}
	if current.Mode.Valid() {
		mode = current.Mode
	}

	m := &Model{
		cfg:     cfg,
		kb:      kb,
		prefs:   store,
		current: current,
		log:     log.Component("core"),
	}
	m.store = transcript.New(transcript.GreeterFunc(func(page string) (string, []model.Action) {
		return m.kb.Greeting(page)
	}), cfg.Assistant.AssistedGreeting, mode)
	m.chat = chat.NewController(deps.Chat, m.store).
		WithLogger(log).
		WithMetrics(deps.Metrics).
		WithContext(ctx)
	m.engine = mutation.NewEngine(deps.Items, cfg.Statuses(), cfg.NotesDebounce()).
		WithLogger(log).
		WithMetrics(deps.Metrics).
		WithContext(ctx)
	return m
}

// Subscribe registers an observer. Call it before the model runs, or send a
// SubscribeMsg from other goroutines.
func (m *Model) Subscribe(fn func(Snapshot)) {
	if fn != nil {
		m.observers = append(m.observers, fn)
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// View implements tea.Model. The core has no presentation of its own.
func (m *Model) View() string {
	return ""
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd, changed := m.handle(msg)
	if changed {
		m.publish()
	}
	return m, cmd
}

func (m *Model) handle(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case SendMessageMsg:
		cmd, err := m.send(msg.Mode, msg.Text)
		reply(msg.Reply, err)
		return cmd, err == nil

	case CancelStreamMsg:
		return nil, m.chat.CancelActive()

	case SetItemStatusMsg:
		cmd, err := m.engine.SetStatus(msg.ItemID, msg.Status)
		reply(msg.Reply, err)
		return cmd, err == nil

	case SetItemNotesMsg:
		cmd, err := m.engine.SetNotes(msg.ItemID, msg.Notes)
		reply(msg.Reply, err)
		return cmd, err == nil

	case NavigateMsg:
		m.navigate(msg.Page)
		return nil, true

	case ShowModeMsg:
		err := m.showMode(msg.Mode)
		reply(msg.Reply, err)
		return nil, err == nil

	case OpenPanelMsg:
		m.openPanel()
		return nil, true

	case ClosePanelMsg:
		m.store.Close()
		return nil, true

	case LoadItemsMsg:
		m.engine.Load(msg.Items)
		return nil, true

	case DismissNoticeMsg:
		return nil, m.dropNotice(msg.ID)

	case noticeExpiredMsg:
		return nil, m.dropNotice(msg.id)

	case ChooseActionMsg:
		cmd, err := m.choose(msg.Action)
		reply(msg.Reply, err)
		return cmd, err == nil

	case SubscribeMsg:
		m.Subscribe(msg.Observer)
		if msg.Observer != nil {
			msg.Observer(m.Snapshot())
		}
		return nil, false

	case SnapshotRequestMsg:
		if msg.Reply != nil {
			msg.Reply <- m.Snapshot()
		}
		return nil, false

	case chat.StreamOpenedMsg, chat.StreamOpenFailedMsg, chat.StreamChunkMsg, chat.StreamEndMsg:
		return m.chat.Update(msg), true

	case chat.SessionDoneMsg:
		return nil, false

	case mutation.FlushMsg, mutation.ResultMsg:
		cmd, notice := m.engine.Update(msg)
		if notice != nil {
			cmd = tea.Batch(cmd, m.addNotice(notice))
		}
		return cmd, true
	}
	return nil, false
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (m *Model) send(mode model.Mode, text string) (tea.Cmd, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return nil, ErrEmptyMessage
	}
	switch mode {
	case model.ModeQuick:
		if err := m.store.Append(mode, model.NewUserMessage(text, false)); err != nil {
			return nil, err
		}
		answer, actions := m.kb.Answer(m.store.Page(), text)
		msg := model.NewAssistantMessage(answer, false)
		msg.Actions = actions
		return nil, m.store.Append(mode, msg)

	case model.ModeAssisted:
		if _, active := m.chat.Active(); active {
			return nil, ErrSessionActive
		}
		history := chat.BuildHistory(m.store.Conversation(mode), text, m.cfg.Assistant.HistoryTurns)
		if err := m.store.Append(mode, model.NewUserMessage(text, true)); err != nil {
			return nil, err
		}
		_, cmd, err := m.chat.Start(mode, history, m.store.Page())
		return cmd, err

	default:
		return nil, fmt.Errorf("%w: %q", transcript.ErrUnknownMode, mode)
	}
}

// navigate cancels the running session before the transcript is reset, so
// nothing the session still produces can reach the new page's conversations.
func (m *Model) navigate(page string) {
	m.chat.CancelActive()
	m.store.Navigate(page)
	m.log.Debug().Str("page", page).Msg("page context changed")
}

func (m *Model) showMode(mode model.Mode) error {
	if err := m.store.Show(mode); err != nil {
		return err
	}
	if m.current.Mode != mode {
		m.current.Mode = mode
		m.savePrefs()
	}
	return nil
}

func (m *Model) openPanel() {
	m.store.Open()
	if !m.current.SeenBubble {
		m.current.SeenBubble = true
		m.savePrefs()
	}
}

func (m *Model) choose(action model.Action) (tea.Cmd, error) {
	switch action.Kind {
	case model.ActionAsk:
		return m.send(m.store.Visible(), action.Label)
	case model.ActionSwitchMode:
		return nil, m.showMode(action.Mode)
	default:
		return nil, fmt.Errorf("unknown action %q", action.Kind)
	}
}

func (m *Model) savePrefs() {
	if err := m.prefs.Save(m.current); err != nil {
		m.log.Warn().Err(err).Msg("could not save preferences")
	}
}

// =============================================================================
// NOTICES
// =============================================================================

func (m *Model) addNotice(n *mutation.Notice) tea.Cmd {
	m.notices = append(m.notices, n)
	ttl := m.cfg.NoticeTTL()
	if ttl <= 0 {
		return nil
	}
	id := n.ID
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func (m *Model) dropNotice(id string) bool {
	for i, n := range m.notices {
		if n.ID == id {
			m.notices = append(m.notices[:i], m.notices[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Model) publish() {
	if len(m.observers) == 0 {
		return
	}
	snap := m.Snapshot()
	for _, fn := range m.observers {
		fn(snap)
	}
}
