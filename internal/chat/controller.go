// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/api"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/logger"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/stream"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/telemetry"
)

// ErrSessionActive is returned when a session is started while another one
// is still running.
var ErrSessionActive = errors.New("a streaming session is already active")

// Opener opens the assistant response stream.
type Opener interface {
	OpenChatStream(ctx context.Context, req api.ChatRequest) (stream.ChunkSource, error)
}

// Transcript is the subset of the transcript store a session writes to.
type Transcript interface {
	Append(mode model.Mode, msg model.Message) error
	Update(mode model.Mode, id string, patch func(*model.Message)) bool
	Remove(mode model.Mode, id string) bool
}

// Handle identifies a started session.
type Handle struct {
	SessionID string
	MessageID string
	Mode      model.Mode
}

// session is the state of one in-flight streaming request.
type session struct {
	Handle
	ctx     context.Context
	cm      *cancelManager
	source  stream.ChunkSource
	decoder *stream.Decoder
	stats   *model.Statistics
	errored bool
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the lifecycle of the streaming session. All methods must
// be called from the event loop; I/O happens in the returned commands.
type Controller struct {
	opener     Opener
	transcript Transcript
	parent     context.Context
	log        *logger.Logger
	metrics    *telemetry.Metrics

	active *session
}

// NewController creates a controller writing into transcript.
func NewController(opener Opener, transcript Transcript) *Controller {
	return &Controller{
		opener:     opener,
		transcript: transcript,
		parent:     context.Background(),
		log:        logger.Nop(),
	}
}

// WithLogger sets the logger.
func (c *Controller) WithLogger(log *logger.Logger) *Controller {
	c.log = log.Component("chat")
	return c
}

// WithMetrics sets the metrics sink.
func (c *Controller) WithMetrics(m *telemetry.Metrics) *Controller {
	c.metrics = m
	return c
}

// WithContext sets the parent context of every session.
func (c *Controller) WithContext(ctx context.Context) *Controller {
	c.parent = ctx
	return c
}

// Active returns the running session, if any.
func (c *Controller) Active() (Handle, bool) {
	if c.active == nil {
		return Handle{}, false
	}
	return c.active.Handle, true
}

// Start appends the placeholder assistant message to mode's conversation and
// returns the command that opens the stream.
func (c *Controller) Start(mode model.Mode, history []api.ChatTurn, pageContext string) (Handle, tea.Cmd, error) {
	if c.active != nil {
		return Handle{}, nil, ErrSessionActive
	}

	placeholder := model.NewPlaceholder()
	placeholder.Assisted = mode == model.ModeAssisted
	if err := c.transcript.Append(mode, placeholder); err != nil {
		return Handle{}, nil, fmt.Errorf("failed to append placeholder: %w", err)
	}

	ctx, cm := newCancelManager(c.parent)
	s := &session{
		Handle: Handle{
			SessionID: uuid.NewString(),
			MessageID: placeholder.ID,
			Mode:      mode,
		},
		ctx:     ctx,
		cm:      cm,
		decoder: stream.NewDecoder(),
		stats:   model.NewStatistics(),
	}
	c.active = s

	c.log.Debug().
		Str("session", s.SessionID).
		Int("history", len(history)).
		Msg("session started")

	req := api.ChatRequest{Messages: history, Context: pageContext}
	opener, id := c.opener, s.SessionID
	open := func() tea.Msg {
		src, err := opener.OpenChatStream(ctx, req)
		if err != nil {
			return StreamOpenFailedMsg{SessionID: id, Err: err}
		}
		return StreamOpenedMsg{SessionID: id, Source: src}
	}
	return s.Handle, open, nil
}

// Update applies a session message and returns the next command. Messages
// for sessions that are no longer active are dropped.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case StreamOpenedMsg:
		s := c.lookup(msg.SessionID)
		if s == nil {
			// Cancelled while opening.
			if msg.Source != nil {
				msg.Source.Close()
			}
			return nil
		}
		s.source = msg.Source
		return c.read(s)

	case StreamOpenFailedMsg:
		s := c.lookup(msg.SessionID)
		if s == nil {
			return nil
		}
		return c.fail(s, msg.Err)

	case StreamChunkMsg:
		s := c.lookup(msg.SessionID)
		if s == nil {
			return nil
		}
		c.apply(s, s.decoder.Feed(msg.Data))
		if s.decoder.Done() {
			return c.finish(s)
		}
		return c.read(s)

	case StreamEndMsg:
		s := c.lookup(msg.SessionID)
		if s == nil {
			return nil
		}
		if msg.Err != nil {
			return c.fail(s, msg.Err)
		}
		c.apply(s, s.decoder.Flush())
		return c.finish(s)
	}
	return nil
}

// CancelActive cancels the running session, if any. The network read is
// aborted, the placeholder stops streaming (and is removed if nothing
// arrived), and no later result of the session touches the transcript.
// Calling it again is a no-op.
func (c *Controller) CancelActive() bool {
	s := c.active
	if s == nil {
		return false
	}
	c.active = nil
	if !s.cm.cancel() {
		return false
	}
	if s.source != nil {
		s.source.Close()
	}

	empty := false
	c.transcript.Update(s.Mode, s.MessageID, func(m *model.Message) {
		m.FinalizeStream()
		empty = m.IsEmpty()
	})
	if empty {
		c.transcript.Remove(s.Mode, s.MessageID)
	}

	c.record(s, telemetry.OutcomeCancelled)
	return true
}

// =============================================================================
// INTERNALS
// =============================================================================

func (c *Controller) lookup(id string) *session {
	if c.active == nil || c.active.SessionID != id {
		return nil
	}
	return c.active
}

// read returns the command that pulls the next chunk. Only one read is
// outstanding at a time, which keeps chunks in arrival order.
func (c *Controller) read(s *session) tea.Cmd {
	src, ctx, id := s.source, s.ctx, s.SessionID
	return func() tea.Msg {
		data, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return StreamEndMsg{SessionID: id}
			}
			return StreamEndMsg{SessionID: id, Err: err}
		}
		return StreamChunkMsg{SessionID: id, Data: data}
	}
}

func (c *Controller) apply(s *session, evs []stream.Event) {
	if len(evs) == 0 {
		return
	}
	for _, ev := range evs {
		switch ev.Kind {
		case stream.EventAppend:
			s.stats.RecordToken()
		case stream.EventError:
			s.errored = true
			c.log.Warn().Str("session", s.SessionID).Str("error", ev.Text).Msg("assistant reported an error")
		}
	}
	c.transcript.Update(s.Mode, s.MessageID, func(m *model.Message) {
		*m = ApplyEvents(*m, evs)
	})
}

// finish ends a session that reached completion, an error record or a clean
// end of stream. A response that ends without any text is a failure.
func (c *Controller) finish(s *session) tea.Cmd {
	if s.errored {
		return c.end(s, telemetry.OutcomeErrored)
	}
	// A clean end without the sentinel counts as completion.
	empty := false
	c.transcript.Update(s.Mode, s.MessageID, func(m *model.Message) {
		m.FinalizeStream()
		empty = m.IsEmpty()
	})
	if empty {
		return c.fail(s, api.ErrNoBody)
	}
	return c.end(s, telemetry.OutcomeCompleted)
}

// fail marks the placeholder as a transport failure and suggests the
// non-networked mode.
func (c *Controller) fail(s *session, err error) tea.Cmd {
	if s.ctx.Err() != nil {
		// The parent context went away; that is a cancellation, not a failure.
		c.CancelActive()
		return nil
	}
	c.log.Warn().Err(err).Str("session", s.SessionID).Msg("assistant stream failed")
	c.transcript.Update(s.Mode, s.MessageID, func(m *model.Message) {
		m.MarkError(describeFailure(err), model.FallbackAction())
	})
	return c.end(s, telemetry.OutcomeFailed)
}

func (c *Controller) end(s *session, outcome string) tea.Cmd {
	c.active = nil
	if s.source != nil {
		s.source.Close()
	}
	s.cm.release()
	c.record(s, outcome)

	done := SessionDoneMsg{SessionID: s.SessionID, MessageID: s.MessageID, Outcome: outcome}
	return func() tea.Msg { return done }
}

func (c *Controller) record(s *session, outcome string) {
	s.stats.Dropped = s.decoder.Dropped()
	s.stats.Finalize()
	c.metrics.RecordSession(outcome, s.stats.TTFT, s.stats.TotalDuration, s.stats.Tokens, s.stats.Dropped)
	c.log.Info().
		Str("session", s.SessionID).
		Str("outcome", outcome).
		Int("tokens", s.stats.Tokens).
		Int("dropped", s.stats.Dropped).
		Dur("ttft", s.stats.TTFT).
		Dur("duration", s.stats.TotalDuration).
		Msg("session ended")
}

// describeFailure turns a transport error into display text.
func describeFailure(err error) string {
	var statusErr *api.StatusError
	switch {
	case errors.Is(err, api.ErrRateLimited):
		return "The assistant is busy. Please try again in a moment."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("The assistant service returned an error (HTTP %d).", statusErr.Status)
	case errors.Is(err, api.ErrNoBody):
		return "The assistant returned an empty response."
	default:
		return "Could not reach the assistant."
	}
}
