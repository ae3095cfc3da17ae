// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/api"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/stream"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/telemetry"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/transcript"
)

type fakeOpener struct {
	src  stream.ChunkSource
	err  error
	reqs []api.ChatRequest
}

func (f *fakeOpener) OpenChatStream(ctx context.Context, req api.ChatRequest) (stream.ChunkSource, error) {
	f.reqs = append(f.reqs, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.src, nil
}

func newTestController(opener Opener) (*Controller, *transcript.Store) {
	store := transcript.New(nil, "hello", model.ModeAssisted)
	return NewController(opener, store), store
}

// drain runs cmd and feeds every resulting message back into the controller
// until no command is left.
func drain(c *Controller, cmd tea.Cmd) []tea.Msg {
	var seen []tea.Msg
	for cmd != nil {
		msg := cmd()
		seen = append(seen, msg)
		cmd = c.Update(msg)
	}
	return seen
}

func placeholder(t *testing.T, store *transcript.Store, h Handle) model.Message {
	t.Helper()
	msg, ok := store.Message(h.Mode, h.MessageID)
	require.True(t, ok, "placeholder missing")
	return msg
}

// =============================================================================
// APPLY EVENT
// =============================================================================

func TestApplyEvent_Transitions(t *testing.T) {
	msg := model.NewPlaceholder()

	msg = ApplyEvent(msg, stream.Event{Kind: stream.EventAppend, Text: "Least "})
	msg = ApplyEvent(msg, stream.Event{Kind: stream.EventAppend, Text: "privilege"})
	assert.Equal(t, "Least privilege", msg.Content)
	assert.True(t, msg.IsStreaming)

	done := ApplyEvent(msg, stream.Event{Kind: stream.EventDone})
	assert.False(t, done.IsStreaming)
	assert.False(t, done.IsError)
	assert.Equal(t, "Least privilege", done.Content)

	// Finished messages ignore further events.
	assert.Equal(t, done, ApplyEvent(done, stream.Event{Kind: stream.EventAppend, Text: "late"}))

	failed := ApplyEvent(msg, stream.Event{Kind: stream.EventError, Text: "overloaded"})
	assert.True(t, failed.IsError)
	assert.False(t, failed.IsStreaming)
	assert.Empty(t, failed.Content)
	assert.Equal(t, "overloaded", failed.ErrorDetail)

	// The input is left untouched.
	assert.True(t, msg.IsStreaming)
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

func TestController_StreamsIntoPlaceholder(t *testing.T) {
	raw := "data: {\"token\": \"Access \"}\ndata: {\"token\": \"control\"}\ndata: [DONE]\n"
	var chunks []string
	for len(raw) > 7 {
		chunks, raw = append(chunks, raw[:7]), raw[7:]
	}
	opener := &fakeOpener{src: stream.NewSliceSource(append(chunks, raw)...)}
	c, store := newTestController(opener)

	h, cmd, err := c.Start(model.ModeAssisted, []api.ChatTurn{{Role: "user", Content: "q"}}, "PR.AA")
	require.NoError(t, err)

	msg := placeholder(t, store, h)
	assert.True(t, msg.IsStreaming)
	assert.Empty(t, msg.Content)

	seen := drain(c, cmd)
	require.NotEmpty(t, seen)
	assert.Equal(t, SessionDoneMsg{SessionID: h.SessionID, MessageID: h.MessageID, Outcome: telemetry.OutcomeCompleted}, seen[len(seen)-1])

	msg = placeholder(t, store, h)
	assert.Equal(t, "Access control", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, msg.IsError)

	_, active := c.Active()
	assert.False(t, active)
	require.Len(t, opener.reqs, 1)
	assert.Equal(t, "PR.AA", opener.reqs[0].Context)
}

func TestController_MalformedRecordDropped(t *testing.T) {
	raw := "data: {\"token\": \"first \"}\ndata: {oops\ndata: {\"token\": \"second\"}\ndata: [DONE]\n"
	c, store := newTestController(&fakeOpener{src: stream.NewSliceSource(raw)})

	h, cmd, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)
	drain(c, cmd)

	assert.Equal(t, "first second", placeholder(t, store, h).Content)
}

func TestController_CleanEOFCompletes(t *testing.T) {
	c, store := newTestController(&fakeOpener{src: stream.NewSliceSource("data: {\"token\": \"no sentinel\"}")})

	h, cmd, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)
	drain(c, cmd)

	msg := placeholder(t, store, h)
	assert.Equal(t, "no sentinel", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, msg.IsError)
}

func TestController_EmptyResponseFails(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
	}{
		{"no bytes", nil},
		{"only dropped records", []string{"event: ping\n", ": keepalive\n"}},
		{"sentinel without text", []string{"data: [DONE]\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestController(&fakeOpener{src: stream.NewSliceSource(tt.chunks...)})

			h, cmd, err := c.Start(model.ModeAssisted, nil, "")
			require.NoError(t, err)
			seen := drain(c, cmd)

			msg := placeholder(t, store, h)
			assert.False(t, msg.IsStreaming)
			assert.True(t, msg.IsError)
			assert.Equal(t, describeFailure(api.ErrNoBody), msg.ErrorDetail)
			require.Len(t, msg.Actions, 1)
			assert.Equal(t, model.FallbackAction(), msg.Actions[0])
			assert.Equal(t, telemetry.OutcomeFailed, seen[len(seen)-1].(SessionDoneMsg).Outcome)
			_, active := c.Active()
			assert.False(t, active)
		})
	}
}

func TestController_ErrorRecord(t *testing.T) {
	c, store := newTestController(&fakeOpener{src: stream.NewSliceSource(
		"data: {\"token\": \"partial\"}\n",
		"data: {\"error\": \"model overloaded\"}\n",
	)})

	h, cmd, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)
	seen := drain(c, cmd)

	msg := placeholder(t, store, h)
	assert.True(t, msg.IsError)
	assert.Empty(t, msg.Content)
	assert.Equal(t, telemetry.OutcomeErrored, seen[len(seen)-1].(SessionDoneMsg).Outcome)
}

func TestController_RejectsSecondSession(t *testing.T) {
	c, _ := newTestController(&fakeOpener{src: stream.NewSliceSource()})

	_, _, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)
	_, _, err = c.Start(model.ModeAssisted, nil, "")
	assert.ErrorIs(t, err, ErrSessionActive)
}

// =============================================================================
// TRANSPORT FAILURE
// =============================================================================

func TestController_TransportFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"connection refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused")},
		{"non-success status", &api.StatusError{Status: http.StatusInternalServerError}},
		{"no body", api.ErrNoBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestController(&fakeOpener{err: tt.err})

			h, cmd, err := c.Start(model.ModeAssisted, nil, "")
			require.NoError(t, err)
			seen := drain(c, cmd)

			msg := placeholder(t, store, h)
			assert.True(t, msg.IsError)
			assert.False(t, msg.IsStreaming)
			assert.NotEmpty(t, msg.ErrorDetail)
			require.Len(t, msg.Actions, 1)
			assert.Equal(t, model.FallbackAction(), msg.Actions[0])
			assert.Equal(t, telemetry.OutcomeFailed, seen[len(seen)-1].(SessionDoneMsg).Outcome)
		})
	}
}

func TestController_ReadFailureMidStream(t *testing.T) {
	src := stream.NewSliceSource("data: {\"token\": \"half\"}\n")
	src.Err = errors.New("connection reset by peer")
	c, store := newTestController(&fakeOpener{src: src})

	h, cmd, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)
	drain(c, cmd)

	msg := placeholder(t, store, h)
	assert.True(t, msg.IsError)
	assert.Empty(t, msg.Content)
	assert.True(t, src.Closed())
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestController_CancelBeforeAnyToken(t *testing.T) {
	src := stream.NewSliceSource("data: {\"token\": \"late\"}\n")
	c, store := newTestController(&fakeOpener{src: src})

	h, cmd, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)

	opened := cmd()
	require.True(t, c.CancelActive())
	assert.False(t, c.CancelActive(), "second cancel must be a no-op")

	// The open result arrives after the cancel and is discarded.
	assert.Nil(t, c.Update(opened))
	assert.True(t, src.Closed())

	_, ok := store.Message(h.Mode, h.MessageID)
	assert.False(t, ok, "empty placeholder should be removed")
	assert.True(t, store.Conversation(model.ModeAssisted).IsEmpty())
}

func TestController_CancelMidStreamIsSilent(t *testing.T) {
	src := stream.NewSliceSource(
		"data: {\"token\": \"partial\"}\n",
		"data: {\"token\": \" never shown\"}\n",
		"data: [DONE]\n",
	)
	c, store := newTestController(&fakeOpener{src: src})

	h, cmd, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)

	read := c.Update(cmd())      // opened
	pending := c.Update(read())  // first chunk applied, next read issued
	require.NotNil(t, pending)
	require.True(t, c.CancelActive())
	assert.False(t, c.CancelActive())

	// Whatever the in-flight read returns is dropped.
	late := pending()
	assert.Nil(t, c.Update(late))
	assert.Nil(t, c.Update(StreamChunkMsg{SessionID: h.SessionID, Data: []byte("data: {\"token\": \"x\"}\n")}))
	assert.Nil(t, c.Update(StreamEndMsg{SessionID: h.SessionID, Err: errors.New("boom")}))

	msg := placeholder(t, store, h)
	assert.Equal(t, "partial", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, msg.IsError, "cancelled session must never show an error")
}

func TestController_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, store := newTestController(&fakeOpener{src: stream.NewSliceSource()})
	c.WithContext(ctx)

	h, cmd, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)
	cancel()
	drain(c, cmd)

	_, ok := store.Message(h.Mode, h.MessageID)
	assert.False(t, ok)
	_, active := c.Active()
	assert.False(t, active)
}

func TestController_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	raw := "data: {\"token\": \"a\"}\nbogus\ndata: {\"token\": \"b\"}\ndata: [DONE]\n"
	c, _ := newTestController(&fakeOpener{src: stream.NewSliceSource(raw)})
	c.WithMetrics(metrics)

	_, cmd, err := c.Start(model.ModeAssisted, nil, "")
	require.NoError(t, err)
	drain(c, cmd)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StreamSessionsTotal.WithLabelValues(telemetry.OutcomeCompleted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.StreamTokensTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesDroppedTotal))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestBuildHistory(t *testing.T) {
	conv := model.NewConversation(model.ModeAssisted)
	conv.AddMessage(model.NewGreeting(model.ModeAssisted, "Hi!", nil))
	for _, text := range []string{"q1", "a1", "q2", "a2"} {
		role := model.RoleUser
		if text[0] == 'a' {
			role = model.RoleAssistant
		}
		msg := model.NewMessage(role, text)
		conv.AddMessage(msg)
	}
	failed := model.NewPlaceholder()
	failed.MarkError("down")
	conv.AddMessage(failed)
	conv.AddMessage(model.NewPlaceholder())

	turns := BuildHistory(conv, "q3", 3)
	assert.Equal(t, []api.ChatTurn{
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
		{Role: "assistant", Content: "a2"},
		{Role: "user", Content: "q3"},
	}, turns)

	assert.Equal(t, []api.ChatTurn{{Role: "user", Content: "only"}}, BuildHistory(conv, "only", 0))
	assert.Len(t, BuildHistory(nil, "x", 5), 1)
}
