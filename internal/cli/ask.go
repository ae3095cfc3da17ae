// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// ErrAnswerFailed is returned when the assistant answered with an error.
var ErrAnswerFailed = errors.New("the assistant could not answer")

// askResult is the --json form of an answer.
type askResult struct {
	Mode     model.Mode     `json:"mode"`
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Error    string         `json:"error,omitempty"`
	Actions  []model.Action `json:"actions,omitempty"`
}

// HandleAsk answers one question and writes the answer to out as it arrives.
func HandleAsk(ctx context.Context, args Args, out io.Writer) error {
	if strings.TrimSpace(args.Query) == "" {
		return fmt.Errorf("usage: csf-assist ask \"question\"")
	}
	env, err := Setup(args)
	if err != nil {
		return err
	}
	defer env.Close()
	env.LineMode()

	mode, err := model.ParseMode(env.Config.Assistant.DefaultMode)
	if err != nil {
		return err
	}

	rt := core.NewRuntime(ctx, core.New(ctx, env.Deps(nil)))
	rt.Start()
	defer rt.Stop()
	if args.Page != "" {
		rt.Navigate(args.Page)
	}

	w := out
	if args.JSON {
		w = io.Discard
	}
	reply, err := NewWatcher(rt).Converse(ctx, mode, args.Query, w)
	if err != nil && !errors.Is(err, ErrAnswerFailed) {
		return err
	}
	if args.JSON {
		res := askResult{Mode: mode, Question: args.Query, Answer: reply.Content, Actions: reply.Actions}
		if reply.IsError {
			res.Error = reply.ErrorDetail
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			return encErr
		}
	}
	return err
}

// =============================================================================
// STREAMING
// =============================================================================

// Watcher follows a Runtime and wakes its reader whenever the model changed.
type Watcher struct {
	rt      *core.Runtime
	changed chan struct{}
}

// NewWatcher subscribes to rt. Create one per runtime.
func NewWatcher(rt *core.Runtime) *Watcher {
	w := &Watcher{rt: rt, changed: make(chan struct{}, 1)}
	rt.Subscribe(func(core.Snapshot) {
		select {
		case w.changed <- struct{}{}:
		default:
		}
	})
	return w
}

// Converse sends text to the conversation of mode and copies the reply to out
// while it streams. Cancelling ctx cancels the response; the partial reply
// is returned with ctx's error.
func (w *Watcher) Converse(ctx context.Context, mode model.Mode, text string, out io.Writer) (model.Message, error) {
	before, err := w.rt.Snapshot()
	if err != nil {
		return model.Message{}, err
	}
	base := len(before.Conversation(mode).Messages)

	if err := w.rt.SendMessage(mode, text); err != nil {
		return model.Message{}, err
	}

	var (
		reply   model.Message
		printed int
	)
	for {
		snap, err := w.rt.Snapshot()
		if err != nil {
			return reply, err
		}
		msg, ok := replyAt(snap.Conversation(mode), base)
		if !ok {
			// The placeholder is removed when a session is cancelled
			// before any text arrived.
			return reply, context.Canceled
		}
		reply = msg
		if len(reply.Content) > printed {
			fmt.Fprint(out, reply.Content[printed:])
			printed = len(reply.Content)
		}
		if !reply.IsStreaming {
			return finishReply(reply, out)
		}

		select {
		case <-w.changed:
		case <-ctx.Done():
			w.rt.CancelActiveStream()
			fmt.Fprintln(out)
			return reply, ctx.Err()
		case <-w.rt.Done():
			return reply, core.ErrStopped
		}
	}
}

// replyAt returns the assistant message that follows the user message at
// index base.
func replyAt(conv *model.Conversation, base int) (model.Message, bool) {
	if conv == nil || len(conv.Messages) <= base+1 {
		return model.Message{}, false
	}
	msg := conv.Messages[base+1]
	if msg.Role != model.RoleAssistant {
		return model.Message{}, false
	}
	return msg, true
}

func finishReply(reply model.Message, out io.Writer) (model.Message, error) {
	if reply.Content != "" {
		fmt.Fprintln(out)
	}
	var err error
	if reply.IsError {
		fmt.Fprintln(out, ErrorStyle.Render(reply.ErrorDetail))
		err = ErrAnswerFailed
	}
	for _, a := range reply.Actions {
		fmt.Fprintln(out, DimStyle.Render("  → "+a.Label))
	}
	return reply, err
}
