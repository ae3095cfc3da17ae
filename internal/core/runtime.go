// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package core

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// ErrStopped is returned by Runtime calls after the event loop has exited.
var ErrStopped = errors.New("runtime stopped")

// =============================================================================
// RUNTIME
// =============================================================================

// Runtime runs a Model headless in its own event loop. All methods are safe
// for concurrent use; each one is delivered to the loop as a message.
type Runtime struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewRuntime prepares a headless program for m. The loop exits when ctx is
// cancelled or Stop is called.
func NewRuntime(ctx context.Context, m *Model, opts ...tea.ProgramOption) *Runtime {
	base := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	}
	return &Runtime{
		program: tea.NewProgram(m, append(base, opts...)...),
		done:    make(chan struct{}),
	}
}

// Start runs the event loop in the background.
func (r *Runtime) Start() {
	go func() {
		defer close(r.done)
		if _, err := r.program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			r.err = err
		}
	}()
}

// Stop quits the loop and waits for it to exit. It is safe to call twice.
func (r *Runtime) Stop() error {
	select {
	case <-r.done:
	default:
		r.program.Quit()
	}
	return r.Wait()
}

// Wait blocks until the loop has exited.
func (r *Runtime) Wait() error {
	<-r.done
	return r.err
}

// Done is closed when the loop has exited.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// =============================================================================
// OPERATIONS
// =============================================================================

// SendMessage submits text to the conversation of mode. An assisted message
// returns as soon as the session has started; the response streams in.
func (r *Runtime) SendMessage(mode model.Mode, text string) error {
	return r.call(func(ch chan<- error) tea.Msg {
		return SendMessageMsg{Mode: mode, Text: text, Reply: ch}
	})
}

// CancelActiveStream cancels the running assisted response.
func (r *Runtime) CancelActiveStream() {
	r.send(CancelStreamMsg{})
}

// SetItemStatus changes an item status optimistically.
func (r *Runtime) SetItemStatus(id string, status model.Status) error {
	return r.call(func(ch chan<- error) tea.Msg {
		return SetItemStatusMsg{ItemID: id, Status: status, Reply: ch}
	})
}

// SetItemNotes changes item notes optimistically.
func (r *Runtime) SetItemNotes(id, notes string) error {
	return r.call(func(ch chan<- error) tea.Msg {
		return SetItemNotesMsg{ItemID: id, Notes: notes, Reply: ch}
	})
}

// Navigate moves to a new page context.
func (r *Runtime) Navigate(page string) {
	r.send(NavigateMsg{Page: page})
}

// ShowMode switches the visible conversation.
func (r *Runtime) ShowMode(mode model.Mode) error {
	return r.call(func(ch chan<- error) tea.Msg {
		return ShowModeMsg{Mode: mode, Reply: ch}
	})
}

// OpenPanel opens the assistant panel.
func (r *Runtime) OpenPanel() {
	r.send(OpenPanelMsg{})
}

// ClosePanel closes the assistant panel.
func (r *Runtime) ClosePanel() {
	r.send(ClosePanelMsg{})
}

// LoadItems registers the items of the current page.
func (r *Runtime) LoadItems(items []*model.AssessmentItem) {
	r.send(LoadItemsMsg{Items: items})
}

// Subscribe registers fn. It is called on the loop goroutine, first with the
// current state and then after every change.
func (r *Runtime) Subscribe(fn func(Snapshot)) {
	r.send(SubscribeMsg{Observer: fn})
}

// Snapshot returns the current state.
func (r *Runtime) Snapshot() (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	if !r.send(SnapshotRequestMsg{Reply: ch}) {
		return Snapshot{}, ErrStopped
	}
	select {
	case snap := <-ch:
		return snap, nil
	case <-r.done:
		return Snapshot{}, ErrStopped
	}
}

func (r *Runtime) send(msg tea.Msg) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	r.program.Send(msg)
	return true
}

func (r *Runtime) call(build func(chan<- error) tea.Msg) error {
	ch := make(chan error, 1)
	if !r.send(build(ch)) {
		return ErrStopped
	}
	select {
	case err := <-ch:
		return err
	case <-r.done:
		return ErrStopped
	}
}
