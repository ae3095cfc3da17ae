// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mutation

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultDebounce is the notes quiet period.
const DefaultDebounce = 500 * time.Millisecond

// FlushMsg is delivered when an item's debounce window may have elapsed.
// Only the message carrying the item's latest sequence is honoured.
type FlushMsg struct {
	ItemID string
	Seq    uint64
}

// window is the debounce state of one item.
type window struct {
	seq   uint64
	armed bool
	edits int
}

// Coalescer collapses bursts of edits per item into one deferred flush.
// Each Touch restarts the item's window; items never share windows.
type Coalescer struct {
	delay   time.Duration
	windows map[string]*window
}

// NewCoalescer creates a coalescer with the given quiet period.
func NewCoalescer(delay time.Duration) *Coalescer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Coalescer{
		delay:   delay,
		windows: make(map[string]*window),
	}
}

// Touch (re)starts the window for id and returns the timer command.
func (c *Coalescer) Touch(id string) tea.Cmd {
	w, ok := c.windows[id]
	if !ok {
		w = &window{}
		c.windows[id] = w
	}
	w.seq++
	w.armed = true
	w.edits++

	msg := FlushMsg{ItemID: id, Seq: w.seq}
	return tea.Tick(c.delay, func(time.Time) tea.Msg {
		return msg
	})
}

// Fire consumes msg. It reports whether msg closes the current window and,
// if so, how many edits the window absorbed.
func (c *Coalescer) Fire(msg FlushMsg) (edits int, ok bool) {
	w, exists := c.windows[msg.ItemID]
	if !exists || !w.armed || w.seq != msg.Seq {
		return 0, false
	}
	edits = w.edits
	w.armed = false
	w.edits = 0
	return edits, true
}

// Pending reports whether id has an open window.
func (c *Coalescer) Pending(id string) bool {
	w, ok := c.windows[id]
	return ok && w.armed
}

// Cancel closes the window for id without flushing. Its timer still fires
// but is ignored.
func (c *Coalescer) Cancel(id string) {
	if w, ok := c.windows[id]; ok {
		w.armed = false
		w.edits = 0
	}
}
