// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mutation

import (
	"testing"
	"time"
)

func TestNewCoalescer_DefaultDelay(t *testing.T) {
	if got := NewCoalescer(0).delay; got != DefaultDebounce {
		t.Errorf("delay = %v, want %v", got, DefaultDebounce)
	}
	if got := NewCoalescer(time.Second).delay; got != time.Second {
		t.Errorf("delay = %v, want 1s", got)
	}
}

func TestCoalescer_OnlyLatestFires(t *testing.T) {
	c := NewCoalescer(time.Millisecond)

	var msgs []FlushMsg
	for i := 0; i < 3; i++ {
		cmd := c.Touch("a")
		if cmd == nil {
			t.Fatal("Touch returned nil command")
		}
		msgs = append(msgs, cmd().(FlushMsg))
	}

	if !c.Pending("a") {
		t.Error("window should be open")
	}
	for _, msg := range msgs[:2] {
		if _, ok := c.Fire(msg); ok {
			t.Errorf("superseded flush %d fired", msg.Seq)
		}
	}
	edits, ok := c.Fire(msgs[2])
	if !ok {
		t.Fatal("latest flush did not fire")
	}
	if edits != 3 {
		t.Errorf("edits = %d, want 3", edits)
	}
	if c.Pending("a") {
		t.Error("window should be closed")
	}
	if _, ok := c.Fire(msgs[2]); ok {
		t.Error("flush fired twice")
	}
}

func TestCoalescer_ItemsAreIndependent(t *testing.T) {
	c := NewCoalescer(time.Millisecond)

	a := c.Touch("a")().(FlushMsg)
	b := c.Touch("b")().(FlushMsg)
	c.Touch("a")

	if _, ok := c.Fire(a); ok {
		t.Error("stale flush for a fired")
	}
	if _, ok := c.Fire(b); !ok {
		t.Error("flush for b was swallowed by a's edit")
	}
}

func TestCoalescer_Cancel(t *testing.T) {
	c := NewCoalescer(time.Millisecond)
	msg := c.Touch("a")().(FlushMsg)

	c.Cancel("a")
	if c.Pending("a") {
		t.Error("cancelled window still pending")
	}
	if _, ok := c.Fire(msg); ok {
		t.Error("cancelled window fired")
	}

	// A new edit reopens it.
	msg = c.Touch("a")().(FlushMsg)
	if edits, ok := c.Fire(msg); !ok || edits != 1 {
		t.Errorf("Fire() = %d, %v; want 1, true", edits, ok)
	}
}

func TestCoalescer_FireUnknown(t *testing.T) {
	c := NewCoalescer(time.Millisecond)
	if _, ok := c.Fire(FlushMsg{ItemID: "nope", Seq: 1}); ok {
		t.Error("unknown item fired")
	}
}
