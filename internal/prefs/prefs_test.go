// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "prefs.json"))
	p, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p != (Prefs{}) {
		t.Errorf("expected zero prefs, got %+v", p)
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir", "prefs.json")
	s := NewFileStore(path)

	want := Prefs{Mode: model.ModeAssisted, SeenBubble: true}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFileStore_UnknownModeDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte(`{"mode":"verbose","seen_bubble":true}`), 0600); err != nil {
		t.Fatal(err)
	}
	p, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Mode != "" || !p.SeenBubble {
		t.Errorf("got %+v", p)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(); err == nil {
		t.Error("expected decode error")
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(Prefs{Mode: model.ModeQuick})
	_ = s.Save(Prefs{Mode: model.ModeAssisted})
	p, _ := s.Load()
	if p.Mode != model.ModeAssisted || s.Saves() != 1 {
		t.Errorf("got %+v after %d saves", p, s.Saves())
	}
}
