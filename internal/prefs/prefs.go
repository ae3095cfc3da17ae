// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prefs remembers the user's assistant preferences between runs.
// Conversations themselves are never persisted.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/util"
)

// Prefs is the remembered preference set.
type Prefs struct {
	// Mode is the last conversation mode the user chose.
	Mode model.Mode `json:"mode"`

	// SeenBubble is set once the user has opened the panel at least once.
	SeenBubble bool `json:"seen_bubble"`
}

// Store loads and saves preferences.
type Store interface {
	Load() (Prefs, error)
	Save(Prefs) error
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps preferences in a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the file. A missing file yields zero Prefs and no error; an
// unknown mode is dropped.
func (s *FileStore) Load() (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Prefs{}, nil
	}
	if err != nil {
		return Prefs{}, fmt.Errorf("failed to read prefs: %w", err)
	}

	var p Prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return Prefs{}, fmt.Errorf("failed to decode prefs %s: %w", s.path, err)
	}
	if !p.Mode.Valid() {
		p.Mode = ""
	}
	return p, nil
}

// Save writes the file atomically.
func (s *FileStore) Save(p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}
	return util.AtomicWriteFile(s.path, data, 0600)
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps preferences in memory.
type MemoryStore struct {
	mu    sync.Mutex
	prefs Prefs
	saves int
}

// NewMemoryStore creates a store seeded with p.
func NewMemoryStore(p Prefs) *MemoryStore {
	return &MemoryStore{prefs: p}
}

// Load returns the stored preferences.
func (s *MemoryStore) Load() (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

// Save replaces the stored preferences.
func (s *MemoryStore) Save(p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
