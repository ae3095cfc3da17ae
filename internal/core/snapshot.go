// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package core

import (
	"time"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// NoticeView is the display form of a failure notice.
type NoticeView struct {
	ID     string
	ItemID string
	Text   string
	At     time.Time
}

// Snapshot is an immutable copy of the state a presentation layer renders.
type Snapshot struct {
	Page      string
	Visible   model.Mode
	PanelOpen bool

	// Conversations holds a deep copy per mode.
	Conversations map[model.Mode]*model.Conversation

	// Streaming is set while an assisted response is in progress.
	Streaming bool

	Items   []model.AssessmentItem
	Notices []NoticeView

	// Settled is set when no item edit is waiting for the service.
	Settled bool
}

// Conversation returns the copy for mode, never nil.
func (s Snapshot) Conversation(mode model.Mode) *model.Conversation {
	if conv, ok := s.Conversations[mode]; ok && conv != nil {
		return conv
	}
	return model.NewConversation(mode)
}

// Item returns the copy of item id.
func (s Snapshot) Item(id string) (model.AssessmentItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return model.AssessmentItem{}, false
}

// Snapshot copies the current state.
func (m *Model) Snapshot() Snapshot {
	_, streaming := m.chat.Active()
	snap := Snapshot{
		Page:          m.store.Page(),
		Visible:       m.store.Visible(),
		PanelOpen:     m.store.IsOpen(),
		Conversations: make(map[model.Mode]*model.Conversation, len(model.Modes)),
		Streaming:     streaming,
		Items:         m.engine.Items(),
		Settled:       m.engine.Settled(),
	}
	for _, mode := range model.Modes {
		snap.Conversations[mode] = m.store.Conversation(mode)
	}
	for _, n := range m.notices {
		snap.Notices = append(snap.Notices, NoticeView{
			ID:     n.ID,
			ItemID: n.ItemID,
			Text:   n.Message(),
			At:     n.At,
		})
	}
	return snap
}
