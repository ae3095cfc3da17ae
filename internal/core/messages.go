// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package core

import (
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// =============================================================================
// INPUT MESSAGES
// =============================================================================

// Reply, when set, receives the synchronous result of a request. It must be
// buffered; the event loop never blocks on it.

// SendMessageMsg submits user text to the conversation of Mode.
type SendMessageMsg struct {
	Mode  model.Mode
	Text  string
	Reply chan<- error
}

// CancelStreamMsg cancels the active streaming session, if any.
type CancelStreamMsg struct{}

// SetItemStatusMsg changes the status of an assessment item.
type SetItemStatusMsg struct {
	ItemID string
	Status model.Status
	Reply  chan<- error
}

// SetItemNotesMsg changes the notes of an assessment item.
type SetItemNotesMsg struct {
	ItemID string
	Notes  string
	Reply  chan<- error
}

// NavigateMsg moves the assistant to a new page context.
type NavigateMsg struct {
	Page string
}

// ShowModeMsg makes Mode the visible conversation.
type ShowModeMsg struct {
	Mode  model.Mode
	Reply chan<- error
}

// OpenPanelMsg opens the assistant panel.
type OpenPanelMsg struct{}

// ClosePanelMsg closes the assistant panel.
type ClosePanelMsg struct{}

// LoadItemsMsg registers the items of the current page.
type LoadItemsMsg struct {
	Items []*model.AssessmentItem
}

// DismissNoticeMsg removes a notice before it expires.
type DismissNoticeMsg struct {
	ID string
}

// ChooseActionMsg runs a suggested follow-up action.
type ChooseActionMsg struct {
	Action model.Action
	Reply  chan<- error
}

// SubscribeMsg registers an observer from outside the event loop.
type SubscribeMsg struct {
	Observer func(Snapshot)
}

// SnapshotRequestMsg asks the loop for the current snapshot.
type SnapshotRequestMsg struct {
	Reply chan<- Snapshot
}

// =============================================================================
// INTERNAL MESSAGES
// =============================================================================

type noticeExpiredMsg struct {
	id string
}

func reply(ch chan<- error, err error) {
	if ch != nil {
		ch <- err
	}
}
