// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package core

import (
	"fmt"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// FallbackKnowledgeBase is used when no knowledge base is configured. It
// greets with the page name and points every question at the assistant.
type FallbackKnowledgeBase struct{}

// Greeting implements KnowledgeBase.
func (FallbackKnowledgeBase) Greeting(page string) (string, []model.Action) {
	if page == "" {
		return "Hi! Ask me anything about your assessment.", nil
	}
	return fmt.Sprintf("Hi! Ask me anything about %s.", page), nil
}

// Answer implements KnowledgeBase.
func (FallbackKnowledgeBase) Answer(page, question string) (string, []model.Action) {
	return "I don't have a quick answer for that.", []model.Action{{
		Kind:  model.ActionSwitchMode,
		Label: "Ask the assistant",
		Mode:  model.ModeAssisted,
	}}
}
