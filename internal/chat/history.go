// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/api"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// BuildHistory returns the turns sent with a new request: at most limit
// prior turns, oldest first, followed by text as the new user turn.
// Streaming, errored, empty and greeting messages are never sent.
func BuildHistory(conv *model.Conversation, text string, limit int) []api.ChatTurn {
	var prior []api.ChatTurn
	if conv != nil {
		for _, msg := range conv.Messages {
			if msg.IsStreaming || msg.IsError || msg.IsGreeting || msg.IsEmpty() {
				continue
			}
			prior = append(prior, api.ChatTurn{Role: msg.Role.String(), Content: msg.Content})
		}
	}
	if limit < 0 {
		limit = 0
	}
	if len(prior) > limit {
		prior = prior[len(prior)-limit:]
	}

	turns := make([]api.ChatTurn, 0, len(prior)+1)
	turns = append(turns, prior...)
	return append(turns, api.ChatTurn{Role: model.RoleUser.String(), Content: text})
}
