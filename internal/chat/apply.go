// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/stream"
)

// ApplyEvent returns msg with ev applied. It never mutates its argument's
// shared slices and ignores events once msg has stopped streaming.
func ApplyEvent(msg model.Message, ev stream.Event) model.Message {
	if !msg.IsStreaming {
		return msg
	}
	msg = msg.Clone()
	switch ev.Kind {
	case stream.EventAppend:
		msg.AppendToken(ev.Text)
	case stream.EventDone:
		msg.FinalizeStream()
	case stream.EventError:
		msg.MarkError(ev.Text)
	}
	return msg
}

// ApplyEvents folds evs into msg in order.
func ApplyEvents(msg model.Message, evs []stream.Event) model.Message {
	for _, ev := range evs {
		msg = ApplyEvent(msg, ev)
	}
	return msg
}
