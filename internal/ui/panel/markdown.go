// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdown renders finished assistant answers. Rendered output is cached per
// message so unchanged answers are not re-rendered on every frame.
type markdown struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]renderedMessage
}

type renderedMessage struct {
	content string
	out     string
}

func newMarkdown(style string) *markdown {
	return &markdown{style: style, cache: make(map[string]renderedMessage)}
}

// SetWidth rebuilds the renderer for a new wrap width.
func (md *markdown) SetWidth(width int) {
	if width == md.width && md.renderer != nil {
		return
	}
	md.width = width
	md.cache = make(map[string]renderedMessage)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(md.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Plain text fallback.
		md.renderer = nil
		return
	}
	md.renderer = r
}

// Render renders content of message id, or returns it unchanged when
// rendering is unavailable or fails.
func (md *markdown) Render(id, content string) string {
	if md.renderer == nil {
		return content
	}
	if cached, ok := md.cache[id]; ok && cached.content == content {
		return cached.out
	}
	out, err := md.renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	md.cache[id] = renderedMessage{content: content, out: out}
	return out
}

// Forget drops cached renders of messages not in keep.
func (md *markdown) Forget(keep map[string]bool) {
	for id := range md.cache {
		if !keep[id] {
			delete(md.cache, id)
		}
	}
}
