// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/api"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/stream"
)

// validRoles are the roles a chat history may carry.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
}

// validateChat checks roles and that the history ends with a question.
func validateChat(req api.ChatRequest) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	if len(req.Messages) > MaxMessageCount {
		return fmt.Errorf("too many messages: %d (max %d)", len(req.Messages), MaxMessageCount)
	}
	for i, msg := range req.Messages {
		if !validRoles[msg.Role] {
			return fmt.Errorf("invalid role '%s' at message %d: must be user or assistant", msg.Role, i)
		}
	}
	if last := req.Messages[len(req.Messages)-1]; last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("last message must be a non-empty user question")
	}
	return nil
}

// ============================================================================
// STREAMING
// ============================================================================

// handleChat streams a canned answer as `data:` records terminated by the
// [DONE] sentinel. A client disconnect stops the stream.
func (s *Server) handleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := validateChat(req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	question := req.Messages[len(req.Messages)-1].Content
	fragments := Fragments(Answer(question, req.Context))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	var timer *time.Timer
	if s.opts.TokenDelay > 0 {
		timer = time.NewTimer(s.opts.TokenDelay)
		defer timer.Stop()
	}

	sent := 0
	for _, fragment := range fragments {
		if timer != nil {
			select {
			case <-ctx.Done():
				s.log.Debug().Int("sent", sent).Msg("client went away mid-stream")
				return
			case <-timer.C:
				timer.Reset(s.opts.TokenDelay)
			}
		}
		if err := writeFrame(c, map[string]string{"token": fragment}); err != nil {
			return
		}
		sent++
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", stream.DoneSentinel)
	c.Writer.Flush()

	s.log.Debug().Int("fragments", sent).Str("context", req.Context).Msg("answer streamed")
}

// writeFrame sends one SSE record.
func writeFrame(c *gin.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// ============================================================================
// CANNED ANSWERS
// ============================================================================

// functionNotes maps CSF 2.0 function keywords to a short explanation.
var functionNotes = []struct {
	keywords []string
	text     string
}{
	{[]string{"govern", "gv."}, "**Govern (GV)** sets the organization's cybersecurity risk strategy, expectations and policy. Start by confirming that roles and risk appetite are written down and reviewed."},
	{[]string{"identify", "id.", "asset"}, "**Identify (ID)** is about knowing your assets, suppliers and risks. An up-to-date inventory is the usual evidence for ID.AM controls."},
	{[]string{"protect", "pr.", "access", "mfa"}, "**Protect (PR)** covers safeguards such as identity management, access control, awareness training and data security."},
	{[]string{"detect", "de.", "monitor"}, "**Detect (DE)** covers finding and analyzing possible attacks. Continuous monitoring of networks and endpoints is the typical evidence."},
	{[]string{"respond", "rs.", "incident"}, "**Respond (RS)** covers actions once an incident is detected: management, analysis, reporting and mitigation."},
	{[]string{"recover", "rc.", "backup", "restore"}, "**Recover (RC)** covers restoring assets and operations after an incident, including tested backups and communication plans."},
}

// Answer builds the reply to question. page, when set, names the screen
// the question was asked from.
func Answer(question, page string) string {
	q := strings.ToLower(question)

	var parts []string
	if page != "" {
		parts = append(parts, fmt.Sprintf("You are on the **%s** page.", page))
	}
	for _, fn := range functionNotes {
		for _, kw := range fn.keywords {
			if strings.Contains(q, kw) {
				parts = append(parts, fn.text)
				break
			}
		}
	}
	if len(parts) == 0 || (page != "" && len(parts) == 1) {
		parts = append(parts, "The NIST Cybersecurity Framework groups outcomes into six functions: Govern, Identify, Protect, Detect, Respond and Recover. Ask about any of them, or about a specific control such as PR.AA-01.")
	}
	return strings.Join(parts, "\n\n")
}

// Fragments splits text into word-sized pieces that concatenate back to
// text exactly.
func Fragments(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' || text[i] == '\n' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
