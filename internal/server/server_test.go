// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/api"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/storage"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/stream"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Seed(context.Background(), storage.DefaultItems()))

	opts.Now = func() time.Time { return fixedNow }
	return New(store, opts)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// =============================================================================
// ITEMS
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{})
	w := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestItems_ListAndGet(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/api/assessment-items", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []model.AssessmentItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, len(storage.DefaultItems()))

	w = do(t, s, http.MethodGet, "/api/assessment-items/PR.AA-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	var item model.AssessmentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, "PR.AA-01", item.ID)
	assert.Equal(t, model.StatusNotAssessed, item.Status)

	w = do(t, s, http.MethodGet, "/api/assessment-items/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestItems_Patch(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodPatch, "/api/assessment-items/DE.CM-01", `{"status":"partial","notes":"SIEM covers prod only"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var state model.ItemState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, model.StatusPartial, state.Status)
	assert.Equal(t, "SIEM covers prod only", state.Notes)
	assert.True(t, state.UpdatedAt.Equal(fixedNow))

	// Notes only; status survives.
	w = do(t, s, http.MethodPatch, "/api/assessment-items/DE.CM-01", `{"notes":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, model.StatusPartial, state.Status)
	assert.Empty(t, state.Notes)
}

func TestItems_PatchRejectsBadInput(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"malformed json", "DE.CM-01", `{`, http.StatusBadRequest},
		{"no fields", "DE.CM-01", `{}`, http.StatusBadRequest},
		{"unknown status", "DE.CM-01", `{"status":"mostly"}`, http.StatusBadRequest},
		{"unknown item", "XX.YY-99", `{"status":"compliant"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPatch, "/api/assessment-items/"+tt.id, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestItems_FailEvery(t *testing.T) {
	s := newTestServer(t, Options{FailEvery: 2})
	body := `{"status":"compliant"}`

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPatch, "/api/assessment-items/RC.RP-01", body).Code)
	w := do(t, s, http.MethodPatch, "/api/assessment-items/RC.RP-01", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "injected failure")
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPatch, "/api/assessment-items/RC.RP-01", body).Code)
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, Options{})
	big := `{"notes":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`
	w := do(t, s, http.MethodPatch, "/api/assessment-items/RC.RP-01", big)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewServerMetrics(reg)
	s := newTestServer(t, Options{Metrics: m})

	do(t, s, http.MethodGet, "/api/assessment-items/PR.AA-01", "")
	do(t, s, http.MethodGet, "/api/assessment-items/ID.AM-01", "")
	do(t, s, http.MethodGet, "/missing", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/assessment-items/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	require.NoError(t, s.RefreshItemGauge(context.Background()))
	assert.Equal(t, float64(len(storage.DefaultItems())), testutil.ToFloat64(m.ItemsTotal))
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_StreamsFramesAndDone(t *testing.T) {
	s := newTestServer(t, Options{})
	w := do(t, s, http.MethodPost, "/api/assistant/chat", `{"messages":[{"role":"user","content":"What does Protect cover?"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	dec := stream.NewDecoder()
	var text strings.Builder
	var done bool
	for _, ev := range dec.Feed(w.Body.Bytes()) {
		switch ev.Kind {
		case stream.EventAppend:
			text.WriteString(ev.Text)
		case stream.EventDone:
			done = true
		}
	}
	assert.True(t, done)
	assert.Equal(t, Answer("What does Protect cover?", ""), text.String())
	assert.Zero(t, dec.Dropped())
}

func TestChat_RejectsBadHistory(t *testing.T) {
	s := newTestServer(t, Options{})
	bodies := []string{
		`{"messages":[]}`,
		`{"messages":[{"role":"system","content":"x"}]}`,
		`{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`,
	}
	for _, body := range bodies {
		w := do(t, s, http.MethodPost, "/api/assistant/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestAnswer(t *testing.T) {
	a := Answer("how do backups fit in?", "Controls")
	assert.Contains(t, a, "**Controls**")
	assert.Contains(t, a, "Recover (RC)")

	generic := Answer("hello", "")
	assert.Contains(t, generic, "six functions")
}

func TestFragments_Reassemble(t *testing.T) {
	text := "one two\n\nthree  four"
	parts := Fragments(text)
	assert.Equal(t, text, strings.Join(parts, ""))
	assert.Equal(t, "one ", parts[0])
	assert.Empty(t, Fragments(""))
}

// =============================================================================
// CLIENT ROUND TRIP
// =============================================================================

func TestClientRoundTrip(t *testing.T) {
	s := newTestServer(t, Options{TokenDelay: time.Millisecond})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	client, err := api.NewClient(ts.URL)
	require.NoError(t, err)
	client.WithMaxRetries(1)
	ctx := context.Background()

	items, err := client.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, len(storage.DefaultItems()))

	status := model.StatusCompliant
	state, err := client.UpdateItem(ctx, "GV.OC-01", model.ItemPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompliant, state.Status)

	_, err = client.GetItem(ctx, "missing")
	assert.True(t, errors.Is(err, api.ErrNotFound))

	src, err := client.OpenChatStream(ctx, api.ChatRequest{
		Messages: []api.ChatTurn{{Role: "user", Content: "incident handling?"}},
	})
	require.NoError(t, err)
	defer src.Close()

	dec := stream.NewDecoder()
	var text bytes.Buffer
	for !dec.Done() {
		chunk, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for _, ev := range dec.Feed(chunk) {
			if ev.Kind == stream.EventAppend {
				text.WriteString(ev.Text)
			}
		}
	}
	assert.True(t, dec.Done())
	assert.Contains(t, text.String(), "Respond (RS)")
}
