// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/stream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c.WithRetryDelay(time.Millisecond)
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://host", "/relative"} {
		_, err := NewClient(raw)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, "base %q", raw)
	}
}

// =============================================================================
// ITEM MUTATION
// =============================================================================

func TestUpdateItem_SendsPartialPatch(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"status":"compliant","notes":"server notes","updated_at":"2025-01-02T03:04:05Z"}`)
	})

	status := model.StatusCompliant
	state, err := c.UpdateItem(context.Background(), "item-1", model.ItemPatch{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/assessment-items/item-1", gotPath)
	assert.Equal(t, map[string]any{"status": "compliant"}, gotBody)
	assert.Equal(t, model.StatusCompliant, state.Status)
	assert.Equal(t, "server notes", state.Notes)
	assert.Equal(t, 2025, state.UpdatedAt.Year())
}

func TestUpdateItem_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"status":"partial","notes":""}`)
	})

	notes := ""
	state, err := c.UpdateItem(context.Background(), "x", model.ItemPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, state.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpdateItem_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid status"}`)
	})

	status := model.StatusPartial
	_, err := c.UpdateItem(context.Background(), "x", model.ItemPatch{Status: &status})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, "invalid status", statusErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpdateItem_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	notes := "n"
	_, err := c.UpdateItem(context.Background(), "missing", model.ItemPatch{Notes: &notes})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateItem_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c.WithMaxRetries(2)

	notes := "n"
	_, err := c.UpdateItem(context.Background(), "x", model.ItemPatch{Notes: &notes})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), calls.Load())
}

func TestUpdateItem_EmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	notes := "n"
	_, err := c.UpdateItem(context.Background(), "x", model.ItemPatch{Notes: &notes})
	assert.ErrorIs(t, err, ErrNoBody)
}

func TestCalculateBackoff(t *testing.T) {
	c, err := NewClient("http://localhost")
	require.NoError(t, err)

	assert.Equal(t, retryBaseDelay, c.calculateBackoff(1))
	assert.Equal(t, 2*retryBaseDelay, c.calculateBackoff(2))
	assert.Equal(t, retryMaxDelay, c.calculateBackoff(20))
}

// =============================================================================
// CHAT STREAM
// =============================================================================

func TestOpenChatStream_DeliversBody(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ChatPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, tok := range []string{"Least ", "privilege"} {
			_, _ = io.WriteString(w, `data: {"token": "`+tok+`"}`+"\n")
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n")
	})

	src, err := c.OpenChatStream(context.Background(), ChatRequest{
		Messages: []ChatTurn{{Role: "user", Content: "What is PR.AA?"}},
		Context:  "Identity management",
	})
	require.NoError(t, err)
	defer src.Close()

	dec := stream.NewDecoder()
	var sb strings.Builder
	for !dec.Done() {
		chunk, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		for _, ev := range dec.Feed(chunk) {
			if ev.Kind == stream.EventAppend {
				sb.WriteString(ev.Text)
			}
		}
	}

	assert.True(t, dec.Done())
	assert.Equal(t, "Least privilege", sb.String())
	assert.Equal(t, "Identity management", got.Context)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "What is PR.AA?", got.Messages[0].Content)
}

func TestOpenChatStream_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"upstream unavailable"}`)
	})

	_, err := c.OpenChatStream(context.Background(), ChatRequest{})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
}

func TestOpenChatStream_CancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.OpenChatStream(ctx, ChatRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpdateItem_RateLimited(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"status":"partial","notes":""}`)
	})
	c.WithRateLimit(1, 1)

	notes := "n"
	_, err := c.UpdateItem(context.Background(), "x", model.ItemPatch{Notes: &notes})
	require.NoError(t, err)

	// The bucket is empty and the deadline is shorter than the refill.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.UpdateItem(ctx, "x", model.ItemPatch{Notes: &notes})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, int32(1), calls.Load())
}

func TestListAndGetItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/api/assessment-items":
			_, _ = io.WriteString(w, `{"items":[{"id":"GV.OC-01","status":"partial","notes":"a"},{"id":"ID.AM-01","status":"compliant","notes":""}]}`)
		case "/api/assessment-items/GV.OC-01":
			_, _ = io.WriteString(w, `{"id":"GV.OC-01","status":"partial","notes":"a"}`)
		default:
			http.NotFound(w, r)
		}
	})

	items, err := c.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ID.AM-01", items[1].ID)
	assert.Equal(t, model.StatusCompliant, items[1].Status)

	item, err := c.GetItem(context.Background(), "GV.OC-01")
	require.NoError(t, err)
	assert.Equal(t, "a", item.Notes)

	_, err = c.GetItem(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
