// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/stream"
)

// ChatTurn is one prior exchange entry sent as history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a streaming assistant request.
type ChatRequest struct {
	Messages []ChatTurn `json:"messages"`
	Context  string     `json:"context,omitempty"`
}

// OpenChatStream starts a streaming assistant request. On success the caller
// owns the returned source and must Close it. Cancelling ctx aborts the
// underlying connection.
func (c *Client) OpenChatStream(ctx context.Context, req ChatRequest) (stream.ChunkSource, error) {
	if req.Messages == nil {
		req.Messages = []ChatTurn{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ChatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		c.log.LogRequest(httpReq.Method, httpReq.URL.Path, 0, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := readResponse(resp)
		statusErr := handleErrorResponse(resp.StatusCode, data)
		c.log.LogRequest(httpReq.Method, httpReq.URL.Path, resp.StatusCode, time.Since(start), statusErr)
		return nil, statusErr
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		c.log.LogRequest(httpReq.Method, httpReq.URL.Path, resp.StatusCode, time.Since(start), ErrNoBody)
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrNoBody
	}

	c.log.LogRequest(httpReq.Method, httpReq.URL.Path, resp.StatusCode, time.Since(start), nil)
	return stream.NewReaderSource(resp.Body), nil
}
