// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/logger"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// Configuration constants for the assessment service.
const (
	// DefaultTimeout is the default timeout for request/response calls.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of attempts for item mutations.
	DefaultMaxRetries = 3

	// ChatPath is the streaming assistant endpoint.
	ChatPath = "/api/assistant/chat"

	// ItemPathPrefix prefixes the item mutation endpoint.
	ItemPathPrefix = "/api/assessment-items/"

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 250 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 5 * time.Second

	// MaxResponseSize is the maximum allowed size of a non-streaming body.
	MaxResponseSize = 1 * 1024 * 1024
)

// Error variables for common service failures.
var (
	// ErrNoBody indicates a successful response that carried no readable body.
	ErrNoBody = errors.New("response has no readable body")

	// ErrNotFound indicates the item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidBaseURL indicates the configured base URL cannot be used.
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

// StatusError is a non-success response from the service.
type StatusError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("service error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("service error (HTTP %d)", e.Status)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// apiErrorResponse is the JSON error envelope returned by the service.
type apiErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the assessment service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no overall timeout; sessions end on completion or cancel.
	streamClient *http.Client
	maxRetries   int
	retryDelay   time.Duration
	// limiter paces item mutation attempts; nil means unlimited.
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL:      parsed.String(),
		httpClient:   &http.Client{Transport: transport, Timeout: DefaultTimeout},
		streamClient: &http.Client{Transport: transport},
		maxRetries:   DefaultMaxRetries,
		retryDelay:   retryBaseDelay,
		log:          logger.Nop(),
	}, nil
}

// WithTimeout sets the timeout for request/response calls.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithMaxRetries sets the number of attempts for item mutations (minimum 1).
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	c.maxRetries = maxRetries
	return c
}

// WithRetryDelay sets the base backoff delay.
func (c *Client) WithRetryDelay(delay time.Duration) *Client {
	c.retryDelay = delay
	return c
}

// WithRateLimit paces item mutation attempts to perSecond with the given
// burst. A non-positive rate removes the limit.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	if perSecond <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(log *logger.Logger) *Client {
	c.log = log.Component("api")
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ITEMS
// =============================================================================

// itemList is the body of the item listing endpoint.
type itemList struct {
	Items []*model.AssessmentItem `json:"items"`
}

// UpdateItem persists patch for one item and returns the canonical state.
// Transient failures are retried with exponential backoff.
func (c *Client) UpdateItem(ctx context.Context, itemID string, patch model.ItemPatch) (model.ItemState, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return model.ItemState{}, fmt.Errorf("failed to marshal patch: %w", err)
	}
	var state model.ItemState
	err = c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodPatch, ItemPathPrefix+url.PathEscape(itemID), body, &state)
	})
	return state, err
}

// GetItem fetches one item.
func (c *Client) GetItem(ctx context.Context, itemID string) (*model.AssessmentItem, error) {
	var item model.AssessmentItem
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, ItemPathPrefix+url.PathEscape(itemID), nil, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems fetches every item of the current assessment.
func (c *Client) ListItems(ctx context.Context) ([]*model.AssessmentItem, error) {
	var list itemList
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, strings.TrimSuffix(ItemPathPrefix, "/"), nil, &list)
	})
	return list.Items, err
}

// withRetry runs call until it succeeds, fails permanently or runs out of
// attempts.
func (c *Client) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if !c.isRetryable(ctx, err) {
			return err
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doJSON performs one request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.LogRequest(req.Method, req.URL.Path, 0, time.Since(start), err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	c.log.LogRequest(req.Method, req.URL.Path, resp.StatusCode, time.Since(start), err)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp.StatusCode, data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrNoBody
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "csf-assist/1.0")
}

// readResponse reads a response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse maps a non-success status to an error.
func handleErrorResponse(statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		message = envelope.Error
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, &StatusError{Status: statusCode, Message: message})
	default:
		return &StatusError{Status: statusCode, Message: message}
	}
}

// isRetryable determines if an error should trigger a retry.
func (c *Client) isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// calculateBackoff returns the delay to wait before the given attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
