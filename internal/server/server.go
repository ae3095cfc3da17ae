// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/logger"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/storage"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize bounds every request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageCount is the maximum number of messages in a chat request.
	MaxMessageCount = 100

	// MaxNotesLength bounds the notes field of an item.
	MaxNotesLength = 20000

	// Version is the server version.
	Version = "0.3.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Options tunes a Server.
type Options struct {
	// TokenDelay spaces streamed answer fragments.
	TokenDelay time.Duration

	// FailEvery makes every Nth mutation fail with HTTP 500. Zero disables.
	FailEvery int

	Log     *logger.Logger
	Metrics *telemetry.ServerMetrics

	// Now stamps mutations. Defaults to time.Now.
	Now func() time.Time
}

// Server is the development assessment service.
type Server struct {
	engine  *gin.Engine
	store   *storage.Store
	opts    Options
	log     *logger.Logger
	metrics *telemetry.ServerMetrics

	// mutations counts PATCH requests for failure injection.
	mutations atomic.Int64
}

// New creates a server over store.
func New(store *storage.Store, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		store:   store,
		opts:    opts,
		log:     opts.Log.Component("server"),
		metrics: opts.Metrics,
	}

	s.engine = gin.New()
	s.engine.Use(Recovery(s.log))
	s.engine.Use(RequestLogger(s.log))
	s.engine.Use(Metrics(s.metrics))
	s.engine.Use(SecurityHeaders())
	s.engine.Use(LimitBody(MaxRequestBodySize))
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// RefreshItemGauge publishes the stored item count.
func (s *Server) RefreshItemGauge(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return err
	}
	s.metrics.ItemsTotal.Set(float64(n))
	return nil
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.POST("/assistant/chat", s.handleChat)

		items := api.Group("/assessment-items")
		items.GET("", s.handleListItems)
		items.GET("/:id", s.handleGetItem)
		items.PATCH("/:id", s.handlePatchItem)
	}
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
}

func (s *Server) handleListItems(c *gin.Context) {
	items, err := s.store.List(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleGetItem(c *gin.Context) {
	item, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handlePatchItem(c *gin.Context) {
	var patch model.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := validatePatch(patch); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	n := s.mutations.Add(1)
	if s.opts.FailEvery > 0 && n%int64(s.opts.FailEvery) == 0 {
		s.log.Warn().Str("item", c.Param("id")).Int64("mutation", n).Msg("injected mutation failure")
		writeError(c, http.StatusInternalServerError, "injected failure")
		return
	}

	state, err := s.store.Patch(c.Request.Context(), c.Param("id"), patch, s.opts.Now())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// validatePatch accepts every known status, including not_assessed; the
// narrower per-deployment set is enforced by the client.
func validatePatch(patch model.ItemPatch) error {
	if patch.Status == nil && patch.Notes == nil {
		return errors.New("patch carries no fields")
	}
	if patch.Status != nil && !model.NewStatusSet(true).Contains(*patch.Status) {
		return fmt.Errorf("invalid status %q", *patch.Status)
	}
	if patch.Notes != nil && len(*patch.Notes) > MaxNotesLength {
		return fmt.Errorf("notes exceed %d bytes", MaxNotesLength)
	}
	return nil
}

// ============================================================================
// ERRORS
// ============================================================================

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// internalError logs the detail and returns a generic message.
func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	writeError(c, http.StatusInternalServerError, strings.ToLower(http.StatusText(http.StatusInternalServerError)))
}
