// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "csf_assist"

// Session outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeErrored   = "errored"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Mutation outcomes.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeRolledBack = "rolled_back"
)

// =============================================================================
// CLIENT METRICS
// =============================================================================

// Metrics holds the Prometheus collectors for the assistant core. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Streaming sessions
	StreamSessionsTotal *prometheus.CounterVec
	StreamFirstToken    prometheus.Histogram
	StreamDuration      prometheus.Histogram
	StreamTokensTotal   prometheus.Counter
	FramesDroppedTotal  prometheus.Counter

	// Item mutations
	MutationsTotal          *prometheus.CounterVec
	MutationRequestDuration prometheus.Histogram
	NotesCoalescedTotal     prometheus.Counter
	MutationsInFlight       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.StreamSessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stream_sessions_total",
			Help:      "Streaming assistant sessions by outcome",
		},
		[]string{"outcome"},
	)

	m.StreamFirstToken = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stream_first_token_seconds",
			Help:      "Time from request to first decoded token",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	m.StreamDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of streaming sessions",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.StreamTokensTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stream_tokens_total",
			Help:      "Token fragments appended to assistant messages",
		},
	)

	m.FramesDroppedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stream_frames_dropped_total",
			Help:      "Malformed or unrecognized stream records skipped",
		},
	)

	m.MutationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "mutations_total",
			Help:      "Item mutation requests by outcome",
		},
		[]string{"outcome"},
	)

	m.MutationRequestDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "mutation_request_duration_seconds",
			Help:      "Duration of item mutation requests including retries",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.NotesCoalescedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notes_edits_coalesced_total",
			Help:      "Notes edits absorbed by a later edit before persisting",
		},
	)

	m.MutationsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "mutations_in_flight",
			Help:      "Item mutation requests awaiting a response",
		},
	)

	return m
}

// RecordSession records a finished streaming session.
func (m *Metrics) RecordSession(outcome string, firstToken, duration time.Duration, tokens, dropped int) {
	if m == nil {
		return
	}
	m.StreamSessionsTotal.WithLabelValues(outcome).Inc()
	if firstToken > 0 {
		m.StreamFirstToken.Observe(firstToken.Seconds())
	}
	m.StreamDuration.Observe(duration.Seconds())
	m.StreamTokensTotal.Add(float64(tokens))
	m.FramesDroppedTotal.Add(float64(dropped))
}

// MutationStarted marks a mutation request as in flight.
func (m *Metrics) MutationStarted() {
	if m == nil {
		return
	}
	m.MutationsInFlight.Inc()
}

// RecordMutation records a resolved mutation request.
func (m *Metrics) RecordMutation(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.MutationsInFlight.Dec()
	m.MutationsTotal.WithLabelValues(outcome).Inc()
	m.MutationRequestDuration.Observe(duration.Seconds())
}

// NotesCoalesced counts notes edits superseded inside a debounce window.
func (m *Metrics) NotesCoalesced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NotesCoalescedTotal.Add(float64(n))
}

// =============================================================================
// SERVER METRICS
// =============================================================================

// ServerMetrics instruments the development server.
type ServerMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ItemsTotal          prometheus.Gauge
}

// NewServerMetrics creates the server collectors and registers them on reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	factory := promauto.With(reg)
	return &ServerMetrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "devserver",
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "devserver",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ItemsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "devserver",
				Name:      "items",
				Help:      "Assessment items stored",
			},
		),
	}
}

// RecordRequest records one handled HTTP request.
func (m *ServerMetrics) RecordRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
