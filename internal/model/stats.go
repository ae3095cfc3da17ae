// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"
)

// =============================================================================
// STATISTICS TYPE
// =============================================================================

// Statistics holds timing and fragment counts for one streaming session.
type Statistics struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	// Tokens counts append events, not model tokens.
	Tokens int
	// Dropped counts records the decoder skipped.
	Dropped int

	TTFT          time.Duration
	TotalDuration time.Duration
}

// NewStatistics creates a new Statistics with the start time set.
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// RecordToken counts one appended fragment, noting the first one's arrival.
func (s *Statistics) RecordToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
	s.Tokens++
}

// Finalize stamps the end time. Later calls are ignored.
func (s *Statistics) Finalize() {
	if !s.EndTime.IsZero() {
		return
	}
	s.EndTime = time.Now()
	s.TotalDuration = s.EndTime.Sub(s.StartTime)
}

// Format returns a one-line summary.
func (s *Statistics) Format() string {
	return fmt.Sprintf("%.1fs | %d fragments | TTFT %dms",
		s.TotalDuration.Seconds(), s.Tokens, s.TTFT.Milliseconds())
}
