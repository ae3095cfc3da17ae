// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		" WARN ":   zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"":         zerolog.InfoLevel,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Output: &buf}).Component("chat").With("mode", "assisted")

	log.Info().Int("tokens", 3).Msg("session complete")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "chat" || entry["mode"] != "assisted" {
		t.Errorf("missing scoped fields: %v", entry)
	}
	if entry["service"] != "csf-assist" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["message"] != "session complete" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("info written at warn level: %s", buf.String())
	}

	log.LogRequest("PATCH", "/api/assessment-items/1", 500, time.Millisecond, errors.New("boom"))
	if !bytes.Contains(buf.Bytes(), []byte(`"status":500`)) {
		t.Errorf("failed request not logged: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	// Must not panic.
	Nop().Error().Msg("discarded")
}
