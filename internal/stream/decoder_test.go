// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wellFormed is a complete stream whose tokens contain separators, colons,
// escapes and multi-byte runes.
const wellFormed = "data: {\"token\": \"Access \"}\n" +
	"\n" +
	"data: {\"token\": \"control: \\\"least\\\" \"}\n" +
	": keep-alive\n" +
	"data: {\"token\": \"privilege\\n\"}\n" +
	"data: {\"token\": \"über ✓ 日本\"}\n" +
	"data: [DONE]\n"

const wantText = "Access control: \"least\" privilege\nüber ✓ 日本"

// assemble feeds chunks through a fresh decoder and concatenates the append
// events, reporting whether a done event was seen.
func assemble(t *testing.T, chunks []string) (string, bool) {
	t.Helper()
	dec := NewDecoder()
	var sb strings.Builder
	done := false
	for _, c := range chunks {
		for _, ev := range dec.Feed([]byte(c)) {
			switch ev.Kind {
			case EventAppend:
				require.False(t, done, "append after done")
				sb.WriteString(ev.Text)
			case EventDone:
				done = true
			case EventError:
				t.Fatalf("unexpected error event: %q", ev.Text)
			}
		}
	}
	return sb.String(), done
}

// =============================================================================
// CHUNK BOUNDARY INDEPENDENCE
// =============================================================================

func TestDecoder_SingleChunk(t *testing.T) {
	text, done := assemble(t, []string{wellFormed})
	assert.True(t, done)
	assert.Equal(t, wantText, text)
}

func TestDecoder_FixedChunkSizes(t *testing.T) {
	for n := 1; n <= len(wellFormed); n++ {
		text, done := assemble(t, splitEvery(wellFormed, n))
		require.True(t, done, "chunk size %d: missing done", n)
		require.Equal(t, wantText, text, "chunk size %d", n)
	}
}

func TestDecoder_RandomChunkBoundaries(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		var chunks []string
		rest := wellFormed
		for len(rest) > 0 {
			n := 1 + rng.Intn(len(rest))
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		text, done := assemble(t, chunks)
		require.True(t, done)
		require.Equal(t, wantText, text, "trial %d chunks %q", trial, chunks)
	}
}

// =============================================================================
// MALFORMED RECORDS
// =============================================================================

func TestDecoder_MalformedRecordBetweenTokens(t *testing.T) {
	raw := "data: {\"token\": \"first \"}\n" +
		"data: {\"token\": broken\n" +
		"data: {\"token\": \"second\"}\n" +
		"data: [DONE]\n"

	dec := NewDecoder()
	text, done := assemble(t, []string{raw})

	assert.True(t, done)
	assert.Equal(t, "first second", text)

	dec.Feed([]byte(raw))
	assert.Equal(t, 1, dec.Dropped())
}

func TestDecoder_IgnoresUnknownShapes(t *testing.T) {
	raw := "event: message\n" +
		"id: 7\n" +
		"no separator here\n" +
		"data: {\"other\": 1}\n" +
		"data: 42\n" +
		"data:{\"token\":\"ok\"}\n"

	dec := NewDecoder()
	events := dec.Feed([]byte(raw))

	require.Len(t, events, 1)
	assert.Equal(t, Event{Kind: EventAppend, Text: "ok"}, events[0])
	assert.Equal(t, 5, dec.Dropped())
	assert.False(t, dec.Done())
}

func TestDecoder_CRLF(t *testing.T) {
	text, done := assemble(t, []string{"data: {\"token\": \"a\"}\r\n\r\ndata: {\"token\": \"b\"}\r\ndata: [DONE]\r\n"})
	assert.True(t, done)
	assert.Equal(t, "ab", text)
}

// =============================================================================
// TERMINAL EVENTS
// =============================================================================

func TestDecoder_DoneStopsRemainderOfChunk(t *testing.T) {
	dec := NewDecoder()
	events := dec.Feed([]byte("data: {\"token\": \"a\"}\ndata: [DONE]\ndata: {\"token\": \"late\"}\n"))

	require.Len(t, events, 2)
	assert.Equal(t, EventDone, events[1].Kind)
	assert.True(t, dec.Done())
	assert.Empty(t, dec.Feed([]byte("data: {\"token\": \"later\"}\n")))
	assert.Zero(t, dec.Pending())
}

func TestDecoder_ErrorIsTerminal(t *testing.T) {
	dec := NewDecoder()
	events := dec.Feed([]byte("data: {\"token\": \"a\"}\ndata: {\"error\": \"model overloaded\"}\ndata: {\"token\": \"b\"}\n"))

	require.Len(t, events, 2)
	assert.Equal(t, Event{Kind: EventError, Text: "model overloaded"}, events[1])
	assert.True(t, events[1].Terminal())
	assert.True(t, dec.Done())
}

func TestDecoder_PartialRecordRetained(t *testing.T) {
	dec := NewDecoder()

	assert.Empty(t, dec.Feed([]byte("data: {\"tok")))
	assert.Equal(t, len("data: {\"tok"), dec.Pending())

	events := dec.Feed([]byte("en\": \"x\"}\n"))
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Text)
}

func TestDecoder_FlushDecodesUnterminatedRecord(t *testing.T) {
	dec := NewDecoder()
	assert.Empty(t, dec.Feed([]byte("data: {\"token\": \"tail\"}")))

	events := dec.Flush()
	require.Len(t, events, 1)
	assert.Equal(t, "tail", events[0].Text)
	assert.Empty(t, dec.Flush())
}

func TestDecoder_OversizedRecord(t *testing.T) {
	dec := NewDecoder()
	events := dec.Feed([]byte("data: " + strings.Repeat("x", MaxRecordSize+1)))

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.True(t, dec.Done())
}

// =============================================================================
// SOURCES
// =============================================================================

func TestReaderSource_ByteAtATime(t *testing.T) {
	body := io.NopCloser(iotest.OneByteReader(strings.NewReader(wellFormed)))
	src := NewReaderSource(body)
	defer src.Close()

	dec := NewDecoder()
	var sb strings.Builder
	for !dec.Done() {
		chunk, err := src.Next(context.Background())
		require.NoError(t, err)
		require.Len(t, chunk, 1)
		for _, ev := range dec.Feed(chunk) {
			if ev.Kind == EventAppend {
				sb.WriteString(ev.Text)
			}
		}
	}
	assert.Equal(t, wantText, sb.String())
}

func TestReaderSource_EOF(t *testing.T) {
	src := NewReaderSource(io.NopCloser(strings.NewReader("abc")))

	chunk, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(chunk))

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close())
}

func TestReaderSource_CancelledContext(t *testing.T) {
	src := NewReaderSource(io.NopCloser(strings.NewReader("abc")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource("a", "b")
	ctx := context.Background()

	c, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(c))
	c, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", string(c))
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, src.Close())
	assert.True(t, src.Closed())
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceClosed)
}

// splitEvery cuts raw into chunks of n bytes; the last one may be shorter.
func splitEvery(raw string, n int) []string {
	if n <= 0 {
		n = 1
	}
	var chunks []string
	for len(raw) > n {
		chunks = append(chunks, raw[:n])
		raw = raw[n:]
	}
	if raw != "" {
		chunks = append(chunks, raw)
	}
	return chunks
}
