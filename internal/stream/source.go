// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// DefaultReadSize is the buffer size used for each network read.
const DefaultReadSize = 4 * 1024

// ErrSourceClosed is returned by Next after Close.
var ErrSourceClosed = errors.New("stream source closed")

// =============================================================================
// CHUNK SOURCE
// =============================================================================

// ChunkSource delivers raw chunks of an open stream. Next blocks until a
// chunk is available and returns io.EOF once the stream has ended cleanly.
// Close releases the underlying resource and unblocks a pending Next; it is
// safe to call more than once and from another goroutine.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// =============================================================================
// READER SOURCE
// =============================================================================

// ReaderSource adapts an io.ReadCloser (typically an HTTP response body).
type ReaderSource struct {
	body     io.ReadCloser
	readSize int

	closeOnce sync.Once
	closeErr  error
}

// NewReaderSource wraps body.
func NewReaderSource(body io.ReadCloser) *ReaderSource {
	return &ReaderSource{
		body:     body,
		readSize: DefaultReadSize,
	}
}

// Next reads whatever bytes are available, up to the read size.
func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.readSize)
	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			// Hand back the data now; a trailing error resurfaces on the next read.
			return buf[:n], nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
	}
}

// Close closes the body once.
func (s *ReaderSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// =============================================================================
// SLICE SOURCE
// =============================================================================

// SliceSource replays a fixed chunk sequence. It lets callers drive the
// decoder and session controller without a network.
type SliceSource struct {
	mu     sync.Mutex
	chunks [][]byte
	pos    int
	closed bool
	// Err, when set, is returned instead of io.EOF after the last chunk.
	Err error
}

// NewSliceSource creates a source that yields chunks in order.
func NewSliceSource(chunks ...string) *SliceSource {
	s := &SliceSource{chunks: make([][]byte, len(chunks))}
	for i, c := range chunks {
		s.chunks[i] = []byte(c)
	}
	return s
}

// Next returns the next chunk, io.EOF at the end, or ErrSourceClosed.
func (s *SliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	if s.pos >= len(s.chunks) {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// Close marks the source closed.
func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *SliceSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
