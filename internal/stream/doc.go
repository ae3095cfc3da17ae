// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the assistant endpoint's chunked text stream.
//
// The wire format is a sequence of newline-separated records. Each useful
// record has the shape `data: <payload>` where the payload is either a JSON
// object with a "token" or "error" key, or the literal [DONE] sentinel:
//
//	data: {"token": "Access control "}
//	data: {"token": "covers..."}
//	data: [DONE]
//
// # Key Types
//
//   - Decoder: incremental record decoder with a residual buffer
//   - Event: append, error or done
//   - ChunkSource: pull-based stream abstraction (Next/Close)
//   - ReaderSource: ChunkSource over an HTTP response body
//   - SliceSource: ChunkSource over synthetic chunks
//
// # Usage
//
//	dec := stream.NewDecoder()
//	for {
//	    chunk, err := src.Next(ctx)
//	    if err != nil {
//	        break
//	    }
//	    for _, ev := range dec.Feed(chunk) {
//	        // apply ev
//	    }
//	}
//
// Malformed records are dropped individually and never stop decoding.
package stream
