// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// WIRE CONSTANTS
// =============================================================================

const (
	// DataField is the record field that carries a payload.
	DataField = "data"

	// DoneSentinel is the payload that signals successful completion.
	DoneSentinel = "[DONE]"

	// MaxRecordSize is the maximum size of a single undelimited record (64KB).
	MaxRecordSize = 64 * 1024
)

// recordSeparator delimits records on the wire.
const recordSeparator = '\n'

// =============================================================================
// EVENTS
// =============================================================================

// EventKind classifies a decoded event.
type EventKind int

const (
	// EventAppend carries a token fragment to append to the current message.
	EventAppend EventKind = iota
	// EventError carries a terminal error reported by the sender.
	EventError
	// EventDone signals terminal success.
	EventDone
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventAppend:
		return "append"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one application-level event decoded from the stream.
type Event struct {
	Kind EventKind
	// Text is the token fragment for EventAppend, the message for EventError.
	Text string
}

// Terminal reports whether the event ends the session.
func (e Event) Terminal() bool {
	return e.Kind == EventError || e.Kind == EventDone
}

// payload is the JSON body of a data record.
type payload struct {
	Token *string `json:"token"`
	Error *string `json:"error"`
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns raw stream chunks into events. Chunk boundaries need not line
// up with records: the undecoded tail of each chunk is kept until the next
// call. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	done    bool
	dropped int
}

// NewDecoder creates a decoder with an empty residual buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed decodes every complete record in buf+chunk and returns the resulting
// events in order. Once a terminal event has been produced the decoder
// ignores all further input.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(d.buf, recordSeparator)
		if idx < 0 {
			break
		}
		record := d.buf[:idx]
		d.buf = d.buf[idx+1:]

		if ev, ok := d.decodeRecord(record); ok {
			events = append(events, ev)
			if ev.Terminal() {
				d.finish()
				return events
			}
		}
	}

	if len(d.buf) > MaxRecordSize {
		d.finish()
		events = append(events, Event{Kind: EventError, Text: "stream record exceeds size limit"})
		return events
	}

	// Compact so the residual does not pin the whole chunk history.
	if len(d.buf) == 0 {
		d.buf = nil
	} else if cap(d.buf) > 4*len(d.buf)+MaxRecordSize {
		d.buf = append([]byte(nil), d.buf...)
	}
	return events
}

// Flush decodes a final record that was not followed by a separator. Call it
// when the transport reports a clean end of stream.
func (d *Decoder) Flush() []Event {
	if d.done || len(d.buf) == 0 {
		return nil
	}
	record := d.buf
	d.buf = nil
	ev, ok := d.decodeRecord(record)
	if !ok {
		return nil
	}
	if ev.Terminal() {
		d.finish()
	}
	return []Event{ev}
}

// Done reports whether a terminal event has been decoded.
func (d *Decoder) Done() bool {
	return d.done
}

// Dropped returns the number of records discarded as malformed.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Pending returns the number of buffered, undecoded bytes.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

func (d *Decoder) finish() {
	d.done = true
	d.buf = nil
}

// decodeRecord parses one record. Blank lines are separators between events
// and are skipped without counting as dropped.
func (d *Decoder) decodeRecord(record []byte) (Event, bool) {
	record = bytes.TrimSuffix(record, []byte{'\r'})
	if len(bytes.TrimSpace(record)) == 0 {
		return Event{}, false
	}

	field, value, ok := bytes.Cut(record, []byte{':'})
	if !ok || string(field) != DataField {
		// Comments (": ping"), event/id/retry fields and junk all land here.
		d.dropped++
		return Event{}, false
	}
	value = bytes.TrimPrefix(value, []byte{' '})

	if string(bytes.TrimSpace(value)) == DoneSentinel {
		return Event{Kind: EventDone}, true
	}

	var p payload
	if err := json.Unmarshal(value, &p); err != nil {
		d.dropped++
		return Event{}, false
	}
	switch {
	case p.Error != nil:
		return Event{Kind: EventError, Text: *p.Error}, true
	case p.Token != nil:
		return Event{Kind: EventAppend, Text: *p.Token}, true
	default:
		d.dropped++
		return Event{}, false
	}
}
