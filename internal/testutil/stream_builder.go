package testutil

import (
	"fmt"
	"io"

	"github.com/hupe1980/agentloop/decode"
)

// StreamBuilder provides a fluent helper for constructing event sequences in
// tests. Example:
//
//	src := NewStreamBuilder().
//	  Event("message_start", `{"message":{"usage":{"input_tokens":7}}}`).
//	  Event("content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"hi"}}`).
//	  Source()
//
// Chain only the events you need; Source returns a decode.EventSource that
// yields them in order and then io.EOF.
type StreamBuilder struct {
	events []decode.Event
}

// NewStreamBuilder creates an empty builder.
func NewStreamBuilder() *StreamBuilder { return &StreamBuilder{} }

// Event appends a named event with a JSON payload (chainable).
func (b *StreamBuilder) Event(evtType, payload string) *StreamBuilder {
	b.events = append(b.events, decode.Event{Type: evtType, Payload: []byte(payload)})
	return b
}

// Data appends an unnamed event, as chat completion SSE frames arrive (chainable).
func (b *StreamBuilder) Data(payload string) *StreamBuilder {
	return b.Event("", payload)
}

// Dataf appends an unnamed event with a formatted payload (chainable).
func (b *StreamBuilder) Dataf(format string, args ...any) *StreamBuilder {
	return b.Data(fmt.Sprintf(format, args...))
}

// Events returns the accumulated events.
func (b *StreamBuilder) Events() []decode.Event { return b.events }

// Source returns an EventSource over the accumulated events.
func (b *StreamBuilder) Source() decode.EventSource {
	return &SliceSource{events: b.events}
}

// SliceSource is an in-memory decode.EventSource for tests.
type SliceSource struct {
	events []decode.Event
	pos    int

	// Err, when set, is returned after the events are exhausted instead of
	// io.EOF, simulating a transport failure mid-stream.
	Err error
}

// NewSliceSource wraps a fixed event slice.
func NewSliceSource(events ...decode.Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next implements decode.EventSource.
func (s *SliceSource) Next() (decode.Event, error) {
	if s.pos >= len(s.events) {
		if s.Err != nil {
			return decode.Event{}, s.Err
		}
		return decode.Event{}, io.EOF
	}
	evt := s.events[s.pos]
	s.pos++
	return evt, nil
}
