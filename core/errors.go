package core

import "fmt"

// maxBodySnippet bounds how much of an error body a TransportError carries.
const maxBodySnippet = 2048

// TransportError reports a non-2xx status or connection failure from the
// provider transport. It is fatal for the active call: decoding never begins
// (non-streaming) or aborts immediately (streaming). Conversation history is
// caller-owned, so callers may treat it as retryable.
type TransportError struct {
	Status int    // HTTP status code, 0 for connection-level failures
	Body   string // response body snippet, may be empty
	Err    error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("transport error: status %d: %s", e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("transport error: status %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("transport error: %v", e.Err)
	default:
		return "transport error"
	}
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError builds a TransportError, truncating oversized bodies.
func NewTransportError(status int, body string, err error) *TransportError {
	if len(body) > maxBodySnippet {
		body = body[:maxBodySnippet]
	}
	return &TransportError{Status: status, Body: body, Err: err}
}

// DecodeError reports a malformed streaming event payload. It is non-fatal:
// decoders log it and skip the event, the stream continues.
type DecodeError struct {
	EventType string
	Reason    string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.EventType != "" {
		return fmt.Sprintf("decode error in %q event: %s", e.EventType, e.Reason)
	}
	return fmt.Sprintf("decode error: %s", e.Reason)
}
