package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportError(t *testing.T) {
	t.Run("status and body", func(t *testing.T) {
		err := NewTransportError(429, `{"error":"rate limited"}`, nil)
		assert.Contains(t, err.Error(), "status 429")
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("status only", func(t *testing.T) {
		err := NewTransportError(503, "", nil)
		assert.Equal(t, "transport error: status 503", err.Error())
	})

	t.Run("connection failure wraps cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewTransportError(0, "", cause)
		assert.Contains(t, err.Error(), "connection refused")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("oversized body truncated", func(t *testing.T) {
		body := strings.Repeat("x", 10_000)
		err := NewTransportError(500, body, nil)
		assert.Len(t, err.Body, maxBodySnippet)
	})

	t.Run("errors.As through wrapping", func(t *testing.T) {
		inner := NewTransportError(401, "unauthorized", nil)
		wrapped := errors.Join(errors.New("model call failed"), inner)

		var te *TransportError
		assert.True(t, errors.As(wrapped, &te))
		assert.Equal(t, 401, te.Status)
	})
}

func TestDecodeError(t *testing.T) {
	err := &DecodeError{EventType: "content_block_delta", Reason: "invalid JSON payload"}
	assert.Contains(t, err.Error(), `"content_block_delta"`)
	assert.Contains(t, err.Error(), "invalid JSON payload")

	bare := &DecodeError{Reason: "empty payload"}
	assert.Equal(t, "decode error: empty payload", bare.Error())
}
