package model

import (
	"context"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/decode"
)

// Request captures the normalized model input produced by the loop.
// Messages are already in the provider's wire shape (the loop builds them
// through the provider's core.HistoryFormat), so adapters pass them through
// rather than translating a second time.
type Request struct {
	// System carries the system prompt, when the provider keeps it separate
	// from the message list.
	System string

	// Messages is the conversation history in provider wire shape.
	Messages []core.Message

	// Tools declares the callable functions exposed to the model.
	Tools []core.ToolDefinition

	// MaxTokens bounds the completion length. Zero means provider default.
	MaxTokens int

	// Temperature, when non-nil, overrides the provider default.
	Temperature *float64
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the react loop needs to drive generation.
// Dispatch is via this interface, never via provider conditionals.
type Model interface {
	// DoGenerate performs one non-streaming call.
	DoGenerate(ctx context.Context, req Request) (*core.GenerationResult, error)

	// DoStream performs one streaming call. The emit handler, when non-nil,
	// observes the canonical delta stream including synthesized reasoning
	// markers; the returned result is identical in shape to DoGenerate's.
	DoStream(ctx context.Context, req Request, emit func(decode.Delta)) (*core.GenerationResult, error)

	// HistoryFormat names the message convention the loop must use when
	// appending assistant and tool-result messages for this provider.
	HistoryFormat() core.HistoryFormat

	// Info returns information about the model implementation.
	Info() Info
}
