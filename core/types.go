package core

import "encoding/json"

// ToolCall is a finished tool invocation request surfaced by a model, after
// fragment assembly and argument normalization. Unified across vendors so
// downstream logic does not need per-provider branching.
//
// Arguments is always a keyed mapping, never a list, even when empty.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected);
// this package treats it as opaque.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage captures token usage statistics for a response. Providers that report
// usage only on the final stream chunk still populate it at finalize.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResult is the uniform outcome of one model call. The streaming
// and non-streaming paths both terminate in this shape (see package decode).
//
// ToolCalls is nil, never an empty slice, when no tool was invoked; callers
// rely on this to decide loop termination.
type GenerationResult struct {
	Text         string          `json:"text"`
	Reasoning    string          `json:"reasoning,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	ToolCalls    []ToolCall      `json:"tool_calls,omitempty"`
	RawResponse  json.RawMessage `json:"-"`
}

// ToolExecutionOutcome reports the result of executing one tool call. The
// dispatcher emits exactly one outcome per incoming call, in call order.
type ToolExecutionOutcome struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}
