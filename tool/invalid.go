package tool

import (
	"fmt"
	"strings"
)

// InvalidToolName is the reserved sentinel tool absorbing calls whose name
// could not be repaired. It always exists in the execution set, so a
// hallucinated tool name degrades into a structured error payload the model
// can read and self-correct from, never into an aborted loop.
const InvalidToolName = "__invalid__"

// InvalidCallArguments builds the argument payload the dispatcher attaches
// when rewriting an unrepairable call to the sentinel.
func InvalidCallArguments(originalTool string, originalArgs map[string]any, reason string) map[string]any {
	if originalArgs == nil {
		originalArgs = map[string]any{}
	}
	return map[string]any{
		"original_tool":      originalTool,
		"original_arguments": originalArgs,
		"error":              reason,
	}
}

// invalidTool is the sentinel implementation. available supplies the current
// registry names so the error payload can carry a suggestion.
type invalidTool struct {
	available func() []string
}

// NewInvalidTool constructs the sentinel. available may be nil.
func NewInvalidTool(available func() []string) Tool {
	return &invalidTool{available: available}
}

func (t *invalidTool) Name() string { return InvalidToolName }

func (t *invalidTool) Description() string {
	return "Internal sentinel receiving tool calls whose name matched no registered tool."
}

func (t *invalidTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"original_tool":      map[string]any{"type": "string", "description": "Tool name the model asked for"},
			"original_arguments": map[string]any{"type": "object", "description": "Arguments of the original call"},
			"error":              map[string]any{"type": "string", "description": "Why the name could not be resolved"},
		},
	}
}

// Call returns a structured failure payload instead of an error so the
// outcome is fed back into the conversation rather than raised.
func (t *invalidTool) Call(toolCtx *Context, args map[string]any) (any, error) {
	original, _ := args["original_tool"].(string)
	reason, _ := args["error"].(string)
	if reason == "" {
		reason = fmt.Sprintf("no tool named %q is registered", original)
	}

	suggestion := "Check the tool list provided in the system context and retry with an exact name."
	if t.available != nil {
		if names := t.available(); len(names) > 0 {
			suggestion = "Available tools: " + strings.Join(names, ", ")
		}
	}

	return map[string]any{
		"success":    false,
		"error_type": "invalid_tool_call",
		"message":    reason,
		"suggestion": suggestion,
	}, nil
}
