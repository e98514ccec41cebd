// Package tool implements the function / tool calling subsystem that lets the
// loop invoke structured capabilities (APIs, computations, side-effects) with
// schema validated arguments, consistent error handling and best-effort repair
// of the loosely formed names and argument payloads models actually emit.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentloop/internal/util"
	"github.com/hupe1980/agentloop/logging"
)

// Tool defines the interface for capabilities exposed to the model.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions (snake_case names)
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the LLM to help it decide when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with normalized, keyed arguments. The Context
	// gives access to the call id, the shared state handle and a logger.
	Call(toolCtx *Context, args map[string]any) (any, error)
}

// ArgumentRetrier is an optional capability: a tool that knows alternate
// argument spellings for itself (e.g. a skill-script runner whose scripts
// disagree on parameter naming) can implement it. When the executor reports
// an internal failure, the dispatcher retries each variant in order before
// surfacing the failure.
type ArgumentRetrier interface {
	ArgumentVariants(args map[string]any) []map[string]any
}

// State is the mutable shared environment handed by reference to every tool
// executor in a run, letting tools pass data between each other across loop
// steps. The engine never locks it: synchronization discipline is the
// caller's responsibility when executors run concurrently.
type State map[string]any

// Get returns the value stored under key.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Set stores value under key.
func (s State) Set(key string, value any) { s[key] = value }

// Context scopes one tool invocation: the originating call id, the shared
// state handle and a logger. It is created by the dispatcher per call.
type Context struct {
	ctx    context.Context
	callID string
	state  State
	logger logging.Logger
}

// NewContext builds a tool invocation context. A nil logger is replaced by
// a NoOpLogger so tools can log unconditionally.
func NewContext(ctx context.Context, callID string, state State, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{ctx: ctx, callID: callID, state: state, logger: logger}
}

// Context returns the context bounding this invocation.
func (c *Context) Context() context.Context { return c.ctx }

// CallID returns the model-issued (or synthesized) tool call identifier.
func (c *Context) CallID() string { return c.callID }

// State returns the shared state handle, which may be nil when the caller
// supplied none.
func (c *Context) State() State { return c.state }

// Logger returns the invocation logger, never nil.
func (c *Context) Logger() logging.Logger { return c.logger }

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
