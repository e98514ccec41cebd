package react

import "errors"

// ErrPermissionDenied vetoes a tool call from an OnToolStart hook. The
// dispatcher turns it into an isError outcome, never a propagated error.
var ErrPermissionDenied = errors.New("permission denied")

// Hooks observes tool execution. Either hook may return an error (or panic);
// both become isError outcomes on the affected call and never abort the
// batch or the loop.
type Hooks struct {
	// OnToolStart runs before a tool executes, after name repair and
	// argument normalization. Return ErrPermissionDenied (or any error) to
	// veto the call.
	OnToolStart func(name string, args map[string]any) error

	// OnToolEnd runs after a tool executed successfully, with the
	// stringified result.
	OnToolEnd func(name string, result string) error
}
