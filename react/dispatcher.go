package react

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/tool"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Hooks observe and may veto individual tool calls.
	Hooks Hooks

	// Logger receives execution diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Dispatcher resolves, repairs and executes one batch of finished tool
// calls. Execute never returns an error and never panics: every fault is
// absorbed into the affected call's outcome so the loop can feed it back to
// the model.
type Dispatcher struct {
	registry *tool.Registry
	invalid  tool.Tool
	hooks    Hooks
	logger   logging.Logger
}

// NewDispatcher builds a dispatcher over the given registry. The __invalid__
// sentinel is always part of the execution set.
func NewDispatcher(registry *tool.Registry, optFns ...func(*DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Dispatcher{
		registry: registry,
		invalid:  tool.NewInvalidTool(registry.Names),
		hooks:    opts.Hooks,
		logger:   opts.Logger,
	}
}

// WithHooks sets the execution hooks.
func WithHooks(hooks Hooks) func(*DispatcherOptions) {
	return func(o *DispatcherOptions) { o.Hooks = hooks }
}

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(logger logging.Logger) func(*DispatcherOptions) {
	return func(o *DispatcherOptions) { o.Logger = logger }
}

// Execute runs every call in order and returns one outcome per call, same
// order. Calls run sequentially in the model-returned order. The state
// handle is passed by reference to executors; synchronizing access across
// concurrent loop invocations is the caller's responsibility.
func (d *Dispatcher) Execute(ctx context.Context, calls []core.ToolCall, state tool.State) []core.ToolExecutionOutcome {
	if len(calls) == 0 {
		return nil
	}
	if state == nil {
		state = tool.State{}
	}

	outcomes := make([]core.ToolExecutionOutcome, len(calls))
	for i, call := range calls {
		outcomes[i] = d.executeOne(ctx, call, state)
	}
	return outcomes
}

func (d *Dispatcher) executeOne(ctx context.Context, call core.ToolCall, state tool.State) (outcome core.ToolExecutionOutcome) {
	name := call.Name
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch.panic", "tool", name, "call_id", call.ID, "recover", r, "stack", string(debug.Stack()))
			outcome = errorOutcome(call.ID, name, fmt.Errorf("panic: %v", r))
		}
	}()

	impl, ok := d.registry.Get(name)
	if !ok {
		impl, name, args = d.repairCall(call, args)
	}

	if d.hooks.OnToolStart != nil {
		if err := d.hooks.OnToolStart(name, args); err != nil {
			d.logger.Warn("dispatch.vetoed", "tool", name, "call_id", call.ID, "error", err.Error())
			return errorOutcome(call.ID, name, err)
		}
	}

	start := time.Now()
	result, err := impl.Call(tool.NewContext(ctx, call.ID, state, d.logger), args)
	if err != nil {
		d.logger.Warn("dispatch.tool_error", "tool", name, "call_id", call.ID, "error", err.Error())
		return errorOutcome(call.ID, name, err)
	}

	result = d.maybeRetry(ctx, impl, call, args, state, result)

	text := stringify(result)
	d.logger.Debug("dispatch.executed", "tool", name, "call_id", call.ID, "duration_ms", time.Since(start).Milliseconds())

	if d.hooks.OnToolEnd != nil {
		if err := d.hooks.OnToolEnd(name, text); err != nil {
			d.logger.Warn("dispatch.end_hook_error", "tool", name, "error", err.Error())
			return errorOutcome(call.ID, name, err)
		}
	}

	return core.ToolExecutionOutcome{ID: call.ID, Name: name, Result: text}
}

// repairCall applies the name repair ladder after an exact-lookup miss. The
// terminal fallback rewrites the call to the __invalid__ sentinel, which
// reports a structured failure instead of raising.
func (d *Dispatcher) repairCall(call core.ToolCall, args map[string]any) (tool.Tool, string, map[string]any) {
	if repaired, ok := tool.ResolveName(call.Name, d.registry.Names()); ok {
		if impl, found := d.registry.Get(repaired); found {
			d.logger.Info("dispatch.name_repaired", "from", call.Name, "to", repaired, "call_id", call.ID)
			return impl, repaired, args
		}
	}

	d.logger.Warn("dispatch.unknown_tool", "tool", call.Name, "call_id", call.ID)
	return d.invalid, tool.InvalidToolName, tool.InvalidCallArguments(call.Name, args, "no registered tool matches")
}

// maybeRetry applies the documented soft recovery: when an executor reports
// its own internal failure through a structured success=false result and the
// tool offers argument variants, each variant is tried in order before the
// failure stands.
func (d *Dispatcher) maybeRetry(ctx context.Context, impl tool.Tool, call core.ToolCall, args map[string]any, state tool.State, result any) any {
	if !isInternalFailure(result) {
		return result
	}
	retrier, ok := impl.(tool.ArgumentRetrier)
	if !ok {
		return result
	}

	for _, variant := range retrier.ArgumentVariants(args) {
		d.logger.Info("dispatch.retry_variant", "tool", call.Name, "call_id", call.ID)

		retried, err := impl.Call(tool.NewContext(ctx, call.ID, state, d.logger), variant)
		if err != nil {
			continue
		}
		if !isInternalFailure(retried) {
			return retried
		}
	}
	return result
}

// isInternalFailure recognizes a structured executor result that reports its
// own failure without raising.
func isInternalFailure(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	success, ok := m["success"].(bool)
	return ok && !success
}

// stringify renders a tool result for the conversation. Strings pass
// through, everything else is serialized as JSON with a formatting fallback.
func stringify(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func errorOutcome(id, name string, err error) core.ToolExecutionOutcome {
	return core.ToolExecutionOutcome{
		ID:      id,
		Name:    name,
		Result:  fmt.Sprintf("Error executing tool %s: %v", name, err),
		IsError: true,
	}
}
