package react

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/decode"
	"github.com/hupe1980/agentloop/internal/util"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// DefaultMaxSteps bounds the loop when no explicit budget is configured.
const DefaultMaxSteps = 10

// Options configures a Loop.
type Options struct {
	// MaxSteps is the model-invocation budget. The loop performs at most
	// this many model calls; a final turn that still requests tools is
	// returned unexecuted with a budget warning.
	MaxSteps int

	// System is the system prompt sent with every model call. It may
	// contain Go template markers ({{.key}}) resolved against State at
	// each step.
	System string

	// Hooks observe and may veto tool execution.
	Hooks Hooks

	// State is the shared handle passed by reference to tool executors.
	// Synchronization across concurrent Run invocations is the caller's
	// responsibility.
	State tool.State

	// StreamHandler, when set, switches model calls to streaming and
	// observes the canonical delta stream, reasoning markers included.
	StreamHandler func(decode.Delta)

	// Logger receives step diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// WithMaxSteps sets the model-invocation budget.
func WithMaxSteps(n int) func(*Options) {
	return func(o *Options) { o.MaxSteps = n }
}

// WithSystem sets the system prompt.
func WithSystem(system string) func(*Options) {
	return func(o *Options) { o.System = system }
}

// WithLoopHooks sets the tool execution hooks.
func WithLoopHooks(hooks Hooks) func(*Options) {
	return func(o *Options) { o.Hooks = hooks }
}

// WithState sets the shared state handle passed to tool executors.
func WithState(state tool.State) func(*Options) {
	return func(o *Options) { o.State = state }
}

// WithStreamHandler switches the loop to streaming model calls.
func WithStreamHandler(handler func(decode.Delta)) func(*Options) {
	return func(o *Options) { o.StreamHandler = handler }
}

// WithLogger sets the loop logger.
func WithLogger(logger logging.Logger) func(*Options) {
	return func(o *Options) { o.Logger = logger }
}

// Result is the terminal state of one Run invocation.
type Result struct {
	// Result is the final generation, the one that ended the loop.
	Result *core.GenerationResult

	// Messages is the full conversation history including every appended
	// assistant and tool-result entry.
	Messages []core.Message

	// Steps counts the model invocations performed.
	Steps int

	// AllToolCalls accumulates one batch per step that requested tools,
	// for observability. The final batch is present even when the budget
	// left it unexecuted.
	AllToolCalls [][]core.ToolCall

	// BudgetExhausted marks the StepBudgetExceeded terminal state: the
	// final batch of tool calls was not executed.
	BudgetExhausted bool

	// Warning annotates the result when the budget was exhausted.
	Warning string
}

// Loop orchestrates repeated model → dispatcher cycles against one model and
// one tool registry. A Loop is reusable; every Run owns its private history
// copy. Concurrent Run invocations are fine as long as the configured state
// handle tolerates them.
type Loop struct {
	model      model.Model
	registry   *tool.Registry
	dispatcher *Dispatcher
	opts       Options
}

// New builds a loop over the given model and tools.
func New(m model.Model, registry *tool.Registry, optFns ...func(*Options)) *Loop {
	opts := Options{
		MaxSteps: DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Loop{
		model:    m,
		registry: registry,
		dispatcher: NewDispatcher(registry,
			WithHooks(opts.Hooks),
			WithDispatcherLogger(opts.Logger),
		),
		opts: opts,
	}
}

// Run drives the cycle until the model answers without tool calls or the
// step budget runs out. The input history is not mutated. Model-call errors
// abort the whole run; tool-level faults never do.
func (l *Loop) Run(ctx context.Context, messages []core.Message) (*Result, error) {
	msgs := append([]core.Message(nil), messages...)
	format := l.model.HistoryFormat()
	invocationID := uuid.NewString()

	run := &Result{}

	for step := 1; ; step++ {
		l.opts.Logger.Debug("react.step.start", "invocation_id", invocationID, "step", step)

		res, err := l.generate(ctx, msgs)
		if err != nil {
			return nil, fmt.Errorf("model call failed at step %d: %w", step, err)
		}

		run.Result = res
		run.Steps = step
		msgs = append(msgs, format.AssistantMessage(res)...)

		if len(res.ToolCalls) == 0 {
			l.opts.Logger.Info("react.done", "invocation_id", invocationID, "steps", step)
			break
		}

		run.AllToolCalls = append(run.AllToolCalls, res.ToolCalls)

		if l.registry.Len() == 0 {
			// Nothing to dispatch to: hallucinated calls against an empty
			// registry terminate the run instead of burning the budget on
			// invalid-tool round trips.
			l.opts.Logger.Warn("react.no_tools_registered",
				"invocation_id", invocationID,
				"requested_calls", len(res.ToolCalls),
			)
			break
		}

		if step >= l.opts.MaxSteps {
			run.BudgetExhausted = true
			run.Warning = fmt.Sprintf(
				"step budget of %d exhausted; %d pending tool calls were not executed",
				l.opts.MaxSteps, len(res.ToolCalls),
			)
			l.opts.Logger.Warn("react.budget_exhausted",
				"invocation_id", invocationID,
				"steps", step,
				"pending_calls", len(res.ToolCalls),
			)
			break
		}

		outcomes := l.dispatcher.Execute(ctx, res.ToolCalls, l.opts.State)
		for _, outcome := range outcomes {
			msgs = append(msgs, format.ToolResultMessage(outcome.ID, outcome.Name, outcome.Result))
		}
	}

	run.Messages = msgs
	return run, nil
}

func (l *Loop) generate(ctx context.Context, msgs []core.Message) (*core.GenerationResult, error) {
	req := model.Request{
		System:   l.systemPrompt(),
		Messages: msgs,
		Tools:    l.registry.Definitions(),
	}

	if l.opts.StreamHandler != nil {
		return l.model.DoStream(ctx, req, l.opts.StreamHandler)
	}
	return l.model.DoGenerate(ctx, req)
}

// systemPrompt renders the configured system prompt against the shared state,
// so prompts can reference state values set by earlier tool executions. A
// render failure falls back to the raw prompt.
func (l *Loop) systemPrompt() string {
	rendered, err := util.RenderTemplate(l.opts.System, l.opts.State)
	if err != nil {
		l.opts.Logger.Warn("react.system_prompt.render_failed", "error", err)
		return l.opts.System
	}
	return rendered
}
