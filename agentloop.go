// Package agentloop provides a high-level façade over the react loop and its
// supporting abstractions (models, tools, stream decoding & logging) enabling
// rapid construction of tool-using LLM agents. Most applications interact
// with this package by:
//  1. Creating an Agent via New() with a model and a set of tools
//  2. Invoking it with a prompt (Run) or a prepared history (RunMessages)
//  3. Inspecting the returned result, history and tool-call record
//
// The façade delegates orchestration to react.Loop while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a structured logger and
// tuned step budgets.
package agentloop

import (
	"context"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/decode"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/react"
	"github.com/hupe1980/agentloop/tool"
)

// Options configures the Agent instance.
type Options struct {
	// MaxSteps limits the number of model invocations per run. When the
	// budget runs out with tool calls still pending, the run terminates
	// with a budget warning instead of an error. Defaults to
	// react.DefaultMaxSteps.
	MaxSteps int

	// System is the system prompt sent with every model call.
	System string

	// Hooks observe tool execution and may veto individual calls.
	Hooks react.Hooks

	// State is shared mutable state handed to every tool executor.
	State tool.State

	// StreamHandler, when set, switches model calls to streaming and
	// receives every canonical delta as it arrives.
	StreamHandler func(decode.Delta)

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Agent is the high-level façade aggregating a model, a tool registry and the
// loop that drives them.
type Agent struct {
	opts     Options
	registry *tool.Registry
	loop     *react.Loop
}

// New creates a new Agent over the given model and tools with optional
// overrides.
func New(m model.Model, tools []tool.Tool, optFns ...func(o *Options)) *Agent {
	opts := Options{
		MaxSteps: react.DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := tool.NewRegistry()
	for _, t := range tools {
		registry.Register(t)
	}

	loop := react.New(m, registry,
		react.WithMaxSteps(opts.MaxSteps),
		react.WithSystem(opts.System),
		react.WithLoopHooks(opts.Hooks),
		react.WithState(opts.State),
		react.WithStreamHandler(opts.StreamHandler),
		react.WithLogger(opts.Logger),
	)

	return &Agent{opts: opts, registry: registry, loop: loop}
}

// Registry exposes the underlying tool registry for late registration.
func (a *Agent) Registry() *tool.Registry { return a.registry }

// Run executes the loop for a single user prompt.
func (a *Agent) Run(ctx context.Context, prompt string) (*react.Result, error) {
	return a.loop.Run(ctx, []core.Message{core.UserMessage(prompt)})
}

// RunMessages executes the loop against a prepared conversation history. The
// input slice is not mutated.
func (a *Agent) RunMessages(ctx context.Context, messages []core.Message) (*react.Result, error) {
	return a.loop.Run(ctx, messages)
}
