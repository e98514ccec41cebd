// Package react drives the step-bounded ReAct cycle: one model call, tool
// extraction, tool execution, feeding outcomes back as history, until the
// model answers without tool calls or the step budget runs out.
//
// The Dispatcher executes one batch of finished tool calls and never returns
// an error: unknown names go through name repair and fall back to the
// __invalid__ sentinel, executor failures and panics become isError outcomes
// fed back to the model. The Loop aborts only on model-call errors; running
// out of steps is a defined terminal state, not a failure.
package react
