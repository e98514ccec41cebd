// Package core provides the foundational domain types shared across the
// agentloop engine. It defines the provider-agnostic abstractions for:
//
//   - ToolCall / ToolDefinition (normalized function calling representation)
//   - GenerationResult (the uniform outcome of one model call, streaming or not)
//   - ToolExecutionOutcome (the uniform outcome of one executed tool call)
//   - Message / HistoryFormat (provider wire-shaped conversation history)
//   - TransportError / DecodeError (the two error classes of the decode layer)
//
// The package intentionally keeps implementation concerns (decoders, tool
// execution, loop orchestration, vendor SDKs) out of scope so that higher
// layers remain decoupled from each other and from any single provider.
package core
