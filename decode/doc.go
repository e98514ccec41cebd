// Package decode turns provider streaming events into a canonical delta
// model and assembles finished generation results from them.
//
// Three wire dialects are supported, each with its own Decoder:
//
//   - AnthropicDecoder: block-indexed events (content_block_start,
//     content_block_delta, message_delta, message_stop)
//   - ChatCompletionsDecoder: delta-choice chunks (choices[0].delta with
//     content, reasoning_content and index-keyed tool_calls), as emitted by
//     OpenAI Chat Completions and compatible proxies
//   - ResponsesDecoder: output-item events (response.output_item.added,
//     response.output_text.delta, response.function_call_arguments.delta,
//     response.completed)
//
// Every decoder translates raw (eventType, payload) pairs into Delta values.
// The Accumulator applies deltas in arrival order, synthesizes <think> and
// </think> markers around reasoning sections, grows an index-addressed
// fragment table for tool calls, and finalizes into a core.GenerationResult.
// Streaming and non-streaming paths share the same accumulator, so both
// produce identically shaped results.
//
// Decoding is strictly sequential: fragment accumulation and reasoning
// transitions depend on event order, so a single stream is never decoded in
// parallel. Malformed event payloads are logged and skipped; only transport
// failures abort a stream.
package decode
