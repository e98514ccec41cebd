package core

import "encoding/json"

// Message is one conversation history entry in the active provider's wire
// shape. History is deliberately kept as loosely typed maps: each provider
// dialect has its own message conventions and the loop never inspects them,
// it only appends entries produced by a HistoryFormat.
type Message map[string]any

// UserMessage builds a plain user turn. The simple role/content shape is
// accepted verbatim by all supported history formats.
func UserMessage(text string) Message {
	return Message{"role": "user", "content": text}
}

// SystemMessage builds a system instruction turn.
func SystemMessage(text string) Message {
	return Message{"role": "system", "content": text}
}

// HistoryFormat selects the provider convention used to append assistant
// tool-call turns and tool results to conversation history. The active model
// supplies its format; the loop dispatches through it and never hardcodes a
// provider.
type HistoryFormat string

const (
	// HistoryFormatOpenAI is the Chat Completions convention: tool calls ride
	// on the assistant message, results are role "tool" messages.
	HistoryFormatOpenAI HistoryFormat = "openai"

	// HistoryFormatAnthropic is the Messages API convention: tool calls are
	// tool_use content blocks, results are tool_result blocks in a user turn.
	HistoryFormatAnthropic HistoryFormat = "anthropic"

	// HistoryFormatOpenAIResponses is the Responses API convention: tool
	// calls and results are standalone input items.
	HistoryFormatOpenAIResponses HistoryFormat = "openai_responses"
)

// AssistantMessage renders the assistant turn carrying res into history
// entries. Most formats produce a single message; the responses format emits
// one message item plus one function_call item per tool call.
func (f HistoryFormat) AssistantMessage(res *GenerationResult) []Message {
	switch f {
	case HistoryFormatAnthropic:
		return []Message{anthropicAssistantMessage(res)}
	case HistoryFormatOpenAIResponses:
		return responsesAssistantItems(res)
	default:
		return []Message{openAIAssistantMessage(res)}
	}
}

// ToolResultMessage renders one tool execution result into a history entry
// matched to the originating call by id.
func (f HistoryFormat) ToolResultMessage(id, name, content string) Message {
	switch f {
	case HistoryFormatAnthropic:
		return Message{
			"role": "user",
			"content": []any{
				map[string]any{
					"type":        "tool_result",
					"tool_use_id": id,
					"content":     content,
				},
			},
		}
	case HistoryFormatOpenAIResponses:
		return Message{
			"type":    "function_call_output",
			"call_id": id,
			"output":  content,
		}
	default:
		return Message{
			"role":         "tool",
			"tool_call_id": id,
			"name":         name,
			"content":      content,
		}
	}
}

func openAIAssistantMessage(res *GenerationResult) Message {
	msg := Message{"role": "assistant", "content": res.Text}
	if len(res.ToolCalls) == 0 {
		return msg
	}
	calls := make([]any, 0, len(res.ToolCalls))
	for _, tc := range res.ToolCalls {
		calls = append(calls, map[string]any{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]any{
				"name":      tc.Name,
				"arguments": marshalArguments(tc.Arguments),
			},
		})
	}
	msg["tool_calls"] = calls
	return msg
}

func anthropicAssistantMessage(res *GenerationResult) Message {
	var blocks []any
	if res.Text != "" {
		blocks = append(blocks, map[string]any{"type": "text", "text": res.Text})
	}
	for _, tc := range res.ToolCalls {
		input := tc.Arguments
		if input == nil {
			input = map[string]any{}
		}
		blocks = append(blocks, map[string]any{
			"type":  "tool_use",
			"id":    tc.ID,
			"name":  tc.Name,
			"input": input,
		})
	}
	return Message{"role": "assistant", "content": blocks}
}

func responsesAssistantItems(res *GenerationResult) []Message {
	var items []Message
	if res.Text != "" {
		items = append(items, Message{
			"type": "message",
			"role": "assistant",
			"content": []any{
				map[string]any{"type": "output_text", "text": res.Text},
			},
		})
	}
	for _, tc := range res.ToolCalls {
		items = append(items, Message{
			"type":      "function_call",
			"call_id":   tc.ID,
			"name":      tc.Name,
			"arguments": marshalArguments(tc.Arguments),
		})
	}
	return items
}

// marshalArguments serializes a normalized argument mapping back to the JSON
// string form the OpenAI-style wire formats expect. An empty mapping always
// serializes as an object, never an array.
func marshalArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
