package decode_test

import (
	"errors"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/decode"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicDecoder_TextAndToolStream(t *testing.T) {
	src := testutil.NewStreamBuilder().
		Event("message_start", `{"message":{"usage":{"input_tokens":12}}}`).
		Event("content_block_start", `{"index":0,"content_block":{"type":"text"}}`).
		Event("content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"Checking the "}}`).
		Event("content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"weather."}}`).
		Event("content_block_stop", `{"index":0}`).
		Event("content_block_start", `{"index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{}}}`).
		Event("content_block_delta", `{"index":1,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`).
		Event("content_block_delta", `{"index":1,"delta":{"type":"input_json_delta","partial_json":"\"Berlin\"}"}}`).
		Event("content_block_stop", `{"index":1}`).
		Event("message_delta", `{"delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":30}}`).
		Event("message_stop", `{}`).
		Source()

	res, _ := runStream(t, decode.NewAnthropicDecoder(), src)

	assert.Equal(t, "Checking the weather.", res.Text)
	assert.Equal(t, "tool_use", res.FinishReason)

	require.Len(t, res.ToolCalls, 1)
	call := res.ToolCalls[0]
	assert.Equal(t, "toolu_1", call.ID)
	assert.Equal(t, "get_weather", call.Name)
	assert.Equal(t, map[string]any{"city": "Berlin"}, call.Arguments)

	require.NotNil(t, res.Usage)
	assert.Equal(t, 12, res.Usage.PromptTokens)
	assert.Equal(t, 30, res.Usage.CompletionTokens)
	assert.Equal(t, 42, res.Usage.TotalTokens)
}

func TestAnthropicDecoder_ThinkingMarkers(t *testing.T) {
	src := testutil.NewStreamBuilder().
		Event("content_block_start", `{"index":0,"content_block":{"type":"thinking"}}`).
		Event("content_block_delta", `{"index":0,"delta":{"type":"thinking_delta","thinking":"the user wants"}}`).
		Event("content_block_delta", `{"index":0,"delta":{"type":"thinking_delta","thinking":" weather"}}`).
		Event("content_block_stop", `{"index":0}`).
		Event("content_block_start", `{"index":1,"content_block":{"type":"text"}}`).
		Event("content_block_delta", `{"index":1,"delta":{"type":"text_delta","text":"Sunny."}}`).
		Event("message_stop", `{}`).
		Source()

	res, emitted := runStream(t, decode.NewAnthropicDecoder(), src)

	assert.Equal(t, 1, countMarker(emitted, decode.ThinkStartMarker))
	assert.Equal(t, 1, countMarker(emitted, decode.ThinkEndMarker))
	assert.Equal(t, decode.ThinkStartMarker+decode.ThinkEndMarker+"Sunny.", streamedText(emitted))

	// The finalized result separates reasoning from text, markers excluded.
	assert.Equal(t, "the user wants weather", res.Reasoning)
	assert.Equal(t, "Sunny.", res.Text)
}

func TestAnthropicDecoder_MalformedPayloadSkipped(t *testing.T) {
	src := testutil.NewStreamBuilder().
		Event("content_block_start", `{"index":0,"content_block":{"type":"text"}}`).
		Event("content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"a`).
		Event("content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"ok"}}`).
		Source()

	res, _ := runStream(t, decode.NewAnthropicDecoder(), src)
	assert.Equal(t, "ok", res.Text)
}

func TestAnthropicDecoder_ErrorEventAborts(t *testing.T) {
	src := testutil.NewStreamBuilder().
		Event("error", `{"error":{"type":"overloaded_error","message":"Overloaded"}}`).
		Source()

	_, err := decode.Run(src, decode.NewAnthropicDecoder(), decode.NewAccumulator(), nil)
	require.Error(t, err)

	var terr *core.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, terr.Error(), "Overloaded")
}

func TestAnthropicDecoder_NoToolCallsIsNil(t *testing.T) {
	src := testutil.NewStreamBuilder().
		Event("content_block_start", `{"index":0,"content_block":{"type":"text"}}`).
		Event("content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"done"}}`).
		Event("message_delta", `{"delta":{"stop_reason":"end_turn"}}`).
		Source()

	res, _ := runStream(t, decode.NewAnthropicDecoder(), src)
	assert.Nil(t, res.ToolCalls)
}

func TestAnthropicDecoder_DecodeBody(t *testing.T) {
	body := []byte(`{
		"content": [
			{"type": "text", "text": "Looking it up."},
			{"type": "tool_use", "id": "toolu_9", "name": "get_weather", "input": {"city": "Oslo"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 5, "output_tokens": 9}
	}`)

	acc := decode.NewAccumulator()
	dec := decode.NewAnthropicDecoder()
	require.NoError(t, dec.DecodeBody(body, func(d decode.Delta) { acc.Apply(d, nil) }))
	acc.SetRaw(body)
	res := acc.Finalize(nil)

	assert.Equal(t, "Looking it up.", res.Text)
	assert.Equal(t, "tool_use", res.FinishReason)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, map[string]any{"city": "Oslo"}, res.ToolCalls[0].Arguments)
	assert.JSONEq(t, string(body), string(res.RawResponse))
}
