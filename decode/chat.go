package decode

import (
	"bytes"
	"errors"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/tidwall/gjson"
)

// doneSentinel terminates an SSE chat completion stream.
var doneSentinel = []byte("[DONE]")

// ChatCompletionsDecoder handles the delta-choice dialect: every chunk
// carries choices[0].delta with optional content, reasoning_content and
// index-keyed tool_calls fragments. Usage may arrive only on the final
// chunk. OpenAI-compatible proxies reuse this shape, so unknown fields are
// tolerated rather than rejected.
type ChatCompletionsDecoder struct {
	logger logging.Logger
}

// NewChatCompletionsDecoder returns a decoder for one delta-choice stream.
func NewChatCompletionsDecoder(optFns ...func(*Options)) *ChatCompletionsDecoder {
	opts := applyOptions(optFns)
	return &ChatCompletionsDecoder{logger: opts.Logger}
}

// HandleEvent translates one chunk into canonical deltas. Chat completion
// SSE frames carry no event name, so evt.Type is usually empty.
func (d *ChatCompletionsDecoder) HandleEvent(evt Event, emit func(Delta)) error {
	payload := bytes.TrimSpace(evt.Payload)
	if len(payload) == 0 || bytes.Equal(payload, doneSentinel) {
		return nil
	}
	if !gjson.ValidBytes(payload) {
		d.skip("invalid JSON payload")
		return nil
	}

	if errObj := gjson.GetBytes(payload, "error"); errObj.Exists() && errObj.IsObject() {
		msg := errObj.Get("message").String()
		if msg == "" {
			msg = "stream error"
		}
		return core.NewTransportError(0, string(payload), errors.New(msg))
	}

	choice := gjson.GetBytes(payload, "choices.0")
	if choice.Exists() {
		d.decodeDelta(choice.Get("delta"), emit)
		if reason := choice.Get("finish_reason"); reason.Exists() && reason.String() != "" {
			emit(FinishDelta(reason.String()))
		}
	}

	if usage := usageFromJSON(gjson.GetBytes(payload, "usage")); usage != nil {
		emit(Delta{Kind: KindUsage, Usage: usage})
	}

	return nil
}

func (d *ChatCompletionsDecoder) decodeDelta(delta gjson.Result, emit func(Delta)) {
	if !delta.Exists() {
		return
	}

	// Some proxies spell reasoning "reasoning" instead of
	// "reasoning_content"; accept both.
	if r := delta.Get("reasoning_content"); r.Exists() && r.String() != "" {
		emit(ReasoningDelta(r.String()))
	} else if r := delta.Get("reasoning"); r.Exists() && r.Type == gjson.String && r.String() != "" {
		emit(ReasoningDelta(r.String()))
	}

	if c := delta.Get("content"); c.Exists() && c.String() != "" {
		emit(TextDelta(c.String()))
	}

	delta.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		emit(Delta{
			Kind:  KindToolCallFragment,
			Index: int(tc.Get("index").Int()),
			ID:    tc.Get("id").String(),
			Name:  tc.Get("function.name").String(),
			Args:  tc.Get("function.arguments").String(),
		})
		return true
	})
}

// DecodeBody decodes one complete chat completion response body.
func (d *ChatCompletionsDecoder) DecodeBody(body []byte, emit func(Delta)) error {
	if !gjson.ValidBytes(body) {
		return &core.DecodeError{Reason: "response body is not valid JSON"}
	}

	choice := gjson.GetBytes(body, "choices.0")
	msg := choice.Get("message")

	if r := msg.Get("reasoning_content"); r.String() != "" {
		emit(ReasoningDelta(r.String()))
	}
	if c := msg.Get("content"); c.String() != "" {
		emit(TextDelta(c.String()))
	}

	msg.Get("tool_calls").ForEach(func(i, tc gjson.Result) bool {
		index := int(i.Int())
		if idx := tc.Get("index"); idx.Exists() {
			index = int(idx.Int())
		}
		emit(Delta{
			Kind:  KindToolCallFragment,
			Index: index,
			ID:    tc.Get("id").String(),
			Name:  tc.Get("function.name").String(),
			Args:  tc.Get("function.arguments").String(),
		})
		return true
	})

	if reason := choice.Get("finish_reason"); reason.String() != "" {
		emit(FinishDelta(reason.String()))
	}
	if usage := usageFromJSON(gjson.GetBytes(body, "usage")); usage != nil {
		emit(Delta{Kind: KindUsage, Usage: usage})
	}

	return nil
}

func (d *ChatCompletionsDecoder) skip(reason string) {
	err := &core.DecodeError{Reason: reason}
	d.logger.Warn("decode.event_skipped", "dialect", DialectDeltaChoice, "error", err.Error())
}
