package decode

import (
	"errors"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/tidwall/gjson"
)

// AnthropicDecoder handles the block-indexed dialect: content blocks open at
// an index via content_block_start, accumulate through content_block_delta
// and close with content_block_stop; message_delta carries the stop reason
// and output token usage.
//
// Block indexes count every block (text, thinking, tool_use alike), so the
// decoder maps tool_use block indexes to a dense fragment index sequence.
type AnthropicDecoder struct {
	toolIndex map[int64]int
	toolCount int
	logger    logging.Logger
}

// NewAnthropicDecoder returns a decoder for one block-indexed stream.
func NewAnthropicDecoder(optFns ...func(*Options)) *AnthropicDecoder {
	opts := applyOptions(optFns)
	return &AnthropicDecoder{
		toolIndex: make(map[int64]int),
		logger:    opts.Logger,
	}
}

// HandleEvent translates one event into canonical deltas. Malformed payloads
// are logged and skipped; provider error events abort the stream.
func (d *AnthropicDecoder) HandleEvent(evt Event, emit func(Delta)) error {
	evtType := evt.Type
	if evtType == "" {
		evtType = gjson.GetBytes(evt.Payload, "type").String()
	}
	if len(evt.Payload) > 0 && !gjson.ValidBytes(evt.Payload) {
		d.skip(evtType, "invalid JSON payload")
		return nil
	}

	switch evtType {
	case "message_start":
		if usage := usageFromJSON(gjson.GetBytes(evt.Payload, "message.usage")); usage != nil {
			emit(Delta{Kind: KindUsage, Usage: usage})
		}

	case "content_block_start":
		d.handleBlockStart(evt.Payload, emit)

	case "content_block_delta":
		d.handleBlockDelta(evt.Payload, emit)

	case "message_delta":
		if reason := gjson.GetBytes(evt.Payload, "delta.stop_reason"); reason.Exists() {
			emit(FinishDelta(reason.String()))
		}
		if usage := usageFromJSON(gjson.GetBytes(evt.Payload, "usage")); usage != nil {
			emit(Delta{Kind: KindUsage, Usage: usage})
		}

	case "content_block_stop", "message_stop", "ping":
		// Nothing to accumulate.

	case "error":
		msg := gjson.GetBytes(evt.Payload, "error.message").String()
		if msg == "" {
			msg = "stream error"
		}
		return core.NewTransportError(0, string(evt.Payload), errors.New(msg))

	default:
		d.logger.Debug("decode.event_ignored", "dialect", DialectBlockIndexed, "event", evtType)
	}

	return nil
}

func (d *AnthropicDecoder) handleBlockStart(payload []byte, emit func(Delta)) {
	block := gjson.GetBytes(payload, "content_block")
	index := gjson.GetBytes(payload, "index")
	if !block.Exists() || !index.Exists() {
		d.skip("content_block_start", "missing content_block or index")
		return
	}

	if block.Get("type").String() != "tool_use" {
		return
	}

	ti := d.toolCount
	d.toolCount++
	d.toolIndex[index.Int()] = ti

	frag := Delta{
		Kind:  KindToolCallFragment,
		Index: ti,
		ID:    block.Get("id").String(),
		Name:  block.Get("name").String(),
	}
	// tool_use blocks usually start with empty input; a populated one
	// arrives structured and replaces any later argument text.
	if input, ok := block.Get("input").Value().(map[string]any); ok && len(input) > 0 {
		frag.ArgsValue = input
	}
	emit(frag)
}

func (d *AnthropicDecoder) handleBlockDelta(payload []byte, emit func(Delta)) {
	delta := gjson.GetBytes(payload, "delta")
	if !delta.Exists() {
		d.skip("content_block_delta", "missing delta")
		return
	}

	switch delta.Get("type").String() {
	case "text_delta":
		emit(TextDelta(delta.Get("text").String()))

	case "thinking_delta":
		emit(ReasoningDelta(delta.Get("thinking").String()))

	case "input_json_delta":
		blockIdx := gjson.GetBytes(payload, "index").Int()
		ti, ok := d.toolIndex[blockIdx]
		if !ok {
			d.skip("content_block_delta", "input_json_delta for unopened tool block")
			return
		}
		emit(Delta{Kind: KindToolCallFragment, Index: ti, Args: delta.Get("partial_json").String()})

	case "signature_delta":
		// Thinking signature round-trip data, not part of the result.

	default:
		d.skip("content_block_delta", "unknown delta type "+delta.Get("type").String())
	}
}

// DecodeBody decodes one complete Messages response body.
func (d *AnthropicDecoder) DecodeBody(body []byte, emit func(Delta)) error {
	if !gjson.ValidBytes(body) {
		return &core.DecodeError{Reason: "response body is not valid JSON"}
	}

	gjson.GetBytes(body, "content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			emit(TextDelta(block.Get("text").String()))
		case "thinking":
			emit(ReasoningDelta(block.Get("thinking").String()))
		case "tool_use":
			frag := Delta{
				Kind:      KindToolCallFragment,
				Index:     d.toolCount,
				ID:        block.Get("id").String(),
				Name:      block.Get("name").String(),
				ArgsValue: map[string]any{},
			}
			if input, ok := block.Get("input").Value().(map[string]any); ok {
				frag.ArgsValue = input
			}
			d.toolCount++
			emit(frag)
		}
		return true
	})

	if reason := gjson.GetBytes(body, "stop_reason"); reason.Exists() && reason.String() != "" {
		emit(FinishDelta(reason.String()))
	}
	if usage := usageFromJSON(gjson.GetBytes(body, "usage")); usage != nil {
		emit(Delta{Kind: KindUsage, Usage: usage})
	}

	return nil
}

func (d *AnthropicDecoder) skip(evtType, reason string) {
	err := &core.DecodeError{EventType: evtType, Reason: reason}
	d.logger.Warn("decode.event_skipped", "dialect", DialectBlockIndexed, "error", err.Error())
}
