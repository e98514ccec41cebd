package decode

import (
	"errors"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/tidwall/gjson"
)

// responseItem tracks one output item between added and done events.
type responseItem struct {
	toolIdx  int
	isTool   bool
	argsSeen bool
	textLen  int
}

// ResponsesDecoder handles the output-item dialect: items open with
// response.output_item.added, stream text or argument deltas addressed by
// output_index, and close with response.output_item.done. Done events may
// carry a complete item even when no deltas were sent, so applying them must
// be idempotent: a slot already populated by deltas is never appended to
// again.
type ResponsesDecoder struct {
	items        map[int64]*responseItem
	toolCount    int
	reasoningLen int
	logger       logging.Logger
}

// NewResponsesDecoder returns a decoder for one output-item stream.
func NewResponsesDecoder(optFns ...func(*Options)) *ResponsesDecoder {
	opts := applyOptions(optFns)
	return &ResponsesDecoder{
		items:  make(map[int64]*responseItem),
		logger: opts.Logger,
	}
}

// HandleEvent translates one event into canonical deltas.
func (d *ResponsesDecoder) HandleEvent(evt Event, emit func(Delta)) error {
	evtType := evt.Type
	if evtType == "" {
		evtType = gjson.GetBytes(evt.Payload, "type").String()
	}
	if len(evt.Payload) > 0 && !gjson.ValidBytes(evt.Payload) {
		d.skip(evtType, "invalid JSON payload")
		return nil
	}

	switch evtType {
	case "response.output_item.added":
		d.handleItemAdded(evt.Payload, emit)

	case "response.output_text.delta":
		d.handleTextDelta(evt.Payload, emit)

	case "response.output_text.done":
		d.applyFullText(
			gjson.GetBytes(evt.Payload, "output_index").Int(),
			gjson.GetBytes(evt.Payload, "text").String(),
			emit,
		)

	case "response.reasoning_summary_text.delta", "response.reasoning_text.delta":
		text := gjson.GetBytes(evt.Payload, "delta").String()
		d.reasoningLen += len(text)
		emit(ReasoningDelta(text))

	case "response.function_call_arguments.delta":
		d.handleArgsDelta(evt.Payload, emit)

	case "response.function_call_arguments.done":
		d.applyFullArguments(
			gjson.GetBytes(evt.Payload, "output_index").Int(),
			gjson.GetBytes(evt.Payload, "arguments").String(),
			emit,
		)

	case "response.output_item.done":
		d.handleItemDone(evt.Payload, emit)

	case "response.completed", "response.incomplete":
		d.handleCompleted(evt.Payload, emit)

	case "response.failed", "error":
		msg := gjson.GetBytes(evt.Payload, "response.error.message").String()
		if msg == "" {
			msg = gjson.GetBytes(evt.Payload, "error.message").String()
		}
		if msg == "" {
			msg = "response failed"
		}
		return core.NewTransportError(0, string(evt.Payload), errors.New(msg))

	default:
		// created, in_progress and content_part bookkeeping events carry
		// nothing the accumulator needs.
		d.logger.Debug("decode.event_ignored", "dialect", DialectOutputItem, "event", evtType)
	}

	return nil
}

func (d *ResponsesDecoder) handleItemAdded(payload []byte, emit func(Delta)) {
	item := gjson.GetBytes(payload, "item")
	if !item.Exists() {
		d.skip("response.output_item.added", "missing item")
		return
	}
	outputIdx := gjson.GetBytes(payload, "output_index").Int()

	switch item.Get("type").String() {
	case "function_call":
		ti := d.toolCount
		d.toolCount++
		d.items[outputIdx] = &responseItem{toolIdx: ti, isTool: true}

		id := item.Get("call_id").String()
		if id == "" {
			id = item.Get("id").String()
		}
		emit(Delta{
			Kind:  KindToolCallFragment,
			Index: ti,
			ID:    id,
			Name:  item.Get("name").String(),
		})

	default:
		d.items[outputIdx] = &responseItem{}
	}
}

func (d *ResponsesDecoder) handleTextDelta(payload []byte, emit func(Delta)) {
	outputIdx := gjson.GetBytes(payload, "output_index").Int()
	text := gjson.GetBytes(payload, "delta").String()

	item, ok := d.items[outputIdx]
	if !ok {
		item = &responseItem{}
		d.items[outputIdx] = item
	}
	item.textLen += len(text)

	emit(TextDelta(text))
}

// applyFullText applies a complete text carried by a done event, but only
// when no text deltas populated the item already.
func (d *ResponsesDecoder) applyFullText(outputIdx int64, text string, emit func(Delta)) {
	item, ok := d.items[outputIdx]
	if !ok {
		item = &responseItem{}
		d.items[outputIdx] = item
	}
	if item.textLen > 0 || text == "" {
		return
	}

	item.textLen = len(text)
	emit(TextDelta(text))
}

func (d *ResponsesDecoder) handleArgsDelta(payload []byte, emit func(Delta)) {
	outputIdx := gjson.GetBytes(payload, "output_index").Int()
	item, ok := d.items[outputIdx]
	if !ok || !item.isTool {
		d.skip("response.function_call_arguments.delta", "delta for unopened function_call item")
		return
	}

	item.argsSeen = true
	emit(Delta{
		Kind:  KindToolCallFragment,
		Index: item.toolIdx,
		Args:  gjson.GetBytes(payload, "delta").String(),
	})
}

// applyFullArguments applies a complete argument string from a done event,
// but only when no argument deltas populated the slot already.
func (d *ResponsesDecoder) applyFullArguments(outputIdx int64, args string, emit func(Delta)) {
	item, ok := d.items[outputIdx]
	if !ok || !item.isTool || item.argsSeen || args == "" {
		return
	}

	item.argsSeen = true
	emit(Delta{Kind: KindToolCallFragment, Index: item.toolIdx, Args: args})
}

func (d *ResponsesDecoder) handleItemDone(payload []byte, emit func(Delta)) {
	item := gjson.GetBytes(payload, "item")
	outputIdx := gjson.GetBytes(payload, "output_index").Int()

	switch item.Get("type").String() {
	case "function_call":
		if _, ok := d.items[outputIdx]; !ok {
			// Done without a preceding added event: open the slot late.
			ti := d.toolCount
			d.toolCount++
			d.items[outputIdx] = &responseItem{toolIdx: ti, isTool: true}

			id := item.Get("call_id").String()
			if id == "" {
				id = item.Get("id").String()
			}
			emit(Delta{Kind: KindToolCallFragment, Index: ti, ID: id, Name: item.Get("name").String()})
		}
		d.applyFullArguments(outputIdx, item.Get("arguments").String(), emit)

	case "message":
		d.applyFullText(outputIdx, messageText(item), emit)

	case "reasoning":
		// Observed provider behavior: reasoning arrives either as deltas or
		// complete on the done item, never both. Apply the done item only
		// when nothing accumulated through deltas.
		if d.reasoningLen > 0 {
			return
		}
		if text := reasoningSummaryText(item); text != "" {
			d.reasoningLen += len(text)
			emit(ReasoningDelta(text))
		}
	}
}

func (d *ResponsesDecoder) handleCompleted(payload []byte, emit func(Delta)) {
	response := gjson.GetBytes(payload, "response")

	if usage := usageFromJSON(response.Get("usage")); usage != nil {
		emit(Delta{Kind: KindUsage, Usage: usage})
	}

	reason := response.Get("incomplete_details.reason").String()
	if reason == "" {
		reason = response.Get("status").String()
	}
	if reason != "" {
		emit(FinishDelta(reason))
	}
}

// DecodeBody decodes one complete Responses API body.
func (d *ResponsesDecoder) DecodeBody(body []byte, emit func(Delta)) error {
	if !gjson.ValidBytes(body) {
		return &core.DecodeError{Reason: "response body is not valid JSON"}
	}

	gjson.GetBytes(body, "output").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "output_text" {
					emit(TextDelta(part.Get("text").String()))
				}
				return true
			})

		case "reasoning":
			if text := reasoningSummaryText(item); text != "" {
				emit(ReasoningDelta(text))
			}

		case "function_call":
			id := item.Get("call_id").String()
			if id == "" {
				id = item.Get("id").String()
			}
			emit(Delta{
				Kind:  KindToolCallFragment,
				Index: d.toolCount,
				ID:    id,
				Name:  item.Get("name").String(),
				Args:  item.Get("arguments").String(),
			})
			d.toolCount++
		}
		return true
	})

	reason := gjson.GetBytes(body, "incomplete_details.reason").String()
	if reason == "" {
		reason = gjson.GetBytes(body, "status").String()
	}
	if reason != "" {
		emit(FinishDelta(reason))
	}
	if usage := usageFromJSON(gjson.GetBytes(body, "usage")); usage != nil {
		emit(Delta{Kind: KindUsage, Usage: usage})
	}

	return nil
}

// messageText concatenates the output_text parts of a message item.
func messageText(item gjson.Result) string {
	var sb strings.Builder
	item.Get("content").ForEach(func(_, part gjson.Result) bool {
		if part.Get("type").String() == "output_text" {
			sb.WriteString(part.Get("text").String())
		}
		return true
	})
	return sb.String()
}

// reasoningSummaryText concatenates the summary texts of a reasoning item.
func reasoningSummaryText(item gjson.Result) string {
	var sb strings.Builder
	item.Get("summary").ForEach(func(_, part gjson.Result) bool {
		sb.WriteString(part.Get("text").String())
		return true
	})
	if sb.Len() == 0 {
		item.Get("content").ForEach(func(_, part gjson.Result) bool {
			sb.WriteString(part.Get("text").String())
			return true
		})
	}
	return sb.String()
}

func (d *ResponsesDecoder) skip(evtType, reason string) {
	err := &core.DecodeError{EventType: evtType, Reason: reason}
	d.logger.Warn("decode.event_skipped", "dialect", DialectOutputItem, "error", err.Error())
}
