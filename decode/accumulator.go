package decode

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/tool"
)

// Sentinel markers bracketing reasoning text in the emitted delta stream.
// They let consumers separate reasoning from the final answer without a
// structured channel; the finalized result never contains them.
const (
	ThinkStartMarker = "<think>"
	ThinkEndMarker   = "</think>"
)

// fragment is one index-addressed tool-call slot under assembly.
type fragment struct {
	id   string
	name string
	args strings.Builder
	// argsValue holds already-structured arguments. When set it replaces
	// whatever argument text accumulated before it.
	argsValue map[string]any
}

// Accumulator applies canonical deltas in arrival order and finalizes them
// into a core.GenerationResult. It is the shared tail of the streaming and
// non-streaming decode paths, so both produce identically shaped results.
//
// An Accumulator serves exactly one decode pass and is not safe for
// concurrent use.
type Accumulator struct {
	text        strings.Builder
	reasoning   strings.Builder
	inReasoning bool
	frags       []*fragment
	usage       *core.Usage
	finish      string
	raw         json.RawMessage
	logger      logging.Logger
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator(optFns ...func(*Options)) *Accumulator {
	opts := applyOptions(optFns)
	return &Accumulator{logger: opts.Logger}
}

// Apply folds one delta into the accumulated state. The emit handler, when
// non-nil, observes the consumer-facing stream: the delta itself plus any
// synthesized reasoning marker. Entering a reasoning section emits exactly
// one ThinkStartMarker text delta, leaving it exactly one ThinkEndMarker.
func (a *Accumulator) Apply(d Delta, emit func(Delta)) {
	switch d.Kind {
	case KindText:
		if d.Text == "" {
			return
		}
		if a.inReasoning {
			a.inReasoning = false
			a.send(emit, TextDelta(ThinkEndMarker))
		}
		a.text.WriteString(d.Text)
		a.send(emit, d)

	case KindReasoning:
		if d.Text == "" {
			return
		}
		if !a.inReasoning {
			a.inReasoning = true
			a.send(emit, TextDelta(ThinkStartMarker))
		}
		a.reasoning.WriteString(d.Text)
		a.send(emit, d)

	case KindToolCallFragment:
		if d.Index < 0 {
			a.logger.Warn("decode.fragment_negative_index", "index", d.Index, "name", d.Name)
			return
		}
		for d.Index >= len(a.frags) {
			a.frags = append(a.frags, &fragment{})
		}
		slot := a.frags[d.Index]
		slot.id += d.ID
		slot.name += d.Name
		if d.ArgsValue != nil {
			slot.argsValue = d.ArgsValue
			slot.args.Reset()
		} else {
			slot.args.WriteString(d.Args)
		}
		a.send(emit, d)

	case KindUsage:
		if d.Usage != nil {
			a.mergeUsage(d.Usage)
		}
		a.send(emit, d)

	case KindFinish:
		if d.FinishReason != "" {
			a.finish = d.FinishReason
		}
		a.send(emit, d)
	}
}

// SetRaw records the most recent raw payload, surfaced on the finalized
// result for debugging.
func (a *Accumulator) SetRaw(raw []byte) {
	a.raw = json.RawMessage(raw)
}

// Finalize closes any open reasoning section and assembles the result.
// Fragments without a name are dropped, fragments without an id get a
// synthetic one, and string arguments go through the argument normalizer.
// ToolCalls stays nil when no tool was invoked.
func (a *Accumulator) Finalize(emit func(Delta)) *core.GenerationResult {
	if a.inReasoning {
		a.inReasoning = false
		a.send(emit, TextDelta(ThinkEndMarker))
	}

	var calls []core.ToolCall
	for i, f := range a.frags {
		if f.name == "" {
			if f.id != "" || f.args.Len() > 0 {
				a.logger.Warn("decode.fragment_dropped", "index", i, "reason", "empty name")
			}
			continue
		}

		id := f.id
		if id == "" {
			id = "call_" + uuid.NewString()
		}

		args := f.argsValue
		if args == nil {
			args = tool.ParseArguments(f.args.String(), f.name, a.logger)
		}

		calls = append(calls, core.ToolCall{ID: id, Name: f.name, Arguments: args})
	}

	if a.usage != nil && a.usage.TotalTokens == 0 {
		a.usage.TotalTokens = a.usage.PromptTokens + a.usage.CompletionTokens
	}

	return &core.GenerationResult{
		Text:         a.text.String(),
		Reasoning:    a.reasoning.String(),
		Usage:        a.usage,
		FinishReason: a.finish,
		ToolCalls:    calls,
		RawResponse:  a.raw,
	}
}

func (a *Accumulator) send(emit func(Delta), d Delta) {
	if emit != nil {
		emit(d)
	}
}

// mergeUsage folds partial usage over earlier values, non-zero fields win.
// Some dialects split usage across events (prompt tokens at stream start,
// completion tokens at the end).
func (a *Accumulator) mergeUsage(u *core.Usage) {
	if a.usage == nil {
		a.usage = &core.Usage{}
	}
	if u.PromptTokens > 0 {
		a.usage.PromptTokens = u.PromptTokens
	}
	if u.CompletionTokens > 0 {
		a.usage.CompletionTokens = u.CompletionTokens
	}
	if u.TotalTokens > 0 {
		a.usage.TotalTokens = u.TotalTokens
	}
}
