package decode

import (
	"errors"
	"io"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/tidwall/gjson"
)

// Kind discriminates the canonical delta union.
type Kind int

const (
	// KindText carries a chunk of final answer text.
	KindText Kind = iota + 1
	// KindReasoning carries a chunk of reasoning text.
	KindReasoning
	// KindToolCallFragment carries a partial, index-addressed piece of a
	// tool call (id, name and argument text accumulate by concatenation).
	KindToolCallFragment
	// KindUsage carries token usage, possibly partial.
	KindUsage
	// KindFinish carries the provider's finish reason.
	KindFinish
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindReasoning:
		return "reasoning"
	case KindToolCallFragment:
		return "tool_call_fragment"
	case KindUsage:
		return "usage"
	case KindFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Delta is the canonical streaming unit shared by all dialects. Ordering
// within one stream is load-bearing: fragments and reasoning transitions
// must be applied in arrival order.
type Delta struct {
	Kind Kind

	// Text payload for KindText and KindReasoning.
	Text string

	// Fragment fields for KindToolCallFragment. Index addresses the slot,
	// ID/Name/Args append by concatenation. ArgsValue, when non-nil, is an
	// already-structured argument mapping that replaces the slot's
	// accumulated argument text wholesale.
	Index     int
	ID        string
	Name      string
	Args      string
	ArgsValue map[string]any

	// Usage for KindUsage. Fields may be partial; later deltas merge over
	// earlier ones field by field.
	Usage *core.Usage

	// FinishReason for KindFinish.
	FinishReason string
}

// TextDelta builds a KindText delta.
func TextDelta(text string) Delta { return Delta{Kind: KindText, Text: text} }

// ReasoningDelta builds a KindReasoning delta.
func ReasoningDelta(text string) Delta { return Delta{Kind: KindReasoning, Text: text} }

// FinishDelta builds a KindFinish delta.
func FinishDelta(reason string) Delta { return Delta{Kind: KindFinish, FinishReason: reason} }

// UsageDelta builds a KindUsage delta.
func UsageDelta(u core.Usage) Delta { return Delta{Kind: KindUsage, Usage: &u} }

// Event is one raw streaming event as delivered by the transport. Type may
// be empty for dialects whose SSE frames carry no event name; decoders then
// read the type from the payload where the dialect defines one.
type Event struct {
	Type    string
	Payload []byte
}

// EventSource yields events in arrival order. Next returns io.EOF when the
// stream is exhausted; any other error is treated as a transport failure.
type EventSource interface {
	Next() (Event, error)
}

// Decoder translates raw events of one dialect into canonical deltas.
// Implementations keep per-stream state and must not be reused across
// streams. HandleEvent returns an error only for fatal conditions (provider
// error events); malformed payloads are logged and skipped.
type Decoder interface {
	HandleEvent(evt Event, emit func(Delta)) error

	// DecodeBody decodes one complete non-streaming response body, emitting
	// the same deltas a streamed response would have produced.
	DecodeBody(body []byte, emit func(Delta)) error
}

// Run drains src through dec, applying every delta to acc. The emit handler,
// when non-nil, observes the consumer-facing delta stream including the
// synthesized reasoning markers. Run returns the finalized result, or the
// first fatal error from the source or decoder.
func Run(src EventSource, dec Decoder, acc *Accumulator, emit func(Delta)) (*core.GenerationResult, error) {
	apply := func(d Delta) { acc.Apply(d, emit) }

	for {
		evt, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if err := dec.HandleEvent(evt, apply); err != nil {
			return nil, err
		}
		// Sentinels like [DONE] are not JSON and must not displace the
		// last real chunk recorded as the raw response.
		if gjson.ValidBytes(evt.Payload) {
			acc.SetRaw(evt.Payload)
		}
	}

	return acc.Finalize(emit), nil
}

// Dialect identifies one supported wire format.
type Dialect string

const (
	// DialectBlockIndexed is the Anthropic Messages streaming format.
	DialectBlockIndexed Dialect = "block_indexed"
	// DialectDeltaChoice is the OpenAI Chat Completions chunk format.
	DialectDeltaChoice Dialect = "delta_choice"
	// DialectOutputItem is the OpenAI Responses event format.
	DialectOutputItem Dialect = "output_item"
)

// DetectDialect classifies a stream by the shape of its first event. It
// returns false when the event matches no known dialect.
func DetectDialect(evt Event) (Dialect, bool) {
	evtType := evt.Type
	if evtType == "" {
		evtType = gjson.GetBytes(evt.Payload, "type").String()
	}

	switch {
	case strings.HasPrefix(evtType, "response."):
		return DialectOutputItem, true
	case evtType == "message_start" || evtType == "ping" ||
		strings.HasPrefix(evtType, "content_block") || strings.HasPrefix(evtType, "message_"):
		return DialectBlockIndexed, true
	case gjson.GetBytes(evt.Payload, "choices").Exists():
		return DialectDeltaChoice, true
	default:
		return "", false
	}
}

// NewDecoder constructs the decoder for a dialect.
func NewDecoder(dialect Dialect, optFns ...func(*Options)) (Decoder, error) {
	switch dialect {
	case DialectBlockIndexed:
		return NewAnthropicDecoder(optFns...), nil
	case DialectDeltaChoice:
		return NewChatCompletionsDecoder(optFns...), nil
	case DialectOutputItem:
		return NewResponsesDecoder(optFns...), nil
	default:
		return nil, errors.New("decode: unknown dialect " + string(dialect))
	}
}

// Options configures decoders and accumulators.
type Options struct {
	// Logger receives skip and fallback diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

func applyOptions(optFns []func(*Options)) Options {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return opts
}

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(logger logging.Logger) func(*Options) {
	return func(o *Options) { o.Logger = logger }
}

// usageFromJSON reads a usage object in any of the supported dialect
// spellings (prompt_tokens/completion_tokens or input_tokens/output_tokens).
func usageFromJSON(u gjson.Result) *core.Usage {
	if !u.Exists() || !u.IsObject() {
		return nil
	}

	usage := &core.Usage{}
	if v := u.Get("prompt_tokens"); v.Exists() {
		usage.PromptTokens = int(v.Int())
	} else if v := u.Get("input_tokens"); v.Exists() {
		usage.PromptTokens = int(v.Int())
	}
	if v := u.Get("completion_tokens"); v.Exists() {
		usage.CompletionTokens = int(v.Int())
	} else if v := u.Get("output_tokens"); v.Exists() {
		usage.CompletionTokens = int(v.Int())
	}
	if v := u.Get("total_tokens"); v.Exists() {
		usage.TotalTokens = int(v.Int())
	}

	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 && usage.TotalTokens == 0 {
		return nil
	}
	return usage
}
