// Package openai implements model.Model on the OpenAI Chat Completions API
// (including streaming and function/tool calling). Streaming chunks and
// non-streaming bodies both run through the delta-choice decoder, so the two
// paths return identically shaped results.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/decode"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compile-time interface check.
var _ model.Model = (*Model)(nil)

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	Logger              logging.Logger
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions(optFns)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: defaultOptions(optFns)}
}

func defaultOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return opts
}

// DoGenerate implements model.Model via one non-streaming completion call.
func (m *Model) DoGenerate(ctx context.Context, req model.Request) (*core.GenerationResult, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(req, false))
	if err != nil {
		return nil, transportError(err)
	}

	acc := decode.NewAccumulator(decode.WithLogger(m.opts.Logger))
	dec := decode.NewChatCompletionsDecoder(decode.WithLogger(m.opts.Logger))

	body := []byte(resp.RawJSON())
	if err := dec.DecodeBody(body, func(d decode.Delta) { acc.Apply(d, nil) }); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	acc.SetRaw(body)

	return acc.Finalize(nil), nil
}

// DoStream implements model.Model via one streaming completion call, feeding
// each chunk to the delta-choice decoder as a raw payload.
func (m *Model) DoStream(ctx context.Context, req model.Request, emit func(decode.Delta)) (*core.GenerationResult, error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, m.buildParams(req, true))
	defer stream.Close()

	acc := decode.NewAccumulator(decode.WithLogger(m.opts.Logger))
	dec := decode.NewChatCompletionsDecoder(decode.WithLogger(m.opts.Logger))
	apply := func(d decode.Delta) { acc.Apply(d, emit) }

	for stream.Next() {
		chunk := stream.Current()

		evt := decode.Event{Payload: []byte(chunk.RawJSON())}
		if err := dec.HandleEvent(evt, apply); err != nil {
			return nil, err
		}
		acc.SetRaw(evt.Payload)
	}
	if err := stream.Err(); err != nil {
		return nil, transportError(err)
	}

	return acc.Finalize(emit), nil
}

// HistoryFormat implements model.Model.
func (m *Model) HistoryFormat() core.HistoryFormat { return core.HistoryFormatOpenAI }

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

// buildParams assembles the request parameters including tool definitions.
func (m *Model) buildParams(req model.Request, stream bool) openai.ChatCompletionNewParams {
	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if stream {
		// Usage arrives on the final chunk only when asked for.
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}
	}

	if len(req.Tools) == 0 {
		return params
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, def := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  def.Parameters,
			},
		}
	}
	params.Tools = tools

	return params
}

// buildMessages converts wire-shaped history entries to SDK message params.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		role, _ := msg["role"].(string)
		text, _ := msg["content"].(string)

		switch role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))

		case "assistant":
			toolCalls := extractToolCalls(msg)
			if len(toolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(text))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			}
			if text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case "tool":
			id, _ := msg["tool_call_id"].(string)
			messages = append(messages, openai.ToolMessage(text, id))

		default:
			messages = append(messages, openai.UserMessage(text))
		}
	}

	return messages
}

// extractToolCalls reads the tool_calls array off an assistant history entry.
func extractToolCalls(msg core.Message) []openai.ChatCompletionMessageToolCallParam {
	rawCalls, ok := msg["tool_calls"].([]any)
	if !ok {
		return nil
	}

	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, raw := range rawCalls {
		call, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fn, _ := call["function"].(map[string]any)

		id, _ := call["id"].(string)
		name, _ := fn["name"].(string)
		args, _ := fn["arguments"].(string)

		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   id,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      name,
				Arguments: args,
			},
		})
	}
	return toolCalls
}

// transportError converts SDK errors to core.TransportError, preserving the
// HTTP status for API-level failures.
func transportError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return core.NewTransportError(apierr.StatusCode, apierr.Error(), err)
	}
	return core.NewTransportError(0, "", err)
}
