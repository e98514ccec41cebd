// Package anthropic implements model.Model on the Anthropic Messages API.
// Streaming events and non-streaming bodies both run through the
// block-indexed decoder, so the two paths return identically shaped results.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/decode"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
)

// Compile-time interface check.
var _ model.Model = (*Model)(nil)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Logger      logging.Logger
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions(optFns)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	return &Model{
		client: client,
		opts:   defaultOptions(optFns),
	}
}

func defaultOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return opts
}

// DoGenerate implements model.Model via one non-streaming Messages call.
func (m *Model) DoGenerate(ctx context.Context, req model.Request) (*core.GenerationResult, error) {
	resp, err := m.client.Messages.New(ctx, m.buildParams(req))
	if err != nil {
		return nil, transportError(err)
	}

	acc := decode.NewAccumulator(decode.WithLogger(m.opts.Logger))
	dec := decode.NewAnthropicDecoder(decode.WithLogger(m.opts.Logger))

	body := []byte(resp.RawJSON())
	if err := dec.DecodeBody(body, func(d decode.Delta) { acc.Apply(d, nil) }); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	acc.SetRaw(body)

	return acc.Finalize(nil), nil
}

// DoStream implements model.Model via one streaming Messages call, feeding
// each SDK event to the block-indexed decoder as a raw (type, payload) pair.
func (m *Model) DoStream(ctx context.Context, req model.Request, emit func(decode.Delta)) (*core.GenerationResult, error) {
	stream := m.client.Messages.NewStreaming(ctx, m.buildParams(req))
	defer stream.Close()

	acc := decode.NewAccumulator(decode.WithLogger(m.opts.Logger))
	dec := decode.NewAnthropicDecoder(decode.WithLogger(m.opts.Logger))
	apply := func(d decode.Delta) { acc.Apply(d, emit) }

	for stream.Next() {
		event := stream.Current()

		evt := decode.Event{
			Type:    string(event.Type),
			Payload: []byte(event.RawJSON()),
		}
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
func (m *Model) HistoryFormat() core.HistoryFormat { return core.HistoryFormatAnthropic }

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     m.opts.Model,
		Messages:  buildMessages(req.Messages),
		MaxTokens: m.opts.MaxTokens,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}

	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = anthropic.Float(temperature)

	if system := systemPrompt(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params
}

// systemPrompt merges the request's system field with any system-role
// history entries; the Messages API keeps system text out of the turn list.
func systemPrompt(req model.Request) string {
	parts := make([]string, 0, 1)
	if req.System != "" {
		parts = append(parts, req.System)
	}
	for _, msg := range req.Messages {
		if role, _ := msg["role"].(string); role != "system" {
			continue
		}
		if text, ok := msg["content"].(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// buildMessages converts wire-shaped history entries to SDK message params.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, msg := range msgs {
		role, _ := msg["role"].(string)
		if role == "system" {
			continue
		}

		blocks := contentBlocks(msg["content"])
		if len(blocks) == 0 {
			continue
		}

		if role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	return messages
}

func contentBlocks(content any) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion

	switch c := content.(type) {
	case string:
		if c != "" {
			blocks = append(blocks, anthropic.NewTextBlock(c))
		}

	case []any:
		for _, raw := range c {
			block, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			switch block["type"] {
			case "text":
				if text, _ := block["text"].(string); text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(text))
				}

			case "tool_use":
				id, _ := block["id"].(string)
				name, _ := block["name"].(string)
				input := block["input"]
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(id, input, name))

			case "tool_result":
				id, _ := block["tool_use_id"].(string)
				result, _ := block["content"].(string)
				isError, _ := block["is_error"].(bool)
				blocks = append(blocks, anthropic.NewToolResultBlock(id, result, isError))
			}
		}
	}

	return blocks
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(defs []core.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))

	for i, def := range defs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if def.Parameters != nil {
			if properties, exists := def.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := def.Parameters["required"]; exists {
				inputSchema.Required = requiredStrings(required)
			}
		}

		tool := anthropic.ToolUnionParamOfTool(inputSchema, def.Name)
		if def.Description != "" && tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(def.Description)
		}
		tools[i] = tool
	}

	return tools
}

func requiredStrings(required any) []string {
	switch req := required.(type) {
	case []string:
		return req
	case []any:
		var names []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// transportError converts SDK errors to core.TransportError, preserving the
// HTTP status for API-level failures.
func transportError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return core.NewTransportError(apierr.StatusCode, apierr.Error(), err)
	}
	return core.NewTransportError(0, "", err)
}
