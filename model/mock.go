package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/decode"
)

// MockTurn scripts one model invocation for the MockModel.
type MockTurn struct {
	// Text is the assistant text of this turn.
	Text string

	// Reasoning, when set, is emitted before the text on streaming calls.
	Reasoning string

	// ToolCalls are returned finished, as a real decode pass would produce
	// them. Leave the ID empty to have the mock assign one.
	ToolCalls []core.ToolCall

	// Err, when set, makes the invocation fail. Used to test loop aborts.
	Err error

	// FinishReason defaults to "tool_calls" when ToolCalls are present and
	// "stop" otherwise.
	FinishReason string
}

// MockModel replays scripted turns in order. Once the script is exhausted it
// keeps returning the last turn, which lets "model always returns tool
// calls" scenarios run against a finite script. It is safe for concurrent
// use, although the react loop itself calls sequentially.
type MockModel struct {
	mu     sync.Mutex
	turns  []MockTurn
	calls  int
	info   Info
	format core.HistoryFormat
}

// NewMockModel scripts a mock with the given turns, speaking the OpenAI
// history format by default.
func NewMockModel(turns ...MockTurn) *MockModel {
	return &MockModel{
		turns:  turns,
		format: core.HistoryFormatOpenAI,
		info: Info{
			Name:          "mock",
			Provider:      "mock",
			SupportsTools: true,
		},
	}
}

// WithHistoryFormat switches the history convention the mock reports.
func (m *MockModel) WithHistoryFormat(format core.HistoryFormat) *MockModel {
	m.format = format
	return m
}

// Calls reports how many invocations the mock has served.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// DoGenerate implements Model.
func (m *MockModel) DoGenerate(_ context.Context, _ Request) (*core.GenerationResult, error) {
	return m.nextResult()
}

// DoStream implements Model. The scripted turn is replayed as canonical
// deltas through a real accumulator, so marker synthesis and finalize
// behavior match the production decoders.
func (m *MockModel) DoStream(_ context.Context, _ Request, emit func(decode.Delta)) (*core.GenerationResult, error) {
	turn, err := m.nextTurn()
	if err != nil {
		return nil, err
	}

	acc := decode.NewAccumulator()
	if turn.Reasoning != "" {
		acc.Apply(decode.ReasoningDelta(turn.Reasoning), emit)
	}
	if turn.Text != "" {
		acc.Apply(decode.TextDelta(turn.Text), emit)
	}
	for i, call := range turn.ToolCalls {
		acc.Apply(decode.Delta{
			Kind:      decode.KindToolCallFragment,
			Index:     i,
			ID:        call.ID,
			Name:      call.Name,
			ArgsValue: callArguments(call),
		}, emit)
	}
	acc.Apply(decode.FinishDelta(turn.finishReason()), emit)

	return acc.Finalize(emit), nil
}

// HistoryFormat implements Model.
func (m *MockModel) HistoryFormat() core.HistoryFormat { return m.format }

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func (m *MockModel) nextResult() (*core.GenerationResult, error) {
	turn, err := m.nextTurn()
	if err != nil {
		return nil, err
	}

	res := &core.GenerationResult{
		Text:         turn.Text,
		Reasoning:    turn.Reasoning,
		FinishReason: turn.finishReason(),
	}
	for i, call := range turn.ToolCalls {
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_mock_%d_%d", m.Calls(), i)
		}
		if call.Arguments == nil {
			call.Arguments = map[string]any{}
		}
		res.ToolCalls = append(res.ToolCalls, call)
	}
	return res, nil
}

func (m *MockModel) nextTurn() (MockTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turns) == 0 {
		return MockTurn{}, fmt.Errorf("mock model: no turns scripted")
	}

	idx := m.calls
	if idx >= len(m.turns) {
		idx = len(m.turns) - 1
	}
	m.calls++

	turn := m.turns[idx]
	if turn.Err != nil {
		return MockTurn{}, turn.Err
	}
	return turn, nil
}

func (t MockTurn) finishReason() string {
	if t.FinishReason != "" {
		return t.FinishReason
	}
	if len(t.ToolCalls) > 0 {
		return "tool_calls"
	}
	return "stop"
}

func callArguments(call core.ToolCall) map[string]any {
	if call.Arguments == nil {
		return map[string]any{}
	}
	return call.Arguments
}
