package react

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherTool(t *testing.T, seen *[]map[string]any) tool.Tool {
	t.Helper()
	return tool.NewFunctionTool("get_weather", "Look up weather", map[string]any{"type": "object"},
		func(_ *tool.Context, args map[string]any) (any, error) {
			if seen != nil {
				*seen = append(*seen, args)
			}
			return "sunny", nil
		})
}

func TestDispatcher_ExecutesInOrder(t *testing.T) {
	var order []string
	mk := func(name string) tool.Tool {
		return tool.NewFunctionTool(name, "", map[string]any{"type": "object"},
			func(_ *tool.Context, _ map[string]any) (any, error) {
				order = append(order, name)
				return name + " ok", nil
			})
	}

	d := NewDispatcher(tool.NewRegistry(mk("first"), mk("second")))
	outcomes := d.Execute(context.Background(), []core.ToolCall{
		{ID: "c1", Name: "first", Arguments: map[string]any{}},
		{ID: "c2", Name: "second", Arguments: map[string]any{}},
	}, nil)

	require.Len(t, outcomes, 2)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "c1", outcomes[0].ID)
	assert.Equal(t, "first ok", outcomes[0].Result)
	assert.False(t, outcomes[0].IsError)
	assert.Equal(t, "c2", outcomes[1].ID)
}

func TestDispatcher_RepairsToolName(t *testing.T) {
	var seen []map[string]any
	d := NewDispatcher(tool.NewRegistry(weatherTool(t, &seen)))

	outcomes := d.Execute(context.Background(), []core.ToolCall{
		{ID: "c1", Name: "GetWeather", Arguments: map[string]any{"city": "Berlin"}},
	}, nil)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].IsError)
	assert.Equal(t, "get_weather", outcomes[0].Name)
	require.Len(t, seen, 1)
	assert.Equal(t, "Berlin", seen[0]["city"])
}

func TestDispatcher_UnknownToolHitsSentinel(t *testing.T) {
	d := NewDispatcher(tool.NewRegistry(weatherTool(t, nil)))

	outcomes := d.Execute(context.Background(), []core.ToolCall{
		{ID: "c1", Name: "totally_unknown_xyz", Arguments: map[string]any{"a": 1}},
	}, nil)

	require.Len(t, outcomes, 1)
	out := outcomes[0]
	assert.Equal(t, tool.InvalidToolName, out.Name)
	// The sentinel reports structurally instead of raising, so the model can
	// read the failure and self-correct.
	assert.False(t, out.IsError)
	assert.Contains(t, out.Result, "invalid_tool_call")
	assert.Contains(t, out.Result, "totally_unknown_xyz")
	assert.Contains(t, out.Result, "get_weather")
}

func TestDispatcher_ToolErrorBecomesOutcome(t *testing.T) {
	failing := tool.NewFunctionTool("boom", "", map[string]any{"type": "object"},
		func(_ *tool.Context, _ map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})
	d := NewDispatcher(tool.NewRegistry(failing))

	outcomes := d.Execute(context.Background(), []core.ToolCall{{ID: "c1", Name: "boom"}}, nil)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].IsError)
	assert.Contains(t, outcomes[0].Result, "Error executing tool boom")
	assert.Contains(t, outcomes[0].Result, "backend down")
}

func TestDispatcher_PanicRecovered(t *testing.T) {
	panicking := tool.NewFunctionTool("explode", "", map[string]any{"type": "object"},
		func(_ *tool.Context, _ map[string]any) (any, error) {
			panic("boom")
		})
	d := NewDispatcher(tool.NewRegistry(panicking, weatherTool(t, nil)))

	outcomes := d.Execute(context.Background(), []core.ToolCall{
		{ID: "c1", Name: "explode"},
		{ID: "c2", Name: "get_weather"},
	}, nil)

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].IsError)
	assert.Contains(t, outcomes[0].Result, "panic")
	// The batch continues past the panic.
	assert.False(t, outcomes[1].IsError)
}

func TestDispatcher_StartHookVeto(t *testing.T) {
	var executed bool
	guarded := tool.NewFunctionTool("delete_all", "", map[string]any{"type": "object"},
		func(_ *tool.Context, _ map[string]any) (any, error) {
			executed = true
			return "deleted", nil
		})

	d := NewDispatcher(tool.NewRegistry(guarded), WithHooks(Hooks{
		OnToolStart: func(name string, _ map[string]any) error {
			if name == "delete_all" {
				return ErrPermissionDenied
			}
			return nil
		},
	}))

	outcomes := d.Execute(context.Background(), []core.ToolCall{{ID: "c1", Name: "delete_all"}}, nil)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].IsError)
	assert.Contains(t, outcomes[0].Result, "permission denied")
	assert.False(t, executed)
}

func TestDispatcher_EndHookErrorBecomesOutcome(t *testing.T) {
	d := NewDispatcher(tool.NewRegistry(weatherTool(t, nil)), WithHooks(Hooks{
		OnToolEnd: func(string, string) error { return errors.New("audit sink unavailable") },
	}))

	outcomes := d.Execute(context.Background(), []core.ToolCall{{ID: "c1", Name: "get_weather"}}, nil)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].IsError)
	assert.Contains(t, outcomes[0].Result, "audit sink unavailable")
}

func TestDispatcher_SharedState(t *testing.T) {
	writer := tool.NewFunctionTool("remember", "", map[string]any{"type": "object"},
		func(tc *tool.Context, args map[string]any) (any, error) {
			tc.State().Set("city", args["city"])
			return "stored", nil
		})
	reader := tool.NewFunctionTool("recall", "", map[string]any{"type": "object"},
		func(tc *tool.Context, _ map[string]any) (any, error) {
			v, _ := tc.State().Get("city")
			return v, nil
		})

	state := tool.State{}
	d := NewDispatcher(tool.NewRegistry(writer, reader))

	outcomes := d.Execute(context.Background(), []core.ToolCall{
		{ID: "c1", Name: "remember", Arguments: map[string]any{"city": "Oslo"}},
		{ID: "c2", Name: "recall"},
	}, state)

	require.Len(t, outcomes, 2)
	assert.Equal(t, "Oslo", outcomes[1].Result)
}

// retryTool reports an internal failure unless called with a "query"
// argument and offers that spelling as a variant.
type retryTool struct {
	calls []map[string]any
}

func (r *retryTool) Name() string                   { return "lookup" }
func (r *retryTool) Description() string            { return "Keyed lookup" }
func (r *retryTool) Parameters() map[string]any     { return map[string]any{"type": "object"} }

func (r *retryTool) Call(_ *tool.Context, args map[string]any) (any, error) {
	r.calls = append(r.calls, args)
	if _, ok := args["query"]; ok {
		return map[string]any{"success": true, "data": "hit"}, nil
	}
	return map[string]any{"success": false, "error": "missing query"}, nil
}

func (r *retryTool) ArgumentVariants(args map[string]any) []map[string]any {
	if q, ok := args["q"]; ok {
		return []map[string]any{{"query": q}}
	}
	return nil
}

func TestDispatcher_SoftRetryWithVariants(t *testing.T) {
	rt := &retryTool{}
	d := NewDispatcher(tool.NewRegistry(rt))

	outcomes := d.Execute(context.Background(), []core.ToolCall{
		{ID: "c1", Name: "lookup", Arguments: map[string]any{"q": "weather"}},
	}, nil)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].IsError)
	assert.Contains(t, outcomes[0].Result, `"success":true`)
	require.Len(t, rt.calls, 2)
	assert.Equal(t, map[string]any{"query": "weather"}, rt.calls[1])
}

func TestDispatcher_SoftRetryExhaustedKeepsFailure(t *testing.T) {
	rt := &retryTool{}
	d := NewDispatcher(tool.NewRegistry(rt))

	// No "q" argument, so no variants exist and the failure stands.
	outcomes := d.Execute(context.Background(), []core.ToolCall{
		{ID: "c1", Name: "lookup", Arguments: map[string]any{"name": "weather"}},
	}, nil)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].IsError)
	assert.Contains(t, outcomes[0].Result, `"success":false`)
	assert.Len(t, rt.calls, 1)
}

func TestDispatcher_EmptyBatch(t *testing.T) {
	d := NewDispatcher(tool.NewRegistry())
	assert.Nil(t, d.Execute(context.Background(), nil, nil))
}
