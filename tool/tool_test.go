package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentloop/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *Context {
	return NewContext(context.Background(), "call_1", State{}, nil)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(testContext(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *Context, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(testContext(), map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionErrorWrapped(t *testing.T) {
	failing := NewFunctionTool("boom", "Always fails", map[string]any{"type": "object"},
		func(_ *Context, _ map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		})

	_, err := failing.Call(testContext(), map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "backend unavailable", toolErr.Message)
}

func TestFunctionTool_CustomToolErrorForwarded(t *testing.T) {
	failing := NewFunctionTool("denied", "Custom code", map[string]any{"type": "object"},
		func(_ *Context, _ map[string]any) (any, error) {
			return nil, NewToolError("denied", "not allowed", "PERMISSION_DENIED")
		})

	_, err := failing.Call(testContext(), map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "PERMISSION_DENIED", toolErr.Code)
}

type echoArgs struct {
	Text  string `json:"text" description:"Text to echo"`
	Times *int   `json:"times" description:"Optional repeat count"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	echo := NewFunctionToolFromStruct("echo", "Echo text", echoArgs{},
		func(_ *Context, args map[string]any) (any, error) {
			return args["text"], nil
		})

	schema := echo.Parameters()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "text")
	assert.Contains(t, props, "times")

	assert.Equal(t, util.CreateSchema(echoArgs{}), schema)
}

// -------------------- Registry Tests --------------------

func TestRegistry_Basics(t *testing.T) {
	echo := NewFunctionTool("echo", "Echo", map[string]any{"type": "object"}, nil)
	weather := NewFunctionTool("get_weather", "Weather", map[string]any{"type": "object"}, nil)

	r := NewRegistry(weather, echo)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"echo", "get_weather"}, r.Names())

	got, ok := r.Get("echo")
	assert.True(t, ok)
	assert.Equal(t, echo, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_Definitions(t *testing.T) {
	weather := NewFunctionTool("get_weather", "Look up weather", map[string]any{
		"type":       "object",
		"properties": map[string]any{"city": map[string]any{"type": "string"}},
	}, nil)

	r := NewRegistry(weather)
	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "get_weather", defs[0].Name)
	assert.Equal(t, "Look up weather", defs[0].Description)
	assert.Contains(t, defs[0].Parameters, "properties")

	assert.Nil(t, NewRegistry().Definitions())
}

// -------------------- Invalid Sentinel Tests --------------------

func TestInvalidTool_StructuredPayload(t *testing.T) {
	sentinel := NewInvalidTool(func() []string { return []string{"get_weather"} })
	assert.Equal(t, InvalidToolName, sentinel.Name())

	args := InvalidCallArguments("totally_unknown_xyz", map[string]any{"a": 1}, "")
	assert.Equal(t, "totally_unknown_xyz", args["original_tool"])

	result, err := sentinel.Call(testContext(), args)
	require.NoError(t, err)

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "invalid_tool_call", payload["error_type"])
	assert.Contains(t, payload["message"], "totally_unknown_xyz")
	assert.Contains(t, payload["suggestion"], "get_weather")
}
