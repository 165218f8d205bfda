package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToolResult_Empty(t *testing.T) {
	got := DecodeToolResult("")
	assert.Equal(t, map[string]any{"success": true, "result": nil}, got)
}

func TestDecodeToolResult_Valid(t *testing.T) {
	got := DecodeToolResult(`{"r":42}`)
	assert.Equal(t, map[string]any{"r": float64(42)}, got)
}

func TestDecodeToolResult_Malformed(t *testing.T) {
	got := DecodeToolResult("not json")
	assert.Equal(t, "JSON_DECODE_ERROR", got["error_type"])
	assert.Equal(t, "not json", got["raw_content"])
	assert.NotEmpty(t, got["error"])
	assert.Contains(t, got, "line")
	assert.Contains(t, got, "column")
}

func TestStateDeltaToPatches_Deterministic(t *testing.T) {
	patches := StateDeltaToPatches(map[string]any{"b": 2, "a": 1})
	require.Len(t, patches, 2)
	assert.Equal(t, "/a", patches[0].Path)
	assert.Equal(t, "add", patches[0].Op)
	assert.Equal(t, "/b", patches[1].Path)
}

func TestStateDeltaToPatches_Empty(t *testing.T) {
	assert.Nil(t, StateDeltaToPatches(nil))
}

func TestPatchesToStateDelta_RoundTrip(t *testing.T) {
	delta := map[string]any{"foo": "bar", "count": 3}
	patches := StateDeltaToPatches(delta)
	back := PatchesToStateDelta(patches)
	assert.Equal(t, delta, back)
}

func TestToolNameMap_IndexesAssistantCalls(t *testing.T) {
	messages := []Message{
		{ID: "u1", Role: RoleUser, Text: "hi"},
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "c1", Name: "search", Arguments: "{}"},
			{ID: "c2", Name: "calc", Arguments: "{}"},
		}},
	}
	names := ToolNameMap(messages)
	assert.Equal(t, map[string]string{"c1": "search", "c2": "calc"}, names)
}

func TestToFunctionResultInput_ResolvesNames(t *testing.T) {
	batch := []Message{
		{ID: "t1", Role: RoleTool, ToolCallID: "c1", Text: `{"r":42}`},
		{ID: "t2", Role: RoleTool, ToolCallID: "c9", Text: ""},
	}
	input := ToFunctionResultInput(batch, map[string]string{"c1": "search"})

	assert.Equal(t, "function", input.Role)
	require.Len(t, input.FunctionResponses, 2)
	assert.Equal(t, "search", input.FunctionResponses[0].Name)
	assert.Equal(t, map[string]any{"r": float64(42)}, input.FunctionResponses[0].Response)
	assert.Equal(t, "unknown", input.FunctionResponses[1].Name)
	assert.Equal(t, map[string]any{"success": true, "result": nil}, input.FunctionResponses[1].Response)
}

func TestCoerceJSON_Primitives(t *testing.T) {
	assert.Equal(t, `42`, CoerceJSON(42))
	assert.Equal(t, `"hi"`, CoerceJSON("hi"))
}

func TestCoerceJSON_Cycle(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	out := CoerceJSON(m)
	assert.Contains(t, out, "<cycle>")
}

func TestCoerceJSON_Struct(t *testing.T) {
	type rec struct {
		Name string
		n    int // unexported, dropped
	}
	out := CoerceJSON(rec{Name: "x", n: 1})
	assert.Equal(t, `{"Name":"x"}`, out)
}

func TestCoerceJSON_Bytes(t *testing.T) {
	assert.Equal(t, `"hi"`, CoerceJSON([]byte("hi")))
}
