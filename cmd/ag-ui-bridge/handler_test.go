package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdoppenberg/ag-ui/internal/convert"
)

func TestWireRequest_ToInput(t *testing.T) {
	payload := `{
		"threadId": "t1",
		"runId": "r1",
		"state": {"k": "v"},
		"tools": [{"name": "search"}],
		"forwardedProps": {"origin": "web"},
		"messages": [
			{"id": "u1", "role": "user", "content": "hi"},
			{"id": "a1", "role": "assistant", "toolCalls": [
				{"id": "c1", "function": {"name": "search", "arguments": "{\"q\":\"x\"}"}}
			]},
			{"id": "tr1", "role": "tool", "toolCallId": "c1", "content": "{\"r\":42}"}
		]
	}`
	var wire wireRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &wire))

	input := wire.toInput()
	assert.Equal(t, "t1", input.ThreadID)
	assert.Equal(t, "r1", input.RunID)
	assert.Equal(t, map[string]any{"k": "v"}, input.State)
	assert.Equal(t, map[string]any{"origin": "web"}, input.ForwardedProps)
	require.Len(t, input.Tools, 1)
	assert.Equal(t, "search", input.Tools[0].Name)

	require.Len(t, input.Messages, 3)
	assert.Equal(t, convert.RoleUser, input.Messages[0].Role)
	assert.Equal(t, "hi", input.Messages[0].Text)
	require.Len(t, input.Messages[1].ToolCalls, 1)
	assert.Equal(t, "c1", input.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "search", input.Messages[1].ToolCalls[0].Name)
	assert.Equal(t, `{"q":"x"}`, input.Messages[1].ToolCalls[0].Arguments)
	assert.Equal(t, "c1", input.Messages[2].ToolCallID)
}
