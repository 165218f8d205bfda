package uip

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEnvelope(t *testing.T) {
	events := []Event{
		NewRunStarted("thread-1", "run-1"),
		NewRunFinished("thread-1", "run-1"),
		NewRunError("thread-1", "run-1", CodeExecutionTimeout, "timed out"),
		TextMessageStart{Base: Base{T: EventTextMessageStart, Thread: "thread-1", Run: "run-1"}, MessageID: "m1", Role: "assistant"},
		TextMessageContent{Base: Base{T: EventTextMessageContent, Thread: "thread-1", Run: "run-1"}, MessageID: "m1", Delta: "hi"},
		TextMessageEnd{Base: Base{T: EventTextMessageEnd, Thread: "thread-1", Run: "run-1"}, MessageID: "m1"},
		ToolCallStart{Base: Base{T: EventToolCallStart, Thread: "thread-1", Run: "run-1"}, ToolCallID: "c1", ToolName: "search"},
		ToolCallArgs{Base: Base{T: EventToolCallArgs, Thread: "thread-1", Run: "run-1"}, ToolCallID: "c1", Delta: "{}"},
		ToolCallEnd{Base: Base{T: EventToolCallEnd, Thread: "thread-1", Run: "run-1"}, ToolCallID: "c1"},
		ToolCallResult{Base: Base{T: EventToolCallResult, Thread: "thread-1", Run: "run-1"}, ToolCallID: "c1", MessageID: "m2", Content: "42"},
		StateDelta{Base: Base{T: EventStateDelta, Thread: "thread-1", Run: "run-1"}, Patches: []JSONPatch{{Op: "add", Path: "/foo", Value: 1}}},
		StateSnapshot{Base: Base{T: EventStateSnapshot, Thread: "thread-1", Run: "run-1"}, Snapshot: map[string]any{"foo": 1}},
		Custom{Base: Base{T: EventCustom, Thread: "thread-1", Run: "run-1"}, Name: "adk_metadata", Value: map[string]any{}},
	}

	for _, e := range events {
		assert.Equal(t, "thread-1", e.ThreadID())
		assert.Equal(t, "run-1", e.RunID())
		assert.NotEmpty(t, e.Type())

		data, err := Marshal(e)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, string(e.Type()), decoded["type"])
	}
}

func TestRunErrorCodes(t *testing.T) {
	err := NewRunError("t", "r", CodeNoToolResults, "no tool results")
	assert.Equal(t, CodeNoToolResults, err.Code)
	assert.Equal(t, EventRunError, err.Type())
}
