package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdoppenberg/ag-ui/internal/arp"
	"github.com/wdoppenberg/ag-ui/internal/uip"
)

func idSeq(ids ...string) func() string {
	i := 0
	return func() string {
		v := ids[i]
		i++
		return v
	}
}

// S1 — plain text turn.
func TestTranslate_S1_PlainTextTurn(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1")))

	var all []uip.Event
	events := []arp.Event{
		{ID: "e1", Content: &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "Hel"}}}, Partial: true},
		{ID: "e2", Content: &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "lo"}}}, TurnComplete: true},
	}
	for _, ev := range events {
		all = append(all, tr.Translate("run-1", ev)...)
	}

	require.Len(t, all, 4)
	assert.Equal(t, uip.EventTextMessageStart, all[0].Type())
	assert.Equal(t, "m1", all[0].(uip.TextMessageStart).MessageID)
	assert.Equal(t, uip.EventTextMessageContent, all[1].Type())
	assert.Equal(t, "Hel", all[1].(uip.TextMessageContent).Delta)
	assert.Equal(t, uip.EventTextMessageContent, all[2].Type())
	assert.Equal(t, "lo", all[2].(uip.TextMessageContent).Delta)
	assert.Equal(t, uip.EventTextMessageEnd, all[3].Type())
	assert.Equal(t, "m1", all[3].(uip.TextMessageEnd).MessageID)
}

// S2 — long-running (client) tool.
func TestTranslateLRO_S2_LongRunningTool(t *testing.T) {
	tr := New("thread-1")

	ev := arp.Event{
		ID: "e1",
		Content: &arp.Content{Parts: []arp.Part{
			arp.FunctionCall{ID: "c1", Name: "search", Args: map[string]any{}},
		}},
		LongRunningToolIDs: map[string]struct{}{"c1": {}},
	}
	out, sawEnd := tr.TranslateLRO("run-1", ev)
	require.True(t, sawEnd)
	require.Len(t, out, 3)
	assert.Equal(t, uip.EventToolCallStart, out[0].Type())
	start := out[0].(uip.ToolCallStart)
	assert.Equal(t, "c1", start.ToolCallID)
	assert.Equal(t, "search", start.ToolName)
	assert.Equal(t, uip.EventToolCallArgs, out[1].Type())
	assert.Equal(t, "{}", out[1].(uip.ToolCallArgs).Delta)
	assert.Equal(t, uip.EventToolCallEnd, out[2].Type())
	assert.Equal(t, []string{"c1"}, tr.LongRunningToolIDs())
}

func TestTranslateLRO_NoLongRunningCall_IsNoop(t *testing.T) {
	tr := New("thread-1")
	out, sawEnd := tr.TranslateLRO("run-1", arp.Event{
		Content: &arp.Content{Parts: []arp.Part{arp.FunctionCall{ID: "c1", Name: "calc"}}},
	})
	assert.False(t, sawEnd)
	assert.Empty(t, out)
}

// A function response echoed by the runtime for a known long-running call
// must not produce a TOOL_CALL_RESULT: the client owns that result.
func TestTranslate_ToolResultSuppressedForLongRunning(t *testing.T) {
	tr := New("thread-1")
	tr.TranslateLRO("run-1", arp.Event{
		Content:            &arp.Content{Parts: []arp.Part{arp.FunctionCall{ID: "c1", Name: "search"}}},
		LongRunningToolIDs: map[string]struct{}{"c1": {}},
	})

	out := tr.Translate("run-2", arp.Event{
		Content: &arp.Content{Parts: []arp.Part{
			arp.FunctionResponse{ID: "c1", Name: "search", Response: map[string]any{"r": 42}},
		}},
	})
	assert.Empty(t, out, "a result for a known long-running call must be suppressed")
}

func TestTranslate_FunctionResult_BackendToolEmitsResult(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1")))
	out := tr.Translate("run-1", arp.Event{
		Content: &arp.Content{Parts: []arp.Part{
			arp.FunctionResponse{ID: "c2", Name: "calc", Response: map[string]any{"r": 42}},
		}},
	})
	require.Len(t, out, 1)
	res := out[0].(uip.ToolCallResult)
	assert.Equal(t, "c2", res.ToolCallID)
	assert.Equal(t, "m1", res.MessageID)
	assert.Equal(t, `{"r":42}`, res.Content)
}

// S6 — text then tool: an open stream must close before any tool call.
func TestTranslate_S6_TextThenToolOrdering(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1")))

	textOut := tr.Translate("run-1", arp.Event{
		Content: &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "Let me check"}}},
		Partial: true,
	})
	require.Len(t, textOut, 2)
	assert.Equal(t, uip.EventTextMessageStart, textOut[0].Type())
	assert.Equal(t, uip.EventTextMessageContent, textOut[1].Type())

	toolOut := tr.Translate("run-1", arp.Event{
		Content: &arp.Content{Parts: []arp.Part{arp.FunctionCall{ID: "c1", Name: "lookup"}}},
	})
	require.Len(t, toolOut, 4)
	assert.Equal(t, uip.EventTextMessageEnd, toolOut[0].Type(), "open stream must close before the tool call")
	assert.Equal(t, uip.EventToolCallStart, toolOut[1].Type())
}

// A single event mixing trailing text with a backend call still closes the
// text before the tool triplet.
func TestTranslate_MixedTextAndCall_SameEvent(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1")))
	out := tr.Translate("run-1", arp.Event{
		Content: &arp.Content{Parts: []arp.Part{
			arp.TextPart{Text: "Checking"},
			arp.FunctionCall{ID: "c1", Name: "lookup"},
		}},
		Partial: true,
	})
	require.Len(t, out, 6)
	assert.Equal(t, uip.EventTextMessageStart, out[0].Type())
	assert.Equal(t, uip.EventTextMessageContent, out[1].Type())
	assert.Equal(t, uip.EventTextMessageEnd, out[2].Type())
	assert.Equal(t, uip.EventToolCallStart, out[3].Type())
	assert.Equal(t, uip.EventToolCallArgs, out[4].Type())
	assert.Equal(t, uip.EventToolCallEnd, out[5].Type())
}

func TestTranslate_DuplicateSuppression_FinalRepeatsStreamed(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1")))

	tr.Translate("run-1", arp.Event{
		Content:      &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "hello"}}},
		TurnComplete: true,
	})
	assert.False(t, tr.IsStreaming())

	out := tr.Translate("run-1", arp.Event{
		ID:              "e-final",
		Content:         &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "hello"}}},
		IsFinalResponse: true,
	})
	assert.Empty(t, out, "a final event repeating just-streamed text must be suppressed")
}

// Same text but a different run is not a duplicate.
func TestTranslate_NoSuppressionAcrossRuns(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1")))
	tr.Translate("run-1", arp.Event{
		Content:      &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "hello"}}},
		TurnComplete: true,
	})
	out := tr.Translate("run-2", arp.Event{
		ID:              "e-final",
		Content:         &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "hello"}}},
		IsFinalResponse: true,
	})
	require.Len(t, out, 3)
	assert.Equal(t, "e-final", out[0].(uip.TextMessageStart).MessageID)
}

func TestTranslate_FinalResponse_WhileStreaming_ClosesWithoutReemit(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1")))
	tr.Translate("run-1", arp.Event{
		Content: &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "partial"}}},
		Partial: true,
	})
	require.True(t, tr.IsStreaming())

	out := tr.Translate("run-1", arp.Event{
		ID:              "e-final",
		Content:         &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "partial"}}},
		IsFinalResponse: true,
	})
	require.Len(t, out, 1)
	assert.Equal(t, uip.EventTextMessageEnd, out[0].Type())
	assert.Equal(t, "m1", out[0].(uip.TextMessageEnd).MessageID)
}

func TestTranslate_UserEventsSkipped(t *testing.T) {
	tr := New("thread-1")
	out := tr.Translate("run-1", arp.Event{
		Author:  "user",
		Content: &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "hi"}}},
	})
	assert.Empty(t, out)
}

func TestForceClose_Idempotent(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1")))
	assert.Empty(t, tr.ForceClose("run-1"))

	tr.Translate("run-1", arp.Event{Content: &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "x"}}}, Partial: true})
	out := tr.ForceClose("run-1")
	require.Len(t, out, 1)
	assert.Equal(t, uip.EventTextMessageEnd, out[0].Type())
	assert.Empty(t, tr.ForceClose("run-1"), "a second force-close must be a no-op")
}

func TestReset_ClearsState(t *testing.T) {
	tr := New("thread-1", WithIDGenerator(idSeq("m1", "m2")))
	tr.Translate("run-1", arp.Event{Content: &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "x"}}}, Partial: true})
	require.True(t, tr.IsStreaming())

	tr.Reset()
	assert.False(t, tr.IsStreaming())

	out := tr.Translate("run-2", arp.Event{Content: &arp.Content{Parts: []arp.Part{arp.TextPart{Text: "y"}}}, Partial: true})
	require.Len(t, out, 2)
	assert.Equal(t, "m2", out[0].(uip.TextMessageStart).MessageID)
}

func TestStateDelta_And_Custom(t *testing.T) {
	tr := New("thread-1")
	out := tr.Translate("run-1", arp.Event{
		Actions:    &arp.Actions{StateDelta: map[string]any{"foo": 1}},
		CustomData: map[string]any{"k": "v"},
	})
	require.Len(t, out, 2)
	sd := out[0].(uip.StateDelta)
	require.Len(t, sd.Patches, 1)
	assert.Equal(t, "/foo", sd.Patches[0].Path)
	custom := out[1].(uip.Custom)
	assert.Equal(t, CustomEventName, custom.Name)
}

func TestStateSnapshot_Passthrough(t *testing.T) {
	tr := New("thread-1")
	out := tr.Translate("run-1", arp.Event{
		Actions: &arp.Actions{StateSnapshot: map[string]any{"a": "b"}},
	})
	require.Len(t, out, 1)
	snap := out[0].(uip.StateSnapshot)
	assert.Equal(t, map[string]any{"a": "b"}, snap.Snapshot)
}
