package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdoppenberg/ag-ui/internal/arp"
)

func TestAsHistory_NormalizesShapes(t *testing.T) {
	direct := []map[string]any{{"role": "user"}}
	assert.Equal(t, direct, asHistory(direct))

	roundTripped := []any{map[string]any{"role": "user"}, "garbage"}
	got := asHistory(roundTripped)
	require.Len(t, got, 1)
	assert.Equal(t, "user", stringField(got[0], "role"))

	assert.Nil(t, asHistory(nil))
	assert.Nil(t, asHistory("not a list"))
}

func TestRequestEntry_UserTurn(t *testing.T) {
	entries := requestEntry(arp.NewUserInput("hello"))
	require.Len(t, entries, 1)
	assert.Equal(t, "user", stringField(entries[0], "role"))
	blocks := blocksField(entries[0])
	require.Len(t, blocks, 1)
	assert.Equal(t, "text", stringField(blocks[0], "type"))
	assert.Equal(t, "hello", stringField(blocks[0], "text"))
}

func TestRequestEntry_ToolResults(t *testing.T) {
	entries := requestEntry(arp.NewFunctionResultInput([]arp.FunctionResponse{
		{ID: "c1", Name: "search", Response: map[string]any{"r": 42}},
		{ID: "c2", Name: "calc", Response: map[string]any{"v": 1}},
	}))
	require.Len(t, entries, 1)
	assert.Equal(t, "user", stringField(entries[0], "role"))
	blocks := blocksField(entries[0])
	require.Len(t, blocks, 2)
	assert.Equal(t, "tool_result", stringField(blocks[0], "type"))
	assert.Equal(t, "c1", stringField(blocks[0], "tool_use_id"))
	assert.JSONEq(t, `{"r":42}`, stringField(blocks[0], "content"))
}

func TestPartitionToolCalls(t *testing.T) {
	calls := []arp.FunctionCall{
		{ID: "c1", Name: "search"},
		{ID: "c2", Name: "local_calc"},
	}
	proxied, backend := partitionToolCalls(calls, map[string]struct{}{"search": {}})
	require.Len(t, proxied, 1)
	assert.Equal(t, "c1", proxied[0].ID)
	require.Len(t, backend, 1)
	assert.Equal(t, "c2", backend[0].ID)
}

func TestEncodeHistory_SkipsEmptyEntries(t *testing.T) {
	history := []map[string]any{
		messageEntry("user", []map[string]any{blockText("hi")}),
		messageEntry("assistant", nil),
		messageEntry("assistant", []map[string]any{blockToolUse("c1", "search", map[string]any{"q": "x"})}),
	}
	params := encodeHistory(history)
	assert.Len(t, params, 2)
}
