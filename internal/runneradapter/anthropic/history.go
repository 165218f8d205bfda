package anthropic

import (
	"encoding/json"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// Conversation history is persisted in session state as a plain
// []map[string]any (rather than typed structs) so it survives a round trip
// through either the in-memory store or a bson-backed store unchanged.
const historyStateKey = "anthropic_history"

func blockText(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}

func blockToolUse(id, name string, input map[string]any) map[string]any {
	return map[string]any{"type": "tool_use", "id": id, "name": name, "input": input}
}

func blockToolResult(toolUseID, content string, isError bool) map[string]any {
	return map[string]any{"type": "tool_result", "tool_use_id": toolUseID, "content": content, "is_error": isError}
}

func messageEntry(role string, blocks []map[string]any) map[string]any {
	return map[string]any{"role": role, "blocks": blocks}
}

// asHistory normalizes whatever shape session state handed back (a
// []map[string]any kept as-is in memory, or a []any of map[string]any after
// a JSON/bson round trip) into a uniform slice.
func asHistory(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func mapField(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func blocksField(m map[string]any) []map[string]any {
	return asHistory(m["blocks"])
}

// encodeHistory converts the persisted history into Anthropic MessageParams.
func encodeHistory(history []map[string]any) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(history))
	for _, entry := range history {
		role := stringField(entry, "role")
		blocks := blocksField(entry)
		params := make([]sdk.ContentBlockParamUnion, 0, len(blocks))
		for _, b := range blocks {
			switch stringField(b, "type") {
			case "text":
				params = append(params, sdk.NewTextBlock(stringField(b, "text")))
			case "tool_use":
				params = append(params, sdk.NewToolUseBlock(stringField(b, "id"), mapField(b, "input"), stringField(b, "name")))
			case "tool_result":
				params = append(params, sdk.NewToolResultBlock(stringField(b, "tool_use_id"), stringField(b, "content"), boolField(b, "is_error")))
			}
		}
		if len(params) == 0 {
			continue
		}
		switch role {
		case "user":
			out = append(out, sdk.NewUserMessage(params...))
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(params...))
		}
	}
	return out
}

func marshalResponse(response map[string]any) string {
	data, err := json.Marshal(response)
	if err != nil {
		return "{}"
	}
	return string(data)
}
