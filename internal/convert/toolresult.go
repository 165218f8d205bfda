package convert

import (
	"encoding/json"
	"strings"
)

// DecodeToolResult parses a tool message's serialized content into the
// payload carried on the synthetic FunctionResponse sent back into the
// runtime: empty content becomes a success
// envelope, invalid JSON becomes a structured error record rather than a
// raised error — malformed tool output must never abort the submission.
func DecodeToolResult(content string) map[string]any {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return map[string]any{"success": true, "result": nil}
	}

	var parsed any
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&parsed); err != nil {
		line, col := offsetToLineCol(trimmed, jsonErrorOffset(err))
		return map[string]any{
			"error":       "Invalid JSON in tool result: " + err.Error(),
			"raw_content": content,
			"error_type":  "JSON_DECODE_ERROR",
			"line":        line,
			"column":      col,
		}
	}

	if m, ok := parsed.(map[string]any); ok {
		return m
	}
	// A valid JSON value that isn't an object (e.g. a bare number or array)
	// is still a successful result; wrap it so the shape stays a map.
	return map[string]any{"success": true, "result": parsed}
}

func jsonErrorOffset(err error) int64 {
	switch e := err.(type) {
	case *json.SyntaxError:
		return e.Offset
	case *json.UnmarshalTypeError:
		return e.Offset
	default:
		return 0
	}
}

func offsetToLineCol(s string, offset int64) (line, col int) {
	if offset <= 0 {
		return 1, 1
	}
	if int(offset) > len(s) {
		offset = int64(len(s))
	}
	line = 1
	lastNewline := -1
	for i := 0; i < int(offset); i++ {
		if s[i] == '\n' {
			line++
			lastNewline = i
		}
	}
	col = int(offset) - lastNewline
	return line, col
}
