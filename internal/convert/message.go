// Package convert holds the shape-conversion utilities shared by the
// orchestrator and translator: Input Message to ARP request parts,
// RFC 6902 JSON-patch construction, and the defensive tool-response
// coercion used for tool-result payloads.
package convert

import "github.com/wdoppenberg/ag-ui/internal/arp"

// Role discriminates the tagged union an Input Message belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is an assistant-declared invocation awaiting a result.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is the tagged-union input message: a UIP-side
// conversation entry carrying an ID, a role, optional text, and
// role-specific extras (assistant tool calls, tool results).
type Message struct {
	ID   string
	Role Role
	Text string

	// Name is an optional display name, used only for logging/telemetry,
	// never for routing.
	Name string

	// ToolCalls is set only when Role == RoleAssistant.
	ToolCalls []ToolCall

	// ToolCallID and Content (Content reuses Text) are set only when
	// Role == RoleTool: the serialized tool result and the call it answers.
	ToolCallID string
}

// HasID reports whether the message carries a caller-supplied ID. Messages
// without one are always "unseen" per the ledger's unseen-suffix rule.
func (m Message) HasID() bool { return m.ID != "" }

// ToUserInput converts a user message into a RunInput carrying its text.
func ToUserInput(m Message) arp.RunInput {
	return arp.NewUserInput(m.Text)
}

// ToolNameMap indexes declared tool names by tool-call ID across the whole
// conversation, so a tool message (which carries only the call ID) can be
// answered under the name the runtime invoked it with.
func ToolNameMap(messages []Message) map[string]string {
	out := make(map[string]string)
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			out[tc.ID] = tc.Name
		}
	}
	return out
}

// ToFunctionResultInput builds a RunInput from a batch of consecutive tool
// messages, one FunctionResponse per message, using DecodeToolResult to
// parse each message's serialized content. names maps tool-call IDs to the
// declared tool names (see ToolNameMap); an unmapped ID is answered as
// "unknown".
func ToFunctionResultInput(batch []Message, names map[string]string) arp.RunInput {
	responses := make([]arp.FunctionResponse, 0, len(batch))
	for _, m := range batch {
		name, ok := names[m.ToolCallID]
		if !ok {
			name = "unknown"
		}
		responses = append(responses, arp.FunctionResponse{
			ID:       m.ToolCallID,
			Name:     name,
			Response: DecodeToolResult(m.Text),
		})
	}
	return arp.NewFunctionResultInput(responses)
}
