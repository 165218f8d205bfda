// Package uip defines the UI Protocol event types streamed back to AG-UI
// clients: assistant text, tool calls, tool results, and state transitions.
//
// All concrete event types embed Base for the common envelope (thread/run
// identity) and implement Event so sinks can marshal generically while
// callers that need structured access type-assert to the concrete type.
package uip

import "encoding/json"

// EventType discriminates the concrete shape of an Event.
type EventType string

const (
	EventRunStarted         EventType = "RUN_STARTED"
	EventRunFinished        EventType = "RUN_FINISHED"
	EventRunError           EventType = "RUN_ERROR"
	EventTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventToolCallStart      EventType = "TOOL_CALL_START"
	EventToolCallArgs       EventType = "TOOL_CALL_ARGS"
	EventToolCallEnd        EventType = "TOOL_CALL_END"
	EventToolCallResult     EventType = "TOOL_CALL_RESULT"
	EventStateDelta         EventType = "STATE_DELTA"
	EventStateSnapshot      EventType = "STATE_SNAPSHOT"
	EventCustom             EventType = "CUSTOM"
)

// Error codes for RunError.Code, per the bridge's error taxonomy.
const (
	CodeNoToolResults             = "NO_TOOL_RESULTS"
	CodeToolResultProcessingError = "TOOL_RESULT_PROCESSING_ERROR"
	CodeExecutionTimeout          = "EXECUTION_TIMEOUT"
	CodeExecutionError            = "EXECUTION_ERROR"
	CodeBackgroundExecutionError  = "BACKGROUND_EXECUTION_ERROR"
)

type (
	// Event is the common interface implemented by every concrete UIP event.
	Event interface {
		// Type returns the discriminator used for wire encoding and routing.
		Type() EventType
		// ThreadID returns the conversation thread this event belongs to.
		ThreadID() string
		// RunID returns the run (sub-execution) that produced this event.
		RunID() string
	}

	// Base carries the envelope shared by all events: type discriminator and
	// thread/run identity.
	Base struct {
		T      EventType `json:"type"`
		Thread string    `json:"thread_id"`
		Run    string    `json:"run_id"`
	}

	// RunStarted opens a run. Always the first event of a sub-execution.
	RunStarted struct{ Base }

	// RunFinished closes a run successfully. Mutually exclusive with RunError
	// as the terminal event of a sub-execution.
	RunFinished struct{ Base }

	// RunError closes a run with a structured failure. Mutually exclusive
	// with RunFinished.
	RunError struct {
		Base
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	// TextMessageStart opens a streamed assistant text message.
	TextMessageStart struct {
		Base
		MessageID string `json:"message_id"`
		Role      string `json:"role"`
	}

	// TextMessageContent carries an incremental text delta for an open
	// message. MessageID must match a prior unterminated TextMessageStart.
	TextMessageContent struct {
		Base
		MessageID string `json:"message_id"`
		Delta     string `json:"delta"`
	}

	// TextMessageEnd closes a streamed text message. Exactly one is emitted
	// per TextMessageStart.
	TextMessageEnd struct {
		Base
		MessageID string `json:"message_id"`
	}

	// ToolCallStart announces a tool invocation.
	ToolCallStart struct {
		Base
		ToolCallID      string `json:"tool_call_id"`
		ToolName        string `json:"tool_name"`
		ParentMessageID string `json:"parent_message_id,omitempty"`
	}

	// ToolCallArgs streams an incremental fragment of the tool call's JSON
	// arguments.
	ToolCallArgs struct {
		Base
		ToolCallID string `json:"tool_call_id"`
		Delta      string `json:"delta"`
	}

	// ToolCallEnd closes a tool call's argument stream. For long-running
	// (client-side) tools this does not imply the tool has finished
	// executing — only that the call has been fully described.
	ToolCallEnd struct {
		Base
		ToolCallID string `json:"tool_call_id"`
	}

	// ToolCallResult carries a tool's result content, attributed to a new
	// message ID for rendering in the transcript.
	ToolCallResult struct {
		Base
		ToolCallID string `json:"tool_call_id"`
		MessageID  string `json:"message_id"`
		Content    string `json:"content"`
	}

	// JSONPatch is an RFC 6902 patch operation. The translator only emits
	// op "add"; other ops may appear on patches constructed by converters.
	JSONPatch struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value,omitempty"`
	}

	// StateDelta carries incremental state changes as JSON patches.
	StateDelta struct {
		Base
		Patches []JSONPatch `json:"patches"`
	}

	// StateSnapshot carries a complete state replacement, passed through
	// from the agent runtime without rewriting.
	StateSnapshot struct {
		Base
		Snapshot any `json:"snapshot"`
	}

	// Custom carries an arbitrary out-of-band payload under a name.
	Custom struct {
		Base
		Name  string `json:"name"`
		Value any    `json:"value"`
	}
)

func (b Base) Type() EventType  { return b.T }
func (b Base) ThreadID() string { return b.Thread }
func (b Base) RunID() string    { return b.Run }

// NewRunStarted constructs a RunStarted event for the given thread/run.
func NewRunStarted(threadID, runID string) RunStarted {
	return RunStarted{Base: Base{T: EventRunStarted, Thread: threadID, Run: runID}}
}

// NewRunFinished constructs a RunFinished event for the given thread/run.
func NewRunFinished(threadID, runID string) RunFinished {
	return RunFinished{Base: Base{T: EventRunFinished, Thread: threadID, Run: runID}}
}

// NewRunError constructs a RunError event for the given thread/run.
func NewRunError(threadID, runID, code, message string) RunError {
	return RunError{
		Base:    Base{T: EventRunError, Thread: threadID, Run: runID},
		Code:    code,
		Message: message,
	}
}

// Marshal encodes an Event to its wire-format JSON, including the type
// discriminator carried on Base.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(e)
}
