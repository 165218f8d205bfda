// Package arp models the inbound Agent Runtime Protocol: the event stream an
// injected capability.Runner produces while executing a turn. ARP is
// intentionally abstract — it captures only the shape the Event Translator
// needs (partial/final text, function calls, function responses, state
// deltas/snapshots) and says nothing about how a concrete runtime produces
// it.
package arp

// Part is implemented by the three content shapes an ARP event can carry.
// A Content's Parts are XOR in nature: a well-formed runtime never puts text
// and a function call in the same part, but a single event's Parts slice may
// mix parts of different kinds (e.g. trailing text plus a function call).
type Part interface{ isPart() }

type (
	// TextPart carries plain assistant text, either a streaming fragment or
	// the complete text of a final response.
	TextPart struct {
		Text string
	}

	// FunctionCall is an invocation the model/runtime wants executed.
	FunctionCall struct {
		// ID uniquely identifies this call within the run.
		ID string
		// Name is the tool identifier as declared to the runtime.
		Name string
		// Args is the JSON-compatible argument object.
		Args map[string]any
	}

	// FunctionResponse carries a tool's result back into the runtime
	// conversation (only produced by the runtime in unusual cases; normally
	// this shape flows the other direction as runner input — see
	// RunInput.FunctionResponses — but some runtimes echo it back in the
	// event stream for transcript completeness).
	FunctionResponse struct {
		// ID correlates to a prior FunctionCall.ID.
		ID   string
		Name string
		// Response is the JSON-compatible result payload.
		Response map[string]any
	}
)

func (TextPart) isPart()         {}
func (FunctionCall) isPart()     {}
func (FunctionResponse) isPart() {}

type (
	// Content groups the ordered parts of a single ARP event.
	Content struct {
		Parts []Part
	}

	// Actions carries side-effecting deltas attached to an event.
	Actions struct {
		// StateDelta, when non-nil, is a set of key/value changes to apply
		// to session state, one per key.
		StateDelta map[string]any
		// StateSnapshot, when non-nil, is a complete session state
		// replacement. Passed through to UIP without rewriting.
		StateSnapshot map[string]any
	}

	// Event is a single unit of the ARP event stream produced by a
	// capability.Runner for one turn's execution.
	Event struct {
		// ID uniquely identifies this event.
		ID string
		// Author identifies the producer (e.g. the agent name), informational.
		Author string
		// Content carries this event's parts, if any. Control-only events
		// (pure state deltas, pure finish signals) may have a nil Content.
		Content *Content
		// Partial marks this event as a non-final streaming fragment of a
		// larger response.
		Partial bool
		// TurnComplete marks that the runtime considers the current turn's
		// generation finished (distinct from IsFinalResponse, which governs
		// transcript-worthiness).
		TurnComplete bool
		// IsFinalResponse reports whether this event is the authoritative,
		// complete statement of the assistant's reply for the turn (as
		// opposed to an intermediate streaming chunk).
		IsFinalResponse bool
		// FinishReason, when non-empty, indicates why generation stopped
		// (e.g. "stop", "max_tokens", "tool_calls").
		FinishReason string
		// LongRunningToolIDs names FunctionCall IDs in this event (or a
		// prior event) that are executed by the UIP client rather than the
		// runtime.
		LongRunningToolIDs map[string]struct{}
		// Actions carries optional state-delta/state-snapshot side effects.
		Actions *Actions
		// CustomData carries an arbitrary out-of-band payload, surfaced to
		// UIP as a CUSTOM event.
		CustomData map[string]any
	}
)

// CombinedText concatenates the text of every TextPart in Content, in order.
// Returns "" for a nil Content or a Content with no text parts.
func (e Event) CombinedText() string {
	if e.Content == nil {
		return ""
	}
	var out string
	for _, p := range e.Content.Parts {
		if t, ok := p.(TextPart); ok {
			out += t.Text
		}
	}
	return out
}

// FunctionCalls returns every FunctionCall part in Content, in order.
func (e Event) FunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var out []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCall); ok {
			out = append(out, fc)
		}
	}
	return out
}

// FunctionResponses returns every FunctionResponse part in Content, in order.
func (e Event) FunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var out []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponse); ok {
			out = append(out, fr)
		}
	}
	return out
}

// HasFunctionCall reports whether Content carries at least one FunctionCall.
func (e Event) HasFunctionCall() bool {
	return len(e.FunctionCalls()) > 0
}

// IsLongRunning reports whether id is known to be executed by the UIP client.
func (e Event) IsLongRunning(id string) bool {
	if e.LongRunningToolIDs == nil {
		return false
	}
	_, ok := e.LongRunningToolIDs[id]
	return ok
}
