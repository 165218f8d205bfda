// Package translator implements the Event Translator: a stateful streaming
// state machine that converts ARP events into UIP events with strict
// ordering invariants. One Translator is constructed per sub-execution by
// the orchestrator's background producer; Reset exists for callers that
// reuse an instance across conversations.
package translator

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/wdoppenberg/ag-ui/internal/arp"
	"github.com/wdoppenberg/ag-ui/internal/convert"
	"github.com/wdoppenberg/ag-ui/internal/uip"
)

// CustomEventName is the name carried on every CUSTOM event the translator
// emits for ARP custom_data.
const CustomEventName = "adk_metadata"

// Translator holds the streaming state for one sub-execution: the open text
// stream (if any), the dedup snapshot of the last closed stream, in-flight
// tool calls, and the set of tool-call IDs known to be client-executed.
type Translator struct {
	threadID string
	idGen    func() string

	streamingMessageID string
	isStreaming        bool
	currentStreamText  string

	lastStreamedText  string
	lastStreamedRunID string

	activeToolCalls    map[string]struct{}
	longRunningToolIDs map[string]struct{}
}

// Option configures a Translator at construction time.
type Option func(*Translator)

// WithIDGenerator overrides the message-ID generator used for streaming
// message IDs and tool-result message IDs (default: github.com/google/uuid).
func WithIDGenerator(gen func() string) Option {
	return func(t *Translator) { t.idGen = gen }
}

// New constructs a Translator scoped to threadID.
func New(threadID string, opts ...Option) *Translator {
	t := &Translator{
		threadID:           threadID,
		idGen:              uuid.NewString,
		activeToolCalls:    make(map[string]struct{}),
		longRunningToolIDs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset wipes all translator state, for reuse between conversations.
func (t *Translator) Reset() {
	t.streamingMessageID = ""
	t.isStreaming = false
	t.currentStreamText = ""
	t.lastStreamedText = ""
	t.lastStreamedRunID = ""
	t.activeToolCalls = make(map[string]struct{})
	t.longRunningToolIDs = make(map[string]struct{})
}

// IsStreaming reports whether a text message is currently open.
func (t *Translator) IsStreaming() bool { return t.isStreaming }

// LongRunningToolIDs returns the tool-call IDs this translator has routed
// through the long-running path so far.
func (t *Translator) LongRunningToolIDs() []string {
	out := make([]string, 0, len(t.longRunningToolIDs))
	for id := range t.longRunningToolIDs {
		out = append(out, id)
	}
	return out
}

func (t *Translator) base(runID string, typ uip.EventType) uip.Base {
	return uip.Base{T: typ, Thread: t.threadID, Run: runID}
}

func (t *Translator) clearStreamState() {
	t.streamingMessageID = ""
	t.isStreaming = false
	t.currentStreamText = ""
}

// ForceClose idempotently closes any open text stream. The orchestrator
// calls it before long-running tool calls and at end-of-turn so that an
// unterminated stream self-heals rather than leaking an open message.
func (t *Translator) ForceClose(runID string) []uip.Event {
	if !t.isStreaming {
		return nil
	}
	ev := uip.TextMessageEnd{Base: t.base(runID, uip.EventTextMessageEnd), MessageID: t.streamingMessageID}
	t.clearStreamState()
	return []uip.Event{ev}
}

// Translate is the regular (streaming) path: it converts one ARP event into
// zero or more UIP events. Text parts are handled first; any non-long-running
// function calls then force-close the open stream before their triplets so
// no tool-call event interleaves with an open text message. Long-running
// calls are not handled here — the orchestrator routes those events through
// TranslateLRO instead.
func (t *Translator) Translate(runID string, ev arp.Event) []uip.Event {
	// User-authored events are already part of the conversation the client
	// sent; echoing them back would duplicate the transcript.
	if ev.Author == "user" {
		return nil
	}

	var events []uip.Event

	if ev.Content != nil && len(ev.Content.Parts) > 0 {
		events = append(events, t.translateText(runID, ev)...)
	}

	var nonLRO []arp.FunctionCall
	for _, fc := range ev.FunctionCalls() {
		if !ev.IsLongRunning(fc.ID) {
			nonLRO = append(nonLRO, fc)
		}
	}
	if len(nonLRO) > 0 {
		events = append(events, t.ForceClose(runID)...)
		for _, fc := range nonLRO {
			events = append(events, t.toolCallTriplet(runID, fc)...)
		}
	}

	for _, fr := range ev.FunctionResponses() {
		// Results for long-running tools arrive from the client, not the
		// runtime; emitting the runtime's echo would double-render them.
		if _, lro := t.longRunningToolIDs[fr.ID]; lro {
			continue
		}
		events = append(events, t.toolCallResult(runID, fr))
	}

	events = append(events, t.translateState(runID, ev)...)

	if len(ev.CustomData) > 0 {
		events = append(events, uip.Custom{Base: t.base(runID, uip.EventCustom), Name: CustomEventName, Value: ev.CustomData})
	}

	return events
}

// TranslateLRO is the long-running path: it emits the tool-call triplet for
// the first function call in ev whose ID is in the event's long-running set,
// recording the ID so later function-response echoes are suppressed.
// sawEnd reports whether a TOOL_CALL_END was emitted; the orchestrator
// terminates the sub-execution when it was, since the client must now
// execute the tool and answer with a new request.
func (t *Translator) TranslateLRO(runID string, ev arp.Event) (events []uip.Event, sawEnd bool) {
	for _, fc := range ev.FunctionCalls() {
		if !ev.IsLongRunning(fc.ID) {
			continue
		}
		t.longRunningToolIDs[fc.ID] = struct{}{}
		events = append(events, t.toolCallTriplet(runID, fc)...)
		return events, true
	}
	return nil, false
}

// translateText is the streaming state machine for text. An empty-text
// event is still meaningful when it is the final response: it closes the
// active stream.
func (t *Translator) translateText(runID string, ev arp.Event) []uip.Event {
	text := ev.CombinedText()
	if text == "" && !ev.IsFinalResponse {
		return nil
	}

	if ev.IsFinalResponse {
		if t.isStreaming {
			// The stream already carried this content; just close it.
			if t.currentStreamText != "" {
				t.lastStreamedText = t.currentStreamText
				t.lastStreamedRunID = runID
			}
			out := []uip.Event{uip.TextMessageEnd{Base: t.base(runID, uip.EventTextMessageEnd), MessageID: t.streamingMessageID}}
			t.clearStreamState()
			return out
		}

		duplicate := t.lastStreamedRunID == runID && t.lastStreamedText != "" && text == t.lastStreamedText
		t.lastStreamedText = ""
		t.lastStreamedRunID = ""
		t.currentStreamText = ""
		if duplicate {
			return nil
		}

		// A complete non-streamed message, attributed to the event's own ID.
		id := ev.ID
		return []uip.Event{
			uip.TextMessageStart{Base: t.base(runID, uip.EventTextMessageStart), MessageID: id, Role: "assistant"},
			uip.TextMessageContent{Base: t.base(runID, uip.EventTextMessageContent), MessageID: id, Delta: text},
			uip.TextMessageEnd{Base: t.base(runID, uip.EventTextMessageEnd), MessageID: id},
		}
	}

	var out []uip.Event
	if !t.isStreaming {
		id := t.idGen()
		t.streamingMessageID = id
		t.isStreaming = true
		t.currentStreamText = ""
		out = append(out, uip.TextMessageStart{Base: t.base(runID, uip.EventTextMessageStart), MessageID: id, Role: "assistant"})
	}
	if text != "" {
		t.currentStreamText += text
		out = append(out, uip.TextMessageContent{Base: t.base(runID, uip.EventTextMessageContent), MessageID: t.streamingMessageID, Delta: text})
	}
	if (ev.TurnComplete && !ev.Partial) || (ev.FinishReason != "" && t.isStreaming) {
		out = append(out, uip.TextMessageEnd{Base: t.base(runID, uip.EventTextMessageEnd), MessageID: t.streamingMessageID})
		if t.currentStreamText != "" {
			t.lastStreamedText = t.currentStreamText
			t.lastStreamedRunID = runID
		}
		t.clearStreamState()
	}
	return out
}

func (t *Translator) translateState(runID string, ev arp.Event) []uip.Event {
	if ev.Actions == nil {
		return nil
	}
	var out []uip.Event
	if len(ev.Actions.StateDelta) > 0 {
		out = append(out, uip.StateDelta{
			Base:    t.base(runID, uip.EventStateDelta),
			Patches: convert.StateDeltaToPatches(ev.Actions.StateDelta),
		})
	}
	if ev.Actions.StateSnapshot != nil {
		out = append(out, uip.StateSnapshot{
			Base:     t.base(runID, uip.EventStateSnapshot),
			Snapshot: ev.Actions.StateSnapshot,
		})
	}
	return out
}

// StateSnapshotEvent builds the terminal snapshot emitted after a turn's
// text streams have all closed.
func (t *Translator) StateSnapshotEvent(runID string, state map[string]any) uip.Event {
	return uip.StateSnapshot{Base: t.base(runID, uip.EventStateSnapshot), Snapshot: state}
}

func (t *Translator) toolCallTriplet(runID string, fc arp.FunctionCall) []uip.Event {
	id := fc.ID
	if id == "" {
		id = t.idGen()
	}
	t.activeToolCalls[id] = struct{}{}
	out := []uip.Event{
		uip.ToolCallStart{Base: t.base(runID, uip.EventToolCallStart), ToolCallID: id, ToolName: fc.Name},
		uip.ToolCallArgs{Base: t.base(runID, uip.EventToolCallArgs), ToolCallID: id, Delta: encodeArgs(fc.Args)},
		uip.ToolCallEnd{Base: t.base(runID, uip.EventToolCallEnd), ToolCallID: id},
	}
	delete(t.activeToolCalls, id)
	return out
}

func (t *Translator) toolCallResult(runID string, fr arp.FunctionResponse) uip.Event {
	return uip.ToolCallResult{
		Base:       t.base(runID, uip.EventToolCallResult),
		ToolCallID: fr.ID,
		MessageID:  t.idGen(),
		Content:    convert.CoerceJSON(fr.Response),
	}
}

func encodeArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return convert.CoerceJSON(args)
	}
	return string(data)
}
