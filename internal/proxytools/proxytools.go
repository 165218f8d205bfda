// Package proxytools builds the Client Proxy Toolset: runtime-callable
// stubs for UIP-declared tools that, instead of executing anything, emit
// the UIP tool-call triplet and block until the surrounding run is
// canceled or the tool budget elapses. A client-side tool is always
// long-running: its completion arrives as a separate UIP request carrying
// a tool result, never as a return value from Invoke.
package proxytools

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wdoppenberg/ag-ui/internal/uip"
)

// ReservedTransferToAgent names the handoff tool the runtime keeps for
// itself; it is excluded from every generated toolset.
const ReservedTransferToAgent = "transfer_to_agent"

// Declaration is a UIP-declared tool the client is prepared to execute.
type Declaration struct {
	Name string
}

// Sink receives the UIP events a Stub emits when invoked.
type Sink interface {
	Emit(ctx context.Context, event uip.Event) error
}

// Stub is a single runtime-callable proxy for one client-declared tool.
type Stub struct {
	name     string
	threadID string
	sink     Sink
	idGen    func() string
	timeout  time.Duration
}

// Name returns the tool name this stub was built for.
func (s *Stub) Name() string { return s.name }

// Invoke emits TOOL_CALL_START/ARGS/END for this tool onto the sink, then
// blocks until ctx is done or, when the stub has a positive timeout, until
// that budget elapses (returning context.DeadlineExceeded). It never returns
// a synthetic result: the real result arrives out-of-band as a later UIP
// request.
func (s *Stub) Invoke(ctx context.Context, runID, parentMessageID, argsJSON string) error {
	callID := s.idGen()
	base := func(t uip.EventType) uip.Base { return uip.Base{T: t, Thread: s.threadID, Run: runID} }

	if err := s.sink.Emit(ctx, uip.ToolCallStart{
		Base:            base(uip.EventToolCallStart),
		ToolCallID:      callID,
		ToolName:        s.name,
		ParentMessageID: parentMessageID,
	}); err != nil {
		return err
	}
	if err := s.sink.Emit(ctx, uip.ToolCallArgs{
		Base:       base(uip.EventToolCallArgs),
		ToolCallID: callID,
		Delta:      argsJSON,
	}); err != nil {
		return err
	}
	if err := s.sink.Emit(ctx, uip.ToolCallEnd{
		Base:       base(uip.EventToolCallEnd),
		ToolCallID: callID,
	}); err != nil {
		return err
	}

	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return context.DeadlineExceeded
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// Toolset maps tool name to its proxy stub.
type Toolset map[string]*Stub

// Build constructs the Client Proxy Toolset from declared, excluding names
// that collide with backendNames and the reserved transfer-to-agent name.
// timeout bounds how long a stub's Invoke blocks awaiting the run's end;
// zero waits for context cancellation alone.
func Build(declared []Declaration, backendNames map[string]struct{}, sink Sink, threadID string, timeout time.Duration) Toolset {
	out := make(Toolset, len(declared))
	for _, d := range declared {
		if d.Name == ReservedTransferToAgent {
			continue
		}
		if _, collide := backendNames[d.Name]; collide {
			continue
		}
		out[d.Name] = &Stub{name: d.Name, threadID: threadID, sink: sink, idGen: uuid.NewString, timeout: timeout}
	}
	return out
}
