package orchestrator

import (
	"context"
	"fmt"

	"github.com/wdoppenberg/ag-ui/internal/arp"
	"github.com/wdoppenberg/ag-ui/internal/capability"
	"github.com/wdoppenberg/ag-ui/internal/convert"
	"github.com/wdoppenberg/ag-ui/internal/proxytools"
	"github.com/wdoppenberg/ag-ui/internal/translator"
	"github.com/wdoppenberg/ag-ui/internal/uip"
)

type queueSink struct{ queue chan<- uip.Event }

func (s queueSink) Emit(ctx context.Context, ev uip.Event) error {
	select {
	case s.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toolProxyMap(ts proxytools.Toolset) map[string]capability.ToolProxy {
	out := make(map[string]capability.ToolProxy, len(ts))
	for name, stub := range ts {
		out[name] = stub
	}
	return out
}

// runInBackground is the producer side of a sub-execution. It always leaves
// exec.queue closed and exec.done closed on return, whatever the outcome —
// the closed channel is the consumer's end-of-stream sentinel.
func (o *Orchestrator) runInBackground(ctx context.Context, appName, userID, runID string, input RunAgentInput, batch []convert.Message, kind batchKind, exec *executionState) {
	sessionID := input.ThreadID
	sink := queueSink{exec.queue}
	defer close(exec.queue)
	defer close(exec.done)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error(ctx, "background execution panicked", "thread_id", sessionID, "recover", r)
			_ = sink.Emit(ctx, uip.NewRunError(sessionID, runID, uip.CodeBackgroundExecutionError, fmt.Sprintf("panic: %v", r)))
		}
	}()

	ctx, span := o.tracer.Start(ctx, "orchestrator.background")
	defer span.End()

	// A leading System message extends the agent's instruction for this
	// execution only; the base provider is decorated, never mutated.
	instruction := o.instruction
	if len(input.Messages) > 0 && input.Messages[0].Role == convert.RoleSystem && input.Messages[0].Text != "" {
		instruction = capability.SuffixedInstruction{Inner: o.instruction, Suffix: input.Messages[0].Text}
	}

	toolset := proxytools.Build(input.Tools, o.backendTools, sink, sessionID, o.toolTimeout)
	agent := capability.AgentHandle{Name: o.agentName, Instruction: instruction, Tools: toolProxyMap(toolset)}

	if _, err := o.sessions.GetOrCreate(ctx, appName, sessionID, userID, input.State); err != nil {
		_ = sink.Emit(ctx, uip.NewRunError(sessionID, runID, uip.CodeBackgroundExecutionError, err.Error()))
		return
	}
	// Force-sync session state with the request's declared state: the
	// client is the source of truth for the keys it sends.
	if len(input.State) > 0 {
		o.sessions.UpdateState(ctx, appName, sessionID, userID, input.State, true)
	}

	runner, err := o.factory.NewRunner(ctx, agent, appName, o.sessions.Store(), o.artifacts, o.memory, o.credentials)
	if err != nil {
		_ = sink.Emit(ctx, uip.NewRunError(sessionID, runID, uip.CodeBackgroundExecutionError, err.Error()))
		return
	}
	defer func() {
		if cerr := runner.Close(ctx); cerr != nil {
			o.logger.Error(ctx, "runner close failed", "thread_id", sessionID, "err", cerr)
		}
	}()

	var ids []string
	for _, m := range batch {
		if m.HasID() {
			ids = append(ids, m.ID)
		}
	}
	o.sessions.MarkMessagesProcessed(appName, sessionID, ids)

	runInput := buildRunInput(kind, batch, input.Messages)
	cfg := capability.RunConfig{Streaming: true, PersistInputBlobs: true}
	events, err := runner.RunAsync(ctx, userID, sessionID, runInput, cfg)
	if err != nil {
		_ = sink.Emit(ctx, uip.NewRunError(sessionID, runID, uip.CodeBackgroundExecutionError, err.Error()))
		return
	}

	tr := translator.New(sessionID)
	for ev := range events {
		streamingChunk := ev.Partial || !ev.TurnComplete || !ev.IsFinalResponse
		hasContent := ev.Content != nil && len(ev.Content.Parts) > 0
		hasLRO := false
		for _, fc := range ev.FunctionCalls() {
			if ev.IsLongRunning(fc.ID) {
				hasLRO = true
				break
			}
		}

		if !hasLRO && (streamingChunk || (hasContent && ev.FinishReason == "")) {
			for _, e := range tr.Translate(runID, ev) {
				if sink.Emit(ctx, e) != nil {
					return
				}
			}
			continue
		}

		// Long-running calls take precedence over streaming: close any open
		// text first, announce the call, and stop — the client must execute
		// the tool and answer with a new request.
		for _, e := range tr.ForceClose(runID) {
			if sink.Emit(ctx, e) != nil {
				return
			}
		}
		lroEvents, sawEnd := tr.TranslateLRO(runID, ev)
		for _, e := range lroEvents {
			if sink.Emit(ctx, e) != nil {
				return
			}
		}
		if sawEnd {
			return
		}
	}

	for _, e := range tr.ForceClose(runID) {
		if sink.Emit(ctx, e) != nil {
			return
		}
	}

	// The terminal snapshot follows every stream closure so clients never
	// observe state for a message that is still open.
	if state, ok := o.sessions.GetState(ctx, appName, sessionID, userID); ok {
		_ = sink.Emit(ctx, tr.StateSnapshotEvent(runID, state))
	}
}

// buildRunInput converts a partition into the runtime's input: a synthetic
// function-response message for tool results, or the partition's latest
// user message for a fresh turn.
func buildRunInput(kind batchKind, batch []convert.Message, all []convert.Message) arp.RunInput {
	if kind == kindToolResult {
		return convert.ToFunctionResultInput(batch, convert.ToolNameMap(all))
	}
	for i := len(batch) - 1; i >= 0; i-- {
		if batch[i].Role == convert.RoleUser && batch[i].Text != "" {
			return convert.ToUserInput(batch[i])
		}
	}
	return arp.NewUserInput("")
}
