package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/wdoppenberg/ag-ui/internal/convert"
	"github.com/wdoppenberg/ag-ui/internal/uip"
)

// batchKind classifies a partition of the unseen suffix: either a fresh
// user turn or a batch of tool results answering prior long-running calls.
type batchKind int

const (
	kindNewTurn batchKind = iota
	kindToolResult
)

// unseenSuffix returns the longest trailing run of input.Messages not yet
// recorded in the session's ledger. A message without an ID is always
// unseen. Once a processed ID is found, everything before it is treated as
// seen.
func unseenSuffix(processed map[string]struct{}, messages []convert.Message) []convert.Message {
	cut := 0
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.HasID() {
			if _, seen := processed[m.ID]; seen {
				cut = i + 1
				break
			}
		}
	}
	return messages[cut:]
}

// Run is the orchestrator's sole entrypoint. It resolves the request's
// identity, partitions unseen input against the session ledger, and streams
// back the UIP events produced by the resulting sub-executions. The
// returned channel is always closed once the request concludes.
func (o *Orchestrator) Run(ctx context.Context, input RunAgentInput) (<-chan uip.Event, error) {
	appName, err := o.resolveAppName(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve app_name: %w", err)
	}
	userID, err := o.resolveUserID(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve user_id: %w", err)
	}

	out := make(chan uip.Event, 16)
	go o.dispatch(ctx, appName, userID, input, out)
	return out, nil
}

// dispatch walks the unseen suffix and sequences one sub-execution per
// contiguous partition of tool-result vs. other messages. Assistant
// messages with IDs are consumed into the ledger without being re-sent: the
// runtime already produced them, they are history, not input. A fully
// replayed request (empty suffix) is acknowledged with an empty bracket and
// no runner invocation.
func (o *Orchestrator) dispatch(ctx context.Context, appName, userID string, input RunAgentInput, out chan<- uip.Event) {
	defer close(out)

	threadID := input.ThreadID
	processed := o.sessions.GetProcessedMessageIDs(appName, threadID)
	unseen := unseenSuffix(processed, input.Messages)

	if len(unseen) == 0 {
		if emit(ctx, out, uip.NewRunStarted(threadID, input.RunID)) {
			emit(ctx, out, uip.NewRunFinished(threadID, input.RunID))
		}
		return
	}

	index := 0
	skipToolBatch := false
	for index < len(unseen) {
		if unseen[index].Role == convert.RoleTool {
			start := index
			for index < len(unseen) && unseen[index].Role == convert.RoleTool {
				index++
			}
			o.handleToolResultSubmission(ctx, appName, userID, input, unseen[start:index], !skipToolBatch, out)
			skipToolBatch = false
			continue
		}

		var batch []convert.Message
		var assistantIDs []string
		for index < len(unseen) && unseen[index].Role != convert.RoleTool {
			m := unseen[index]
			if m.Role == convert.RoleAssistant && m.HasID() {
				assistantIDs = append(assistantIDs, m.ID)
			} else {
				batch = append(batch, m)
			}
			index++
		}
		if len(assistantIDs) > 0 {
			o.sessions.MarkMessagesProcessed(appName, threadID, assistantIDs)
		}
		if len(batch) == 0 {
			// Only assistant tool-call history was consumed; a tool batch
			// that follows must reach the runtime as the sole new message.
			skipToolBatch = len(assistantIDs) > 0
			continue
		}
		skipToolBatch = false
		o.startNewExecution(ctx, appName, userID, input, batch, kindNewTurn, out)
	}
}

// handleToolResultSubmission routes a batch of tool messages answering
// prior long-running calls: each answered call is removed from the
// session's pending list, then a sub-execution forwards the results into
// the runtime. includeBatch is false when the batch was preceded only by
// assistant tool-call history — the results then travel alone; nothing of
// the surrounding context is re-sent either way, since assistant history
// never enters a batch.
func (o *Orchestrator) handleToolResultSubmission(ctx context.Context, appName, userID string, input RunAgentInput, toolBatch []convert.Message, includeBatch bool, out chan<- uip.Event) {
	threadID := input.ThreadID

	if len(toolBatch) == 0 {
		o.logger.Error(ctx, "tool result submission without tool results", "thread_id", threadID)
		emit(ctx, out, uip.NewRunError(threadID, input.RunID, uip.CodeNoToolResults, "No tool results found in submission"))
		return
	}
	for _, m := range toolBatch {
		if m.ToolCallID == "" {
			emit(ctx, out, uip.NewRunError(threadID, input.RunID, uip.CodeToolResultProcessingError,
				"Failed to process tool results: tool message missing tool_call_id"))
			return
		}
	}

	for _, m := range toolBatch {
		if o.sessions.HasPendingToolCalls(ctx, threadID) {
			o.sessions.RemovePendingToolCall(ctx, threadID, m.ToolCallID)
		} else {
			o.logger.Warn(ctx, "no pending tool calls for submitted result", "thread_id", threadID, "tool_call_id", m.ToolCallID)
		}
	}

	o.startNewExecution(ctx, appName, userID, input, toolBatch, kindToolResult, out)
}

// startNewExecution runs one sub-execution: RUN_STARTED, background
// producer, queue drain, pending-tool-call persistence, and exactly one of
// RUN_FINISHED or RUN_ERROR as the terminal event.
func (o *Orchestrator) startNewExecution(ctx context.Context, appName, userID string, input RunAgentInput, batch []convert.Message, kind batchKind, out chan<- uip.Event) {
	threadID := input.ThreadID
	runID := input.RunID
	started := time.Now()

	if !emit(ctx, out, uip.NewRunStarted(threadID, runID)) {
		return
	}
	o.metrics.IncCounter("execution_started_total", 1)

	if o.activeCount() >= o.maxConcurrent {
		o.staleCleanup()
		if o.activeCount() >= o.maxConcurrent {
			msg := fmt.Sprintf("maximum concurrent executions (%d) reached", o.maxConcurrent)
			o.logger.Error(ctx, "execution rejected", "thread_id", threadID, "err", msg)
			o.metrics.IncCounter("execution_errored_total", 1)
			emit(ctx, out, uip.NewRunError(threadID, runID, uip.CodeExecutionError, msg))
			return
		}
	}

	exec, execCtx := o.acquireExecution(ctx, threadID, runID)
	defer exec.cancel()

	go o.runInBackground(execCtx, appName, userID, runID, input, batch, kind, exec)

	pendingIDs, sawError, drainErr := o.drainExecution(ctx, exec, out)
	exec.markComplete()

	// IDs that saw TOOL_CALL_END but no TOOL_CALL_RESULT belong to
	// client-side tools: persist them so expiry and cleanup preserve the
	// session until the client answers.
	for _, id := range pendingIDs {
		o.sessions.AddPendingToolCall(ctx, appName, threadID, userID, id)
	}

	switch {
	case drainErr == errExecutionTimeout:
		o.logger.Error(ctx, "execution timed out", "thread_id", threadID, "run_id", runID)
		o.metrics.IncCounter("execution_errored_total", 1)
		emit(ctx, out, uip.NewRunError(threadID, runID, uip.CodeExecutionTimeout, "Execution timed out"))
	case drainErr != nil:
		o.logger.Error(ctx, "execution drain failed", "thread_id", threadID, "run_id", runID, "err", drainErr)
		o.metrics.IncCounter("execution_errored_total", 1)
		emit(ctx, out, uip.NewRunError(threadID, runID, uip.CodeExecutionError, drainErr.Error()))
	case sawError:
		// The background producer already surfaced a terminal RUN_ERROR;
		// a trailing RUN_FINISHED would give the run two terminals.
	default:
		o.metrics.IncCounter("execution_finished_total", 1)
		emit(ctx, out, uip.NewRunFinished(threadID, runID))
	}
	o.metrics.RecordTimer("execution_duration_seconds", time.Since(started))

	// HITL: keep the execution entry while the session awaits a client-side
	// tool result so a follow-up run serializes behind it.
	if !o.sessions.HasPendingToolCalls(ctx, threadID) {
		o.clearActive(threadID, exec)
	}
}

// acquireExecution waits for any in-flight execution on threadID to finish,
// then registers and returns a fresh one: at most one live execution per
// thread. The check-and-register is atomic under execMu so two overlapping
// runs for the same thread cannot both slip past the wait.
func (o *Orchestrator) acquireExecution(ctx context.Context, threadID, runID string) (*executionState, context.Context) {
	for {
		o.execMu.Lock()
		prior := o.executions[threadID]
		if prior == nil || prior.isDone() || prior.isComplete() {
			exec, execCtx := newExecutionState(threadID, runID, 64)
			o.executions[threadID] = exec
			o.execMu.Unlock()
			return exec, execCtx
		}
		o.execMu.Unlock()

		o.logger.Debug(ctx, "waiting for prior execution", "thread_id", threadID)
		select {
		case <-prior.done:
		case <-ctx.Done():
			// The caller is gone; register anyway so the terminal events
			// can still be produced and the entry cleaned up.
			o.execMu.Lock()
			exec, execCtx := newExecutionState(threadID, runID, 64)
			o.executions[threadID] = exec
			o.execMu.Unlock()
			return exec, execCtx
		}
	}
}

// errExecutionTimeout marks a drain abandoned because the sub-execution
// exceeded the configured executionTimeout.
var errExecutionTimeout = fmt.Errorf("orchestrator: execution exceeded timeout")

// drainExecution forwards every event the background producer emits onto
// out until the producer closes exec.queue. It polls once per second while
// idle so a stale execution is detected even if the producer never emits
// again. pendingIDs collects tool-call IDs that ended without a matching
// result; sawError reports whether a RUN_ERROR was forwarded.
func (o *Orchestrator) drainExecution(ctx context.Context, exec *executionState, out chan<- uip.Event) (pendingIDs []string, sawError bool, err error) {
	for {
		select {
		case ev, ok := <-exec.queue:
			if !ok {
				return pendingIDs, sawError, nil
			}
			switch e := ev.(type) {
			case uip.ToolCallEnd:
				pendingIDs = append(pendingIDs, e.ToolCallID)
			case uip.ToolCallResult:
				// A result implies a backend tool: the call resolved
				// in-process and is not pending on the client.
				pendingIDs = removeID(pendingIDs, e.ToolCallID)
			case uip.RunError:
				sawError = true
			}
			if !emit(ctx, out, ev) {
				return pendingIDs, sawError, ctx.Err()
			}
		case <-time.After(time.Second):
			if exec.stale(o.executionTimeout) {
				o.metrics.IncCounter("queue_drain_timeout_total", 1)
				return pendingIDs, sawError, errExecutionTimeout
			}
		case <-ctx.Done():
			return pendingIDs, sawError, ctx.Err()
		}
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// emit sends ev to out, returning false if ctx is canceled first.
func emit(ctx context.Context, out chan<- uip.Event, ev uip.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
