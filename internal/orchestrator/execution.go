package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/wdoppenberg/ag-ui/internal/uip"
)

// executionState is the per-thread execution handle: a
// reference to the background producer, a bounded FIFO event queue, a
// creation timestamp, and a completion flag. At most one is live per
// thread_id; a new execution for an active thread awaits the prior one.
type executionState struct {
	threadID string
	runID    string

	queue chan uip.Event // producer closes the channel as the sentinel.

	startedAt time.Time
	done      chan struct{} // closed when the background producer returns.
	cancel    context.CancelFunc

	completeMu sync.Mutex
	complete   bool
}

func newExecutionState(threadID, runID string, queueSize int) (*executionState, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &executionState{
		threadID:  threadID,
		runID:     runID,
		queue:     make(chan uip.Event, queueSize),
		startedAt: time.Now(),
		done:      make(chan struct{}),
		cancel:    cancel,
	}, ctx
}

func (e *executionState) markComplete() {
	e.completeMu.Lock()
	defer e.completeMu.Unlock()
	e.complete = true
}

func (e *executionState) isComplete() bool {
	e.completeMu.Lock()
	defer e.completeMu.Unlock()
	return e.complete
}

func (e *executionState) isDone() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *executionState) stale(timeout time.Duration) bool {
	return time.Since(e.startedAt) > timeout
}

// activeExecution returns the currently tracked execution for threadID, if
// any.
func (o *Orchestrator) activeExecution(threadID string) *executionState {
	o.execMu.Lock()
	defer o.execMu.Unlock()
	return o.executions[threadID]
}

// staleCleanup cancels and removes tracked executions that have exceeded
// executionTimeout, freeing concurrency slots when the cap is hit.
func (o *Orchestrator) staleCleanup() {
	o.execMu.Lock()
	defer o.execMu.Unlock()
	for threadID, exec := range o.executions {
		if exec.stale(o.executionTimeout) {
			exec.cancel()
			delete(o.executions, threadID)
		}
	}
}

func (o *Orchestrator) activeCount() int {
	o.execMu.Lock()
	defer o.execMu.Unlock()
	return len(o.executions)
}

func (o *Orchestrator) setActive(threadID string, exec *executionState) {
	o.execMu.Lock()
	defer o.execMu.Unlock()
	o.executions[threadID] = exec
}

func (o *Orchestrator) clearActive(threadID string, exec *executionState) {
	o.execMu.Lock()
	defer o.execMu.Unlock()
	if o.executions[threadID] == exec {
		delete(o.executions, threadID)
	}
}
