package proxytools

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdoppenberg/ag-ui/internal/uip"
)

type recordingSink struct {
	mu     sync.Mutex
	events []uip.Event
}

func (s *recordingSink) Emit(_ context.Context, e uip.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func TestBuild_ExcludesReservedAndCollisions(t *testing.T) {
	sink := &recordingSink{}
	declared := []Declaration{{Name: "search"}, {Name: "calc"}, {Name: ReservedTransferToAgent}}
	backend := map[string]struct{}{"calc": {}}

	toolset := Build(declared, backend, sink, "thread-1", 0)

	assert.Len(t, toolset, 1)
	_, ok := toolset["search"]
	assert.True(t, ok)
	_, excludedBackend := toolset["calc"]
	assert.False(t, excludedBackend)
	_, excludedReserved := toolset[ReservedTransferToAgent]
	assert.False(t, excludedReserved)
}

func TestStub_Invoke_EmitsTripletThenBlocks(t *testing.T) {
	sink := &recordingSink{}
	toolset := Build([]Declaration{{Name: "search"}}, nil, sink, "thread-1", 0)
	stub := toolset["search"]

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stub.Invoke(ctx, "run-1", "", `{"q":"x"}`) }()

	time.Sleep(20 * time.Millisecond)
	sink.mu.Lock()
	n := len(sink.events)
	sink.mu.Unlock()
	require.Equal(t, 3, n)
	assert.Equal(t, uip.EventToolCallStart, sink.events[0].Type())
	assert.Equal(t, uip.EventToolCallArgs, sink.events[1].Type())
	assert.Equal(t, uip.EventToolCallEnd, sink.events[2].Type())

	select {
	case <-done:
		t.Fatal("Invoke must not return before the context is canceled")
	default:
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Invoke did not unblock after cancellation")
	}
}

func TestStub_Invoke_ToolBudgetElapses(t *testing.T) {
	sink := &recordingSink{}
	toolset := Build([]Declaration{{Name: "search"}}, nil, sink, "thread-1", 10*time.Millisecond)
	stub := toolset["search"]

	err := stub.Invoke(context.Background(), "run-1", "", "{}")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
