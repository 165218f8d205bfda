// Package orchestrator implements the Run Orchestrator: the per-request
// dispatcher that classifies unseen messages, routes them into new-turn or
// tool-result sub-executions, and serializes background execution per
// thread.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wdoppenberg/ag-ui/internal/capability"
	"github.com/wdoppenberg/ag-ui/internal/convert"
	"github.com/wdoppenberg/ag-ui/internal/proxytools"
	"github.com/wdoppenberg/ag-ui/internal/session"
	"github.com/wdoppenberg/ag-ui/internal/telemetry"
)

var (
	// ErrConflictingIdentityConfig is returned by New when both a static
	// value and an extractor are configured for the same identity field.
	ErrConflictingIdentityConfig = errors.New("orchestrator: cannot configure both a static value and an extractor for the same identity field")

	// ErrNoRunnerFactory is returned by New when factory is nil; there is
	// no silent in-memory fallback.
	ErrNoRunnerFactory = errors.New("orchestrator: a capability.RunnerFactory is required")
)

// RunAgentInput is the single structured request the orchestrator accepts
// per run.
type RunAgentInput struct {
	ThreadID string
	RunID    string
	Messages []convert.Message
	State    map[string]any
	Tools    []proxytools.Declaration
	// ForwardedProps is an opaque bag of caller-supplied values. It is
	// carried on the request as-is; the orchestrator neither reads nor
	// emits it.
	ForwardedProps map[string]any
}

// IdentityExtractor resolves an identity field (app_name or user_id) from
// the inbound request when no static value is configured.
type IdentityExtractor func(ctx context.Context, input RunAgentInput) (string, error)

// Orchestrator dispatches RunAgentInput requests against an injected
// capability.RunnerFactory, serializing execution per thread and
// preserving HITL execution entries until their tool results arrive.
type Orchestrator struct {
	sessions *session.Manager
	factory  capability.RunnerFactory

	memory      capability.MemoryStore
	artifacts   capability.ArtifactStore
	credentials capability.CredentialStore

	agentName   string
	instruction capability.InstructionProvider

	staticAppName    string
	appNameExtractor IdentityExtractor
	staticUserID     string
	userIDExtractor  IdentityExtractor

	backendTools map[string]struct{}

	maxConcurrent    int
	executionTimeout time.Duration
	toolTimeout      time.Duration

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	execMu     sync.Mutex
	executions map[string]*executionState
}

// New constructs an Orchestrator. sessions and factory are required;
// factory has no implicit fallback.
func New(sessions *session.Manager, factory capability.RunnerFactory, opts ...Option) (*Orchestrator, error) {
	if factory == nil {
		return nil, ErrNoRunnerFactory
	}
	o := &Orchestrator{
		sessions:         sessions,
		factory:          factory,
		backendTools:     make(map[string]struct{}),
		maxConcurrent:    10,
		executionTimeout: 600 * time.Second,
		toolTimeout:      300 * time.Second,
		logger:           telemetry.NewNoopLogger(),
		metrics:          telemetry.NewNoopMetrics(),
		tracer:           telemetry.NewNoopTracer(),
		executions:       make(map[string]*executionState),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.staticAppName != "" && o.appNameExtractor != nil {
		return nil, ErrConflictingIdentityConfig
	}
	if o.staticUserID != "" && o.userIDExtractor != nil {
		return nil, ErrConflictingIdentityConfig
	}
	return o, nil
}
