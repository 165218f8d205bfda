package orchestrator

import (
	"time"

	"github.com/wdoppenberg/ag-ui/internal/capability"
	"github.com/wdoppenberg/ag-ui/internal/telemetry"
)

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithAgentName sets the agent name passed to the RunnerFactory and used
// as the third-priority app_name resolution fallback.
func WithAgentName(name string) Option {
	return func(o *Orchestrator) { o.agentName = name }
}

// WithInstructionProvider sets the base instruction resolver the
// background execution composes with any leading System message.
func WithInstructionProvider(p capability.InstructionProvider) Option {
	return func(o *Orchestrator) { o.instruction = p }
}

// WithStaticAppName configures a fixed app_name.
func WithStaticAppName(name string) Option {
	return func(o *Orchestrator) { o.staticAppName = name }
}

// WithAppNameExtractor configures an app_name extractor (priority 2).
func WithAppNameExtractor(fn IdentityExtractor) Option {
	return func(o *Orchestrator) { o.appNameExtractor = fn }
}

// WithStaticUserID configures a fixed user_id.
func WithStaticUserID(id string) Option {
	return func(o *Orchestrator) { o.staticUserID = id }
}

// WithUserIDExtractor configures a user_id extractor (priority 2).
func WithUserIDExtractor(fn IdentityExtractor) Option {
	return func(o *Orchestrator) { o.userIDExtractor = fn }
}

// WithBackendTools names the tools the agent runtime executes itself; the
// Client Proxy Toolset excludes these by name.
func WithBackendTools(names ...string) Option {
	return func(o *Orchestrator) {
		for _, n := range names {
			o.backendTools[n] = struct{}{}
		}
	}
}

// WithMaxConcurrent overrides the concurrent-execution cap (default 10).
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrent = n }
}

// WithExecutionTimeout overrides the stale-execution threshold (default 600s).
func WithExecutionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.executionTimeout = d }
}

// WithToolTimeout overrides the per-tool budget applied by the client proxy
// layer (default 300s).
func WithToolTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.toolTimeout = d }
}

// WithMemoryStore, WithArtifactStore, WithCredentialStore configure the
// capabilities passed through to the RunnerFactory.
func WithMemoryStore(s capability.MemoryStore) Option {
	return func(o *Orchestrator) { o.memory = s }
}
func WithArtifactStore(s capability.ArtifactStore) Option {
	return func(o *Orchestrator) { o.artifacts = s }
}
func WithCredentialStore(s capability.CredentialStore) Option {
	return func(o *Orchestrator) { o.credentials = s }
}

// WithLogger, WithMetrics, WithTracer override the Orchestrator's
// telemetry sinks (default: no-op).
func WithLogger(l telemetry.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}
func WithMetrics(m telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}
func WithTracer(t telemetry.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}
