package session

import (
	"time"

	"github.com/wdoppenberg/ag-ui/internal/capability"
	"github.com/wdoppenberg/ag-ui/internal/distlock"
	"github.com/wdoppenberg/ag-ui/internal/telemetry"
)

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithTimeout overrides the session idle timeout (default 1200s).
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithCleanupInterval overrides the cleanup sweep period (default 300s).
func WithCleanupInterval(d time.Duration) Option {
	return func(m *Manager) { m.cleanupInterval = d }
}

// WithMaxSessionsPerUser enables per-user quota eviction. 0 (the default)
// disables the check.
func WithMaxSessionsPerUser(n int) Option {
	return func(m *Manager) { m.maxSessionsPerUser = n }
}

// WithSweepLock guards the cleanup sweep with a distributed lock, for
// deployments running several bridge processes against one shared store.
// Without it the sweep runs unguarded, which is correct for a single
// process.
func WithSweepLock(l distlock.Locker) Option {
	return func(m *Manager) { m.sweepLock = l }
}

// WithMemoryStore configures archival of evicted/expired sessions.
func WithMemoryStore(store capability.MemoryStore) Option {
	return func(m *Manager) { m.memory = store }
}

// WithLogger overrides the Manager's logger (default: no-op).
func WithLogger(l telemetry.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics overrides the Manager's metrics sink (default: no-op).
func WithMetrics(mx telemetry.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithTracer overrides the Manager's tracer (default: no-op).
func WithTracer(t telemetry.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}
