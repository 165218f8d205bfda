// Package session implements the process-wide conversation registry: TTL
// expiry, per-user quotas, a message-ID ledger, and state CRUD layered over
// an injected capability.SessionStore.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wdoppenberg/ag-ui/internal/capability"
	"github.com/wdoppenberg/ag-ui/internal/distlock"
	"github.com/wdoppenberg/ag-ui/internal/session/inmem"
	"github.com/wdoppenberg/ag-ui/internal/telemetry"
)

// PendingToolCallsKey is the session state key used to preserve HITL state
// across cleanup sweeps ("Pending Tool Calls").
const PendingToolCallsKey = "pending_tool_calls"

var (
	// ErrNoStore is returned by NewManager when store is nil.
	ErrNoStore = errors.New("session: store is required")
)

type identity struct {
	appName string
	userID  string
}

// Manager is a constructed, explicitly-injected registry. See
// Default/SetDefault/ResetDefault for the escape hatch a host application
// can use to approximate the source's process-wide singleton without
// hiding the store dependency.
type Manager struct {
	store  capability.SessionStore
	memory capability.MemoryStore

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	timeout            time.Duration
	cleanupInterval    time.Duration
	maxSessionsPerUser int

	mu sync.Mutex
	// sessionKeys tracks every session key this process has touched, mapped
	// to the identity needed to address it through the store.
	sessionKeys map[string]identity
	// userSessions indexes tracked keys by owning user for quota eviction.
	userSessions map[string]map[string]struct{}
	// ledger is the per-session set of processed message IDs.
	ledger map[string]map[string]struct{}
	// lookupCache resolves a bare session ID to its identity, lazily
	// populated and invalidated synchronously on delete.
	lookupCache map[string]identity

	sweepLock distlock.Locker

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Key builds the canonical session-key index: "{app_name}:{session_id}".
func Key(appName, sessionID string) string {
	return appName + ":" + sessionID
}

// New constructs a Manager over store and starts its background cleanup
// task. Callers own the Manager's lifetime and must call Close to stop the
// cleanup goroutine.
func New(store capability.SessionStore, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	m := &Manager{
		store:              store,
		logger:             telemetry.NewNoopLogger(),
		metrics:            telemetry.NewNoopMetrics(),
		tracer:             telemetry.NewNoopTracer(),
		timeout:            1200 * time.Second,
		cleanupInterval:    300 * time.Second,
		maxSessionsPerUser: 0, // 0 means unlimited
		sessionKeys:        make(map[string]identity),
		userSessions:       make(map[string]map[string]struct{}),
		ledger:             make(map[string]map[string]struct{}),
		lookupCache:        make(map[string]identity),
		stopCleanup:        make(chan struct{}),
		cleanupDone:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.runCleanup()
	return m, nil
}

// Store returns the underlying capability.SessionStore, for callers (e.g.
// the orchestrator) that must pass it through to a capability.RunnerFactory
// unmodified.
func (m *Manager) Store() capability.SessionStore { return m.store }

// NewManager is an alias for New.
func NewManager(store capability.SessionStore, opts ...Option) (*Manager, error) {
	return New(store, opts...)
}

// NewInMemoryManager is an explicit test/demo convenience wrapping an
// in-memory store.
func NewInMemoryManager(opts ...Option) *Manager {
	m, err := New(inmem.New(), opts...)
	if err != nil {
		// inmem.New() never returns nil; unreachable.
		panic(err)
	}
	return m
}

// Close stops the background cleanup task and waits for it to exit.
func (m *Manager) Close() {
	close(m.stopCleanup)
	<-m.cleanupDone
}

// GetOrCreate loads a tracked session, creating it (and enforcing
// per-user quotas) if absent. Store failures are logged and surfaced as an
// error; quota eviction failures are logged and otherwise ignored.
func (m *Manager) GetOrCreate(ctx context.Context, appName, sessionID, userID string, initialState map[string]any) (*capability.Session, error) {
	ctx, span := m.tracer.Start(ctx, "session.GetOrCreate")
	defer span.End()

	sess, err := m.store.Get(ctx, appName, sessionID, userID)
	if err != nil {
		m.logger.Error(ctx, "session store get failed", "app_name", appName, "session_id", sessionID, "err", err)
		return nil, err
	}
	if sess != nil {
		m.track(appName, sessionID, userID)
		return sess, nil
	}

	m.enforceQuota(ctx, userID)

	sess, err = m.store.Create(ctx, appName, sessionID, userID, initialState)
	if err != nil {
		m.logger.Error(ctx, "session store create failed", "app_name", appName, "session_id", sessionID, "err", err)
		return nil, err
	}
	m.track(appName, sessionID, userID)
	m.metrics.IncCounter("session_created_total", 1)
	return sess, nil
}

func (m *Manager) track(appName, sessionID, userID string) {
	key := Key(appName, sessionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionKeys[key] = identity{appName: appName, userID: userID}
	if m.userSessions[userID] == nil {
		m.userSessions[userID] = make(map[string]struct{})
	}
	m.userSessions[userID][key] = struct{}{}
	m.lookupCache[sessionID] = identity{appName: appName, userID: userID}
}

func (m *Manager) untrack(appName, sessionID, userID string) {
	key := Key(appName, sessionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessionKeys, key)
	delete(m.ledger, key)
	if set := m.userSessions[userID]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(m.userSessions, userID)
		}
	}
	// Invalidate the lookup cache eagerly so a deleted session can never
	// be resolved through a stale entry.
	if cached, ok := m.lookupCache[sessionID]; ok && cached.appName == appName {
		delete(m.lookupCache, sessionID)
	}
}

// enforceQuota evicts the user's least-recently-updated tracked session
// when the user is at capacity. A quota of 0 disables the check.
func (m *Manager) enforceQuota(ctx context.Context, userID string) {
	if m.maxSessionsPerUser <= 0 {
		return
	}
	m.mu.Lock()
	set := m.userSessions[userID]
	if len(set) < m.maxSessionsPerUser {
		m.mu.Unlock()
		return
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	var (
		oldestKey   string
		oldestIdent identity
		oldestTime  time.Time
	)
	for _, key := range keys {
		ident, ok := m.identityFor(key)
		if !ok {
			continue
		}
		_, sessionID := splitKey(key)
		sess, err := m.store.Get(ctx, ident.appName, sessionID, ident.userID)
		if err != nil || sess == nil {
			continue
		}
		if oldestKey == "" || sess.LastUpdateTime.Before(oldestTime) {
			oldestKey, oldestIdent, oldestTime = key, ident, sess.LastUpdateTime
		}
	}
	if oldestKey == "" {
		return
	}
	_, sessionID := splitKey(oldestKey)
	if err := m.Delete(ctx, oldestIdent.appName, sessionID, oldestIdent.userID); err != nil {
		m.logger.Error(ctx, "session quota eviction failed", "key", oldestKey, "err", err)
		return
	}
	m.metrics.IncCounter("session_evicted_total", 1)
}

func (m *Manager) identityFor(key string) (identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.sessionKeys[key]
	return ident, ok
}

func splitKey(key string) (appName, sessionID string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// UpdateState applies delta as a state patch by appending a synthetic event
// through the store. Returns false (never an error) if the session is
// missing, delta is empty, or the store call fails; store errors are
// logged, never propagated.
func (m *Manager) UpdateState(ctx context.Context, appName, sessionID, userID string, delta map[string]any, merge bool) bool {
	if len(delta) == 0 {
		return false
	}
	sess, err := m.store.Get(ctx, appName, sessionID, userID)
	if err != nil || sess == nil {
		if err != nil {
			m.logger.Error(ctx, "session update_state get failed", "err", err)
		}
		return false
	}
	_, err = m.store.AppendEvent(ctx, sess, capability.StateDelta{Values: delta, Merge: merge})
	if err != nil {
		m.logger.Error(ctx, "session update_state append failed", "err", err)
		return false
	}
	return true
}

// Delete removes a tracked session, archiving it to the memory store first
// if one is configured and the session carries no pending tool calls.
func (m *Manager) Delete(ctx context.Context, appName, sessionID, userID string) error {
	sess, err := m.store.Get(ctx, appName, sessionID, userID)
	if err == nil && sess != nil && m.memory != nil && !hasPendingToolCalls(sess) {
		if archErr := m.memory.AddSessionToMemory(ctx, sess); archErr != nil {
			m.logger.Error(ctx, "memory archive failed", "err", archErr)
		}
	}
	if err := m.store.Delete(ctx, appName, sessionID, userID); err != nil {
		m.logger.Error(ctx, "session delete failed", "err", err)
		return err
	}
	m.untrack(appName, sessionID, userID)
	return nil
}

func hasPendingToolCalls(sess *capability.Session) bool {
	v, ok := sess.State[PendingToolCallsKey]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case []string:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return v != nil
	}
}

// SessionCount returns the number of sessions tracked by this process.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessionKeys)
}

// UserSessionCount returns the number of sessions tracked for userID.
func (m *Manager) UserSessionCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.userSessions[userID])
}

// trackedKeys returns a stable-ordered snapshot of tracked session keys,
// used by the cleanup sweep and tests.
func (m *Manager) trackedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessionKeys))
	for k := range m.sessionKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
