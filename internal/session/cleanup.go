package session

import (
	"context"
	"time"
)

// sweepLockKey names the advisory lock that keeps a fleet of bridge
// processes sharing one store from sweeping the same sessions concurrently.
const sweepLockKey = "ag-ui:session-sweep"

// runCleanup is the background expiry sweep: wakes every cleanupInterval,
// archives and deletes sessions whose last_update_time exceeds timeout and
// which carry no pending tool calls.
func (m *Manager) runCleanup() {
	defer close(m.cleanupDone)
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCleanup:
			return
		case <-ticker.C:
			m.lockedSweep(context.Background())
		}
	}
}

// lockedSweep runs sweep under the configured distributed lock, if any. A
// failed acquisition skips this round; the next tick retries.
func (m *Manager) lockedSweep(ctx context.Context) {
	if m.sweepLock == nil {
		m.sweep(ctx)
		return
	}
	lockCtx, cancel := context.WithTimeout(ctx, m.cleanupInterval)
	defer cancel()
	unlock, err := m.sweepLock.Lock(lockCtx, sweepLockKey, m.cleanupInterval)
	if err != nil {
		m.logger.Warn(ctx, "cleanup sweep lock not acquired", "err", err)
		return
	}
	defer func() {
		if uerr := unlock(ctx); uerr != nil {
			m.logger.Warn(ctx, "cleanup sweep unlock failed", "err", uerr)
		}
	}()
	m.sweep(ctx)
}

func (m *Manager) sweep(ctx context.Context) {
	now := time.Now()
	for _, key := range m.trackedKeys() {
		ident, ok := m.identityFor(key)
		if !ok {
			continue
		}
		_, sessionID := splitKey(key)
		sess, err := m.store.Get(ctx, ident.appName, sessionID, ident.userID)
		if err != nil {
			m.logger.Error(ctx, "cleanup get failed", "key", key, "err", err)
			continue
		}
		if sess == nil {
			m.untrack(ident.appName, sessionID, ident.userID)
			continue
		}
		if now.Sub(sess.LastUpdateTime) <= m.timeout {
			continue
		}
		if hasPendingToolCalls(sess) {
			// HITL preservation: never expire a session awaiting a
			// client-side tool result, regardless of age.
			continue
		}
		if m.memory != nil {
			if archErr := m.memory.AddSessionToMemory(ctx, sess); archErr != nil {
				m.logger.Error(ctx, "cleanup archive failed", "key", key, "err", archErr)
			}
		}
		if err := m.store.Delete(ctx, ident.appName, sessionID, ident.userID); err != nil {
			m.logger.Error(ctx, "cleanup delete failed", "key", key, "err", err)
			continue
		}
		m.untrack(ident.appName, sessionID, ident.userID)
		m.metrics.IncCounter("session_expired_total", 1)
	}
}
