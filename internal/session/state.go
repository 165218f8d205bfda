package session

import (
	"context"
	"strings"
)

// GetState returns the session's full state map, and false if the session
// is missing or the store call fails.
func (m *Manager) GetState(ctx context.Context, appName, sessionID, userID string) (map[string]any, bool) {
	sess, err := m.store.Get(ctx, appName, sessionID, userID)
	if err != nil {
		m.logger.Error(ctx, "session get_state failed", "err", err)
		return nil, false
	}
	if sess == nil {
		return nil, false
	}
	return sess.State, true
}

// GetStateValue returns state[key], or def if the session/key is missing.
func (m *Manager) GetStateValue(ctx context.Context, appName, sessionID, userID, key string, def any) any {
	state, ok := m.GetState(ctx, appName, sessionID, userID)
	if !ok {
		return def
	}
	v, ok := state[key]
	if !ok {
		return def
	}
	return v
}

// SetStateValue sets a single state key via UpdateState.
func (m *Manager) SetStateValue(ctx context.Context, appName, sessionID, userID, key string, value any) bool {
	return m.UpdateState(ctx, appName, sessionID, userID, map[string]any{key: value}, true)
}

// RemoveStateKeys removes the named keys by nulling them in a non-merging
// update; with merge disabled the nulled keys are dropped by the store.
func (m *Manager) RemoveStateKeys(ctx context.Context, appName, sessionID, userID string, keys []string) bool {
	if len(keys) == 0 {
		return false
	}
	delta := make(map[string]any, len(keys))
	for _, k := range keys {
		delta[k] = nil
	}
	return m.UpdateState(ctx, appName, sessionID, userID, delta, false)
}

// ClearState removes every state key except those sharing one of
// preservePrefixes as a prefix. An empty preservePrefixes clears everything.
func (m *Manager) ClearState(ctx context.Context, appName, sessionID, userID string, preservePrefixes []string) bool {
	state, ok := m.GetState(ctx, appName, sessionID, userID)
	if !ok {
		return false
	}
	var toRemove []string
	for k := range state {
		if hasAnyPrefix(k, preservePrefixes) {
			continue
		}
		toRemove = append(toRemove, k)
	}
	if len(toRemove) == 0 {
		return true
	}
	return m.RemoveStateKeys(ctx, appName, sessionID, userID, toRemove)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// InitializeState seeds state keys that are currently absent. When
// overwrite is true, every key in initial is applied unconditionally.
func (m *Manager) InitializeState(ctx context.Context, appName, sessionID, userID string, initial map[string]any, overwrite bool) bool {
	if len(initial) == 0 {
		return false
	}
	if overwrite {
		return m.UpdateState(ctx, appName, sessionID, userID, initial, true)
	}
	state, ok := m.GetState(ctx, appName, sessionID, userID)
	if !ok {
		return false
	}
	delta := make(map[string]any)
	for k, v := range initial {
		if _, present := state[k]; !present {
			delta[k] = v
		}
	}
	if len(delta) == 0 {
		return true
	}
	return m.UpdateState(ctx, appName, sessionID, userID, delta, true)
}

// BulkUpdateUserState applies delta to every session tracked for userID,
// optionally restricted to appFilter, returning per-key success.
func (m *Manager) BulkUpdateUserState(ctx context.Context, userID string, delta map[string]any, appFilter string) map[string]bool {
	m.mu.Lock()
	keys := make([]string, 0, len(m.userSessions[userID]))
	for k := range m.userSessions[userID] {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	results := make(map[string]bool, len(keys))
	for _, key := range keys {
		ident, ok := m.identityFor(key)
		if !ok {
			continue
		}
		if appFilter != "" && ident.appName != appFilter {
			continue
		}
		_, sessionID := splitKey(key)
		results[key] = m.UpdateState(ctx, ident.appName, sessionID, userID, delta, true)
	}
	return results
}
