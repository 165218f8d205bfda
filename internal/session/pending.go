package session

import "context"

// Pending tool calls are the HITL anchor: a session carrying any blocks both
// TTL expiry (see sweep) and execution-entry cleanup in the orchestrator.
// The list lives in ordinary session state under PendingToolCallsKey so it
// survives through whatever store backs the manager.

// PendingToolCalls returns the session's pending tool-call IDs, resolving
// the bare session ID through the lookup cache. Returns nil when the
// session is unknown to this process or carries none.
func (m *Manager) PendingToolCalls(ctx context.Context, sessionID string) []string {
	ident, ok := m.cachedIdentity(sessionID)
	if !ok {
		return nil
	}
	v := m.GetStateValue(ctx, ident.appName, sessionID, ident.userID, PendingToolCallsKey, nil)
	return toStringList(v)
}

// HasPendingToolCalls reports whether the session awaits at least one
// client-side tool result.
func (m *Manager) HasPendingToolCalls(ctx context.Context, sessionID string) bool {
	return len(m.PendingToolCalls(ctx, sessionID)) > 0
}

// AddPendingToolCall appends toolCallID to the session's pending list,
// creating the list if absent. Duplicate IDs are not re-added.
func (m *Manager) AddPendingToolCall(ctx context.Context, appName, sessionID, userID, toolCallID string) bool {
	v := m.GetStateValue(ctx, appName, sessionID, userID, PendingToolCallsKey, nil)
	pending := toStringList(v)
	for _, id := range pending {
		if id == toolCallID {
			return true
		}
	}
	pending = append(pending, toolCallID)
	return m.UpdateState(ctx, appName, sessionID, userID, map[string]any{PendingToolCallsKey: pending}, true)
}

// RemovePendingToolCall removes toolCallID from the session's pending list,
// resolving the session through the lookup cache. Removing an ID that is
// not pending is a no-op returning false.
func (m *Manager) RemovePendingToolCall(ctx context.Context, sessionID, toolCallID string) bool {
	ident, ok := m.cachedIdentity(sessionID)
	if !ok {
		m.logger.Warn(ctx, "pending tool call removal for unknown session", "session_id", sessionID, "tool_call_id", toolCallID)
		return false
	}
	pending := toStringList(m.GetStateValue(ctx, ident.appName, sessionID, ident.userID, PendingToolCallsKey, nil))
	kept := make([]string, 0, len(pending))
	removed := false
	for _, id := range pending {
		if id == toolCallID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	if !removed {
		return false
	}
	return m.UpdateState(ctx, ident.appName, sessionID, ident.userID, map[string]any{PendingToolCallsKey: kept}, true)
}

func (m *Manager) cachedIdentity(sessionID string) (identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.lookupCache[sessionID]
	return ident, ok
}

func toStringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
