// Package inmem provides a process-local capability.SessionStore and
// capability.MemoryStore for tests and demos. It is never wired by default
// by internal/session.New — callers reach for it explicitly.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/wdoppenberg/ag-ui/internal/capability"
)

// Store is a mutex-guarded map-backed capability.SessionStore and
// capability.MemoryStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*capability.Session
	memory   []*capability.Session
}

// New constructs an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*capability.Session)}
}

func key(appName, sessionID, userID string) string {
	return appName + "\x00" + sessionID + "\x00" + userID
}

// Get implements capability.SessionStore.
func (s *Store) Get(_ context.Context, appName, sessionID, userID string) (*capability.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key(appName, sessionID, userID)]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess), nil
}

// Create implements capability.SessionStore.
func (s *Store) Create(_ context.Context, appName, sessionID, userID string, initialState map[string]any) (*capability.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := make(map[string]any, len(initialState))
	for k, v := range initialState {
		state[k] = v
	}
	sess := &capability.Session{
		ID:             sessionID,
		AppName:        appName,
		UserID:         userID,
		State:          state,
		LastUpdateTime: time.Now(),
	}
	s.sessions[key(appName, sessionID, userID)] = sess
	return cloneSession(sess), nil
}

// Delete implements capability.SessionStore.
func (s *Store) Delete(_ context.Context, appName, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key(appName, sessionID, userID))
	return nil
}

// AppendEvent implements capability.SessionStore by applying delta directly
// to the stored session's state map.
func (s *Store) AppendEvent(_ context.Context, session *capability.Session, delta capability.StateDelta) (*capability.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(session.AppName, session.ID, session.UserID)
	sess, ok := s.sessions[k]
	if !ok {
		sess = cloneSession(session)
		s.sessions[k] = sess
	}
	if !delta.Merge {
		for key, v := range delta.Values {
			if v == nil {
				delete(sess.State, key)
				continue
			}
			sess.State[key] = v
		}
	} else {
		for key, v := range delta.Values {
			sess.State[key] = v
		}
	}
	sess.LastUpdateTime = time.Now()
	return cloneSession(sess), nil
}

// AddSessionToMemory implements capability.MemoryStore by appending a
// snapshot of the session to an in-memory archive list.
func (s *Store) AddSessionToMemory(_ context.Context, session *capability.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = append(s.memory, cloneSession(session))
	return nil
}

// Archived returns the sessions archived via AddSessionToMemory, for tests.
func (s *Store) Archived() []*capability.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*capability.Session, len(s.memory))
	copy(out, s.memory)
	return out
}

func cloneSession(sess *capability.Session) *capability.Session {
	state := make(map[string]any, len(sess.State))
	for k, v := range sess.State {
		state[k] = v
	}
	clone := *sess
	clone.State = state
	return &clone
}
