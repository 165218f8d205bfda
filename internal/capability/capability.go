// Package capability declares the narrow interfaces the bridge consumes from
// its host application: session persistence, memory/artifact/credential
// stores, and the agent runner itself. The bridge treats every one of these
// as an injected, opaque collaborator — it never assumes a concrete backend.
package capability

import (
	"context"
	"time"

	"github.com/wdoppenberg/ag-ui/internal/arp"
)

type (
	// Session is the durable conversation container read and written through
	// SessionStore.
	Session struct {
		ID            string
		AppName       string
		UserID        string
		State         map[string]any
		LastUpdateTime time.Time
	}

	// StateDelta is a patch applied to a Session's State, keyed by the
	// modified key. A nil value under Merge=false signals key removal.
	StateDelta struct {
		Values map[string]any
		Merge  bool
	}

	// SessionStore is the persistence capability for conversation sessions.
	// Implementations may be in-memory (tests, local dev) or backed by a
	// durable store; the Session Manager never assumes which.
	SessionStore interface {
		// Get loads a session, returning (nil, nil) if it does not exist.
		Get(ctx context.Context, appName, sessionID, userID string) (*Session, error)
		// Create creates a new session with the given initial state.
		Create(ctx context.Context, appName, sessionID, userID string, initialState map[string]any) (*Session, error)
		// Delete removes a session. Deleting a missing session is a no-op.
		Delete(ctx context.Context, appName, sessionID, userID string) error
		// AppendEvent applies a state delta to a session by appending a
		// synthetic runtime event, returning the updated session.
		AppendEvent(ctx context.Context, session *Session, delta StateDelta) (*Session, error)
	}

	// MemoryStore archives sessions for later retrieval (e.g. long-term
	// memory/RAG over past conversations). Optional: a nil MemoryStore
	// disables archival on session deletion.
	MemoryStore interface {
		AddSessionToMemory(ctx context.Context, session *Session) error
	}

	// ArtifactStore is an opaque capability passed through to the Runner
	// factory; the bridge never reads or writes artifacts directly.
	ArtifactStore any

	// CredentialStore is an opaque capability passed through to the Runner
	// factory; the bridge never reads or writes credentials directly.
	CredentialStore any

	// RunConfig configures a single Runner invocation.
	RunConfig struct {
		// Streaming requests incremental (partial) ARP events when the
		// runtime supports it.
		Streaming bool
		// PersistInputBlobs permits the runner to persist large input blobs
		// (e.g. images) as artifacts rather than inlining them.
		PersistInputBlobs bool
	}

	// Runner executes one turn of a conversation and streams back ARP
	// events. A Runner is scoped to a single (app, user, session) and is
	// constructed fresh per RunnerFactory call; Close releases any
	// resources it holds.
	Runner interface {
		// RunAsync starts executing input and returns a channel of ARP
		// events. The channel is closed when the runtime has finished the
		// turn or ctx is canceled. The runner must not block RunAsync
		// itself; streaming happens via the returned channel.
		RunAsync(ctx context.Context, userID, sessionID string, input arp.RunInput, cfg RunConfig) (<-chan arp.Event, error)
		// Close releases runner resources. Implementations that hold none
		// may treat this as a no-op.
		Close(ctx context.Context) error
	}

	// ToolProxy is a runtime-callable stand-in for a client-declared tool:
	// invoking it emits the UIP tool-call triplet and blocks until the run
	// ends, rather than executing anything.
	ToolProxy interface {
		Invoke(ctx context.Context, runID, parentMessageID, argsJSON string) error
	}

	// AgentHandle identifies the agent definition a RunnerFactory should
	// bind to: an optional instruction override computed by the
	// orchestrator (see InstructionProvider) and the client-proxy tools to
	// combine with the agent's own backend tools.
	AgentHandle struct {
		Name        string
		Instruction InstructionProvider
		Tools       map[string]ToolProxy
	}

	// InstructionProvider resolves an agent's system instruction text. It
	// replaces the source implementation's closure-based "instruction
	// provider wrapping" with an explicit interface, composed via decorator.
	InstructionProvider interface {
		Resolve(ctx context.Context) (string, error)
	}

	// RunnerFactory constructs a Runner bound to one agent and one set of
	// backing stores. The bridge calls it once per sub-execution.
	RunnerFactory interface {
		NewRunner(ctx context.Context, agent AgentHandle, appName string, sessions SessionStore, artifacts ArtifactStore, memory MemoryStore, credentials CredentialStore) (Runner, error)
	}
)

// StaticInstruction is an InstructionProvider that always resolves to a
// fixed string.
type StaticInstruction string

// Resolve implements InstructionProvider.
func (s StaticInstruction) Resolve(context.Context) (string, error) { return string(s), nil }

// SuffixedInstruction decorates an inner InstructionProvider by appending a
// fixed suffix — the Go equivalent of the source implementation's closure
// that captures the prior provider and appends a System message's content.
type SuffixedInstruction struct {
	Inner  InstructionProvider
	Suffix string
}

// Resolve implements InstructionProvider.
func (s SuffixedInstruction) Resolve(ctx context.Context) (string, error) {
	base := ""
	if s.Inner != nil {
		v, err := s.Inner.Resolve(ctx)
		if err != nil {
			return "", err
		}
		base = v
	}
	if s.Suffix == "" {
		return base, nil
	}
	if base == "" {
		return s.Suffix, nil
	}
	return base + "\n\n" + s.Suffix, nil
}
