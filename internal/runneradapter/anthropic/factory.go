package anthropic

import (
	"context"

	"github.com/wdoppenberg/ag-ui/internal/capability"
)

// Factory adapts a Client into a capability.RunnerFactory, constructing one
// Runner per sub-execution.
type Factory struct {
	client *Client
}

// NewFactory wraps client as a capability.RunnerFactory.
func NewFactory(client *Client) *Factory {
	return &Factory{client: client}
}

// NewRunner implements capability.RunnerFactory.
func (f *Factory) NewRunner(ctx context.Context, agent capability.AgentHandle, appName string, sessions capability.SessionStore, artifacts capability.ArtifactStore, memory capability.MemoryStore, credentials capability.CredentialStore) (capability.Runner, error) {
	return &Runner{
		client:   f.client,
		agent:    agent,
		appName:  appName,
		sessions: sessions,
	}, nil
}
