package anthropic

import "context"

// BackendTool is a tool the adapter executes itself, without routing
// through the Client Proxy Toolset.
type BackendTool interface {
	Name() string
	Description() string
	// InputSchema returns a JSON Schema object describing the tool's
	// arguments, or nil for an unconstrained object.
	InputSchema() map[string]any
	// Execute runs the tool against its JSON-encoded arguments and returns a
	// JSON-compatible result.
	Execute(ctx context.Context, argsJSON string) (map[string]any, error)
}
