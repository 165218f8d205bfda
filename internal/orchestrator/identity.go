package orchestrator

import (
	"context"
	"fmt"
)

// resolveAppName resolves in precedence order: static value, then
// extractor, then the agent's declared name.
func (o *Orchestrator) resolveAppName(ctx context.Context, input RunAgentInput) (string, error) {
	if o.staticAppName != "" {
		return o.staticAppName, nil
	}
	if o.appNameExtractor != nil {
		return o.appNameExtractor(ctx, input)
	}
	return o.agentName, nil
}

// resolveUserID resolves in precedence order: static value, then
// extractor, then the default "thread_user_{thread_id}".
func (o *Orchestrator) resolveUserID(ctx context.Context, input RunAgentInput) (string, error) {
	if o.staticUserID != "" {
		return o.staticUserID, nil
	}
	if o.userIDExtractor != nil {
		return o.userIDExtractor(ctx, input)
	}
	return fmt.Sprintf("thread_user_%s", input.ThreadID), nil
}
