package arp

// RunInput is what the orchestrator hands to a capability.Runner to advance
// a turn: either a fresh user message or a synthetic function-response
// message carrying tool results back into the runtime.
type RunInput struct {
	// Role is "user" for a new-turn submission or "function" for a
	// tool-result submission.
	Role string
	// Text is the user's message text. Only set when Role == "user".
	Text string
	// FunctionResponses carries one entry per tool message in a tool-result
	// submission. Only set when Role == "function".
	FunctionResponses []FunctionResponse
}

// NewUserInput builds a RunInput for a fresh user turn.
func NewUserInput(text string) RunInput {
	return RunInput{Role: "user", Text: text}
}

// NewFunctionResultInput builds a RunInput carrying tool results.
func NewFunctionResultInput(responses []FunctionResponse) RunInput {
	return RunInput{Role: "function", FunctionResponses: responses}
}
