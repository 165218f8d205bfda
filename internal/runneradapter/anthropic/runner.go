package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/wdoppenberg/ag-ui/internal/arp"
	"github.com/wdoppenberg/ag-ui/internal/capability"
)

// maxToolTurns bounds how many backend-tool round trips a single RunAsync
// call will drive before giving up, guarding against a tool loop that never
// reaches a stop.
const maxToolTurns = 8

// Runner implements capability.Runner for one (app, agent) binding. It is
// constructed fresh per sub-execution by Factory.NewRunner.
type Runner struct {
	client   *Client
	agent    capability.AgentHandle
	appName  string
	sessions capability.SessionStore
}

// Close implements capability.Runner. The adapter holds no per-runner
// resources beyond the stream it already closes in RunAsync.
func (r *Runner) Close(ctx context.Context) error { return nil }

// RunAsync implements capability.Runner: it streams one or more Anthropic
// turns (looping internally over backend-tool round trips), emitting
// arp.Event fragments as they arrive and a final event once the runtime
// reaches a stop or a client-proxied tool call.
func (r *Runner) RunAsync(ctx context.Context, userID, sessionID string, input arp.RunInput, cfg capability.RunConfig) (<-chan arp.Event, error) {
	sess, err := r.sessions.Get(ctx, r.appName, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("anthropic: load session: %w", err)
	}
	if sess == nil {
		return nil, errors.New("anthropic: session not found")
	}
	history := asHistory(sess.State[historyStateKey])
	history = append(history, requestEntry(input)...)

	instruction := ""
	if r.agent.Instruction != nil {
		instruction, err = r.agent.Instruction.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("anthropic: resolve instruction: %w", err)
		}
	}

	toolParams, proxyNames := r.buildTools()

	out := make(chan arp.Event, 32)
	go r.drive(ctx, userID, sessionID, history, instruction, toolParams, proxyNames, out)
	return out, nil
}

// requestEntry converts one RunInput into the history entries it
// contributes: a single user text message, or one user message carrying a
// tool_result block per function response.
func requestEntry(input arp.RunInput) []map[string]any {
	if input.Role == "function" {
		blocks := make([]map[string]any, 0, len(input.FunctionResponses))
		for _, fr := range input.FunctionResponses {
			blocks = append(blocks, blockToolResult(fr.ID, marshalResponse(fr.Response), false))
		}
		return []map[string]any{messageEntry("user", blocks)}
	}
	return []map[string]any{messageEntry("user", []map[string]any{blockText(input.Text)})}
}

func (r *Runner) buildTools() ([]sdk.ToolUnionParam, map[string]struct{}) {
	var params []sdk.ToolUnionParam
	proxyNames := make(map[string]struct{}, len(r.agent.Tools))
	for name := range r.agent.Tools {
		proxyNames[name] = struct{}{}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{}, name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String("client-executed tool proxied through the UI")
		}
		params = append(params, u)
	}
	for name, bt := range r.client.backend {
		if _, proxied := proxyNames[name]; proxied {
			continue
		}
		schema := sdk.ToolInputSchemaParam{}
		if s := bt.InputSchema(); s != nil {
			schema.ExtraFields = s
		}
		u := sdk.ToolUnionParamOfTool(schema, name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(bt.Description())
		}
		params = append(params, u)
	}
	return params, proxyNames
}

func (r *Runner) drive(ctx context.Context, userID, sessionID string, history []map[string]any, instruction string, toolParams []sdk.ToolUnionParam, proxyNames map[string]struct{}, out chan<- arp.Event) {
	defer close(out)

	emit := func(ev arp.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for turn := 0; turn < maxToolTurns; turn++ {
		params := sdk.MessageNewParams{
			MaxTokens: int64(r.client.maxTokens),
			Messages:  encodeHistory(history),
			Model:     sdk.Model(r.client.model),
		}
		if instruction != "" {
			params.System = []sdk.TextBlockParam{{Text: instruction}}
		}
		if len(toolParams) > 0 {
			params.Tools = toolParams
		}
		if r.client.temperature > 0 {
			params.Temperature = sdk.Float(r.client.temperature)
		}

		stream := r.client.msg.NewStreaming(ctx, params)
		result, err := runTurn(ctx, stream, emit)
		_ = stream.Close()
		if err != nil {
			emit(arp.Event{
				IsFinalResponse: true,
				FinishReason:    "error",
				CustomData:      map[string]any{"error": err.Error()},
			})
			return
		}

		history = append(history, messageEntry("assistant", result.blocks))
		r.persistHistory(ctx, userID, sessionID, history)

		proxied, backend := partitionToolCalls(result.toolCalls, proxyNames)

		if len(proxied) > 0 {
			ids := make(map[string]struct{}, len(proxied))
			for _, fc := range proxied {
				ids[fc.ID] = struct{}{}
			}
			emit(arp.Event{
				Content:            &arp.Content{Parts: toolCallParts(proxied)},
				LongRunningToolIDs: ids,
			})
			return
		}

		if len(backend) == 0 {
			emit(arp.Event{
				Content:         textOnlyContent(result.blocks),
				IsFinalResponse: true,
				TurnComplete:    true,
				FinishReason:    result.stopReason,
			})
			return
		}

		results := r.executeBackendTools(ctx, backend)
		history = append(history, messageEntry("user", results))
	}

	emit(arp.Event{
		IsFinalResponse: true,
		FinishReason:    "max_tool_turns",
		CustomData:      map[string]any{"error": "backend tool loop exceeded max_tool_turns"},
	})
}

func partitionToolCalls(calls []arp.FunctionCall, proxyNames map[string]struct{}) (proxied, backend []arp.FunctionCall) {
	for _, fc := range calls {
		if _, ok := proxyNames[fc.Name]; ok {
			proxied = append(proxied, fc)
		} else {
			backend = append(backend, fc)
		}
	}
	return proxied, backend
}

func toolCallParts(calls []arp.FunctionCall) []arp.Part {
	parts := make([]arp.Part, 0, len(calls))
	for _, fc := range calls {
		parts = append(parts, fc)
	}
	return parts
}

func textOnlyContent(blocks []map[string]any) *arp.Content {
	for _, b := range blocks {
		if stringField(b, "type") == "text" {
			return &arp.Content{Parts: []arp.Part{arp.TextPart{Text: stringField(b, "text")}}}
		}
	}
	return nil
}

func (r *Runner) executeBackendTools(ctx context.Context, calls []arp.FunctionCall) []map[string]any {
	out := make([]map[string]any, 0, len(calls))
	for _, fc := range calls {
		tool, ok := r.client.backend[fc.Name]
		if !ok {
			out = append(out, blockToolResult(fc.ID, marshalResponse(map[string]any{"error": "unknown tool " + fc.Name}), true))
			continue
		}
		argsJSON := marshalResponse(fc.Args)
		result, err := tool.Execute(ctx, argsJSON)
		if err != nil {
			out = append(out, blockToolResult(fc.ID, marshalResponse(map[string]any{"error": err.Error()}), true))
			continue
		}
		out = append(out, blockToolResult(fc.ID, marshalResponse(result), false))
	}
	return out
}

func (r *Runner) persistHistory(ctx context.Context, userID, sessionID string, history []map[string]any) {
	sess, err := r.sessions.Get(ctx, r.appName, sessionID, userID)
	if err != nil || sess == nil {
		return
	}
	_, _ = r.sessions.AppendEvent(ctx, sess, capability.StateDelta{
		Values: map[string]any{historyStateKey: history},
		Merge:  true,
	})
}
