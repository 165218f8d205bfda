package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/wdoppenberg/ag-ui/internal/arp"
)

// turnResult is what one Anthropic streaming turn produces: the assistant's
// content blocks (for history persistence) plus the tool_use calls made, if
// any.
type turnResult struct {
	blocks     []map[string]any
	toolCalls  []arp.FunctionCall
	stopReason string
}

type toolAccum struct {
	id        string
	name      string
	fragments []string
}

func (t *toolAccum) finalArgs() map[string]any {
	joined := strings.TrimSpace(strings.Join(t.fragments, ""))
	if joined == "" {
		joined = "{}"
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(joined), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func (t *toolAccum) rawInput() map[string]any {
	joined := strings.TrimSpace(strings.Join(t.fragments, ""))
	if joined == "" {
		joined = "{}"
	}
	var m map[string]any
	_ = json.Unmarshal([]byte(joined), &m)
	return m
}

// runTurn drains one Anthropic streaming response, forwarding partial text
// as arp.Event fragments onto emit, and returns the assembled turn result
// once the stream ends.
func runTurn(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion], emit func(arp.Event) bool) (turnResult, error) {
	var (
		textBuf strings.Builder
		blocks  []map[string]any
		tools   = make(map[int]*toolAccum)
		calls   []arp.FunctionCall
		stop    string
	)

	for stream.Next() {
		select {
		case <-ctx.Done():
			return turnResult{}, ctx.Err()
		default:
		}
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockStartEvent:
			if tu, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				tools[int(ev.Index)] = &toolAccum{id: tu.ID, name: tu.Name}
			}
		case sdk.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text == "" {
					continue
				}
				textBuf.WriteString(delta.Text)
				if !emit(arp.Event{
					Content:      &arp.Content{Parts: []arp.Part{arp.TextPart{Text: delta.Text}}},
					Partial:      true,
					TurnComplete: false,
				}) {
					return turnResult{}, ctx.Err()
				}
			case sdk.InputJSONDelta:
				if tb := tools[int(ev.Index)]; tb != nil && delta.PartialJSON != "" {
					tb.fragments = append(tb.fragments, delta.PartialJSON)
				}
			}
		case sdk.ContentBlockStopEvent:
			if tb := tools[int(ev.Index)]; tb != nil {
				args := tb.finalArgs()
				blocks = append(blocks, blockToolUse(tb.id, tb.name, tb.rawInput()))
				calls = append(calls, arp.FunctionCall{ID: tb.id, Name: tb.name, Args: args})
				delete(tools, int(ev.Index))
			}
		case sdk.MessageDeltaEvent:
			stop = string(ev.Delta.StopReason)
		case sdk.MessageStopEvent:
		}
	}
	if err := stream.Err(); err != nil {
		return turnResult{}, err
	}
	if text := textBuf.String(); text != "" {
		blocks = append([]map[string]any{blockText(text)}, blocks...)
	}
	return turnResult{blocks: blocks, toolCalls: calls, stopReason: stop}, nil
}
