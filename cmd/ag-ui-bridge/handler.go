package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"goa.design/clue/log"

	"github.com/wdoppenberg/ag-ui/internal/convert"
	"github.com/wdoppenberg/ag-ui/internal/orchestrator"
	"github.com/wdoppenberg/ag-ui/internal/proxytools"
	"github.com/wdoppenberg/ag-ui/internal/uip"
)

// The wire request mirrors the AG-UI RunAgentInput envelope.
type (
	wireRequest struct {
		ThreadID       string         `json:"threadId"`
		RunID          string         `json:"runId"`
		Messages       []wireMessage  `json:"messages"`
		State          map[string]any `json:"state"`
		Tools          []wireTool     `json:"tools"`
		ForwardedProps map[string]any `json:"forwardedProps"`
	}

	wireMessage struct {
		ID         string         `json:"id"`
		Role       string         `json:"role"`
		Content    string         `json:"content"`
		Name       string         `json:"name"`
		ToolCalls  []wireToolCall `json:"toolCalls"`
		ToolCallID string         `json:"toolCallId"`
	}

	wireToolCall struct {
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	}

	wireTool struct {
		Name string `json:"name"`
	}
)

func (m wireMessage) toMessage() convert.Message {
	out := convert.Message{
		ID:         m.ID,
		Role:       convert.Role(m.Role),
		Text:       m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, convert.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

func (r wireRequest) toInput() orchestrator.RunAgentInput {
	input := orchestrator.RunAgentInput{
		ThreadID:       r.ThreadID,
		RunID:          r.RunID,
		State:          r.State,
		ForwardedProps: r.ForwardedProps,
	}
	for _, m := range r.Messages {
		input.Messages = append(input.Messages, m.toMessage())
	}
	for _, t := range r.Tools {
		input.Tools = append(input.Tools, proxytools.Declaration{Name: t.Name})
	}
	return input
}

func newRouter(baseCtx context.Context, orch *orchestrator.Orchestrator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/run", runHandler(baseCtx, orch))
	return r
}

// runHandler accepts one RunAgentInput and answers with the run's UIP
// events as server-sent events, one `event:`/`data:` pair per event.
func runHandler(baseCtx context.Context, orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var wire wireRequest
		if err := json.NewDecoder(req.Body).Decode(&wire); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if wire.ThreadID == "" || wire.RunID == "" {
			http.Error(w, "threadId and runId are required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		// Logging context comes from process setup; cancellation from the
		// request, so a dropped client tears the run down.
		ctx, cancel := context.WithCancel(baseCtx)
		defer cancel()
		go func() {
			<-req.Context().Done()
			cancel()
		}()

		events, err := orch.Run(ctx, wire.toInput())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for ev := range events {
			data, err := uip.Marshal(ev)
			if err != nil {
				log.Errorf(ctx, err, "marshal event %s", ev.Type())
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data)
			flusher.Flush()
		}
	}
}
