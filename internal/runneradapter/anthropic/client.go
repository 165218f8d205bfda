// Package anthropic implements capability.Runner/capability.RunnerFactory
// on top of the Anthropic Claude Messages API, the reference backend this
// bridge ships with. The MessagesClient seam keeps the SDK substitutable
// in tests; streaming responses are translated into incremental arp.Event
// fragments as they arrive.
package anthropic

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, so tests can substitute a fake.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Options configures the adapter's default model and sampling parameters.
type Options struct {
	// Model is the Claude model identifier used for every run
	// (e.g. string(sdk.ModelClaudeSonnet4_5_20250929)).
	Model string
	// MaxTokens caps each turn's completion length.
	MaxTokens int
	// Temperature is applied when greater than zero.
	Temperature float64
	// BackendTools are executed locally by the adapter without involving the
	// UIP client.
	BackendTools []BackendTool
}

// Client holds the shared Anthropic SDK handle and defaults; NewRunner
// builds a per-sub-execution Runner from it.
type Client struct {
	msg         MessagesClient
	model       string
	maxTokens   int
	temperature float64
	backend     map[string]BackendTool
}

// New builds a Client from an explicit MessagesClient, for tests or
// alternate transports.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		return nil, errors.New("anthropic: max_tokens must be positive")
	}
	backend := make(map[string]BackendTool, len(opts.BackendTools))
	for _, t := range opts.BackendTools {
		backend[t.Name()] = t
	}
	return &Client{
		msg:         msg,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		backend:     backend,
	}, nil
}

// NewFromAPIKey builds a Client against the real Anthropic API using the
// default HTTP transport.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, opts)
}
