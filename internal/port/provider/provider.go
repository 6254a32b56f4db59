// Package provider defines the port for model provider clients.
package provider

import (
	"context"

	"github.com/ConvoSphere/convosphere/internal/domain/chat"
)

// Result is the raw outcome of one provider dispatch.
type Result struct {
	Content string
	Usage   chat.Usage
	// Raw provider metadata worth surfacing (finish reason, provider
	// request id). Never contains credentials.
	Metadata map[string]string
}

// Handle is the uniform interface every concrete provider implements.
// Responses must report token usage.
type Handle interface {
	// Complete performs one non-streaming chat completion.
	Complete(ctx context.Context, req chat.Request) (*Result, error)

	// CompleteStream performs a streaming completion. The returned
	// channel delivers deltas and is closed when the stream ends; the
	// final element carries the assembled Result. Errors mid-stream are
	// delivered on the channel.
	CompleteStream(ctx context.Context, req chat.Request) (<-chan StreamEvent, error)

	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text, model string) ([]float64, chat.Usage, error)
}

// StreamEvent is one element of a provider stream.
type StreamEvent struct {
	Delta  string
	Done   bool
	Result *Result // set when Done
	Err    error
}

// Capabilities advertises what a provider supports.
type Capabilities struct {
	Streaming   bool `json:"streaming" yaml:"streaming"`
	ToolCalling bool `json:"tool_calling" yaml:"tool_calling"`
	Embeddings  bool `json:"embeddings" yaml:"embeddings"`
}

// ModelPricing is the per-model pricing entry, in USD per million tokens.
type ModelPricing struct {
	InputPerMTok  float64 `json:"input_per_mtok" yaml:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok" yaml:"output_per_mtok"`
}

// Descriptor describes one configured provider. Loaded at init from
// configuration, immutable until explicitly refreshed.
type Descriptor struct {
	Name         string                  `json:"name"`
	Enabled      bool                    `json:"enabled"`
	Capabilities Capabilities            `json:"capabilities"`
	Models       map[string]ModelPricing `json:"models"`
	Handle       Handle                  `json:"-"`
}
