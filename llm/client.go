// Package llm is the model transport: a provider-agnostic client interface
// with a gollm-backed implementation, a uniform error taxonomy, and
// client-side retry. The model is a worker here, never a memory store; all
// state lives in the memory package.
package llm

import (
	"context"

	"github.com/madorolabs/madoro/tools"
)

// Response is one completed generation.
type Response struct {
	Content    string
	Model      string
	TokensUsed int
}

// Client is the transport the agent talks through.
type Client interface {
	// Generate sends a plain prompt with an optional system prompt.
	Generate(ctx context.Context, prompt, system string) (*Response, error)

	// GenerateWithTools folds the tool catalog into the system prompt and
	// generates. Tool-call extraction from the response text is the
	// caller's job.
	GenerateWithTools(ctx context.Context, prompt string, catalog []tools.Definition, system string) (*Response, error)

	// ModelKey returns the configured model key this client serves.
	ModelKey() string
}
