// Package llm holds the language-model client boundary: a minimal
// completion interface, its Anthropic implementation, and the shared
// helpers for digging structured JSON out of free-text responses.
package llm

import "context"

// Completer is the interface the planners and insight stage depend on.
type Completer interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
