package domain

import "context"

// Completer is the language model boundary: one system instruction, one user message, one answer.
type Completer interface {
	Complete(ctx context.Context, system, user string) (CompletionResult, error)
}

// CompletionResult is the answer text plus token usage reported by the provider.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
