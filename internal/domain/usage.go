package domain

import (
	"context"
	"sync"
)

type usageKey struct{}

// Usage collects provider token usage for a single request.
// The handler puts a pointer into the context, pipeline stages add to it,
// and the handler reads it back for response headers.
type Usage struct {
	mu               sync.Mutex
	embeddingTokens  int
	completionTokens int
	embedded         bool
	completed        bool
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the collector. Returns nil if not set; a nil *Usage is safe to use.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records tokens spent on embedding. A cache hit records 0 but still counts as used.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.embeddingTokens += n
	u.embedded = true
	u.mu.Unlock()
}

// AddCompletionTokens records prompt plus completion tokens of a generation call.
func (u *Usage) AddCompletionTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.completionTokens += n
	u.completed = true
	u.mu.Unlock()
}

// Embedding returns embedding tokens and whether any embedding happened.
func (u *Usage) Embedding() (int, bool) {
	if u == nil {
		return 0, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddingTokens, u.embedded
}

// Completion returns generation tokens and whether the model was called.
func (u *Usage) Completion() (int, bool) {
	if u == nil {
		return 0, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.completionTokens, u.completed
}
