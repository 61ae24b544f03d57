package chat

import (
	"context"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
)

// Embedder turns the rewritten query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher is the document store boundary.
// It returns hits with similarity >= threshold, at most limit of them.
type Searcher interface {
	Search(ctx context.Context, vector []float32, threshold float64, limit int) ([]retrieval.Document, error)
}

// Completer is the language model boundary.
type Completer interface {
	Complete(ctx context.Context, system, user string) (domain.CompletionResult, error)
}
