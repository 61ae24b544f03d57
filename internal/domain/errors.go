package domain

import "errors"

var (
	// ErrInvalidInput signals a structurally invalid request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited signals a provider rate limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationQuotaExceeded signals an exhausted generation token budget.
	ErrGenerationQuotaExceeded = errors.New("generation quota exceeded")
	// ErrGenerationFailed signals a language model failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrEmptyCompletion signals a completion without any text.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrCorpusUnavailable signals a document store failure.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
)
