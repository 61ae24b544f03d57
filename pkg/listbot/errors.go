package listbot

import (
	"errors"

	"github.com/kailas-cloud/listbot/internal/domain"
)

// Sentinel errors. Use errors.Is() to check.
var (
	ErrEmptyQuestion           = errors.New("listbot: question is empty")
	ErrCompleterNotConfigured  = errors.New("listbot: completer not configured (use WithCompleter)")
	ErrEmbeddingQuotaExceeded  = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
	ErrGenerationQuotaExceeded = domain.ErrGenerationQuotaExceeded
	ErrGenerationFailed        = domain.ErrGenerationFailed
	ErrCorpusUnavailable       = domain.ErrCorpusUnavailable
	ErrRateLimited             = domain.ErrRateLimited
)
