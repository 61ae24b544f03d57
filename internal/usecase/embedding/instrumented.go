// Package embedding decorates embedding providers with token budgets,
// provider-sized batching and request-scoped logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/logger"
	"github.com/kailas-cloud/listbot/internal/usecase/budget"
)

// DefaultChunkSize caps texts per provider request. Both OpenAI and Gemini
// accept 100 inputs per batch call.
const DefaultChunkSize = 100

// InstrumentedEmbedder guards an embedder with a token budget. Query
// embeddings go through Embed; corpus loading goes through BatchEmbed.
// Transport metrics live in the provider clients.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	provider  string
	model     string
	guard     *budget.Guard
	chunkSize int
	logger    *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. guard may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	guard *budget.Guard, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:     inner,
		provider:  provider,
		model:     model,
		guard:     guard,
		chunkSize: DefaultChunkSize,
		logger:    logger,
	}
}

// WithChunkSize overrides DefaultChunkSize. Values <= 0 are ignored.
func (p *InstrumentedEmbedder) WithChunkSize(n int) *InstrumentedEmbedder {
	if n > 0 {
		p.chunkSize = n
	}
	return p
}

// Embed vectorizes one query.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	log := p.log(ctx)
	if err := p.guard.Allow(ctx); err != nil {
		log.Warn("Embedding rejected by budget", zap.Error(err))
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	if err != nil {
		log.Error("Embedding request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}
	p.guard.Spend(result.TotalTokens)

	log.Debug("Embedding request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed vectorizes corpus rows in provider-sized chunks. The budget is
// checked before every chunk, so a load stops once the cap is reached.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	log := p.log(ctx)
	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += p.chunkSize {
		chunk := texts[offset:min(offset+p.chunkSize, len(texts))]

		if err := p.guard.Allow(ctx); err != nil {
			log.Warn("Batch embedding stopped by budget",
				zap.Int("embedded", offset),
				zap.Int("remaining", len(texts)-offset),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, err
		}

		res, err := domain.EmbedAll(ctx, p.inner, chunk)
		if err != nil {
			log.Error("Batch embedding request failed",
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embed chunk at %d: %w", offset, err)
		}
		if len(res.Embeddings) != len(chunk) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"embed chunk at %d: provider returned %d vectors for %d texts", offset, len(res.Embeddings), len(chunk))
		}

		p.guard.Spend(res.TotalTokens)
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	log.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck forwards to the provider without touching the budget.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	return domain.CheckHealth(ctx, p.inner)
}

func (p *InstrumentedEmbedder) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, p.logger).With(
		zap.String("provider", p.provider),
		zap.String("model", p.model),
	)
}
