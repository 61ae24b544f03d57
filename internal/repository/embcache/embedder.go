// Package embcache memoizes embedding vectors in the KV store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/db"
	"github.com/kailas-cloud/listbot/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder serves vectors from the KV store, keyed by model and text hash.
// A broken cache only costs a provider call, it never fails the request.
type CachedEmbedder struct {
	inner   domain.Embedder
	kv      kv
	model   string
	ttl     time.Duration
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New wraps inner. ttl 0 keeps entries forever. lookups is labelled by
// result (hit, miss) and may be nil.
func New(
	inner domain.Embedder,
	store kv,
	model string,
	ttl time.Duration,
	lookups *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, kv: store, model: model, ttl: ttl, lookups: lookups, logger: logger}
}

// Embed returns the cached vector with zero token usage, or asks the provider.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)
	if vec, ok := c.load(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.store(ctx, key, result.Embedding)
	return result, nil
}

// batch tracks which positions of a BatchEmbed call still need a provider round-trip.
type batch struct {
	keys    []string
	vectors [][]float32
	missing []int
}

func (b *batch) pending(texts []string) []string {
	out := make([]string, len(b.missing))
	for j, i := range b.missing {
		out[j] = texts[i]
	}
	return out
}

func (c *CachedEmbedder) lookup(ctx context.Context, texts []string) *batch {
	b := &batch{keys: make([]string, len(texts)), vectors: make([][]float32, len(texts))}
	for i, text := range texts {
		b.keys[i] = c.cacheKey(text)
		if vec, ok := c.load(ctx, b.keys[i]); ok {
			b.vectors[i] = vec
			continue
		}
		b.missing = append(b.missing, i)
	}
	return b
}

// BatchEmbed sends only cache misses to the provider. Usage covers the misses.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	b := c.lookup(ctx, texts)
	if len(b.missing) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: b.vectors}, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, b.pending(texts))
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: %w", len(b.missing), err)
	}
	if len(res.Embeddings) != len(b.missing) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"provider returned %d embeddings for %d texts", len(res.Embeddings), len(b.missing))
	}

	for j, i := range b.missing {
		b.vectors[i] = res.Embeddings[j]
		c.store(ctx, b.keys[i], res.Embeddings[j])
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   b.vectors,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// HealthCheck forwards to the provider.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	return domain.CheckHealth(ctx, c.inner)
}

// cacheKey includes the model so switching models never serves stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}

// load reports a hit or miss and returns the vector on a hit.
func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	vec, err := c.read(ctx, key)
	hit := err == nil && len(vec) > 0
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	}
	if c.lookups != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		c.lookups.WithLabelValues(result).Inc()
	}
	return vec, hit
}

func (c *CachedEmbedder) read(ctx context.Context, key string) ([]float32, error) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, err //nolint:wrapcheck // classified by load
	}
	return bytesToVector(data)
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	data := vectorToBytes(vec)

	var err error
	if c.ttl > 0 {
		err = c.kv.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.kv.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}
