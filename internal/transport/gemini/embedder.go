package gemini

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/metrics"
)

// EmbedderConfig configures a Gemini embedder.
type EmbedderConfig struct {
	Model      string
	TaskType   string // TaskRetrievalQuery for questions, TaskRetrievalDocument for the corpus
	Dimensions int    // model default when 0
	Provider   string
	Logger     *zap.Logger
}

// Embedder calls models.embedContent.
type Embedder struct {
	models     models
	model      string
	taskType   string
	dimensions int
	provider   string
	logger     *zap.Logger
}

// NewEmbedder creates a Gemini embedder over m (usually *genai.Models).
func NewEmbedder(m models, cfg EmbedderConfig) *Embedder {
	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}
	return &Embedder{
		models:     m,
		model:      cfg.Model,
		taskType:   cfg.TaskType,
		dimensions: cfg.Dimensions,
		provider:   provider,
		logger:     cfg.Logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.embed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder with one request.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.embed(ctx, texts)
}

func (e *Embedder) embed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	cfg := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(e.dimensions))
	}

	start := time.Now()
	resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
	duration := time.Since(start)

	if err != nil {
		wrapped := parseAPIError(err, "embedding", domain.ErrEmbeddingProviderError)
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, errorType(wrapped)).Inc()
		return domain.BatchEmbeddingResult{}, wrapped
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(texts), got, domain.ErrEmbeddingProviderError)
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(resp.Embeddings))}
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "empty_response").Inc()
			return domain.BatchEmbeddingResult{}, fmt.Errorf("empty embedding at %d: %w", i, domain.ErrEmbeddingProviderError)
		}
		out.Embeddings[i] = emb.Values
		out.TotalTokens += tokenCount(emb, texts[i])
	}
	out.PromptTokens = out.TotalTokens

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(duration.Seconds())
	metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, e.model, "total").Add(float64(out.TotalTokens))

	return out, nil
}

// tokenCount prefers server statistics (Vertex only) and otherwise
// estimates four characters per token.
func tokenCount(emb *genai.ContentEmbedding, text string) int {
	if emb.Statistics != nil && emb.Statistics.TokenCount > 0 {
		return int(emb.Statistics.TokenCount)
	}
	return (len(text) + 3) / 4
}

// HealthCheck embeds a one-word probe.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.embed(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("embedding probe: %w", err)
	}
	return nil
}
