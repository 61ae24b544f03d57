package gemini

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/listbot/internal/domain"
)

func TestEmbedder_Embed_UsesTaskTypeAndDimensions(t *testing.T) {
	fm := &fakeModels{embedFn: func(_ context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		if model != "text-embedding-004" {
			t.Errorf("unexpected model %q", model)
		}
		if cfg.TaskType != TaskRetrievalQuery {
			t.Errorf("unexpected task type %q", cfg.TaskType)
		}
		if cfg.OutputDimensionality == nil || *cfg.OutputDimensionality != 768 {
			t.Errorf("expected output dimensionality 768")
		}
		if len(contents) != 1 || textOf(contents[0]) != "pharmacists in Pune" {
			t.Errorf("unexpected contents")
		}
		return &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2}}}}, nil
	}}
	emb := NewEmbedder(fm, EmbedderConfig{
		Model: "text-embedding-004", TaskType: TaskRetrievalQuery, Dimensions: 768, Logger: zap.NewNop(),
	})

	res, err := emb.Embed(context.Background(), "pharmacists in Pune")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("unexpected vector %v", res.Embedding)
	}
	if res.TotalTokens != 5 {
		t.Errorf("expected estimated 5 tokens for 19 chars, got %d", res.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed(t *testing.T) {
	fm := &fakeModels{embedFn: func(_ context.Context, _ string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		out := &genai.EmbedContentResponse{}
		for i := range contents {
			out.Embeddings = append(out.Embeddings, &genai.ContentEmbedding{
				Values:     []float32{float32(i)},
				Statistics: &genai.ContentEmbeddingStatistics{TokenCount: 7},
			})
		}
		return out, nil
	}}
	emb := NewEmbedder(fm, EmbedderConfig{Model: "m", TaskType: TaskRetrievalDocument, Logger: zap.NewNop()})

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 || res.Embeddings[2][0] != 2 {
		t.Errorf("unexpected embeddings %v", res.Embeddings)
	}
	if res.TotalTokens != 21 {
		t.Errorf("expected server token counts summed to 21, got %d", res.TotalTokens)
	}
}

func TestEmbedder_CountMismatch(t *testing.T) {
	fm := &fakeModels{embedFn: func(context.Context, string, []*genai.Content, *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		return &genai.EmbedContentResponse{}, nil
	}}
	emb := NewEmbedder(fm, EmbedderConfig{Model: "m", Logger: zap.NewNop()})

	if _, err := emb.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_APIError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		rateLimited bool
	}{
		{"rate limited", genai.APIError{Code: 429, Message: "quota"}, true},
		{"server error", genai.APIError{Code: 500, Message: "internal"}, false},
		{"transport", errors.New("dial tcp: refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := &fakeModels{embedFn: func(context.Context, string, []*genai.Content, *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
				return nil, tt.err
			}}
			emb := NewEmbedder(fm, EmbedderConfig{Model: "m", Logger: zap.NewNop()})

			_, err := emb.Embed(context.Background(), "x")
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
			}
			if errors.Is(err, domain.ErrRateLimited) != tt.rateLimited {
				t.Errorf("rate limited mismatch for %v", err)
			}
		})
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	down := errors.New("down")
	fm := &fakeModels{embedFn: func(context.Context, string, []*genai.Content, *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		return nil, down
	}}
	emb := NewEmbedder(fm, EmbedderConfig{Model: "m", Logger: zap.NewNop()})
	if err := emb.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected probe failure")
	}
}
