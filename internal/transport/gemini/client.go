// Package gemini adapts the Google Gen AI SDK to the embedding and completion ports.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/kailas-cloud/listbot/internal/domain"
)

// Task types understood by text-embedding-004.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// models is the subset of *genai.Models used here.
type models interface {
	EmbedContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig,
	) (*genai.EmbedContentResponse, error)
	GenerateContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// NewModels creates a Gemini API client. baseURL is optional.
func NewModels(ctx context.Context, apiKey, baseURL string) (*genai.Models, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client.Models, nil
}

func parseAPIError(err error, what string, kind error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return wrapStatus(apiErr.Code, fmt.Sprintf("%s API error %d: %s", what, apiErr.Code, apiErr.Message), kind)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return wrapStatus(apiErrPtr.Code, fmt.Sprintf("%s API error %d: %s", what, apiErrPtr.Code, apiErrPtr.Message), kind)
	}
	return fmt.Errorf("%s request failed: %v: %w", what, err, kind)
}

func wrapStatus(code int, msg string, kind error) error {
	if code == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrRateLimited, kind)
	}
	return fmt.Errorf("%s: %w", msg, kind)
}

func errorType(err error) string {
	if errors.Is(err, domain.ErrRateLimited) {
		return "rate_limited"
	}
	return "api_error"
}
