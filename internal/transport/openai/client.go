// Package openai adapts OpenAI-compatible APIs to the embedding and completion ports.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain"
)

// Config holds OpenAI-compatible provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // embeddings only, provider default when 0
	User       string
	Provider   string
	Logger     *zap.Logger

	Temperature float32 // completions only
	MaxTokens   int     // completions only, provider default when 0
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// parseAPIError extracts a readable message and wraps it with kind so the
// HTTP layer can map it. A 429 additionally wraps domain.ErrRateLimited.
func parseAPIError(err error, what string, kind error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return wrapStatus(reqErr.HTTPStatusCode, fmt.Sprintf("%s API error %d: %s", what, reqErr.HTTPStatusCode, detail), kind)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return wrapStatus(apiErr.HTTPStatusCode, fmt.Sprintf("%s API error %d: %s", what, apiErr.HTTPStatusCode, apiErr.Message), kind)
	}

	return fmt.Errorf("%s request failed: %v: %w", what, err, kind)
}

func wrapStatus(status int, msg string, kind error) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrRateLimited, kind)
	}
	return fmt.Errorf("%s: %w", msg, kind)
}

// extractDetail reads the "detail" field some compatible providers use instead of "error".
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func errorType(err error) string {
	if errors.Is(err, domain.ErrRateLimited) {
		return "rate_limited"
	}
	return "api_error"
}
