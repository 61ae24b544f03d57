package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/metrics"
)

// CompleterConfig configures a Gemini completer.
type CompleterConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Provider    string
	Logger      *zap.Logger
}

// Completer calls models.generateContent with a system instruction.
type Completer struct {
	models      models
	model       string
	temperature float32
	maxTokens   int
	provider    string
	logger      *zap.Logger
}

// NewCompleter creates a Gemini completer over m (usually *genai.Models).
func NewCompleter(m models, cfg CompleterConfig) *Completer {
	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}
	return &Completer{
		models:      m,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		provider:    provider,
		logger:      cfg.Logger,
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, system, user string) (domain.CompletionResult, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.maxTokens)
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(user), cfg)
	duration := time.Since(start)

	if err != nil {
		wrapped := parseAPIError(err, "completion", domain.ErrGenerationFailed)
		metrics.GenerationRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(c.provider, c.model, errorType(wrapped)).Inc()
		return domain.CompletionResult{}, wrapped
	}

	var text string
	if resp != nil {
		text = strings.TrimSpace(resp.Text())
	}
	if text == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(c.provider, c.model, "empty_response").Inc()
		return domain.CompletionResult{}, fmt.Errorf("%w: %w", domain.ErrEmptyCompletion, domain.ErrGenerationFailed)
	}

	res := domain.CompletionResult{Text: text}
	if u := resp.UsageMetadata; u != nil {
		res.PromptTokens = int(u.PromptTokenCount)
		res.CompletionTokens = int(u.CandidatesTokenCount)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(res.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(res.CompletionTokens))

	return res, nil
}

// HealthCheck asks the model for a single token.
func (c *Completer) HealthCheck(ctx context.Context) error {
	_, err := c.models.GenerateContent(ctx, c.model, genai.Text("ping"), &genai.GenerateContentConfig{
		MaxOutputTokens: 1,
	})
	if err != nil {
		return parseAPIError(err, "completion health check", domain.ErrGenerationFailed)
	}
	return nil
}
