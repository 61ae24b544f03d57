// Package generation decorates chat completion providers with budgets,
// call deadlines and request-scoped logging.
package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/logger"
	"github.com/kailas-cloud/listbot/internal/usecase/budget"
)

// InstrumentedCompleter guards a Completer with a token budget and an
// optional per-call deadline.
type InstrumentedCompleter struct {
	inner    domain.Completer
	provider string
	model    string
	guard    *budget.Guard
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInstrumentedCompleter wraps a completer. guard may be nil.
func NewInstrumentedCompleter(
	inner domain.Completer, provider, model string,
	guard *budget.Guard, logger *zap.Logger,
) *InstrumentedCompleter {
	return &InstrumentedCompleter{
		inner:    inner,
		provider: provider,
		model:    model,
		guard:    guard,
		logger:   logger,
	}
}

// WithTimeout bounds every provider call. Zero disables the bound.
func (c *InstrumentedCompleter) WithTimeout(d time.Duration) *InstrumentedCompleter {
	c.timeout = d
	return c
}

// Complete spends prompt plus completion tokens from the budget.
func (c *InstrumentedCompleter) Complete(ctx context.Context, system, user string) (domain.CompletionResult, error) {
	log := logger.FromContext(ctx, c.logger).With(
		zap.String("provider", c.provider),
		zap.String("model", c.model),
	)

	if err := c.guard.Allow(ctx); err != nil {
		log.Warn("Completion rejected by budget", zap.Error(err))
		return domain.CompletionResult{}, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.inner.Complete(ctx, system, user)
	if err != nil {
		log.Error("Completion request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}
	c.guard.Spend(res.PromptTokens + res.CompletionTokens)

	log.Debug("Completion request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_chars", len(system)+len(user)),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
	)
	return res, nil
}

// HealthCheck forwards to the provider without touching the budget.
func (c *InstrumentedCompleter) HealthCheck(ctx context.Context) error {
	return domain.CheckHealth(ctx, c.inner)
}
