package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/metrics"
)

// Generator invokes the language model with the fixed system instruction.
type Generator struct {
	completer Completer
	logger    *zap.Logger
}

// NewGenerator creates a generator.
func NewGenerator(c Completer, logger *zap.Logger) *Generator {
	return &Generator{completer: c, logger: logger}
}

// Generate returns the model answer, or ApologyMessage if the call fails.
// ok reports whether the answer came from the model.
func (g *Generator) Generate(ctx context.Context, composed string) (answer string, ok bool) {
	res, err := g.completer.Complete(ctx, SystemInstruction, composed)
	if err == nil && res.Text == "" {
		err = domain.ErrEmptyCompletion
	}
	if err != nil {
		metrics.PipelineDegradedTotal.WithLabelValues(stageGenerate).Inc()
		g.logger.Warn("Generation failed, returning apology",
			zap.String("stage", stageGenerate),
			zap.Error(err),
		)
		return ApologyMessage, false
	}

	domain.UsageFromContext(ctx).AddCompletionTokens(res.PromptTokens + res.CompletionTokens)
	return res.Text, true
}
