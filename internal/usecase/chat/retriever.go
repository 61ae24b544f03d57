package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
	"github.com/kailas-cloud/listbot/internal/metrics"
)

// Retriever queries the document store and applies the relevance bar.
type Retriever struct {
	searcher Searcher
	opts     Options
	logger   *zap.Logger
}

// NewRetriever creates a retriever.
func NewRetriever(s Searcher, opts Options, logger *zap.Logger) *Retriever {
	return &Retriever{searcher: s, opts: opts.withDefaults(), logger: logger}
}

// Retrieve returns at most ComposeTopN documents with similarity above
// KeepThreshold, most similar first. An empty vector skips the store.
// Store failures yield an empty result.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32) []retrieval.Document {
	if len(vector) == 0 {
		return nil
	}

	docs, err := r.searcher.Search(ctx, vector, r.opts.CallThreshold, r.opts.TopK)
	if err != nil {
		metrics.PipelineDegradedTotal.WithLabelValues(stageRetrieve).Inc()
		r.logger.Warn("Retrieval failed, continuing without documents",
			zap.String("stage", stageRetrieve),
			zap.Error(err),
		)
		return nil
	}

	kept := retrieval.KeepAbove(docs, r.opts.KeepThreshold)
	retrieval.SortBySimilarity(kept)
	if len(kept) > r.opts.ComposeTopN {
		kept = kept[:r.opts.ComposeTopN]
	}
	return kept
}
