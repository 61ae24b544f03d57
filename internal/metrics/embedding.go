package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding provider metrics. status is "success" or "error".
var (
	EmbeddingRequestsTotal = counterVec("embedding_requests_total",
		"Total number of embedding requests", "provider", "model", "status")
	EmbeddingRequestDuration = histogramVec("embedding_request_duration_seconds",
		"Embedding request duration in seconds",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, "provider", "model")
	EmbeddingTokensTotal = counterVec("embedding_tokens_total",
		"Total embedding tokens consumed", "provider", "model", "type")
	EmbeddingErrorsTotal = counterVec("embedding_errors_total",
		"Total embedding errors", "provider", "model", "error_type")
	EmbeddingCacheTotal = counterVec("embedding_cache_total",
		"Embedding cache lookups by result (hit, miss)", "result")

	// BudgetTokensRemaining is set by every budget guard; -1 means unlimited.
	BudgetTokensRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "budget_tokens_remaining",
		Help:      "Remaining token budget (-1 when unlimited)",
	}, []string{"scope", "period"})
)

var embeddingGroup = newGroup(
	EmbeddingRequestsTotal,
	EmbeddingRequestDuration,
	EmbeddingTokensTotal,
	EmbeddingErrorsTotal,
	EmbeddingCacheTotal,
	BudgetTokensRemaining,
)

// RegisterEmbeddingMetrics registers embedding and budget metrics. Safe to call repeatedly.
func RegisterEmbeddingMetrics() { embeddingGroup.register() }
