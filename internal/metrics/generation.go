package metrics

// Chat completion metrics. Token type is "prompt" or "completion".
var (
	GenerationRequestsTotal = counterVec("generation_requests_total",
		"Total number of chat completion requests", "provider", "model", "status")
	GenerationRequestDuration = histogramVec("generation_request_duration_seconds",
		"Chat completion duration in seconds",
		[]float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}, "provider", "model")
	GenerationTokensTotal = counterVec("generation_tokens_total",
		"Total chat completion tokens consumed", "provider", "model", "type")
	GenerationErrorsTotal = counterVec("generation_errors_total",
		"Total chat completion errors", "provider", "model", "error_type")
)

var generationGroup = newGroup(
	GenerationRequestsTotal,
	GenerationRequestDuration,
	GenerationTokensTotal,
	GenerationErrorsTotal,
)

// RegisterGenerationMetrics registers generation metrics. Safe to call repeatedly.
func RegisterGenerationMetrics() { generationGroup.register() }
