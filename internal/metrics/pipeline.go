package metrics

import "github.com/prometheus/client_golang/prometheus"

// Conversational pipeline metrics.
// Stages: rewrite_embed, retrieve, compose, generate.
var (
	PipelineStageDuration = histogramVec("pipeline_stage_duration_seconds",
		"Duration of each conversational pipeline stage",
		[]float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, "stage")
	PipelineDegradedTotal = counterVec("pipeline_degraded_total",
		"Stage failures absorbed by a fallback", "stage")
	// evidence: retrieved, cached, none.
	PipelineAnswersTotal = counterVec("pipeline_answers_total",
		"Completed pipeline runs, by evidence source", "evidence")
	PipelineRetrievedDocuments = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_retrieved_documents",
		Help:      "Documents kept for the prompt per query",
		Buckets:   []float64{0, 1, 2, 3, 5, 8},
	})
)

var pipelineGroup = newGroup(
	PipelineStageDuration,
	PipelineDegradedTotal,
	PipelineAnswersTotal,
	PipelineRetrievedDocuments,
)

// RegisterPipelineMetrics registers pipeline metrics. Safe to call repeatedly.
func RegisterPipelineMetrics() { pipelineGroup.register() }
