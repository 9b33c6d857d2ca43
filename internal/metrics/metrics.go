// Package metrics provides Prometheus metrics for the answering pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuestionsTotal counts answered questions by outcome.
	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikiqa",
			Name:      "questions_total",
			Help:      "Total number of questions answered",
		},
		[]string{"outcome"},
	)

	// QuestionDuration measures end-to-end answering time.
	QuestionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wikiqa",
			Name:      "question_duration_seconds",
			Help:      "Duration of answering one question in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	// BranchesTotal counts query branches by the stage they ended in and
	// their status.
	BranchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikiqa",
			Name:      "branches_total",
			Help:      "Total number of query branches by final stage and status",
		},
		[]string{"stage", "status"},
	)

	// StageDuration measures each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wikiqa",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// QueryCandidates observes how many query candidates a question yields.
	QueryCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wikiqa",
			Name:      "query_candidates",
			Help:      "Distribution of query candidates per question",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	// ErrorsTotal counts errors by operation.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikiqa",
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"operation"},
	)

	// LLMTokensTotal counts annotator tokens by model and direction.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikiqa",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed by the annotator",
		},
		[]string{"model", "direction"},
	)

	// LLMCostUSD accumulates estimated annotator spend.
	LLMCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikiqa",
			Name:      "llm_cost_usd_total",
			Help:      "Estimated LLM spend in US dollars",
		},
		[]string{"model"},
	)
)

// RecordQuestion records one answered question.
func RecordQuestion(found bool, queries int, seconds float64) {
	outcome := "not_found"
	if found {
		outcome = "found"
	}
	QuestionsTotal.WithLabelValues(outcome).Inc()
	QuestionDuration.Observe(seconds)
	QueryCandidates.Observe(float64(queries))
}

// RecordBranch records the end of one query branch.
func RecordBranch(stage, status string) {
	BranchesTotal.WithLabelValues(stage, status).Inc()
}

// RecordStage records one stage execution.
func RecordStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordError records an error.
func RecordError(operation string) {
	ErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordLLMUsage records the tokens and estimated cost of one LLM call.
func RecordLLMUsage(model string, input, output int64, usd float64) {
	LLMTokensTotal.WithLabelValues(model, "input").Add(float64(input))
	LLMTokensTotal.WithLabelValues(model, "output").Add(float64(output))
	if usd > 0 {
		LLMCostUSD.WithLabelValues(model).Add(usd)
	}
}
