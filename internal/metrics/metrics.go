package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "desksync_rows_loaded_total",
		Help: "Rows written to the warehouse, by table.",
	}, []string{"table"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "desksync_runs_total",
		Help: "Sync job outcomes, by job and status.",
	}, []string{"job", "status"})

	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "desksync_llm_tokens_total",
		Help: "LLM tokens consumed, by model.",
	}, []string{"model"})

	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "desksync_extraction_failures_total",
		Help: "Per-conversation extraction failures isolated into null rows.",
	})
)
