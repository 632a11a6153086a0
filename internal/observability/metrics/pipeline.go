package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics covers both pipeline operations: ingestion
// throughput and query latency with abstention outcomes.
type PipelineMetrics struct {
	registry *prometheus.Registry

	documentsTotal  *prometheus.CounterVec
	chunksEmbedded  prometheus.Counter
	embeddingTokens prometheus.Counter
	queriesTotal    *prometheus.CounterVec
	queryDuration   prometheus.Histogram
}

func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casewise",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Ingested documents by outcome.",
		},
		[]string{"outcome"},
	)
	chunksEmbedded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "casewise",
			Subsystem: "pipeline",
			Name:      "chunks_embedded_total",
			Help:      "Chunks embedded and written to the vector index.",
		},
	)
	embeddingTokens := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "casewise",
			Subsystem: "pipeline",
			Name:      "embedding_tokens_total",
			Help:      "Tokens consumed by the embedding provider.",
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casewise",
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Queries by certainty outcome.",
		},
		[]string{"uncertain"},
	)
	queryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "casewise",
			Subsystem: "pipeline",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	registry.MustRegister(documentsTotal, chunksEmbedded, embeddingTokens, queriesTotal, queryDuration)

	return &PipelineMetrics{
		registry:        registry,
		documentsTotal:  documentsTotal,
		chunksEmbedded:  chunksEmbedded,
		embeddingTokens: embeddingTokens,
		queriesTotal:    queriesTotal,
		queryDuration:   queryDuration,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) DocumentIngested(outcome string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ChunksEmbedded(count, tokens int) {
	if m == nil {
		return
	}
	m.chunksEmbedded.Add(float64(count))
	m.embeddingTokens.Add(float64(tokens))
}

func (m *PipelineMetrics) QueryObserved(duration time.Duration, uncertain bool) {
	if m == nil {
		return
	}
	label := "false"
	if uncertain {
		label = "true"
	}
	m.queriesTotal.WithLabelValues(label).Inc()
	m.queryDuration.Observe(duration.Seconds())
}
