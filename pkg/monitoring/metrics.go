// Package monitoring exposes prometheus instrumentation for the ingestion
// and query pipelines.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors both pipelines report into.
type Metrics struct {
	DocumentsProcessed *prometheus.CounterVec
	ChunksProduced     prometheus.Counter
	ExtractionFailures prometheus.Counter
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      prometheus.Histogram
	BackendFailovers   prometheus.Counter
	EmbeddingCacheHits *prometheus.CounterVec
}

// NewMetrics registers all collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hamrag_documents_processed_total",
			Help: "Documents handled by the ingestion pipeline.",
		}, []string{"source_type", "status"}),
		ChunksProduced: factory.NewCounter(prometheus.CounterOpts{
			Name: "hamrag_chunks_produced_total",
			Help: "Chunk records produced by the ingestion pipeline.",
		}),
		ExtractionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "hamrag_extraction_failures_total",
			Help: "Page, file or URL scoped extraction failures that were skipped.",
		}),
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hamrag_queries_total",
			Help: "Questions answered by the query pipeline.",
		}, []string{"status"}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hamrag_query_duration_seconds",
			Help:    "End-to-end latency of the query pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		BackendFailovers: factory.NewCounter(prometheus.CounterOpts{
			Name: "hamrag_backend_failovers_total",
			Help: "Times the router escalated a generation call to the fallback backend.",
		}),
		EmbeddingCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hamrag_embedding_cache_requests_total",
			Help: "Embedding cache lookups by outcome.",
		}, []string{"outcome"}),
	}
}

// NewTestMetrics registers against a throwaway registry; used by tests.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
