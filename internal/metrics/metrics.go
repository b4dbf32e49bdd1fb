package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Search endpoint metrics
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_search_requests_total",
			Help: "Total number of /search requests",
		},
		[]string{"status"},
	)

	SearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikivec_search_latency_ms",
			Help:    "End-to-end /search latency in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 120, 250, 500, 1000, 5000},
		},
		[]string{"cache"},
	)

	// Result cache metrics
	ResultCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikivec_result_cache_hits_total",
			Help: "Result cache lookups served from memory",
		},
	)

	ResultCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikivec_result_cache_misses_total",
			Help: "Result cache lookups that fell through to the index",
		},
	)

	ResultCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_result_cache_evictions_total",
			Help: "Result cache entries evicted",
		},
		[]string{"reason"},
	)

	ResultCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wikivec_result_cache_entries",
			Help: "Live result cache entries",
		},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_embedding_requests_total",
			Help: "Total embedding API batches by outcome",
		},
		[]string{"model", "status"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikivec_embedding_latency_seconds",
			Help:    "Embedding API batch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_embedding_cache_hits_total",
			Help: "Embedding cache hits by level (l1, l2)",
		},
		[]string{"level"},
	)

	EmbeddingRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_embedding_retries_total",
			Help: "Embedding API retries after transient failures",
		},
		[]string{"model"},
	)

	// ANN query metrics
	VectorSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_vector_searches_total",
			Help: "Total ANN lookups by outcome",
		},
		[]string{"status"},
	)

	VectorSearchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikivec_vector_search_latency_seconds",
			Help:    "ANN findNeighbors latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// Summarize metrics
	SummarizeStreams = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_summarize_streams_total",
			Help: "Total /summarize streams by outcome",
		},
		[]string{"status"},
	)

	SummarizeStreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikivec_summarize_stream_duration_seconds",
			Help:    "Duration of /summarize streams in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SummarizeChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikivec_summarize_chunks_total",
			Help: "SSE data frames written across all summarize streams",
		},
	)

	// Ingestion metrics
	IngestDocuments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikivec_ingest_documents_total",
			Help: "Documents processed by the ingestion pipeline",
		},
	)

	IngestChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikivec_ingest_chunks_total",
			Help: "Chunks produced by the ingestion pipeline",
		},
	)
)

// RecordSearchMetrics records one /search completion.
func RecordSearchMetrics(status string, cacheHit bool, latencyMs float64) {
	SearchRequests.WithLabelValues(status).Inc()
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	if latencyMs >= 0 {
		SearchLatency.WithLabelValues(cache).Observe(latencyMs)
	}
}

// RecordEmbeddingMetrics records one embedding API batch.
func RecordEmbeddingMetrics(model, status string, durationSeconds float64) {
	EmbeddingRequests.WithLabelValues(model, status).Inc()
	if durationSeconds > 0 {
		EmbeddingLatency.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordVectorSearchMetrics records one ANN lookup.
func RecordVectorSearchMetrics(status string, durationSeconds float64) {
	VectorSearches.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		VectorSearchLatency.Observe(durationSeconds)
	}
}

// RecordSummarizeMetrics records one completed (or failed) summarize stream.
func RecordSummarizeMetrics(status string, durationSeconds float64, chunks int) {
	SummarizeStreams.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		SummarizeStreamDuration.Observe(durationSeconds)
	}
	if chunks > 0 {
		SummarizeChunks.Add(float64(chunks))
	}
}
