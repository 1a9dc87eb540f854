package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting pipeline metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Embedding provider call latency and token usage (C1)
//   - Vector store search latency and result counts (C2)
//   - Semantic cache hit/miss rates (C3)
//   - Rate limiter admission decisions and token accounting (C4)
//   - Router candidate selection (C5)
//   - Model manager state machine transitions and outcomes (C6)
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordEmbeddingRequest("openai", "text-embedding-3-small", "success", 0.2, 128)
type Metrics struct {
	// EmbeddingRequestDuration measures embedding provider call latency in seconds.
	// Labels: provider, model
	EmbeddingRequestDuration *prometheus.HistogramVec

	// EmbeddingRequestCounter counts embedding calls by provider, model, status.
	EmbeddingRequestCounter *prometheus.CounterVec

	// EmbeddingTokensUsed tracks input tokens consumed generating embeddings.
	// Labels: provider, model
	EmbeddingTokensUsed *prometheus.CounterVec

	// VectorSearchDuration measures vector store query latency in seconds.
	// Labels: backend (pgvector|sqlitevec), mode (vector|bm25|hybrid)
	VectorSearchDuration *prometheus.HistogramVec

	// VectorSearchResults tracks the number of rows returned per search.
	// Labels: backend, mode
	VectorSearchResults *prometheus.HistogramVec

	// VectorIndexSize is a gauge of rows currently indexed.
	// Labels: scope
	VectorIndexSize *prometheus.GaugeVec

	// CacheLookupCounter counts semantic cache lookups by outcome.
	// Labels: outcome (hit_exact|hit_semantic|miss)
	CacheLookupCounter *prometheus.CounterVec

	// CacheEvictionCounter counts cache entries evicted by reason.
	// Labels: reason (ttl|capacity)
	CacheEvictionCounter *prometheus.CounterVec

	// RateLimitDecisionCounter counts admission decisions by model and outcome.
	// Labels: model, window (rpm|tpm|rpd), outcome (admit|reject)
	RateLimitDecisionCounter *prometheus.CounterVec

	// RateLimitDegradedGauge reports whether a model is in a degraded rate-limit state.
	// Labels: model
	RateLimitDegradedGauge *prometheus.GaugeVec

	// RouterSelectionCounter counts candidate selections by router strategy and model.
	// Labels: strategy, model
	RouterSelectionCounter *prometheus.CounterVec

	// RouterUnhealthyGauge reports the number of candidates currently marked unhealthy.
	RouterUnhealthyGauge prometheus.Gauge

	// ModelManagerStateDuration measures time spent in each state-machine stage.
	// Labels: stage (cache_lookup|select|admit|call|record)
	ModelManagerStateDuration *prometheus.HistogramVec

	// ModelManagerOutcomeCounter counts terminal outcomes of the orchestrator.
	// Labels: operation (embed|complete|search), outcome (success|cache_hit|exhausted|error)
	ModelManagerOutcomeCounter *prometheus.CounterVec

	// CostEstimateUSD accumulates estimated spend per model per day.
	// Labels: model
	CostEstimateUSD *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		EmbeddingRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loreengine_embedding_request_duration_seconds",
				Help:    "Duration of embedding provider calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider", "model"},
		),

		EmbeddingRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loreengine_embedding_requests_total",
				Help: "Total number of embedding requests by provider, model, status",
			},
			[]string{"provider", "model", "status"},
		),

		EmbeddingTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loreengine_embedding_tokens_total",
				Help: "Total input tokens consumed generating embeddings",
			},
			[]string{"provider", "model"},
		),

		VectorSearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loreengine_vector_search_duration_seconds",
				Help:    "Duration of vector store searches in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"backend", "mode"},
		),

		VectorSearchResults: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loreengine_vector_search_results",
				Help:    "Number of rows returned per vector search",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"backend", "mode"},
		),

		VectorIndexSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loreengine_vector_index_rows",
				Help: "Current number of indexed rows by scope",
			},
			[]string{"scope"},
		),

		CacheLookupCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loreengine_cache_lookups_total",
				Help: "Total semantic cache lookups by outcome",
			},
			[]string{"outcome"},
		),

		CacheEvictionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loreengine_cache_evictions_total",
				Help: "Total semantic cache evictions by reason",
			},
			[]string{"reason"},
		),

		RateLimitDecisionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loreengine_ratelimit_decisions_total",
				Help: "Total rate limit admission decisions by model, window, outcome",
			},
			[]string{"model", "window", "outcome"},
		),

		RateLimitDegradedGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loreengine_ratelimit_degraded",
				Help: "1 if the model is currently in a degraded rate-limit state, else 0",
			},
			[]string{"model"},
		),

		RouterSelectionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loreengine_router_selections_total",
				Help: "Total router candidate selections by strategy and model",
			},
			[]string{"strategy", "model"},
		),

		RouterUnhealthyGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loreengine_router_unhealthy_candidates",
				Help: "Number of router candidates currently in cooldown",
			},
		),

		ModelManagerStateDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loreengine_modelmanager_stage_duration_seconds",
				Help:    "Duration spent in each model manager state machine stage",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),

		ModelManagerOutcomeCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loreengine_modelmanager_outcomes_total",
				Help: "Total terminal outcomes of the model manager orchestrator",
			},
			[]string{"operation", "outcome"},
		),

		CostEstimateUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loreengine_cost_estimate_usd_total",
				Help: "Estimated cumulative spend in USD by model",
			},
			[]string{"model"},
		),
	}
}

// RecordEmbeddingRequest records metrics for an embedding provider call.
func (m *Metrics) RecordEmbeddingRequest(provider, model, status string, durationSeconds float64, tokens int) {
	m.EmbeddingRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if tokens > 0 {
		m.EmbeddingTokensUsed.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

// RecordVectorSearch records metrics for a vector store search.
func (m *Metrics) RecordVectorSearch(backend, mode string, durationSeconds float64, resultCount int) {
	m.VectorSearchDuration.WithLabelValues(backend, mode).Observe(durationSeconds)
	m.VectorSearchResults.WithLabelValues(backend, mode).Observe(float64(resultCount))
}

// SetVectorIndexSize sets the current row count for a scope.
func (m *Metrics) SetVectorIndexSize(scope string, rows int) {
	m.VectorIndexSize.WithLabelValues(scope).Set(float64(rows))
}

// RecordCacheLookup increments the cache lookup counter for an outcome.
func (m *Metrics) RecordCacheLookup(outcome string) {
	m.CacheLookupCounter.WithLabelValues(outcome).Inc()
}

// RecordCacheEviction increments the cache eviction counter for a reason.
func (m *Metrics) RecordCacheEviction(reason string, count int) {
	m.CacheEvictionCounter.WithLabelValues(reason).Add(float64(count))
}

// RecordRateLimitDecision records a rate limit admission decision.
func (m *Metrics) RecordRateLimitDecision(model, window, outcome string) {
	m.RateLimitDecisionCounter.WithLabelValues(model, window, outcome).Inc()
}

// SetRateLimitDegraded sets the degraded gauge for a model.
func (m *Metrics) SetRateLimitDegraded(model string, degraded bool) {
	v := 0.0
	if degraded {
		v = 1.0
	}
	m.RateLimitDegradedGauge.WithLabelValues(model).Set(v)
}

// RecordRouterSelection records a router candidate selection.
func (m *Metrics) RecordRouterSelection(strategy, model string) {
	m.RouterSelectionCounter.WithLabelValues(strategy, model).Inc()
}

// SetRouterUnhealthyCount sets the current unhealthy candidate gauge.
func (m *Metrics) SetRouterUnhealthyCount(count int) {
	m.RouterUnhealthyGauge.Set(float64(count))
}

// RecordModelManagerStage records time spent in a state machine stage.
func (m *Metrics) RecordModelManagerStage(stage string, durationSeconds float64) {
	m.ModelManagerStateDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordModelManagerOutcome records the terminal outcome of an orchestrator run.
func (m *Metrics) RecordModelManagerOutcome(operation, outcome string) {
	m.ModelManagerOutcomeCounter.WithLabelValues(operation, outcome).Inc()
}

// RecordCost adds to the estimated cost counter for a model.
func (m *Metrics) RecordCost(model string, usd float64) {
	if usd > 0 {
		m.CostEstimateUSD.WithLabelValues(model).Add(usd)
	}
}
