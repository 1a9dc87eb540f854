// Package modelmanager implements C6: the embed/complete/search
// orchestrator that drives the [CacheLookup]->[Select]->[Admit]->[Call]->
// [Record]->[Done|Retry|Fail] state machine described in §4.6, wiring
// together C1 (embedding), C2 (vector store), C3 (semantic cache), C4/C5
// (admission and routing, both reachable through router.Router) behind
// three top-level operations.
package modelmanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/ninedomain/loreengine/internal/embedding"
	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/models"
	"github.com/ninedomain/loreengine/internal/observability"
	"github.com/ninedomain/loreengine/internal/provider"
	"github.com/ninedomain/loreengine/internal/router"
	"github.com/ninedomain/loreengine/internal/semanticcache"
	"github.com/ninedomain/loreengine/internal/vectorstore"
	"github.com/ninedomain/loreengine/pkg/domain"
)

// Config configures the manager's retry budget and cache defaults.
type Config struct {
	MaxRetries        int
	CacheTTL          time.Duration
	SimilarityFloor   float64
	EmbedTimeout      time.Duration
	CompleteTimeout   time.Duration
	SearchTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.SimilarityFloor <= 0 {
		c.SimilarityFloor = 0.95
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 10 * time.Second
	}
	if c.CompleteTimeout <= 0 {
		c.CompleteTimeout = 30 * time.Second
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 10 * time.Second
	}
	return c
}

// Manager is C6's composition: one embedding provider, one router over
// completion providers, the vector store, and the semantic cache.
type Manager struct {
	embedder embedding.Provider
	router   *router.Router
	store    vectorstore.Store
	cache    *semanticcache.Cache
	limiter  reconciler
	cfg      Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
}

// reconciler is the subset of ratelimit.ModelLimiter the manager needs to
// correct estimated-vs-actual token counts after a completion.
type reconciler interface {
	Reconcile(modelID string, estimatedTokens, actualTokens int)
}

// New builds a Manager. cache and limiter may be nil: a nil cache disables
// CacheLookup/Record-to-cache; a nil limiter skips Record's reconciliation.
func New(embedder embedding.Provider, r *router.Router, store vectorstore.Store, cache *semanticcache.Cache, limiter reconciler, cfg Config, logger *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Manager {
	return &Manager{
		embedder: embedder,
		router:   r,
		store:    store,
		cache:    cache,
		limiter:  limiter,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
	}
}

// EmbedResult is embed's return envelope.
type EmbedResult struct {
	Vectors [][]float32
	domain.OperationResult
}

// Embed implements §4.6's embed(texts, *, model_hint?) -> seq<vector>,
// delegating to C1 via the selected embedding-capable model.
func (m *Manager) Embed(ctx context.Context, texts []string, modelHint string) (EmbedResult, error) {
	ctx, span := m.tracer.Start(ctx, "modelmanager.embed")
	defer span.End()

	start := time.Now()
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	latency := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
		m.tracer.RecordError(span, err)
	}
	m.metrics.RecordEmbeddingRequest(m.embedder.Name(), m.embedder.ModelName(), status, latency.Seconds(), sumLen(texts))
	if err != nil {
		return EmbedResult{}, err
	}

	return EmbedResult{
		Vectors: vectors,
		OperationResult: domain.OperationResult{
			ModelUsed: m.embedder.ModelName(),
			LatencyMS: latency.Milliseconds(),
		},
	}, nil
}

// CompleteResult is complete's return envelope.
type CompleteResult struct {
	Content string
	domain.OperationResult
}

// CompleteOptions configures one complete() call.
type CompleteOptions struct {
	UseCache   bool
	MaxRetries int
	ModelHint  string
}

// Complete implements §4.6's central state machine: CacheLookup, then a
// Select/Admit/Call/Record loop bounded by MaxRetries.
func (m *Manager) Complete(ctx context.Context, req provider.Request, opts CompleteOptions) (CompleteResult, error) {
	ctx, span := m.tracer.Start(ctx, "modelmanager.complete")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CompleteTimeout)
	defer cancel()

	start := time.Now()
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = m.cfg.MaxRetries
	}

	// [CacheLookup]
	var queryEmbedding []float32
	if opts.UseCache && m.cache != nil {
		embedded, err := m.embedder.Embed(ctx, promptKey(req))
		if err == nil {
			queryEmbedding = embedded
			if entry, hit := m.cache.Lookup(ctx, promptKey(req), queryEmbedding); hit {
				m.metrics.RecordCacheLookup("hit")
				return CompleteResult{
					Content: textOf(entry.ResponseData),
					OperationResult: domain.OperationResult{
						ModelUsed: stringOf(entry.ResponseMetadata, "model_used"),
						Cached:    true,
						LatencyMS: time.Since(start).Milliseconds(),
					},
				}, nil
			}
			m.metrics.RecordCacheLookup("miss")
		}
	}

	var (
		modelsTried []string
		lastErr     error
	)

	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return CompleteResult{}, engineerr.TimeoutError("complete", ctx.Err())
		default:
		}

		// [Select] -> [Admit] -> [Call] -> health [Record], all inside
		// router.Complete: Select re-excludes any model MarkUnavailable'd
		// by a prior failed attempt in this loop.
		resp, model, err := m.router.Complete(ctx, "", req, estimateTokens(req))
		if err != nil {
			lastErr = err
			if model != nil {
				modelsTried = append(modelsTried, model.ID)
			}
			m.metrics.RecordRouterSelection("", modelIDOrEmpty(model))
			if !engineerr.ShouldFailover(err) && !engineerr.IsRetryable(err) {
				m.tracer.RecordError(span, err)
				return CompleteResult{}, err
			}
			m.logger.Warn(ctx, "complete attempt failed, retrying", "model", modelIDOrEmpty(model), "attempt", attempt, "error", err)
			continue
		}

		// [Record]: reconcile C4 token accounting with actuals.
		if m.limiter != nil {
			m.limiter.Reconcile(model.ID, estimateTokens(req), resp.InputTokens+resp.OutputTokens)
		}

		latency := time.Since(start)
		if opts.UseCache && m.cache != nil {
			if len(queryEmbedding) == 0 {
				queryEmbedding, _ = m.embedder.Embed(ctx, promptKey(req))
			}
			m.cache.Put(ctx, promptKey(req), queryEmbedding,
				map[string]any{"text": resp.Text},
				map[string]any{"model_used": model.ID},
				m.cfg.CacheTTL, m.cfg.SimilarityFloor)
		}

		return CompleteResult{
			Content: resp.Text,
			OperationResult: domain.OperationResult{
				ModelUsed:  model.ID,
				TokensUsed: resp.InputTokens + resp.OutputTokens,
				LatencyMS:  latency.Milliseconds(),
			},
		}, nil
	}

	finalErr := engineerr.AllModelsExhaustedError(modelsTried, lastErr)
	m.tracer.RecordError(span, finalErr)
	m.logger.Error(ctx, "complete exhausted retry budget", "models_tried", modelsTried, "error", lastErr)
	return CompleteResult{}, finalErr
}

// SearchResult is search's return envelope.
type SearchResult struct {
	Matches []vectorstore.ScoredEmbedding
	domain.OperationResult
}

// Search implements §4.6's search(query, *, k, threshold, filters?):
// embed via C1, then query C2.
func (m *Manager) Search(ctx context.Context, query string, opts vectorstore.SearchOptions) (SearchResult, error) {
	ctx, span := m.tracer.Start(ctx, "modelmanager.search")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.SearchTimeout)
	defer cancel()

	start := time.Now()
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		m.tracer.RecordError(span, err)
		return SearchResult{}, err
	}

	matches, err := m.store.SearchSimilarContent(ctx, vec, opts)
	latency := time.Since(start)
	m.metrics.RecordVectorSearch("content_embeddings", "search_similar", latency.Seconds(), len(matches))
	if err != nil {
		m.tracer.RecordError(span, err)
		return SearchResult{}, err
	}

	_ = m.store.LogSearch(ctx, &domain.SearchLog{
		LogID:       uuid.New().String(),
		Operation:   "search_similar",
		QueryHash:   queryHash(query),
		Threshold:   opts.Threshold,
		ResultCount: len(matches),
		LatencyMS:   latency.Milliseconds(),
		ModelUsed:   m.embedder.ModelName(),
		CreatedAt:   time.Now().UTC(),
	})

	return SearchResult{
		Matches: matches,
		OperationResult: domain.OperationResult{
			ModelUsed: m.embedder.ModelName(),
			LatencyMS: latency.Milliseconds(),
		},
	}, nil
}

func promptKey(req provider.Request) string {
	return req.System + "\n" + joinMessages(req)
}

func joinMessages(req provider.Request) string {
	var s string
	for _, msg := range req.Messages {
		s += msg.Role + ":" + msg.Content + "\n"
	}
	return s
}

func queryHash(q string) string {
	sum := sha256.Sum256([]byte(q))
	return hex.EncodeToString(sum[:])
}

func estimateTokens(req provider.Request) int {
	chars := len(req.System)
	for _, msg := range req.Messages {
		chars += len(msg.Content)
	}
	estimate := chars / 4
	if req.MaxTokens > 0 {
		estimate += req.MaxTokens
	}
	return estimate
}

func sumLen(texts []string) int {
	total := 0
	for _, t := range texts {
		total += len(t) / 4
	}
	return total
}

func textOf(m map[string]any) string {
	if m == nil {
		return ""
	}
	if s, ok := m["text"].(string); ok {
		return s
	}
	return ""
}

func stringOf(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func modelIDOrEmpty(m *models.Model) string {
	if m == nil {
		return ""
	}
	return m.ID
}
