// Package router implements C5, the load balancer that picks an eligible
// model for each request using a configured strategy, filtered by C4
// admission and model health. It is generalized from the health-cooldown
// and fallback-chain pattern used for routing chat completions, widened
// from single-rule matching to five selection strategies over a shared
// model catalog.
package router

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/models"
	"github.com/ninedomain/loreengine/internal/provider"
)

// Strategy names the model-selection policy applied to the eligible set.
type Strategy string

const (
	StrategyRoundRobin    Strategy = "round_robin"
	StrategyWeightedRandom Strategy = "weighted_random"
	StrategyLeastLatency  Strategy = "least_latency"
	StrategyCostOptimized Strategy = "cost_optimized"
	StrategyAdaptive      Strategy = "adaptive"
)

// AdaptiveWeights weighs the terms of the adaptive strategy's score.
type AdaptiveWeights struct {
	Latency float64
	Success float64
	Cost    float64
	Budget  float64
}

// Admitter is C4's try_acquire, consumed here as the admission filter
// between capability filtering and strategy application.
type Admitter interface {
	TryAcquire(modelID string, estimatedTokens int) (ok bool, retryAt time.Time)
}

// BudgetTracker reports a model's remaining cost budget as a ratio in
// [0, 1], used by the adaptive strategy's w_budget term.
type BudgetTracker interface {
	RemainingBudgetRatio(modelID string) float64
}

// Config configures a Router.
type Config struct {
	Strategy          Strategy
	AdaptiveWeights    AdaptiveWeights
	CostAlpha         float64 // weight on output-token cost in the cost formula; default 1.0
	UnhealthyCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyRoundRobin
	}
	if c.CostAlpha == 0 {
		c.CostAlpha = 1.0
	}
	if c.AdaptiveWeights == (AdaptiveWeights{}) {
		c.AdaptiveWeights = AdaptiveWeights{Latency: 0.4, Success: 0.3, Cost: 0.2, Budget: 0.1}
	}
	if c.UnhealthyCooldown <= 0 {
		c.UnhealthyCooldown = 30 * time.Second
	}
	return c
}

// Router selects a model per request and dispatches to its provider.
type Router struct {
	mu        sync.Mutex
	catalog   *models.Catalog
	providers map[models.Provider]provider.Completer
	admitter  Admitter
	budget    BudgetTracker
	cfg       Config
	rrIndex   uint64
	rng       *rand.Rand
}

// New builds a Router over catalog, dispatching completions to providers
// keyed by models.Provider.
func New(catalog *models.Catalog, providers map[models.Provider]provider.Completer, cfg Config) *Router {
	return &Router{
		catalog:   catalog,
		providers: providers,
		cfg:       cfg.withDefaults(),
		rng:       rand.New(rand.NewSource(1)),
	}
}

// WithAdmitter attaches C4 admission filtering.
func (r *Router) WithAdmitter(a Admitter) *Router {
	r.admitter = a
	return r
}

// WithBudgetTracker attaches cost-budget tracking for the adaptive strategy.
func (r *Router) WithBudgetTracker(b BudgetTracker) *Router {
	r.budget = b
	return r
}

// Select implements §4.5's select(capability, hint) -> model_id | None:
// filter by capability and status, filter by C4 admission, then apply
// the configured strategy to what remains.
func (r *Router) Select(capability models.Capability, hint string, estimatedTokens int) (*models.Model, error) {
	eligible := r.eligibleModels(capability)
	if hint != "" {
		if m, ok := r.catalog.Get(hint); ok && containsModel(eligible, m) {
			if admitted, _ := r.admit(m, estimatedTokens); admitted {
				return m, nil
			}
		}
	}

	admitted := r.admittedModels(eligible, estimatedTokens)
	if len(admitted) == 0 {
		return nil, engineerr.NoEligibleModelError("no model passed capability filter and admission")
	}

	return r.applyStrategy(admitted), nil
}

// Complete selects a model for capability and invokes its provider.
// Callers that need to retry across models (C6) should call Select and
// Complete separately so a failed call can mark the model and re-select.
func (r *Router) Complete(ctx context.Context, capability models.Capability, req provider.Request, estimatedTokens int) (provider.Response, *models.Model, error) {
	model, err := r.Select(capability, req.Model, estimatedTokens)
	if err != nil {
		return provider.Response{}, nil, err
	}

	completer, ok := r.providers[model.Provider]
	if !ok {
		return provider.Response{}, model, engineerr.ProviderUnavailableError(string(model.Provider), nil)
	}

	req.Model = model.ID
	start := time.Now()
	resp, err := completer.Complete(ctx, req)
	latency := time.Since(start)

	success := err == nil
	r.RecordOutcome(model, latency, success)
	if err != nil {
		return provider.Response{}, model, err
	}
	return resp, model, nil
}

// RecordOutcome folds a completed call's latency and success into the
// model's health estimate, marking it unavailable on repeated failure.
func (r *Router) RecordOutcome(model *models.Model, latency time.Duration, success bool) {
	model.RecordOutcome(latency, success)
	if !success {
		model.MarkUnavailable(r.cfg.UnhealthyCooldown)
	}
}

func (r *Router) eligibleModels(capability models.Capability) []*models.Model {
	var caps []models.Capability
	if capability != "" {
		caps = []models.Capability{capability}
	}
	return r.catalog.List(&models.Filter{RequiredCapabilities: caps})
}

func (r *Router) admit(m *models.Model, estimatedTokens int) (bool, time.Time) {
	status := m.Status()
	if status == models.StatusUnavailable {
		return false, time.Time{}
	}
	if r.admitter == nil {
		return true, time.Time{}
	}
	return r.admitter.TryAcquire(m.ID, estimatedTokens)
}

func (r *Router) admittedModels(candidates []*models.Model, estimatedTokens int) []*models.Model {
	result := make([]*models.Model, 0, len(candidates))
	for _, m := range candidates {
		if m.Status() == models.StatusUnavailable {
			continue
		}
		if ok, _ := r.admit(m, estimatedTokens); ok {
			result = append(result, m)
		}
	}
	return result
}

func containsModel(candidates []*models.Model, target *models.Model) bool {
	for _, m := range candidates {
		if m == target {
			return true
		}
	}
	return false
}

func (r *Router) applyStrategy(candidates []*models.Model) *models.Model {
	switch r.cfg.Strategy {
	case StrategyWeightedRandom:
		return r.weightedRandom(candidates)
	case StrategyLeastLatency:
		return leastLatency(candidates)
	case StrategyCostOptimized:
		return r.costOptimized(candidates)
	case StrategyAdaptive:
		return r.adaptive(candidates)
	default:
		return r.roundRobin(candidates)
	}
}

func (r *Router) roundRobin(candidates []*models.Model) *models.Model {
	idx := atomic.AddUint64(&r.rrIndex, 1) - 1
	return candidates[int(idx%uint64(len(candidates)))]
}

func (r *Router) weightedRandom(candidates []*models.Model) *models.Model {
	total := 0
	for _, m := range candidates {
		total += weightOf(m)
	}
	if total <= 0 {
		return r.roundRobin(candidates)
	}

	r.mu.Lock()
	pick := r.rng.Intn(total)
	r.mu.Unlock()

	for _, m := range candidates {
		pick -= weightOf(m)
		if pick < 0 {
			return m
		}
	}
	return candidates[len(candidates)-1]
}

// weightOf turns Priority into a selection weight: lower Priority number
// means "prefer more" in the catalog's convention (flagship models are
// registered with lower priority numbers), so invert it to a weight.
func weightOf(m *models.Model) int {
	if m.Priority <= 0 {
		return 100
	}
	w := 1000 / m.Priority
	if w < 1 {
		return 1
	}
	return w
}

func leastLatency(candidates []*models.Model) *models.Model {
	best := candidates[0]
	bestLatency := latencyOrDefault(best)
	for _, m := range candidates[1:] {
		l := latencyOrDefault(m)
		if l < bestLatency {
			best, bestLatency = m, l
		}
	}
	return best
}

func latencyOrDefault(m *models.Model) time.Duration {
	if l := m.LatencyP50(); l > 0 {
		return l
	}
	// Untested models are assumed average so they get exercised at least
	// once rather than being starved by already-measured fast models.
	return 500 * time.Millisecond
}

func (r *Router) costOptimized(candidates []*models.Model) *models.Model {
	best := candidates[0]
	bestCost := best.CostScore(r.cfg.CostAlpha)
	for _, m := range candidates[1:] {
		c := m.CostScore(r.cfg.CostAlpha)
		if c < bestCost {
			best, bestCost = m, c
		}
	}
	return best
}

func (r *Router) adaptive(candidates []*models.Model) *models.Model {
	w := r.cfg.AdaptiveWeights
	var best *models.Model
	bestScore := math.Inf(-1)

	for _, m := range candidates {
		latency := latencyOrDefault(m).Seconds()
		if latency <= 0 {
			latency = 0.001
		}
		cost := m.CostScore(r.cfg.CostAlpha)
		if cost <= 0 {
			cost = 1e-9
		}
		budgetRatio := 1.0
		if r.budget != nil {
			budgetRatio = r.budget.RemainingBudgetRatio(m.ID)
		}

		score := w.Latency*(1/latency) + w.Success*m.SuccessRate() + w.Cost*(1/cost) + w.Budget*budgetRatio
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}
