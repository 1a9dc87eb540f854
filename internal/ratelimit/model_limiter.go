package ratelimit

import (
	"sync"
	"time"
)

// ModelLimits declares one model's three rolling-window budgets: requests
// per minute, tokens per minute, requests per day. These are the three
// canonical windows; there is deliberately no per-hour window.
type ModelLimits struct {
	RPM int
	TPM int
	RPD int
}

// ModelCost prices one model's input and output tokens, used to roll up
// a per-model daily cost estimate alongside its request/token counters.
type ModelCost struct {
	InputPerToken  float64
	OutputPerToken float64
	DailyBudget    float64 // 0 means unlimited
}

type modelState struct {
	mu          sync.Mutex
	rpm         *Bucket
	tpm         *Bucket
	rpd         *Bucket
	cost        ModelCost
	costToday   float64
	dayStarted  time.Time
	degradedTPM bool
}

// ModelLimiter implements C4: per-model token-bucket admission across
// three windows plus the cost-accounting rollup the adaptive and
// cost-optimized router strategies read from.
type ModelLimiter struct {
	mu     sync.RWMutex
	models map[string]*modelState
}

// NewModelLimiter returns an empty per-model limiter; call Register for
// each catalog model before routing traffic to it.
func NewModelLimiter() *ModelLimiter {
	return &ModelLimiter{models: make(map[string]*modelState)}
}

// Register installs (or replaces) one model's limits and cost. A model
// with zero limits in a window is treated as unlimited on that window.
func (l *ModelLimiter) Register(modelID string, limits ModelLimits, cost ModelCost) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.models[modelID] = &modelState{
		rpm:        newWindowBucket(limits.RPM, time.Minute),
		tpm:        newWindowBucket(limits.TPM, time.Minute),
		rpd:        newWindowBucket(limits.RPD, 24*time.Hour),
		cost:       cost,
		dayStarted: time.Now().UTC(),
	}
}

func newWindowBucket(limit int, window time.Duration) *Bucket {
	if limit <= 0 {
		return nil // unlimited
	}
	return NewBucket(Config{
		RequestsPerSecond: float64(limit) / window.Seconds(),
		BurstSize:         limit,
	})
}

// TryAcquire implements §4.4's try_acquire(model_id, estimated_tokens):
// non-blocking admission across RPM, TPM, and RPD, atomic per model.
// Unregistered models are always admitted (unlimited by default).
func (l *ModelLimiter) TryAcquire(modelID string, estimatedTokens int) (bool, time.Time) {
	l.mu.RLock()
	st, ok := l.models[modelID]
	l.mu.RUnlock()
	if !ok {
		return true, time.Time{}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.rollDay()

	if st.rpm != nil && !st.rpm.Allow() {
		return false, time.Now().Add(st.rpm.WaitTime())
	}
	if st.rpd != nil && !st.rpd.Allow() {
		return false, time.Now().Add(st.rpd.WaitTime())
	}
	if st.tpm != nil && estimatedTokens > 0 && !st.tpm.AllowN(estimatedTokens) {
		st.degradedTPM = true
		return false, time.Now().Add(st.tpm.WaitTime())
	}
	return true, time.Time{}
}

// Reconcile folds a call's actual token usage and cost into the model's
// counters after the call completes, per §4.4's post-call reconciliation:
// an under-estimate before the call is corrected here rather than
// double-charged on the next acquire.
func (l *ModelLimiter) Reconcile(modelID string, estimatedTokens, actualTokens int) {
	l.mu.RLock()
	st, ok := l.models[modelID]
	l.mu.RUnlock()
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.rollDay()

	diff := actualTokens - estimatedTokens
	if st.tpm != nil && diff != 0 {
		if diff > 0 {
			st.tpm.AllowN(diff)
		} else {
			st.tpm.mu.Lock()
			st.tpm.tokens += float64(-diff)
			if st.tpm.tokens > st.tpm.maxTokens {
				st.tpm.tokens = st.tpm.maxTokens
			}
			st.tpm.mu.Unlock()
		}
	}
	st.costToday += float64(actualTokens) * st.cost.InputPerToken
	if st.tpm == nil || st.tpm.Tokens() > 0 {
		st.degradedTPM = false
	}
}

// Degraded reports whether a model is in a degraded state on any window,
// per §4.4's "over-consumption temporarily marks the model as degraded".
func (l *ModelLimiter) Degraded(modelID string) bool {
	l.mu.RLock()
	st, ok := l.models[modelID]
	l.mu.RUnlock()
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.degradedTPM
}

// RemainingBudgetRatio implements router.BudgetTracker: 1 - (spend /
// daily budget), clamped to [0, 1]. A model with no configured budget is
// always reported as having full remaining budget.
func (l *ModelLimiter) RemainingBudgetRatio(modelID string) float64 {
	l.mu.RLock()
	st, ok := l.models[modelID]
	l.mu.RUnlock()
	if !ok || st.cost.DailyBudget <= 0 {
		return 1.0
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.rollDay()

	ratio := 1 - st.costToday/st.cost.DailyBudget
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// CostToday returns the model's accumulated cost estimate for the current
// rolling day.
func (l *ModelLimiter) CostToday(modelID string) float64 {
	l.mu.RLock()
	st, ok := l.models[modelID]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.rollDay()
	return st.costToday
}

func (st *modelState) rollDay() {
	if time.Since(st.dayStarted) >= 24*time.Hour {
		st.costToday = 0
		st.dayStarted = time.Now().UTC()
	}
}
