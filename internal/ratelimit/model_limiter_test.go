package ratelimit

import (
	"testing"
	"time"
)

func TestModelLimiter_UnregisteredModelAlwaysAdmitted(t *testing.T) {
	l := NewModelLimiter()
	ok, _ := l.TryAcquire("unknown", 100)
	if !ok {
		t.Error("unregistered model should always be admitted")
	}
}

func TestModelLimiter_RPMExhaustion(t *testing.T) {
	l := NewModelLimiter()
	l.Register("m1", ModelLimits{RPM: 2}, ModelCost{})

	if ok, _ := l.TryAcquire("m1", 0); !ok {
		t.Fatal("first request should be admitted")
	}
	if ok, _ := l.TryAcquire("m1", 0); !ok {
		t.Fatal("second request should be admitted")
	}
	ok, retryAt := l.TryAcquire("m1", 0)
	if ok {
		t.Fatal("third request should be denied by RPM")
	}
	if !retryAt.After(time.Now()) {
		t.Error("expected retryAt in the future")
	}
}

func TestModelLimiter_TPMExhaustionMarksDegraded(t *testing.T) {
	l := NewModelLimiter()
	l.Register("m1", ModelLimits{RPM: 1000, TPM: 100}, ModelCost{})

	ok, _ := l.TryAcquire("m1", 50)
	if !ok {
		t.Fatal("50 tokens should fit in a 100 TPM budget")
	}
	ok, _ = l.TryAcquire("m1", 60)
	if ok {
		t.Fatal("60 more tokens should exceed the 100 TPM budget")
	}
	if !l.Degraded("m1") {
		t.Error("model should be marked degraded after TPM exhaustion")
	}
}

func TestModelLimiter_RemainingBudgetRatio(t *testing.T) {
	l := NewModelLimiter()
	l.Register("m1", ModelLimits{}, ModelCost{InputPerToken: 0.01, DailyBudget: 10})

	if r := l.RemainingBudgetRatio("m1"); r != 1.0 {
		t.Errorf("fresh model ratio = %v, want 1.0", r)
	}

	l.Reconcile("m1", 0, 500) // 500 tokens * 0.01 = 5.0 spent
	r := l.RemainingBudgetRatio("m1")
	if r < 0.49 || r > 0.51 {
		t.Errorf("ratio after spend = %v, want ~0.5", r)
	}
}

func TestModelLimiter_RemainingBudgetRatio_NoBudgetConfigured(t *testing.T) {
	l := NewModelLimiter()
	l.Register("m1", ModelLimits{}, ModelCost{InputPerToken: 0.01})
	l.Reconcile("m1", 0, 1_000_000)

	if r := l.RemainingBudgetRatio("m1"); r != 1.0 {
		t.Errorf("ratio with no configured budget = %v, want 1.0 (unlimited)", r)
	}
}

func TestModelLimiter_ReconcileUnderEstimateDoesNotDoubleCharge(t *testing.T) {
	l := NewModelLimiter()
	l.Register("m1", ModelLimits{TPM: 1000}, ModelCost{})

	l.TryAcquire("m1", 100)         // reserve 100
	l.Reconcile("m1", 100, 80)      // actual was only 80; should refund 20
	if l.Degraded("m1") {
		t.Error("should not be degraded after an under-estimate reconciliation")
	}
}
