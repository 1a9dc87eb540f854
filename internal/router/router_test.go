package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/models"
	"github.com/ninedomain/loreengine/internal/provider"
)

type fakeCompleter struct {
	name string
	err  error
	resp provider.Response
}

func (f *fakeCompleter) Name() string     { return f.name }
func (f *fakeCompleter) Models() []string { return []string{"m"} }
func (f *fakeCompleter) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	if f.err != nil {
		return provider.Response{}, f.err
	}
	return f.resp, nil
}

func newTestCatalog(ids ...string) *models.Catalog {
	c := models.NewCatalog()
	for i, id := range ids {
		c.Register(&models.Model{
			ID:           id,
			Provider:     models.ProviderOpenAI,
			Capabilities: []models.Capability{models.CapTools},
			Priority:     i + 1,
		})
	}
	return c
}

func TestSelect_RoundRobin(t *testing.T) {
	catalog := newTestCatalog("a", "b")
	r := New(catalog, nil, Config{Strategy: StrategyRoundRobin})

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		m, err := r.Select(models.CapTools, "", 0)
		if err != nil {
			t.Fatalf("Select error: %v", err)
		}
		seen[m.ID]++
	}
	if seen["a"] != 2 || seen["b"] != 2 {
		t.Errorf("round robin distribution = %v, want 2/2", seen)
	}
}

func TestSelect_NoEligibleModel(t *testing.T) {
	catalog := models.NewCatalog()
	r := New(catalog, nil, Config{})

	_, err := r.Select(models.CapTools, "", 0)
	var pe *engineerr.PipelineError
	if !errors.As(err, &pe) || pe.Reason != engineerr.ReasonNoEligibleModel {
		t.Fatalf("expected NoEligibleModel, got %v", err)
	}
}

func TestSelect_ExcludesUnavailable(t *testing.T) {
	catalog := newTestCatalog("a", "b")
	a, _ := catalog.Get("a")
	a.MarkUnavailable(time.Minute)

	r := New(catalog, nil, Config{Strategy: StrategyRoundRobin})
	for i := 0; i < 5; i++ {
		m, err := r.Select(models.CapTools, "", 0)
		if err != nil {
			t.Fatalf("Select error: %v", err)
		}
		if m.ID == "a" {
			t.Fatal("unavailable model should not be selected")
		}
	}
}

func TestSelect_LeastLatency(t *testing.T) {
	catalog := newTestCatalog("slow", "fast")
	slow, _ := catalog.Get("slow")
	fast, _ := catalog.Get("fast")
	slow.RecordOutcome(500*time.Millisecond, true)
	fast.RecordOutcome(10*time.Millisecond, true)

	r := New(catalog, nil, Config{Strategy: StrategyLeastLatency})
	m, err := r.Select(models.CapTools, "", 0)
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if m.ID != "fast" {
		t.Errorf("selected %s, want fast", m.ID)
	}
}

func TestSelect_CostOptimized(t *testing.T) {
	catalog := models.NewCatalog()
	catalog.Register(&models.Model{ID: "cheap", Provider: models.ProviderOpenAI, Capabilities: []models.Capability{models.CapTools}, Cost: models.Cost{InputPerToken: 0.001}})
	catalog.Register(&models.Model{ID: "pricey", Provider: models.ProviderOpenAI, Capabilities: []models.Capability{models.CapTools}, Cost: models.Cost{InputPerToken: 0.1}})

	r := New(catalog, nil, Config{Strategy: StrategyCostOptimized})
	m, err := r.Select(models.CapTools, "", 0)
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if m.ID != "cheap" {
		t.Errorf("selected %s, want cheap", m.ID)
	}
}

type fakeAdmitter struct{ denied map[string]bool }

func (a *fakeAdmitter) TryAcquire(modelID string, estimatedTokens int) (bool, time.Time) {
	if a.denied[modelID] {
		return false, time.Now().Add(time.Second)
	}
	return true, time.Time{}
}

func TestSelect_AdmissionFilter(t *testing.T) {
	catalog := newTestCatalog("a", "b")
	r := New(catalog, nil, Config{Strategy: StrategyRoundRobin}).WithAdmitter(&fakeAdmitter{denied: map[string]bool{"a": true}})

	for i := 0; i < 5; i++ {
		m, err := r.Select(models.CapTools, "", 100)
		if err != nil {
			t.Fatalf("Select error: %v", err)
		}
		if m.ID == "a" {
			t.Fatal("denied model should never be selected")
		}
	}
}

func TestComplete_RecordsOutcomeAndMarksFailure(t *testing.T) {
	catalog := newTestCatalog("only")
	completers := map[models.Provider]provider.Completer{
		models.ProviderOpenAI: &fakeCompleter{name: "openai", err: errors.New("boom")},
	}
	r := New(catalog, completers, Config{UnhealthyCooldown: time.Minute})

	_, _, err := r.Complete(context.Background(), models.CapTools, provider.Request{}, 0)
	if err == nil {
		t.Fatal("expected error from failing completer")
	}

	m, _ := catalog.Get("only")
	if m.Status() != models.StatusUnavailable {
		t.Errorf("status = %s, want unavailable after failure", m.Status())
	}
}

func TestComplete_Success(t *testing.T) {
	catalog := newTestCatalog("only")
	completers := map[models.Provider]provider.Completer{
		models.ProviderOpenAI: &fakeCompleter{name: "openai", resp: provider.Response{Text: "hi", Model: "only"}},
	}
	r := New(catalog, completers, Config{})

	resp, model, err := r.Complete(context.Background(), models.CapTools, provider.Request{}, 0)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Text != "hi" || model.ID != "only" {
		t.Errorf("unexpected result: %+v / %+v", resp, model)
	}
}
