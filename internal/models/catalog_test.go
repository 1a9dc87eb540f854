package models

import "testing"

func seededCatalog() *Catalog {
	c := NewCatalog()
	c.registerBuiltinModels()
	return c
}

func TestCatalog_Get(t *testing.T) {
	c := seededCatalog()

	model, ok := c.Get("claude-opus-4")
	if !ok {
		t.Fatal("expected to find claude-opus-4")
	}
	if model.Name != "Claude Opus 4" {
		t.Errorf("Name = %s, want Claude Opus 4", model.Name)
	}

	model, ok = c.Get("sonnet")
	if !ok {
		t.Fatal("expected to find sonnet alias")
	}
	if model.ID != "claude-3-5-sonnet-latest" {
		t.Errorf("ID = %s, want claude-3-5-sonnet-latest", model.ID)
	}

	if _, ok = c.Get("unknown-model"); ok {
		t.Error("should not find unknown-model")
	}
}

func TestModel_Capabilities(t *testing.T) {
	model := &Model{
		ID:           "test",
		Capabilities: []Capability{CapVision, CapTools, CapStreaming},
	}

	if !model.HasCapability(CapVision) {
		t.Error("should have vision capability")
	}
	if !model.SupportsVision() || !model.SupportsTools() || !model.SupportsStreaming() {
		t.Error("should support vision, tools, streaming")
	}
	if model.HasCapability(CapReasoning) {
		t.Error("should not have reasoning capability")
	}
}

func TestModel_HealthLifecycle(t *testing.T) {
	model := &Model{ID: "test"}

	if model.Status() != StatusActive {
		t.Errorf("new model status = %s, want active", model.Status())
	}

	model.RecordOutcome(100*1000*1000, true)
	if model.SuccessRate() <= 0 {
		t.Error("success rate should rise after a successful outcome")
	}

	model.MarkDegraded()
	if model.Status() != StatusDegraded {
		t.Errorf("status = %s, want degraded", model.Status())
	}

	model.RecordOutcome(50*1000*1000, true)
	if model.Status() != StatusActive {
		t.Error("a successful outcome should clear degraded status")
	}
}

func TestCatalog_List(t *testing.T) {
	c := seededCatalog()

	all := c.List(nil)
	if len(all) == 0 {
		t.Error("expected some models")
	}

	anthropic := c.ListByProvider(ProviderAnthropic)
	for _, m := range anthropic {
		if m.Provider != ProviderAnthropic {
			t.Errorf("expected anthropic provider, got %s", m.Provider)
		}
	}

	vision := c.ListByCapability(CapVision)
	for _, m := range vision {
		if !m.HasCapability(CapVision) {
			t.Errorf("model %s should have vision capability", m.ID)
		}
	}
}

func TestFilter_Matches(t *testing.T) {
	model := &Model{
		ID:            "test",
		Provider:      ProviderAnthropic,
		Tier:          TierStandard,
		ContextWindow: 200000,
		Capabilities:  []Capability{CapVision, CapTools},
	}

	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{"nil filter matches all", nil, true},
		{"empty filter matches all", &Filter{}, true},
		{"provider match", &Filter{Providers: []Provider{ProviderAnthropic}}, true},
		{"provider no match", &Filter{Providers: []Provider{ProviderOpenAI}}, false},
		{"tier match", &Filter{Tiers: []Tier{TierStandard, TierFast}}, true},
		{"tier no match", &Filter{Tiers: []Tier{TierFlagship}}, false},
		{"capability match", &Filter{RequiredCapabilities: []Capability{CapVision, CapTools}}, true},
		{"capability no match", &Filter{RequiredCapabilities: []Capability{CapVision, CapReasoning}}, false},
		{"context window match", &Filter{MinContextWindow: 100000}, true},
		{"context window no match", &Filter{MinContextWindow: 500000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(model); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_Deprecated(t *testing.T) {
	deprecated := &Model{ID: "old-model", Deprecated: true}

	if (&Filter{}).Matches(deprecated) {
		t.Error("should not match deprecated by default")
	}
	if !(&Filter{IncludeDeprecated: true}).Matches(deprecated) {
		t.Error("should match when IncludeDeprecated is true")
	}
}

func TestFilter_ExcludeUnavailable(t *testing.T) {
	model := &Model{ID: "flaky"}
	model.MarkUnavailable(0)

	if (&Filter{ExcludeUnavailable: true}).Matches(model) {
		t.Error("should exclude an unavailable model")
	}
}

func TestFromDescriptor(t *testing.T) {
	m := FromDescriptor(DescriptorConfig{
		ID:            "gpt-4o",
		Provider:      "openai",
		Tier:          "standard",
		ContextWindow: 128000,
		Capabilities:  []string{"tools", "vision"},
		InputPrice:    2.5,
		OutputPrice:   10,
		RPM:           100,
		Priority:      5,
	})

	if m.ID != "gpt-4o" || m.Provider != ProviderOpenAI {
		t.Errorf("unexpected model: %+v", m)
	}
	if !m.HasCapability(CapTools) || !m.HasCapability(CapVision) {
		t.Error("expected tools and vision capabilities")
	}
	if m.RateLimits.RPM != 100 {
		t.Errorf("RPM = %d, want 100", m.RateLimits.RPM)
	}
	if m.Cost.InputPerToken != 2.5/1000 {
		t.Errorf("InputPerToken = %v", m.Cost.InputPerToken)
	}
}

func TestCatalog_LoadFromDescriptors(t *testing.T) {
	c := NewCatalog()
	c.LoadFromDescriptors([]DescriptorConfig{
		{ID: "m1", Provider: "openai", Priority: 1},
		{ID: "m2", Provider: "anthropic", Priority: 2},
	})

	if len(c.List(nil)) != 2 {
		t.Fatalf("expected 2 models, got %d", len(c.List(nil)))
	}
	if _, ok := c.Get("m1"); !ok {
		t.Error("expected to find m1")
	}
}

func TestDefaultCatalog(t *testing.T) {
	model, ok := Get("gpt-4o")
	if !ok {
		t.Fatal("expected to find gpt-4o in default catalog")
	}
	if model.Provider != ProviderOpenAI {
		t.Errorf("provider = %s, want openai", model.Provider)
	}

	if all := List(nil); len(all) < 3 {
		t.Errorf("expected at least 3 models, got %d", len(all))
	}
}
