// Package models provides the Model Descriptor and Catalog consumed by
// C5 (router) and C6 (model manager): capabilities, rate limits, cost,
// priority, and live health used by the router's selection strategies.
package models

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Provider identifies an LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderMistral   Provider = "mistral"
	ProviderCohere    Provider = "cohere"
	ProviderOllama    Provider = "ollama"
	ProviderAzure     Provider = "azure"
	ProviderBedrock   Provider = "bedrock"
	ProviderVertex    Provider = "vertex"
)

// Capability identifies a model capability.
type Capability string

const (
	CapVision      Capability = "vision"
	CapTools       Capability = "tools"
	CapStreaming   Capability = "streaming"
	CapJSON        Capability = "json"
	CapCode        Capability = "code"
	CapReasoning   Capability = "reasoning"
	CapAudio       Capability = "audio"
	CapVideo       Capability = "video"
	CapEmbeddings  Capability = "embeddings"
	CapFineTunable Capability = "fine_tunable"
	CapPDFInput    Capability = "pdf_input"
	CapLongContext Capability = "long_context"
	CapBatch       Capability = "batch"
	CapCaching     Capability = "caching"
)

// Tier identifies a model's quality/cost tier.
type Tier string

const (
	TierFlagship Tier = "flagship"
	TierStandard Tier = "standard"
	TierFast     Tier = "fast"
	TierMini     Tier = "mini"
)

// Status is a model's current admission/health status, mutated online by
// the router as calls succeed or fail.
type Status string

const (
	StatusActive      Status = "active"
	StatusDegraded    Status = "degraded"
	StatusUnavailable Status = "unavailable"
)

// RateLimits is the per-model admission budget C4 enforces.
type RateLimits struct {
	RPM int
	TPM int
	RPD int
}

// Cost is priced per single token (not per 1k/1M) so the cost-optimized
// and adaptive strategies can compute cost_per_input_token + alpha*cost_per_output_token
// directly against it.
type Cost struct {
	InputPerToken  float64
	OutputPerToken float64
}

// health holds the mutable, router-updated fields of a Model: everything
// a request's outcome can change. Kept separate from the descriptor
// fields so Model literals built by callers don't need to know about it.
type health struct {
	mu          sync.RWMutex
	status      Status
	latencyP50  time.Duration
	latencyP99  time.Duration
	successRate float64
	cooldownEnd time.Time
}

// Model represents a routable LLM model: its capabilities, cost, rate
// limits, and live health.
type Model struct {
	ID              string
	Name            string
	Provider        Provider
	Tier            Tier
	ContextWindow   int
	MaxOutputTokens int
	Capabilities    []Capability
	Aliases         []string
	Deprecated      bool
	ReplacedBy      string
	ReleaseDate     string
	Description     string

	RateLimits RateLimits
	Cost       Cost
	Priority   int

	h *health
}

func newHealth() *health {
	return &health{status: StatusActive, successRate: 1.0}
}

// ensureHealth lazily initializes health for models built via struct
// literals rather than FromDescriptor/Register.
func (m *Model) ensureHealth() *health {
	if m.h == nil {
		m.h = newHealth()
	}
	return m.h
}

// HasCapability reports whether the model declares cap.
func (m *Model) HasCapability(cap Capability) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

func (m *Model) SupportsVision() bool    { return m.HasCapability(CapVision) }
func (m *Model) SupportsTools() bool     { return m.HasCapability(CapTools) }
func (m *Model) SupportsStreaming() bool { return m.HasCapability(CapStreaming) }
func (m *Model) SupportsEmbeddings() bool { return m.HasCapability(CapEmbeddings) }

// Status returns the model's current admission status.
func (m *Model) Status() Status {
	h := m.ensureHealth()
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status == StatusUnavailable && time.Now().After(h.cooldownEnd) {
		return StatusDegraded
	}
	return h.status
}

// MarkUnavailable takes the model out of rotation until cooldown elapses.
func (m *Model) MarkUnavailable(cooldown time.Duration) {
	h := m.ensureHealth()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = StatusUnavailable
	h.cooldownEnd = time.Now().Add(cooldown)
}

// MarkDegraded flags the model as degraded (e.g. a rate-limit window was
// over-consumed) without removing it from the eligible set entirely.
func (m *Model) MarkDegraded() {
	h := m.ensureHealth()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusUnavailable {
		h.status = StatusDegraded
	}
}

// MarkActive restores the model to the active pool.
func (m *Model) MarkActive() {
	h := m.ensureHealth()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = StatusActive
}

// RecordOutcome folds a completed call's latency and success/failure into
// the model's rolling health estimate. Uses an exponential moving
// average rather than a fixed window so the estimator needs no storage.
const healthEWMAAlpha = 0.2

func (m *Model) RecordOutcome(latency time.Duration, success bool) {
	h := m.ensureHealth()
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.latencyP50 == 0 {
		h.latencyP50 = latency
	} else {
		h.latencyP50 = time.Duration(float64(h.latencyP50)*(1-healthEWMAAlpha) + float64(latency)*healthEWMAAlpha)
	}
	if latency > h.latencyP99 {
		h.latencyP99 = latency
	} else {
		h.latencyP99 = time.Duration(float64(h.latencyP99)*(1-healthEWMAAlpha) + float64(latency)*healthEWMAAlpha)
	}

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	h.successRate = h.successRate*(1-healthEWMAAlpha) + outcome*healthEWMAAlpha

	if success && h.status == StatusDegraded {
		h.status = StatusActive
	}
}

func (m *Model) LatencyP50() time.Duration {
	h := m.ensureHealth()
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latencyP50
}

func (m *Model) LatencyP99() time.Duration {
	h := m.ensureHealth()
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latencyP99
}

func (m *Model) SuccessRate() float64 {
	h := m.ensureHealth()
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.successRate
}

// CostPerCall approximates cost_per_input_token + alpha*cost_per_output_token.
func (m *Model) CostScore(alpha float64) float64 {
	return m.Cost.InputPerToken + alpha*m.Cost.OutputPerToken
}

// Catalog manages a collection of models, looked up by ID or alias.
type Catalog struct {
	mu      sync.RWMutex
	models  map[string]*Model
	aliases map[string]string
}

// NewCatalog returns an empty catalog. Callers load it from configuration
// (FromDescriptor) or seed it with known-good defaults (SeedDefaults).
func NewCatalog() *Catalog {
	return &Catalog{
		models:  make(map[string]*Model),
		aliases: make(map[string]string),
	}
}

// Register adds or replaces a model in the catalog.
func (c *Catalog) Register(model *Model) {
	if model.h == nil {
		model.h = newHealth()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[model.ID] = model
	for _, alias := range model.Aliases {
		c.aliases[strings.ToLower(alias)] = model.ID
	}
}

// Get retrieves a model by ID or alias.
func (c *Catalog) Get(id string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if model, ok := c.models[id]; ok {
		return model, true
	}
	if realID, ok := c.aliases[strings.ToLower(id)]; ok {
		return c.models[realID], true
	}
	return nil, false
}

// List returns all models matching filter, sorted by provider/tier/name.
func (c *Catalog) List(filter *Filter) []*Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*Model
	for _, model := range c.models {
		if filter == nil || filter.Matches(model) {
			result = append(result, model)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Provider != result[j].Provider {
			return result[i].Provider < result[j].Provider
		}
		if result[i].Tier != result[j].Tier {
			return tierRank(result[i].Tier) < tierRank(result[j].Tier)
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func (c *Catalog) ListByProvider(provider Provider) []*Model {
	return c.List(&Filter{Providers: []Provider{provider}})
}

func (c *Catalog) ListByCapability(cap Capability) []*Model {
	return c.List(&Filter{RequiredCapabilities: []Capability{cap}})
}

// Filter narrows a catalog List/query.
type Filter struct {
	Providers            []Provider
	Tiers                []Tier
	RequiredCapabilities []Capability
	MinContextWindow     int
	IncludeDeprecated    bool
	// ExcludeUnavailable drops models whose Status is StatusUnavailable.
	ExcludeUnavailable bool
}

// Matches reports whether m satisfies f.
func (f *Filter) Matches(m *Model) bool {
	if f == nil {
		return true
	}
	if len(f.Providers) > 0 {
		found := false
		for _, p := range f.Providers {
			if p == m.Provider {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Tiers) > 0 {
		found := false
		for _, t := range f.Tiers {
			if t == m.Tier {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, cap := range f.RequiredCapabilities {
		if !m.HasCapability(cap) {
			return false
		}
	}
	if f.MinContextWindow > 0 && m.ContextWindow < f.MinContextWindow {
		return false
	}
	if !f.IncludeDeprecated && m.Deprecated {
		return false
	}
	if f.ExcludeUnavailable && m.Status() == StatusUnavailable {
		return false
	}
	return true
}

func tierRank(t Tier) int {
	switch t {
	case TierFlagship:
		return 0
	case TierStandard:
		return 1
	case TierFast:
		return 2
	case TierMini:
		return 3
	default:
		return 4
	}
}

// DescriptorConfig is the minimal shape the catalog needs out of
// configuration; internal/config.ModelDescriptorConfig satisfies it by
// field name, kept separate here so this package doesn't import config.
type DescriptorConfig struct {
	ID              string
	Provider        string
	Tier            string
	ContextWindow   int
	MaxOutputTokens int
	Capabilities    []string
	InputPrice      float64 // per 1k tokens
	OutputPrice     float64 // per 1k tokens
	RPM             int
	TPM             int
	RPD             int
	Priority        int
}

// FromDescriptor builds a Model from a config-loaded descriptor.
func FromDescriptor(d DescriptorConfig) *Model {
	caps := make([]Capability, 0, len(d.Capabilities))
	for _, c := range d.Capabilities {
		caps = append(caps, Capability(c))
	}
	return &Model{
		ID:              d.ID,
		Name:            d.ID,
		Provider:        Provider(d.Provider),
		Tier:            Tier(d.Tier),
		ContextWindow:   d.ContextWindow,
		MaxOutputTokens: d.MaxOutputTokens,
		Capabilities:    caps,
		RateLimits:      RateLimits{RPM: d.RPM, TPM: d.TPM, RPD: d.RPD},
		Cost:            Cost{InputPerToken: d.InputPrice / 1000, OutputPerToken: d.OutputPrice / 1000},
		Priority:        d.Priority,
		h:               newHealth(),
	}
}

// LoadFromDescriptors replaces the catalog's registered models with ones
// built from cfg, in order. Use at startup and on config hot-reload.
func (c *Catalog) LoadFromDescriptors(descriptors []DescriptorConfig) {
	for _, d := range descriptors {
		c.Register(FromDescriptor(d))
	}
}

func (c *Catalog) registerBuiltinModels() {
	c.Register(&Model{
		ID: "claude-opus-4", Name: "Claude Opus 4", Provider: ProviderAnthropic, Tier: TierFlagship,
		ContextWindow: 200000, MaxOutputTokens: 32000,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapJSON, CapCode, CapLongContext, CapCaching, CapPDFInput},
		Aliases:      []string{"claude-opus-4-5-20251101", "opus"},
		Cost:         Cost{InputPerToken: 15.0 / 1e6, OutputPerToken: 75.0 / 1e6},
		RateLimits:   RateLimits{RPM: 50, TPM: 400000, RPD: 10000},
		Priority:     10,
	})
	c.Register(&Model{
		ID: "claude-3-5-sonnet-latest", Name: "Claude 3.5 Sonnet", Provider: ProviderAnthropic, Tier: TierStandard,
		ContextWindow: 200000, MaxOutputTokens: 8192,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapJSON, CapCode, CapLongContext, CapCaching, CapPDFInput},
		Aliases:      []string{"claude-3-5-sonnet", "sonnet"},
		Cost:         Cost{InputPerToken: 3.0 / 1e6, OutputPerToken: 15.0 / 1e6},
		RateLimits:   RateLimits{RPM: 100, TPM: 800000, RPD: 50000},
		Priority:     20,
	})
	c.Register(&Model{
		ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderOpenAI, Tier: TierStandard,
		ContextWindow: 128000, MaxOutputTokens: 16384,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapJSON, CapCode, CapLongContext, CapAudio},
		Cost:         Cost{InputPerToken: 2.5 / 1e6, OutputPerToken: 10.0 / 1e6},
		RateLimits:   RateLimits{RPM: 100, TPM: 800000, RPD: 50000},
		Priority:     20,
	})
	c.Register(&Model{
		ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: ProviderOpenAI, Tier: TierFast,
		ContextWindow: 128000, MaxOutputTokens: 16384,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapJSON, CapCode, CapLongContext},
		Cost:         Cost{InputPerToken: 0.15 / 1e6, OutputPerToken: 0.6 / 1e6},
		RateLimits:   RateLimits{RPM: 200, TPM: 1500000, RPD: 100000},
		Priority:     30,
	})
	c.Register(&Model{
		ID: "anthropic.claude-3-sonnet-20240229-v1:0", Name: "Claude 3 Sonnet (Bedrock)", Provider: ProviderBedrock, Tier: TierStandard,
		ContextWindow: 200000, MaxOutputTokens: 4096,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapLongContext},
		Cost:         Cost{InputPerToken: 3.0 / 1e6, OutputPerToken: 15.0 / 1e6},
		RateLimits:   RateLimits{RPM: 60, TPM: 400000, RPD: 20000},
		Priority:     25,
	})
}

// DefaultCatalog is a process-wide catalog seeded with the built-in
// model set; the composition root replaces it with a config-loaded
// catalog when one is available.
var DefaultCatalog = func() *Catalog {
	c := NewCatalog()
	c.registerBuiltinModels()
	return c
}()

func Get(id string) (*Model, bool)              { return DefaultCatalog.Get(id) }
func List(filter *Filter) []*Model               { return DefaultCatalog.List(filter) }
func ListByProvider(provider Provider) []*Model   { return DefaultCatalog.ListByProvider(provider) }
func ListByCapability(cap Capability) []*Model    { return DefaultCatalog.ListByCapability(cap) }
