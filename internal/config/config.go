package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for the content pipeline.
type Config struct {
	Version       int                 `yaml:"version"`
	Database      DatabaseConfig      `yaml:"database"`
	Models        ModelsConfig        `yaml:"models"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Cache         CacheConfig         `yaml:"cache"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Router        RouterConfig        `yaml:"router"`
	Timeouts      TimeoutsConfig      `yaml:"timeouts"`
	Retry         RetryConfig         `yaml:"retry"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Reload        ReloadConfig        `yaml:"reload"`
}

// ReloadConfig controls whether the config file is watched for changes and
// re-loaded in the background without a process restart.
type ReloadConfig struct {
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// DatabaseConfig configures the Postgres/pgvector connection shared by C2 and C3.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	RunMigrations   bool          `yaml:"run_migrations"`
}

// ModelsConfig configures the §6 `models` key: the catalog of models this
// deployment is allowed to route to, plus Bedrock discovery.
type ModelsConfig struct {
	// Catalog lists model descriptors beyond the built-in seed set.
	Catalog []ModelDescriptorConfig `yaml:"catalog"`

	// Bedrock configures automatic discovery of Bedrock foundation models.
	Bedrock BedrockConfig `yaml:"bedrock"`
}

// ModelDescriptorConfig is the on-disk representation of a Model Descriptor.
type ModelDescriptorConfig struct {
	ID              string   `yaml:"id"`
	Provider        string   `yaml:"provider"`
	Tier            string   `yaml:"tier"`
	ContextWindow   int      `yaml:"context_window"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	Capabilities    []string `yaml:"capabilities"`
	InputPrice      float64  `yaml:"input_price_per_1k"`
	OutputPrice     float64  `yaml:"output_price_per_1k"`
	RPM             int      `yaml:"rpm"`
	TPM             int      `yaml:"tpm"`
	RPD             int      `yaml:"rpd"`
	Priority        int      `yaml:"priority"`
}

// BedrockConfig configures AWS Bedrock model discovery (§4 supplement).
type BedrockConfig struct {
	Enabled               bool     `yaml:"enabled"`
	Region                string   `yaml:"region"`
	RefreshInterval       string   `yaml:"refresh_interval"`
	ProviderFilter        []string `yaml:"provider_filter"`
	DefaultContextWindow  int      `yaml:"default_context_window"`
	DefaultMaxTokens      int      `yaml:"default_max_tokens"`
}

// EmbeddingConfig configures the C1 Embedding Provider Gateway.
type EmbeddingConfig struct {
	DefaultProvider string                  `yaml:"default_provider"`
	Dimension       int                     `yaml:"dimension"`
	Providers       map[string]ProviderAuth `yaml:"providers"`
	MaxBatchSize    int                     `yaml:"max_batch_size"`
}

// ProviderAuth holds per-provider API credentials and endpoint overrides,
// shared by embedding and completion providers.
type ProviderAuth struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Region  string `yaml:"region"`
}

// CacheConfig configures the C3 Semantic Cache.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TTL             time.Duration `yaml:"ttl"`
	MaxEntries      int           `yaml:"max_entries"`
	SimilarityFloor float64       `yaml:"similarity_floor"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// RateLimitConfig configures the C4 Rate Limiter & Token Accounting component.
type RateLimitConfig struct {
	Enabled     bool                     `yaml:"enabled"`
	DefaultRPM  int                      `yaml:"default_rpm"`
	DefaultTPM  int                      `yaml:"default_tpm"`
	DefaultRPD  int                      `yaml:"default_rpd"`
	PerModel    map[string]ModelLimits   `yaml:"per_model"`
}

// ModelLimits overrides the default RPM/TPM/RPD windows for one model.
type ModelLimits struct {
	RPM int `yaml:"rpm"`
	TPM int `yaml:"tpm"`
	RPD int `yaml:"rpd"`
}

// RouterConfig configures the C5 Load Balancer/Router.
type RouterConfig struct {
	Strategy          string          `yaml:"strategy"`
	UnhealthyCooldown time.Duration   `yaml:"unhealthy_cooldown"`
	Rules             []RoutingRule   `yaml:"rules"`
	Fallback          RoutingTarget   `yaml:"fallback"`
	AdaptiveWeights   AdaptiveWeights `yaml:"adaptive_weights"`
}

// AdaptiveWeights weighs the terms of the `adaptive` strategy's score
// s = w_lat*(1/latency) + w_succ*success_rate + w_cost*(1/cost) + w_budget*remaining_budget_ratio.
type AdaptiveWeights struct {
	Latency float64 `yaml:"latency"`
	Success float64 `yaml:"success"`
	Cost    float64 `yaml:"cost"`
	Budget  float64 `yaml:"budget"`
}

// RoutingRule matches requests to a target candidate, checked in order.
type RoutingRule struct {
	Name   string        `yaml:"name"`
	Match  RoutingMatch  `yaml:"match"`
	Target RoutingTarget `yaml:"target"`
}

// RoutingMatch defines rule matching criteria over request tags/patterns.
type RoutingMatch struct {
	Patterns []string `yaml:"patterns"`
	Tags     []string `yaml:"tags"`
}

// RoutingTarget names a provider/model pair a rule or fallback resolves to.
type RoutingTarget struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// TimeoutsConfig bounds how long each stage of a pipeline call may run.
type TimeoutsConfig struct {
	Embed    time.Duration `yaml:"embed"`
	Search   time.Duration `yaml:"search"`
	Complete time.Duration `yaml:"complete"`
}

// RetryConfig configures the exponential-backoff retry policy used when a
// provider call fails with a retryable error.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// SchedulerConfig configures the cron-driven admin sweeps (index rebuild,
// cache TTL eviction).
type SchedulerConfig struct {
	Enabled            bool   `yaml:"enabled"`
	IndexRebuildCron   string `yaml:"index_rebuild_cron"`
	CacheEvictionCron  string `yaml:"cache_eviction_cron"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig configures tracing.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig controls OpenTelemetry tracing export.
type TracingConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Endpoint       string            `yaml:"endpoint"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	SamplingRate   float64           `yaml:"sampling_rate"`
	Insecure       bool              `yaml:"insecure"`
	Attributes     map[string]string `yaml:"attributes"`
}

// Load reads, merges ($include-resolved), and decodes the config file at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = 1536
	}
	if cfg.Embedding.MaxBatchSize <= 0 {
		cfg.Embedding.MaxBatchSize = 100
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 10000
	}
	if cfg.Cache.SimilarityFloor <= 0 {
		cfg.Cache.SimilarityFloor = 0.95
	}
	if cfg.RateLimit.DefaultRPM <= 0 {
		cfg.RateLimit.DefaultRPM = 60
	}
	if cfg.RateLimit.DefaultTPM <= 0 {
		cfg.RateLimit.DefaultTPM = 100000
	}
	if cfg.RateLimit.DefaultRPD <= 0 {
		cfg.RateLimit.DefaultRPD = 10000
	}
	if cfg.Router.Strategy == "" {
		cfg.Router.Strategy = "round_robin"
	}
	if cfg.Router.UnhealthyCooldown <= 0 {
		cfg.Router.UnhealthyCooldown = 30 * time.Second
	}
	if cfg.Router.AdaptiveWeights == (AdaptiveWeights{}) {
		cfg.Router.AdaptiveWeights = AdaptiveWeights{Latency: 0.4, Success: 0.3, Cost: 0.2, Budget: 0.1}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = 200 * time.Millisecond
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}
	if cfg.Scheduler.IndexRebuildCron == "" {
		cfg.Scheduler.IndexRebuildCron = "0 */6 * * *"
	}
	if cfg.Scheduler.CacheEvictionCron == "" {
		cfg.Scheduler.CacheEvictionCron = "*/15 * * * *"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Reload.Debounce <= 0 {
		cfg.Reload.Debounce = 250 * time.Millisecond
	}
}

