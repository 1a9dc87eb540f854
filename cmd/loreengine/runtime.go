package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ninedomain/loreengine/internal/config"
	"github.com/ninedomain/loreengine/internal/embedding"
	embeddingbedrock "github.com/ninedomain/loreengine/internal/embedding/bedrock"
	embeddingollama "github.com/ninedomain/loreengine/internal/embedding/ollama"
	embeddingopenai "github.com/ninedomain/loreengine/internal/embedding/openai"
	"github.com/ninedomain/loreengine/internal/models"
	"github.com/ninedomain/loreengine/internal/modelmanager"
	"github.com/ninedomain/loreengine/internal/observability"
	"github.com/ninedomain/loreengine/internal/provider"
	providerbedrock "github.com/ninedomain/loreengine/internal/provider/bedrock"
	provideranthropic "github.com/ninedomain/loreengine/internal/provider/anthropic"
	provideropenai "github.com/ninedomain/loreengine/internal/provider/openai"
	"github.com/ninedomain/loreengine/internal/ratelimit"
	"github.com/ninedomain/loreengine/internal/router"
	"github.com/ninedomain/loreengine/internal/scheduler"
	"github.com/ninedomain/loreengine/internal/semanticcache"
	"github.com/ninedomain/loreengine/internal/semanticcache/pgvector"
	"github.com/ninedomain/loreengine/internal/vectorstore"
	vectorstorepgvector "github.com/ninedomain/loreengine/internal/vectorstore/pgvector"
	"github.com/ninedomain/loreengine/internal/vectorstore/sqlitevec"
)

// Runtime is the composition of every component the CLI's subcommands
// drive: C1 through C6, wired from one loaded Config. Built once per
// process invocation in buildRuntime.
type Runtime struct {
	Config    *config.Config
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Catalog   *models.Catalog
	Store     vectorstore.Store
	Cache     *semanticcache.Cache
	Limiter   *ratelimit.ModelLimiter
	Router    *router.Router
	Manager   *modelmanager.Manager
	Scheduler *scheduler.Scheduler
	Watcher   *config.Watcher
}

// buildRuntime wires one Runtime from a loaded configuration. It opens the
// vector store connection, constructs whichever embedding and completion
// providers the config names, and assembles C4 through C6 on top of them.
func buildRuntime(ctx context.Context, cfg *config.Config, configPath string, logger *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer) (*Runtime, error) {
	catalog := models.NewCatalog()
	descriptors := make([]models.DescriptorConfig, 0, len(cfg.Models.Catalog))
	for _, d := range cfg.Models.Catalog {
		descriptors = append(descriptors, models.DescriptorConfig{
			ID: d.ID, Provider: d.Provider, Tier: d.Tier,
			ContextWindow: d.ContextWindow, MaxOutputTokens: d.MaxOutputTokens,
			Capabilities: d.Capabilities, InputPrice: d.InputPrice, OutputPrice: d.OutputPrice,
			RPM: d.RPM, TPM: d.TPM, RPD: d.RPD, Priority: d.Priority,
		})
	}
	catalog.LoadFromDescriptors(descriptors)

	if cfg.Models.Bedrock.Enabled {
		discovery := models.NewBedrockDiscovery(models.BedrockDiscoveryConfig{
			Region:               cfg.Models.Bedrock.Region,
			ProviderFilter:       cfg.Models.Bedrock.ProviderFilter,
			DefaultContextWindow: cfg.Models.Bedrock.DefaultContextWindow,
			DefaultMaxTokens:     cfg.Models.Bedrock.DefaultMaxTokens,
		}, nil)
		if err := discovery.RegisterWithCatalog(ctx, catalog); err != nil {
			logger.Warn(ctx, "bedrock model discovery failed, continuing with static catalog", "error", err)
		}
	}

	embedder, err := buildEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("build embedding provider: %w", err)
	}

	completers, err := buildCompleters(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build completion providers: %w", err)
	}

	store, err := buildStore(ctx, cfg.Database, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("build vector store: %w", err)
	}

	limiter := ratelimit.NewModelLimiter()
	for _, m := range catalog.List(nil) {
		limiter.Register(m.ID,
			ratelimit.ModelLimits{RPM: m.RateLimits.RPM, TPM: m.RateLimits.TPM, RPD: m.RateLimits.RPD},
			ratelimit.ModelCost{InputPerToken: m.Cost.InputPerToken, OutputPerToken: m.Cost.OutputPerToken},
		)
	}

	r := router.New(catalog, completers, router.Config{
		Strategy:          router.Strategy(cfg.Router.Strategy),
		UnhealthyCooldown: cfg.Router.UnhealthyCooldown,
		AdaptiveWeights: router.AdaptiveWeights{
			Latency: cfg.Router.AdaptiveWeights.Latency,
			Success: cfg.Router.AdaptiveWeights.Success,
			Cost:    cfg.Router.AdaptiveWeights.Cost,
			Budget:  cfg.Router.AdaptiveWeights.Budget,
		},
	}).WithAdmitter(limiter).WithBudgetTracker(limiter)

	var cache *semanticcache.Cache
	if cfg.Cache.Enabled {
		cache = semanticcache.New(semanticcache.Options{
			MaxSize:          cfg.Cache.MaxEntries,
			DefaultThreshold: cfg.Cache.SimilarityFloor,
		})
		if db := underlyingDB(store); db != nil {
			cache = cache.WithPersistence(pgvector.New(db))
			if err := cache.Load(ctx); err != nil {
				logger.Warn(ctx, "semantic cache warm-start failed", "error", err)
			}
		}
	}

	manager := modelmanager.New(embedder, r, store, cache, limiter, modelmanager.Config{
		CacheTTL:        cfg.Cache.TTL,
		SimilarityFloor: cfg.Cache.SimilarityFloor,
		MaxRetries:      cfg.Retry.MaxAttempts,
		EmbedTimeout:    cfg.Timeouts.Embed,
		CompleteTimeout: cfg.Timeouts.Complete,
		SearchTimeout:   cfg.Timeouts.Search,
	}, logger, metrics, tracer)

	sched, err := scheduler.New(scheduler.Config{
		Enabled:           cfg.Scheduler.Enabled,
		IndexRebuildCron:  cfg.Scheduler.IndexRebuildCron,
		CacheEvictionCron: cfg.Scheduler.CacheEvictionCron,
	}, store, cache, logger)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	rt := &Runtime{
		Config: cfg, Logger: logger, Metrics: metrics, Catalog: catalog,
		Store: store, Cache: cache, Limiter: limiter, Router: r,
		Manager: manager, Scheduler: sched,
	}

	if cfg.Reload.Watch {
		watcher := config.NewWatcher(configPath, cfg.Reload.Debounce, logger)
		watcher.Subscribe(func(reloaded *config.Config, err error) {
			if err != nil {
				return
			}
			descriptors := make([]models.DescriptorConfig, 0, len(reloaded.Models.Catalog))
			for _, d := range reloaded.Models.Catalog {
				descriptors = append(descriptors, models.DescriptorConfig{
					ID: d.ID, Provider: d.Provider, Tier: d.Tier,
					ContextWindow: d.ContextWindow, MaxOutputTokens: d.MaxOutputTokens,
					Capabilities: d.Capabilities, InputPrice: d.InputPrice, OutputPrice: d.OutputPrice,
					RPM: d.RPM, TPM: d.TPM, RPD: d.RPD, Priority: d.Priority,
				})
			}
			catalog.LoadFromDescriptors(descriptors)
		})
		rt.Watcher = watcher
	}

	return rt, nil
}

func buildEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Provider, error) {
	auth := cfg.Providers[cfg.DefaultProvider]
	switch cfg.DefaultProvider {
	case "openai":
		return embeddingopenai.New(embeddingopenai.Config{APIKey: auth.APIKey, BaseURL: auth.BaseURL})
	case "bedrock":
		return embeddingbedrock.New(ctx, embeddingbedrock.Config{Region: auth.Region})
	case "ollama", "":
		return embeddingollama.New(embeddingollama.Config{BaseURL: auth.BaseURL})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.DefaultProvider)
	}
}

func buildCompleters(ctx context.Context, cfg *config.Config) (map[models.Provider]provider.Completer, error) {
	completers := make(map[models.Provider]provider.Completer)
	if auth, ok := cfg.Embedding.Providers["anthropic"]; ok && auth.APIKey != "" {
		c, err := provideranthropic.New(provideranthropic.Config{APIKey: auth.APIKey, BaseURL: auth.BaseURL})
		if err != nil {
			return nil, err
		}
		completers[models.ProviderAnthropic] = c
	}
	if auth, ok := cfg.Embedding.Providers["openai"]; ok && auth.APIKey != "" {
		c, err := provideropenai.New(provideropenai.Config{APIKey: auth.APIKey, BaseURL: auth.BaseURL})
		if err != nil {
			return nil, err
		}
		completers[models.ProviderOpenAI] = c
	}
	if auth, ok := cfg.Embedding.Providers["bedrock"]; ok {
		c, err := providerbedrock.New(ctx, providerbedrock.Config{
			Region: auth.Region, AccessKeyID: auth.APIKey,
		})
		if err != nil {
			return nil, err
		}
		completers[models.ProviderBedrock] = c
	}
	if len(completers) == 0 {
		return nil, fmt.Errorf("no completion providers configured under embedding.providers")
	}
	return completers, nil
}

func buildStore(ctx context.Context, cfg config.DatabaseConfig, dimension int) (vectorstore.Store, error) {
	if cfg.URL == "" {
		return sqlitevec.New(sqlitevec.Config{Dimension: dimension})
	}
	return vectorstorepgvector.New(ctx, vectorstorepgvector.Config{
		DSN:           cfg.URL,
		Dimension:     dimension,
		RunMigrations: cfg.RunMigrations,
	})
}

// underlyingDB exposes the *sql.DB a pgvector-backed store holds, so the
// semantic cache's persistence backend can share the same connection pool.
// sqlitevec-backed deployments (dev/test) have no shared schema for the
// cache table, so they fall back to an in-memory-only cache.
func underlyingDB(store vectorstore.Store) *sql.DB {
	if holder, ok := store.(interface{ DB() *sql.DB }); ok {
		return holder.DB()
	}
	return nil
}
