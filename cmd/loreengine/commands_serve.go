package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ninedomain/loreengine/internal/config"
	"github.com/ninedomain/loreengine/internal/observability"
)

func buildServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the content pipeline's background components",
		Long: `Loads the configured catalog, embedding and completion providers, vector
store, and semantic cache, then runs the admin scheduler (and, if
reload.watch is set, the config file watcher) until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	logger := defaultLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:  "loreengine",
		Endpoint:     cfg.Observability.Tracing.Endpoint,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		Insecure:     cfg.Observability.Tracing.Insecure,
	})
	defer func() { _ = shutdownTracer(context.Background()) }()

	rt, err := buildRuntime(ctx, cfg, configPath, logger, metrics, tracer)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt.Scheduler.Start(ctx)
	if rt.Watcher != nil {
		if err := rt.Watcher.Start(ctx); err != nil {
			logger.Warn(ctx, "config watcher failed to start, continuing without hot-reload", "error", err)
		}
	}

	logger.Info(ctx, "loreengine started",
		"strategy", cfg.Router.Strategy,
		"cache_enabled", cfg.Cache.Enabled,
		"scheduler_enabled", cfg.Scheduler.Enabled,
	)

	<-ctx.Done()
	logger.Info(ctx, "shutdown signal received, stopping")

	rt.Scheduler.Stop()
	if rt.Watcher != nil {
		_ = rt.Watcher.Close()
	}
	return nil
}
