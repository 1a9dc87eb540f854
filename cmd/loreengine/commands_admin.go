package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ninedomain/loreengine/internal/config"
	"github.com/ninedomain/loreengine/internal/observability"
	"github.com/ninedomain/loreengine/internal/vectorstore"
)

func quietRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	logger := observability.NewLogger(observability.LogConfig{Level: "warn", Format: "json"})
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	metrics := observability.NewMetrics()
	tracer, _ := observability.NewTracer(observability.TraceConfig{ServiceName: "loreengine-cli"})
	return buildRuntime(ctx, cfg, configPath, logger, metrics, tracer)
}

func buildReindexCmd(configPath *string) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild C2's similarity index for one or all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := quietRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			tables := []string{table}
			if table == "" {
				tables = []string{
					vectorstore.TableContentEmbeddings,
					vectorstore.TableLawChainEmbeddings,
					vectorstore.TableCharacterSemanticProfiles,
				}
			}
			out := cmd.OutOrStdout()
			for _, t := range tables {
				start := time.Now()
				if err := rt.Store.RebuildIndex(cmd.Context(), t); err != nil {
					return fmt.Errorf("rebuild %s: %w", t, err)
				}
				fmt.Fprintf(out, "rebuilt %s in %s\n", t, time.Since(start))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table to rebuild (default: all tables)")
	return cmd
}

func buildCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the C3 semantic cache",
	}
	cmd.AddCommand(buildCacheSweepCmd(configPath))
	return cmd
}

func buildCacheSweepCmd(configPath *string) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := quietRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			if rt.Cache == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "cache is disabled, nothing to sweep")
				return nil
			}
			removed := rt.Cache.Sweep(cmd.Context(), time.Now().UTC(), batchSize)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 1000, "maximum rows to delete in one pass")
	return cmd
}

func buildCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the C5 model catalog",
	}
	cmd.AddCommand(buildCatalogListCmd(configPath))
	return cmd
}

func buildCatalogListCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every registered model and its current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := quietRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range rt.Catalog.List(nil) {
				fmt.Fprintf(out, "%-30s provider=%-10s tier=%-8s status=%-12s priority=%d\n",
					m.ID, m.Provider, m.Tier, m.Status(), m.Priority)
			}
			return nil
		},
	}
	return cmd
}

func buildEmbedCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed [text]",
		Short: "Embed one piece of text through C1 and print the vector's dimension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := quietRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			result, err := rt.Manager.Embed(cmd.Context(), []string{args[0]}, "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model=%s dimension=%d latency_ms=%d\n",
				result.ModelUsed, len(result.Vectors[0]), result.LatencyMS)
			return nil
		},
	}
	return cmd
}

func buildSearchCmd(configPath *string) *cobra.Command {
	var k int
	var threshold float64
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Embed a query through C1 and run a C2 similarity search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := quietRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			result, err := rt.Manager.Search(cmd.Context(), args[0], vectorstore.SearchOptions{K: k, Threshold: threshold})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, match := range result.Matches {
				fmt.Fprintf(out, "%-36s score=%.4f\n", match.Record.RecordID, match.Score)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 10, "number of results to return")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.7, "minimum similarity score")
	return cmd
}
