// Package main provides the CLI entry point for loreengine, the
// Nine Domains content pipeline: embeddings, vector search, semantic
// caching, rate-limited multi-provider routing, and the admin sweeps
// that keep C2/C3 tidy.
//
// Start the server:
//
//	loreengine serve --config loreengine.yaml
//
// Inspect or drive the admin sweeps directly:
//
//	loreengine reindex --table content_embeddings
//	loreengine cache sweep
//	loreengine catalog list
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ninedomain/loreengine/internal/observability"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the command tree. Kept separate from main for
// testability.
func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "loreengine",
		Short:        "loreengine - vector-augmented AI content pipeline",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "loreengine.yaml", "path to the configuration file")

	rootCmd.AddCommand(
		buildServeCmd(&configPath),
		buildReindexCmd(&configPath),
		buildCacheCmd(&configPath),
		buildCatalogCmd(&configPath),
		buildEmbedCmd(&configPath),
		buildSearchCmd(&configPath),
	)

	return rootCmd
}

func defaultLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: os.Stderr})
}
