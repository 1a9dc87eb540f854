// Package embedding implements C1, the Embedding Provider Gateway: a single
// Provider interface in front of OpenAI, Bedrock Titan, and Ollama backends,
// so the rest of the pipeline never imports a provider SDK directly.
package embedding

import "context"

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one round trip.
	// The returned slice preserves input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider name ("openai", "bedrock", "ollama").
	Name() string

	// ModelName returns the configured embedding model.
	ModelName() string

	// Dimension returns the embedding dimension this provider produces.
	Dimension() int

	// MaxBatchSize returns the maximum number of texts per EmbedBatch call.
	MaxBatchSize() int
}
