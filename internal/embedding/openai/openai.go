// Package openai implements embedding.Provider using OpenAI's embedding
// models (text-embedding-3-small/large).
package openai

import (
	"context"
	"fmt"

	"github.com/ninedomain/loreengine/internal/embedding"
	openai "github.com/sashabaranov/go-openai"
)

// Provider implements embedding.Provider using OpenAI.
type Provider struct {
	client       *openai.Client
	model        string
	maxBatchSize int
}

var _ embedding.Provider = (*Provider)(nil)

// Config configures the OpenAI embedding provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string // text-embedding-3-small or text-embedding-3-large
}

// New creates a new OpenAI embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding/openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		maxBatchSize: 2048,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "openai" }

// ModelName returns the configured embedding model.
func (p *Provider) ModelName() string { return p.model }

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	switch p.model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

// MaxBatchSize returns the maximum number of texts per request.
func (p *Provider) MaxBatchSize() int { return p.maxBatchSize }

// Embed generates an embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, embedding.ProviderUnavailable("openai", fmt.Errorf("no embedding returned"))
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts, preserving order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > p.maxBatchSize {
		return nil, embedding.OversizeInput(fmt.Sprintf("batch of %d texts exceeds max batch size %d", len(texts), p.maxBatchSize))
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, embedding.ProviderUnavailable("openai", err)
	}

	results := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		results[data.Index] = data.Embedding
	}
	return results, nil
}
