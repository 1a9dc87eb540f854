// Package ollama implements embedding.Provider against a local Ollama
// server, for development and tests where no cloud provider is configured.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ninedomain/loreengine/internal/embedding"
)

// Provider implements embedding.Provider using Ollama's HTTP API.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ embedding.Provider = (*Provider)(nil)

// Config configures the Ollama embedding provider.
type Config struct {
	BaseURL string // default: http://localhost:11434
	Model   string // nomic-embed-text, mxbai-embed-large
}

// New creates a new Ollama embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}

	return &Provider{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "ollama" }

// ModelName returns the configured embedding model.
func (p *Provider) ModelName() string { return p.model }

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	switch p.model {
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	case "nomic-embed-text":
		return 768
	default:
		return 768
	}
}

// MaxBatchSize returns the maximum number of texts per EmbedBatch call.
// Ollama's embeddings endpoint handles one prompt per request.
func (p *Provider) MaxBatchSize() int { return 100 }

// Embed generates an embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedding/ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding/ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, embedding.ProviderUnavailable("ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, embedding.ProviderUnavailable("ollama", fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding/ollama: decode response: %w", err)
	}
	return result.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts by issuing one request
// per text, preserving order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > p.MaxBatchSize() {
		return nil, embedding.OversizeInput(fmt.Sprintf("batch of %d texts exceeds max batch size %d", len(texts), p.MaxBatchSize()))
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding/ollama: embed text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}
