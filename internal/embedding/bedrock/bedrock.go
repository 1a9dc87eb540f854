// Package bedrock implements embedding.Provider against AWS Bedrock's
// Titan embedding models, invoked via bedrockruntime.InvokeModel.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ninedomain/loreengine/internal/embedding"
)

// Config configures the Bedrock embedding provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Model           string // default: amazon.titan-embed-text-v2:0
}

// Provider implements embedding.Provider using AWS Bedrock Titan embeddings.
type Provider struct {
	client *bedrockruntime.Client
	model  string
	region string
}

var _ embedding.Provider = (*Provider)(nil)

// New creates a new Bedrock embedding provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Model == "" {
		cfg.Model = "amazon.titan-embed-text-v2:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("embedding/bedrock: load AWS config: %w", err)
	}

	return &Provider{
		client: bedrockruntime.NewFromConfig(awsCfg),
		model:  cfg.Model,
		region: cfg.Region,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "bedrock" }

// ModelName returns the configured Titan embedding model.
func (p *Provider) ModelName() string { return p.model }

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	switch p.model {
	case "amazon.titan-embed-text-v1":
		return 1536
	case "amazon.titan-embed-text-v2:0":
		return 1024
	default:
		return 1024
	}
}

// MaxBatchSize returns the maximum texts per EmbedBatch call. Titan's
// InvokeModel API embeds one input per call; batches are issued serially.
func (p *Provider) MaxBatchSize() int { return 25 }

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed generates an embedding for a single text via InvokeModel.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("embedding/bedrock: marshal request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, embedding.ProviderUnavailable("bedrock", err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("embedding/bedrock: decode response: %w", err)
	}
	return resp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts, one InvokeModel call
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
			return nil, fmt.Errorf("embedding/bedrock: embed text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
