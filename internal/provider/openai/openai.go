// Package openai implements provider.Completer using OpenAI's chat
// completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/provider"
	"github.com/ninedomain/loreengine/internal/retry"
	openai "github.com/sashabaranov/go-openai"
)

// Config configures the OpenAI completer.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Retry        retry.Config
}

// Completer implements provider.Completer for OpenAI.
type Completer struct {
	client       *openai.Client
	defaultModel string
	retry        retry.Config
}

var _ provider.Completer = (*Completer)(nil)

var models = []string{"gpt-4o", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"}

// New creates a new OpenAI completer.
func New(cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider/openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Completer{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.Retry,
	}, nil
}

// Name returns "openai".
func (c *Completer) Name() string { return "openai" }

// Models returns the served OpenAI chat models.
func (c *Completer) Models() []string { return models }

// Complete sends req to OpenAI's chat completions endpoint, retrying
// retryable failures per the configured backoff policy.
func (c *Completer) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(req),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, result := retry.DoWithValue(ctx, c.retry, func() (openai.ChatCompletionResponse, error) {
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			if !engineerr.Classify(err).Retryable() {
				return resp, retry.Permanent(engineerr.ProviderUnavailableError("openai", err))
			}
			return resp, engineerr.ProviderUnavailableError("openai", err)
		}
		return resp, nil
	})
	if result.Err != nil {
		return provider.Response{}, result.Err
	}

	if len(resp.Choices) == 0 {
		return provider.Response{}, engineerr.ProviderUnavailableError("openai", fmt.Errorf("no choices returned"))
	}

	return provider.Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		StopReason:   string(resp.Choices[0].FinishReason),
	}, nil
}

func toOpenAIMessages(req provider.Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return messages
}
