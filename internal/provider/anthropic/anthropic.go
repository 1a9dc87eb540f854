// Package anthropic implements provider.Completer using Anthropic's
// Messages API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/provider"
	"github.com/ninedomain/loreengine/internal/retry"
)

// Config configures the Anthropic completer.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Retry        retry.Config
}

// Completer implements provider.Completer for Anthropic Claude models.
type Completer struct {
	client       anthropic.Client
	defaultModel string
	retry        retry.Config
}

var _ provider.Completer = (*Completer)(nil)

var models = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-5-sonnet-20241022",
	"claude-3-haiku-20240307",
}

// New creates a new Anthropic completer.
func New(cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider/anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Completer{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.Retry,
	}, nil
}

// Name returns "anthropic".
func (c *Completer) Name() string { return "anthropic" }

// Models returns the served Claude models.
func (c *Completer) Models() []string { return models }

// Complete sends req to the Messages API and waits for the full response.
func (c *Completer) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  toAnthropicMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	msg, result := retry.DoWithValue(ctx, c.retry, func() (*anthropic.Message, error) {
		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			if !engineerr.Classify(err).Retryable() {
				return resp, retry.Permanent(engineerr.ProviderUnavailableError("anthropic", err))
			}
			return resp, engineerr.ProviderUnavailableError("anthropic", err)
		}
		return resp, nil
	})
	if result.Err != nil {
		return provider.Response{}, result.Err
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return provider.Response{
		Text:         text,
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		StopReason:   string(msg.StopReason),
	}, nil
}

func toAnthropicMessages(messages []provider.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	return result
}
