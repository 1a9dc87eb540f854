// Package bedrock implements provider.Completer using AWS Bedrock's
// Converse API, giving the router a third, independently-hosted backend
// for the same Claude family plus Meta Llama models.
package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/provider"
	"github.com/ninedomain/loreengine/internal/retry"
)

// Config configures the Bedrock completer.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	Retry           retry.Config
}

// Completer implements provider.Completer over Bedrock's Converse API.
type Completer struct {
	client       *bedrockruntime.Client
	defaultModel string
	retry        retry.Config
}

var _ provider.Completer = (*Completer)(nil)

var models = []string{
	"anthropic.claude-3-opus-20240229-v1:0",
	"anthropic.claude-3-sonnet-20240229-v1:0",
	"anthropic.claude-3-haiku-20240307-v1:0",
	"meta.llama3-70b-instruct-v1:0",
}

// New creates a new Bedrock completer.
func New(ctx context.Context, cfg Config) (*Completer, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
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
		return nil, fmt.Errorf("provider/bedrock: load AWS config: %w", err)
	}

	return &Completer{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.Retry,
	}, nil
}

// Name returns "bedrock".
func (c *Completer) Name() string { return "bedrock" }

// Models returns the served Bedrock foundation models.
func (c *Completer) Models() []string { return models }

// Complete sends req via Converse and waits for the full response.
func (c *Completer) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: toConverseMessages(req.Messages),
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		input.InferenceConfig = &brtypes.InferenceConfiguration{MaxTokens: &maxTokens}
	}

	out, result := retry.DoWithValue(ctx, c.retry, func() (*bedrockruntime.ConverseOutput, error) {
		resp, err := c.client.Converse(ctx, input)
		if err != nil {
			if !engineerr.Classify(err).Retryable() {
				return resp, retry.Permanent(engineerr.ProviderUnavailableError("bedrock", err))
			}
			return resp, engineerr.ProviderUnavailableError("bedrock", err)
		}
		return resp, nil
	})
	if result.Err != nil {
		return provider.Response{}, result.Err
	}

	message, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return provider.Response{}, engineerr.ProviderUnavailableError("bedrock", fmt.Errorf("unexpected converse output shape"))
	}

	var text string
	for _, block := range message.Value.Content {
		if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}

	resp := provider.Response{Text: text, Model: model, StopReason: string(out.StopReason)}
	if out.Usage != nil {
		resp.InputTokens = int(aws.ToInt32(out.Usage.InputTokens))
		resp.OutputTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	return resp, nil
}

func toConverseMessages(messages []provider.Message) []brtypes.Message {
	result := make([]brtypes.Message, 0, len(messages))
	for _, m := range messages {
		role := brtypes.ConversationRoleUser
		if m.Role == "assistant" {
			role = brtypes.ConversationRoleAssistant
		}
		result = append(result, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return result
}
