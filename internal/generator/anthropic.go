package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// DefaultMaxTokens bounds the size of a generated plan.
const DefaultMaxTokens = 16000

// AnthropicConfig configures the hosted Messages API backend.
type AnthropicConfig struct {
	// APIKey defaults to the ANTHROPIC_API_KEY environment variable.
	APIKey    string
	Model     string
	MaxTokens int64
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

type anthropicBackend struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates a generator backed by the Anthropic Messages API.
func NewAnthropic(cfg AnthropicConfig, prompts *Prompts) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return newClient(&anthropicBackend{
		inner:     anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}, prompts), nil
}

func (b *anthropicBackend) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := b.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic response contained no text")
	}
	return text.String(), nil
}
