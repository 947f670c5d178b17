package providers

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic is a chat client backed by the official anthropic-sdk-go.
type Anthropic struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates an Anthropic client. APIKey is required.
func NewAnthropic(apiKey, model string, maxTokens int) (*Anthropic, error) {
	if apiKey == "" {
		return nil, NewProviderError("anthropic", "MISSING_CREDENTIAL", "api key is required", 0, false, nil)
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Name returns the provider name.
func (a *Anthropic) Name() string { return "anthropic" }

// WithModel returns a copy using the given model. Empty keeps the default.
func (a *Anthropic) WithModel(model string) *Anthropic {
	if model == "" {
		return a
	}
	clone := *a
	clone.model = model
	return &clone
}

// Complete performs one system+user exchange through the Messages API.
func (a *Anthropic) Complete(ctx context.Context, system, user string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", NewProviderError(a.Name(), "API_ERROR", "create message failed", 0, true, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
