package backend

import (
	"context"

	"github.com/finsight/reportminer/pkg/anthropic"
)

const anthropicMaxTokens = 4096

// AnthropicBackend runs extraction prompts against the Anthropic API.
type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates the Claude backend.
func NewAnthropic(client anthropic.Client, model string) *AnthropicBackend {
	return &AnthropicBackend{client: client, model: model}
}

func (b *AnthropicBackend) ID() string { return "claude" }

func (b *AnthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	temp := 0.0
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       b.model,
		MaxTokens:   anthropicMaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
