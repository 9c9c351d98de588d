package backend

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/finsight/reportminer/pkg/openaichat"
)

// OpenAICompatBackend runs extraction prompts against any OpenAI-compatible
// chat endpoint (DashScope/Qwen, DeepSeek, Spark, ...). Several instances
// with distinct ids may be configured at once.
type OpenAICompatBackend struct {
	id     string
	client openaichat.Client
	model  string
}

// NewOpenAICompat creates a backend over an OpenAI-compatible endpoint.
func NewOpenAICompat(id string, client openaichat.Client, model string) *OpenAICompatBackend {
	return &OpenAICompatBackend{id: id, client: client, model: model}
}

func (b *OpenAICompatBackend) ID() string { return b.id }

func (b *OpenAICompatBackend) Complete(ctx context.Context, prompt string) (string, error) {
	temp := 0.0
	resp, err := b.client.ChatCompletion(ctx, openaichat.ChatCompletionRequest{
		Model:       b.model,
		Messages:    []openaichat.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", eris.Errorf("%s: no choices in response", b.id)
	}
	return resp.Choices[0].Message.Content, nil
}
