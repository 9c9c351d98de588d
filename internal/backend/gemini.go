package backend

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// GeminiBackend runs extraction prompts against the Gemini API.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGemini creates the Gemini backend.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) ID() string { return "gemini" }

func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	m := b.client.GenerativeModel(b.model)
	m.SetTemperature(0)
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}
	return textFromResponse(resp)
}

// Close releases the underlying API client.
func (b *GeminiBackend) Close() error {
	return b.client.Close()
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", eris.New("gemini: empty response")
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", eris.New("gemini: no text parts in response")
	}
	return out, nil
}
