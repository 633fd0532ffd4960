package textgen

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator generates text with the Gemini API
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator creates a generator for apiKey. It returns nil and no
// error when apiKey is empty, which callers treat as "service unavailable".
func NewGeminiGenerator(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{client: client}, nil
}

// Generate implements Generator
func (g *GeminiGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// NewGeminiAssistant builds an Assistant backed by Gemini, or a fallback-only
// Assistant when apiKey is empty.
func NewGeminiAssistant(ctx context.Context, apiKey string, opts ...Option) (*Assistant, error) {
	gen, err := NewGeminiGenerator(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return NewAssistant(nil, opts...), nil
	}
	return NewAssistant(gen, opts...), nil
}
