package search

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Planner produces raw model output for a search prompt. It is an interface
// so tests can stand in a fake without network access.
type Planner interface {
	Plan(ctx context.Context, prompt string) (string, error)
}

// GeminiPlanner asks the Gemini API to translate the prompt, requesting JSON
// output. No retry and no dedicated timeout: any failure here downgrades the
// whole search to the fallback tier.
type GeminiPlanner struct {
	client *genai.Client
	model  string
}

func NewGeminiPlanner(ctx context.Context, apiKey, model string) (*GeminiPlanner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiPlanner{client: client, model: model}, nil
}

// DisabledPlanner always fails, forcing the resolver into its fallback tier.
// Used when no API key is configured.
type DisabledPlanner struct{}

func (DisabledPlanner) Plan(context.Context, string) (string, error) {
	return "", fmt.Errorf("model-assisted search is disabled")
}

func (p *GeminiPlanner) Plan(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx,
		p.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}
