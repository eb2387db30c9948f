/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hint

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-flash-lite-latest"

type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Generator backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return resp.Text(), nil
}
