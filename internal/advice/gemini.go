// Package advice talks to the text generation backend used for eco tips.
package advice

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini generates JSON advice with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
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

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"tip":         {Type: genai.TypeString, Description: "A catchy, actionable eco tip."},
		"impactScore": {Type: genai.TypeNumber, Description: "A score from 1-100 on how green the user is currently."},
		"analysis":    {Type: genai.TypeString, Description: "Short explanation of the score."},
	},
	Required: []string{"tip", "impactScore", "analysis"},
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
