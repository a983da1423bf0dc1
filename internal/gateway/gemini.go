// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-3-flash-preview"

// geminiBaseURL overrides the Gemini API endpoint. Tests point it at an
// httptest server; empty means the SDK default.
var geminiBaseURL = ""

// GeminiBackend generates text with Google's Gemini API.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a Gemini client for the given key and model.
func NewGeminiBackend(ctx context.Context, apiKey, model string, httpClient *http.Client) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if geminiBaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: geminiBaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

// Name returns the backend identifier.
func (b *GeminiBackend) Name() string { return "gemini" }

// Generate sends prompt as a single user turn and returns the text parts of
// the first candidate.
func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini generate (%s): %w", b.model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("Gemini returned no candidates")
	}
	return resp.Text(), nil
}
