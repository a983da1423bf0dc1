// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/internal/failure"
	"github.com/pdiddy/validation-engine/pkg/types"
)

// NewBackend builds the backend selected by cfg.Provider. A missing API key
// returns a KindConfigMissing error so callers can continue unconfigured.
func NewBackend(ctx context.Context, cfg types.GenerationConfig, client *http.Client, logger *zap.Logger) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, failure.ConfigMissing("generation backend", string(cfg.Provider)+" API key")
	}

	switch cfg.Provider {
	case types.ProviderGemini, "":
		return NewGeminiBackend(ctx, cfg.APIKey, cfg.Model, client)
	case types.ProviderClaude:
		return &ClaudeBackend{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Client:    client,
			Logger:    logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q (want gemini or claude)", cfg.Provider)
	}
}
