// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/validation-engine/internal/secrets"
	"github.com/pdiddy/validation-engine/pkg/types"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	setDefaults()
	t.Cleanup(func() {
		viper.Reset()
		setDefaults()
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	resetViper(t)

	cfg := loadConfig(secrets.Secrets{})
	assert.Equal(t, types.ProviderGemini, cfg.Generation.Provider)
	assert.Equal(t, 60*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Trends.Timeout)
	assert.Equal(t, "today 12-m", cfg.Trends.Timeframe)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	assert.Equal(t, types.DefaultPipelineConfig(), cfg.Pipeline)
	assert.Equal(t, types.SessionSQLite, cfg.Session.Backend)
	assert.Equal(t, defaultStateDir, cfg.Session.StateDir)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	resetViper(t)
	viper.SetEnvPrefix("VALIDATION_ENGINE_TEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	t.Setenv("VALIDATION_ENGINE_TEST_SEARCH_ENGINE", "bing")
	viper.Set("pipeline.mining.keywords", []string{"annoying"})

	cfg := loadConfig(secrets.Secrets{})
	assert.Equal(t, []string{"annoying"}, cfg.Pipeline.Mining.Keywords)
	assert.Equal(t, "bing", cfg.Search.Engine)
}

func TestApplySecrets(t *testing.T) {
	s := secrets.Secrets{
		secrets.GeminiAPIKey:    "gem",
		secrets.AnthropicAPIKey: "ant",
		secrets.SerpAPIKey:      "serp",
		secrets.RedisPassword:   "pw",
	}

	tests := []struct {
		name    string
		cfg     types.EngineConfig
		wantGen string
		wantSrp string
	}{
		{"gemini from secrets", types.EngineConfig{Generation: types.GenerationConfig{Provider: types.ProviderGemini}}, "gem", "serp"},
		{"claude from secrets", types.EngineConfig{Generation: types.GenerationConfig{Provider: types.ProviderClaude}}, "ant", "serp"},
		{"explicit wins", types.EngineConfig{
			Generation: types.GenerationConfig{APIKey: "cfg-gen"},
			Search:     types.SearchConfig{APIKey: "cfg-serp"},
		}, "cfg-gen", "cfg-serp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			applySecrets(&cfg, s)
			assert.Equal(t, tt.wantGen, cfg.Generation.APIKey)
			assert.Equal(t, tt.wantSrp, cfg.Search.APIKey)
			assert.Equal(t, "pw", cfg.Session.RedisPassword)
		})
	}
}
