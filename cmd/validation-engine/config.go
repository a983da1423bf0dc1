// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/validation-engine/internal/secrets"
	"github.com/pdiddy/validation-engine/pkg/types"
)

const defaultStateDir = ".validation-engine"

// setDefaults registers every config key with its default so env variables
// and config files can override any of them.
func setDefaults() {
	def := types.DefaultPipelineConfig()

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("secrets_dir", ".secrets")

	viper.SetDefault("session.backend", string(types.SessionSQLite))
	viper.SetDefault("session.state_dir", defaultStateDir)
	viper.SetDefault("session.redis_addr", "localhost:6379")
	viper.SetDefault("session.redis_password", "")
	viper.SetDefault("session.ttl", 0)

	viper.SetDefault("generation.provider", string(types.ProviderGemini))
	viper.SetDefault("generation.model", "")
	viper.SetDefault("generation.api_key", "")
	viper.SetDefault("generation.timeout", 60*time.Second)
	viper.SetDefault("generation.max_tokens", 4096)

	viper.SetDefault("trends.timeout", 10*time.Second)
	viper.SetDefault("trends.user_agent", "validation-engine/0.1")
	viper.SetDefault("trends.timeframe", "today 12-m")
	viper.SetDefault("trends.language", "en-US")
	viper.SetDefault("trends.tz_offset", 360)
	viper.SetDefault("trends.geo", "")
	viper.SetDefault("trends.min_interval", 0)

	viper.SetDefault("search.api_key", "")
	viper.SetDefault("search.engine", "google")
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("search.user_agent", "validation-engine/0.1")
	viper.SetDefault("search.max_retries", 5)
	viper.SetDefault("search.requests_per_minute", 0)

	viper.SetDefault("pipeline.mining.domain", def.Mining.Domain)
	viper.SetDefault("pipeline.mining.path_filter", def.Mining.PathFilter)
	viper.SetDefault("pipeline.mining.keywords", def.Mining.Keywords)
	viper.SetDefault("pipeline.mining.categories", def.Mining.Categories)
	viper.SetDefault("pipeline.refine.prefix_runes", def.Refine.PrefixRunes)
	viper.SetDefault("pipeline.refine.query_suffix", def.Refine.QuerySuffix)
	viper.SetDefault("pipeline.refine.max_competitors", def.Refine.MaxCompetitors)
	viper.SetDefault("pipeline.result_count", def.ResultCount)
}

// loadConfig reads the engine configuration from viper and fills credentials
// from s where the config leaves them empty.
func loadConfig(s secrets.Secrets) types.EngineConfig {
	cfg := types.EngineConfig{
		Generation: types.GenerationConfig{
			Provider:  types.GenerationProvider(viper.GetString("generation.provider")),
			Model:     viper.GetString("generation.model"),
			APIKey:    viper.GetString("generation.api_key"),
			Timeout:   viper.GetDuration("generation.timeout"),
			MaxTokens: viper.GetInt("generation.max_tokens"),
		},
		Trends: types.TrendsConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("trends.timeout"),
				UserAgent: viper.GetString("trends.user_agent"),
			},
			Timeframe:   viper.GetString("trends.timeframe"),
			Language:    viper.GetString("trends.language"),
			TZOffset:    viper.GetInt("trends.tz_offset"),
			Geo:         viper.GetString("trends.geo"),
			MinInterval: viper.GetDuration("trends.min_interval"),
		},
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.timeout"),
				UserAgent: viper.GetString("search.user_agent"),
			},
			APIKey:            viper.GetString("search.api_key"),
			Engine:            viper.GetString("search.engine"),
			MaxRetries:        viper.GetInt("search.max_retries"),
			RequestsPerMinute: viper.GetInt("search.requests_per_minute"),
		},
		Pipeline: types.PipelineConfig{
			Mining: types.MiningConfig{
				Domain:     viper.GetString("pipeline.mining.domain"),
				PathFilter: viper.GetString("pipeline.mining.path_filter"),
				Keywords:   viper.GetStringSlice("pipeline.mining.keywords"),
				Categories: viper.GetStringSlice("pipeline.mining.categories"),
			},
			Refine: types.RefineConfig{
				PrefixRunes:    viper.GetInt("pipeline.refine.prefix_runes"),
				QuerySuffix:    viper.GetString("pipeline.refine.query_suffix"),
				MaxCompetitors: viper.GetInt("pipeline.refine.max_competitors"),
			},
			ResultCount: viper.GetInt("pipeline.result_count"),
		},
		Session: types.SessionConfig{
			Backend:       types.SessionBackend(viper.GetString("session.backend")),
			StateDir:      viper.GetString("session.state_dir"),
			RedisAddr:     viper.GetString("session.redis_addr"),
			RedisPassword: viper.GetString("session.redis_password"),
			TTL:           viper.GetDuration("session.ttl"),
		},
	}
	applySecrets(&cfg, s)
	return cfg
}

// applySecrets fills empty credentials from the secrets directory. Explicit
// configuration always wins.
func applySecrets(cfg *types.EngineConfig, s secrets.Secrets) {
	genKey := secrets.GeminiAPIKey
	if cfg.Generation.Provider == types.ProviderClaude {
		genKey = secrets.AnthropicAPIKey
	}
	cfg.Generation.APIKey = s.Or(genKey, cfg.Generation.APIKey)
	cfg.Search.APIKey = s.Or(secrets.SerpAPIKey, cfg.Search.APIKey)
	cfg.Session.RedisPassword = s.Or(secrets.RedisPassword, cfg.Session.RedisPassword)
}
