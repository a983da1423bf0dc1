// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single call to the upstream service.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "validation-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// GenerationProvider identifies the text-generation backend.
type GenerationProvider string

const (
	ProviderGemini GenerationProvider = "gemini"
	ProviderClaude GenerationProvider = "claude"
)

// GenerationConfig holds settings for the generation gateway.
type GenerationConfig struct {
	// Provider selects the backend: gemini or claude.
	Provider GenerationProvider `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "gemini-3-flash-preview").
	Model string `json:"model" yaml:"model"`

	// APIKey is the credential for the selected provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout bounds a single generation call (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxTokens caps the response length for providers that require it.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// TrendsConfig holds settings for the trend signal fetcher.
type TrendsConfig struct {
	HTTPConfig `yaml:",inline"`

	// Timeframe is the Google Trends window (default "today 12-m").
	Timeframe string `json:"timeframe" yaml:"timeframe"`

	// Language is the host language parameter (default "en-US").
	Language string `json:"language" yaml:"language"`

	// TZOffset is the timezone offset in minutes (default 360).
	TZOffset int `json:"tz_offset" yaml:"tz_offset"`

	// Geo restricts the series to a region ("" = worldwide).
	Geo string `json:"geo" yaml:"geo"`

	// MinInterval is the minimum spacing between requests to the service.
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval"`
}

// SearchConfig holds settings for the insight miner.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the SerpApi credential.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Engine is the SerpApi engine (default "google").
	Engine string `json:"engine" yaml:"engine"`

	// MaxRetries is the number of 429 retries (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestsPerMinute paces calls to the service (0 = unlimited).
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
}

// MiningConfig holds the query constants for complaint mining.
type MiningConfig struct {
	// Domain is the site: filter (default "reddit.com").
	Domain string `json:"domain" yaml:"domain"`

	// PathFilter is the inurl: filter (default "comments").
	PathFilter string `json:"path_filter" yaml:"path_filter"`

	// Keywords are OR-combined complaint terms.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Categories lists the result categories to flatten, in flattening order.
	Categories []string `json:"categories" yaml:"categories"`
}

// RefineConfig holds settings for the competitor refinement stage.
type RefineConfig struct {
	// PrefixRunes is how much of the opportunity text seeds the competitor query (default 100).
	PrefixRunes int `json:"prefix_runes" yaml:"prefix_runes"`

	// QuerySuffix is appended to the prefix (default "competitors alternative").
	QuerySuffix string `json:"query_suffix" yaml:"query_suffix"`

	// MaxCompetitors caps the competitor lines fed to the moat prompt (default 10).
	MaxCompetitors int `json:"max_competitors" yaml:"max_competitors"`
}

// PipelineConfig groups the controller's query and refinement settings.
type PipelineConfig struct {
	Mining MiningConfig `json:"mining" yaml:"mining"`
	Refine RefineConfig `json:"refine" yaml:"refine"`

	// ResultCount is the number of search results requested per query (default 10).
	ResultCount int `json:"result_count" yaml:"result_count"`
}

// DefaultPipelineConfig returns the query constants used when none are configured.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Mining: MiningConfig{
			Domain:     "reddit.com",
			PathFilter: "comments",
			Keywords:   []string{"struggle", "hate", "nightmare"},
			Categories: []string{CategoryOrganic, CategoryDiscussions, CategoryRelated},
		},
		Refine: RefineConfig{
			PrefixRunes:    100,
			QuerySuffix:    "competitors alternative",
			MaxCompetitors: 10,
		},
		ResultCount: 10,
	}
}

// SessionBackend selects where research records are persisted.
type SessionBackend string

const (
	SessionSQLite SessionBackend = "sqlite"
	SessionRedis  SessionBackend = "redis"
)

// SessionConfig holds settings for session persistence.
type SessionConfig struct {
	// Backend is sqlite or redis.
	Backend SessionBackend `json:"backend" yaml:"backend"`

	// StateDir holds the SQLite database and the current-session pointer.
	StateDir string `json:"state_dir" yaml:"state_dir"`

	// RedisAddr is the Redis address for the redis backend.
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`

	// RedisPassword authenticates to Redis.
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`

	// TTL expires idle sessions in Redis (0 = never).
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// ReportFormat selects the report output format.
type ReportFormat string

const (
	ReportPDF      ReportFormat = "pdf"
	ReportMarkdown ReportFormat = "markdown"
)

// EngineConfig groups every stage configuration.
type EngineConfig struct {
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Trends     TrendsConfig     `json:"trends" yaml:"trends"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline"`
	Session    SessionConfig    `json:"session" yaml:"session"`
}
