// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mining runs web searches through SerpApi and returns the result
// categories the pipeline mines for complaint text. The client only does
// transport and decoding; flattening groups into snippets is the caller's job.
package mining

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/validation-engine/internal/failure"
	"github.com/pdiddy/validation-engine/internal/httputil"
	"github.com/pdiddy/validation-engine/internal/metrics"
	"github.com/pdiddy/validation-engine/pkg/types"
)

// searchURL is the SerpApi endpoint. Package-level var for test substitution.
var searchURL = "https://serpapi.com/search.json"

const (
	defaultTimeout    = 30 * time.Second
	defaultEngine     = "google"
	defaultMaxRetries = 5
	defaultUserAgent  = "validation-engine/0.1"

	// noResultsPrefix starts the error SerpApi returns with HTTP 200 when
	// Google has nothing for the query.
	noResultsPrefix = "Google hasn't returned any results"
)

// Client searches SerpApi. Safe for concurrent use.
type Client struct {
	apiKey     string
	engine     string
	userAgent  string
	timeout    time.Duration
	maxRetries int
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient returns a Client with defaults applied to zero-valued settings.
func NewClient(cfg types.SearchConfig, logger *zap.Logger) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		engine:     cfg.Engine,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     logger,
	}
	if c.engine == "" {
		c.engine = defaultEngine
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Configured reports whether a search credential is available.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Search runs query and returns every result section in the order the
// response lists them. A response with no sections is not an error; the
// caller decides what an empty result means.
func (c *Client) Search(ctx context.Context, query string, resultCount int) ([]types.ResultGroup, error) {
	if !c.Configured() {
		return nil, failure.ConfigMissing("search", "search API key")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	groups, err := c.search(ctx, query, resultCount)
	elapsed := time.Since(start)
	metrics.RecordExternalCall("serpapi", metrics.Result(err), elapsed)

	if err != nil {
		c.logger.Warn("search failed",
			zap.String("query", query),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("groups", len(groups)),
		zap.Duration("elapsed", elapsed),
	)
	return groups, nil
}

func (c *Client) search(ctx context.Context, query string, resultCount int) ([]types.ResultGroup, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, failure.Upstream("search rate limit", err)
	}

	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	if resultCount > 0 {
		params.Set("num", strconv.Itoa(resultCount))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries, c.logger)
	if err != nil {
		return nil, failure.Upstream("search", redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure.Upstream("search", fmt.Errorf("SerpApi returned %d: %s",
			resp.StatusCode, httputil.ReadErrorBody(resp, 512)))
	}

	groups, apiErr, err := decodeGroups(resp.Body, c.logger)
	if err != nil {
		return nil, failure.Upstream("search", fmt.Errorf("decoding response: %w", err))
	}
	if apiErr != "" && len(groups) == 0 && !strings.HasPrefix(apiErr, noResultsPrefix) {
		return nil, failure.Upstream("search", fmt.Errorf("SerpApi error: %s", apiErr))
	}
	return groups, nil
}

// decodeGroups walks the top-level object in document order so groups come
// back in the order the service listed them. Every array of result objects is
// a group; objects and scalars (search_metadata, pagination) are not. It
// returns the "error" field separately; SerpApi reports some failures with
// HTTP 200.
func decodeGroups(r io.Reader, logger *zap.Logger) ([]types.ResultGroup, string, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, "", err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, "", fmt.Errorf("expected a JSON object, got %v", tok)
	}

	groups := []types.ResultGroup{}
	var apiErr string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, "", err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, "", fmt.Errorf("field %q: %w", key, err)
		}

		switch {
		case key == "error":
			if err := json.Unmarshal(raw, &apiErr); err != nil {
				apiErr = string(raw)
			}
		case isArray(raw):
			var items []types.RawResultItem
			if err := json.Unmarshal(raw, &items); err != nil {
				logger.Debug("skipping malformed result section",
					zap.String("category", key), zap.Error(err))
				continue
			}
			groups = append(groups, types.ResultGroup{Category: key, Items: items})
		}
	}
	return groups, apiErr, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// redactKey strips the API key from URL errors returned by the transport.
func redactKey(err error, key string) error {
	var uerr *url.Error
	if key == "" || !errors.As(err, &uerr) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED"))
}
