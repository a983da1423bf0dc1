// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trends fetches relative search-interest series from Google Trends.
// The service is unofficial and rate-limits aggressively, so Fetch never
// returns an error: every failure is logged and reported as an empty series.
package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/validation-engine/internal/failure"
	"github.com/pdiddy/validation-engine/internal/httputil"
	"github.com/pdiddy/validation-engine/internal/metrics"
	"github.com/pdiddy/validation-engine/pkg/types"
)

// Google Trends endpoints. Package-level vars for test substitution.
var (
	homeURL      = "https://trends.google.com/?geo=US"
	exploreURL   = "https://trends.google.com/trends/api/explore"
	multilineURL = "https://trends.google.com/trends/api/widgetdata/multiline"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultTimeframe = "today 12-m"
	defaultLanguage  = "en-US"
	defaultTZOffset  = 360
	defaultUserAgent = "validation-engine/0.1"

	timeseriesWidget = "TIMESERIES"
	maxBodyBytes     = 4 << 20
)

// Fetcher retrieves trend series. Safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	cfg     types.TrendsConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher returns a Fetcher with defaults applied to zero-valued settings.
// The HTTP client carries a cookie jar; Trends rejects API calls without the
// session cookie issued by its home page.
func NewFetcher(cfg types.TrendsConfig, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = defaultTimeframe
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.TZOffset == 0 {
		cfg.TZOffset = defaultTZOffset
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	jar, _ := cookiejar.New(nil)
	return &Fetcher{
		client:  &http.Client{Jar: jar},
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
	}
}

// Fetch returns the interest series for topic over the configured timeframe.
// The result is empty when the service fails, rate-limits, or has no data.
func (f *Fetcher) Fetch(ctx context.Context, topic string) types.TrendSeries {
	series := types.TrendSeries{
		Topic:     topic,
		Timeframe: f.cfg.Timeframe,
		Points:    []types.TrendPoint{},
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	points, err := f.fetch(ctx, topic)
	if err == nil && len(points) == 0 {
		err = failure.Empty("trends fetch")
	}
	metrics.RecordExternalCall("trends", metrics.Result(err), time.Since(start))

	if err != nil {
		f.logger.Warn("trend data unavailable",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return series
	}

	series.Points = points
	f.logger.Debug("trend data fetched",
		zap.String("topic", topic),
		zap.Int("points", len(points)),
	)
	return series
}

// exploreResponse is the subset of the explore payload we read.
type exploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

// multilineResponse is the subset of the time-series payload we read.
type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Time    string `json:"time"`
			Value   []int  `json:"value"`
			HasData []bool `json:"hasData"`
		} `json:"timelineData"`
	} `json:"default"`
}

func (f *Fetcher) fetch(ctx context.Context, topic string) ([]types.TrendPoint, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, failure.Upstream("trends rate limit", err)
	}

	// Cookie bootstrap; the response body is irrelevant.
	if _, err := f.get(ctx, homeURL); err != nil {
		return nil, failure.Upstream("trends cookie bootstrap", err)
	}

	token, widgetReq, err := f.explore(ctx, topic)
	if err != nil {
		return nil, err
	}

	return f.multiline(ctx, token, widgetReq)
}

func (f *Fetcher) explore(ctx context.Context, topic string) (string, json.RawMessage, error) {
	req, err := json.Marshal(map[string]any{
		"comparisonItem": []map[string]string{{
			"keyword": topic,
			"time":    f.cfg.Timeframe,
			"geo":     f.cfg.Geo,
		}},
		"category": 0,
		"property": "",
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshaling explore request: %w", err)
	}

	params := f.baseParams()
	params.Set("req", string(req))
	body, err := f.get(ctx, exploreURL+"?"+params.Encode())
	if err != nil {
		return "", nil, failure.Upstream("trends explore", err)
	}

	var resp exploreResponse
	if err := json.Unmarshal(stripXSSI(body), &resp); err != nil {
		return "", nil, failure.Parse("trends explore", err)
	}
	for _, w := range resp.Widgets {
		if w.ID == timeseriesWidget && w.Token != "" {
			return w.Token, w.Request, nil
		}
	}
	return "", nil, failure.Empty("trends explore")
}

func (f *Fetcher) multiline(ctx context.Context, token string, widgetReq json.RawMessage) ([]types.TrendPoint, error) {
	params := f.baseParams()
	params.Set("req", string(widgetReq))
	params.Set("token", token)
	body, err := f.get(ctx, multilineURL+"?"+params.Encode())
	if err != nil {
		return nil, failure.Upstream("trends widget data", err)
	}

	var resp multilineResponse
	if err := json.Unmarshal(stripXSSI(body), &resp); err != nil {
		return nil, failure.Parse("trends widget data", err)
	}

	points := make([]types.TrendPoint, 0, len(resp.Default.TimelineData))
	for _, d := range resp.Default.TimelineData {
		if len(d.Value) == 0 || (len(d.HasData) > 0 && !d.HasData[0]) {
			continue
		}
		secs, err := strconv.ParseInt(d.Time, 10, 64)
		if err != nil {
			return nil, failure.Parse("trends widget data", fmt.Errorf("timestamp %q: %w", d.Time, err))
		}
		points = append(points, types.TrendPoint{
			Time:  time.Unix(secs, 0).UTC(),
			Value: d.Value[0],
		})
	}
	return points, nil
}

func (f *Fetcher) baseParams() url.Values {
	params := url.Values{}
	params.Set("hl", f.cfg.Language)
	params.Set("tz", strconv.Itoa(f.cfg.TZOffset))
	return params
}

// get issues a GET and returns the body of a 200 response. A 429 is not
// retried: the caller degrades to an empty series instead.
func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.New("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, httputil.ReadErrorBody(resp, 512))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

// stripXSSI drops the anti-JSON-hijacking prefix (")]}'" or ")]}',")
// that precedes every Trends API payload.
func stripXSSI(body []byte) []byte {
	if i := bytes.IndexByte(body, '{'); i >= 0 {
		return body[i:]
	}
	return body
}
