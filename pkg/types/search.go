// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TrendPoint is one sample of relative search interest (0-100).
type TrendPoint struct {
	// Time is the start of the sampled interval.
	Time time.Time `json:"time" yaml:"time"`

	// Value is the relative interest for Topic in the interval.
	Value int `json:"value" yaml:"value"`
}

// TrendSeries is the popularity time series for a topic. A series with no
// points is the "unavailable" result: the trend service is unreliable and its
// absence is a normal outcome.
type TrendSeries struct {
	// Topic is the keyword the series tracks.
	Topic string `json:"topic" yaml:"topic"`

	// Timeframe is the requested window (e.g. "today 12-m").
	Timeframe string `json:"timeframe" yaml:"timeframe"`

	// Points are ordered oldest first.
	Points []TrendPoint `json:"points" yaml:"points"`
}

// Empty reports whether the series carries no data.
func (s TrendSeries) Empty() bool {
	return len(s.Points) == 0
}

// Tracks reports whether the series has data for topic.
func (s TrendSeries) Tracks(topic string) bool {
	return !s.Empty() && s.Topic == topic
}

// Result categories returned by the web search service.
const (
	CategoryOrganic     = "organic_results"
	CategoryDiscussions = "discussions_and_forums"
	CategoryRelated     = "related_questions"
)

// RawResultItem is one search result as the upstream service shaped it.
// Any field may be empty; different categories fill different fields.
type RawResultItem struct {
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Snippet  string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Link     string `json:"link,omitempty" yaml:"link,omitempty"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Question string `json:"question,omitempty" yaml:"question,omitempty"`
}

// ResultGroup holds the items of one result category in upstream order.
type ResultGroup struct {
	Category string          `json:"category" yaml:"category"`
	Items    []RawResultItem `json:"items" yaml:"items"`
}
