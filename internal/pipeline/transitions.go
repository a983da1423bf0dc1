// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/internal/failure"
	"github.com/pdiddy/validation-engine/pkg/types"
)

// Failure operation names. Describe keys on opMine to downgrade an empty
// mining result to a warning.
const (
	opAnalyze = "analyze market"
	opExplore = "explore category"
	opMine    = "mine"
	opBuild   = "build"
)

// Analyze expands market into level-1 categories (Input -> Level1).
// Re-running it in Input overwrites the previous candidates.
func (c *Controller) Analyze(ctx context.Context, rec types.ResearchRecord, market string) (types.ResearchRecord, error) {
	if err := c.require(ActionAnalyze, rec); err != nil {
		return rec, err
	}
	market = strings.TrimSpace(market)
	if market == "" {
		return rec, ErrEmptyMarket
	}
	if !c.generatorReady() {
		return rec, failure.ConfigMissing(opAnalyze, "generation API key")
	}

	prompt, err := render(categoriesTmpl, struct{ Market string }{market})
	if err != nil {
		return rec, fmt.Errorf("rendering categories prompt: %w", err)
	}

	fmt.Fprintf(c.progress, "Analyzing market structure for %q...\n", market)
	categories, err := c.gen.GenerateList(ctx, prompt)
	if err != nil {
		return rec, fmt.Errorf("expanding market %q: %w", market, err)
	}
	if len(categories) == 0 {
		return rec, failure.Empty(opAnalyze)
	}

	next := rec.Clone()
	next.CoreMarket = market
	next.Categories = categories
	next.Phase = types.PhaseLevel1
	fmt.Fprintf(c.progress, "Found %d categories\n", len(categories))
	return next, nil
}

// Explore expands one of the current categories into sub-niches
// (Level1 -> Level2).
func (c *Controller) Explore(ctx context.Context, rec types.ResearchRecord, category string) (types.ResearchRecord, error) {
	if err := c.require(ActionExplore, rec); err != nil {
		return rec, err
	}
	if !slices.Contains(rec.Categories, category) {
		return rec, fmt.Errorf("category %q: %w", category, ErrNotACandidate)
	}
	if !c.generatorReady() {
		return rec, failure.ConfigMissing(opExplore, "generation API key")
	}

	prompt, err := render(subNichesTmpl, struct{ Market, Category string }{rec.CoreMarket, category})
	if err != nil {
		return rec, fmt.Errorf("rendering sub-niche prompt: %w", err)
	}

	fmt.Fprintf(c.progress, "Drilling down into %q...\n", category)
	niches, err := c.gen.GenerateList(ctx, prompt)
	if err != nil {
		return rec, fmt.Errorf("exploring category %q: %w", category, err)
	}
	if len(niches) == 0 {
		return rec, failure.Empty(opExplore)
	}

	next := rec.Clone()
	next.SelectedCategory = category
	next.SubNiches = niches
	next.Phase = types.PhaseLevel2
	fmt.Fprintf(c.progress, "Found %d sub-niches\n", len(niches))
	return next, nil
}

// Lock fixes one of the current sub-niches as the research subject
// (Level2 -> Locked). No external call.
func (c *Controller) Lock(_ context.Context, rec types.ResearchRecord, niche string) (types.ResearchRecord, error) {
	if err := c.require(ActionLock, rec); err != nil {
		return rec, err
	}
	if !slices.Contains(rec.SubNiches, niche) {
		return rec, fmt.Errorf("niche %q: %w", niche, ErrNotACandidate)
	}

	next := rec.Clone()
	next.SelectedNiche = niche
	next.Phase = types.PhaseLocked
	fmt.Fprintf(c.progress, "Final selection: %s\n", niche)
	return next, nil
}

// Back steps Level2 -> Level1 (dropping the selected category and its
// sub-niches) or Level1 -> Input (dropping the categories).
func (c *Controller) Back(_ context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	if err := c.require(ActionBack, rec); err != nil {
		return rec, err
	}

	next := rec.Clone()
	switch rec.Phase {
	case types.PhaseLevel2:
		next.SelectedCategory = ""
		next.SubNiches = []string{}
		next.Phase = types.PhaseLevel1
	case types.PhaseLevel1:
		next.Categories = []string{}
		next.Phase = types.PhaseInput
	}
	return next, nil
}

// CheckTrends fetches the popularity series for the locked niche. With data
// the record moves to TrendCheck and waits for Proceed; without data it
// moves straight to Mining. It never fails on the fetch itself.
func (c *Controller) CheckTrends(ctx context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	if err := c.require(ActionCheckTrends, rec); err != nil {
		return rec, err
	}
	niche := rec.Niche()

	fmt.Fprintf(c.progress, "Fetching trends for %q...\n", niche)
	var series types.TrendSeries
	if c.trends != nil {
		series = c.trends.Fetch(ctx, niche)
	}

	next := rec.Clone()
	if series.Tracks(niche) {
		next.TrendSeries = &series
		next.Phase = types.PhaseTrendCheck
		fmt.Fprintf(c.progress, "Trend data: %d points over %s\n", len(series.Points), series.Timeframe)
		return next, nil
	}

	c.logger.Info("trend signal unavailable, skipping to mining", zap.String("niche", niche))
	next.TrendSeries = nil
	next.Phase = types.PhaseMining
	fmt.Fprintln(c.progress, "warning: trend data unavailable (rate limited or no data); skipping to mining")
	return next, nil
}

// Proceed accepts the trend signal (TrendCheck -> Mining).
func (c *Controller) Proceed(_ context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	if err := c.require(ActionProceed, rec); err != nil {
		return rec, err
	}
	next := rec.Clone()
	next.Phase = types.PhaseMining
	return next, nil
}

// Mine searches for complaint text about the niche and stores the flattened
// snippets. The phase stays Mining; Build moves on. A search failure rejects
// the action and keeps the previous snippets. Zero snippets also rejects it,
// but clears the snippets so Build cannot run on an earlier result.
func (c *Controller) Mine(ctx context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	if err := c.require(ActionMine, rec); err != nil {
		return rec, err
	}
	if !c.searcherReady() {
		return rec, failure.ConfigMissing(opMine, "search API key")
	}

	query := BuildMiningQuery(rec.Niche(), c.cfg.Mining)
	fmt.Fprintf(c.progress, "Searching: %s\n", query)

	groups, err := c.search.Search(ctx, query, c.cfg.ResultCount)
	if err != nil {
		return rec, fmt.Errorf("mining %q: %w", rec.Niche(), err)
	}

	snippets := FlattenSnippets(groups, c.cfg.Mining.Categories)
	if len(snippets) == 0 {
		cleared := rec.Clone()
		cleared.Snippets = []string{}
		return cleared, failure.Empty(opMine)
	}

	next := rec.Clone()
	next.Snippets = snippets
	fmt.Fprintf(c.progress, "Found %d insights\n", len(snippets))
	return next, nil
}

// StartOver discards a completed record (Complete -> Input).
func (c *Controller) StartOver(_ context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	if err := c.require(ActionStartOver, rec); err != nil {
		return rec, err
	}
	return types.NewRecord(), nil
}

// Reset discards the record from any phase. It is the only cancellation
// primitive; in-flight results are dropped by the session layer.
func (c *Controller) Reset(_ context.Context, _ types.ResearchRecord) (types.ResearchRecord, error) {
	return types.NewRecord(), nil
}
