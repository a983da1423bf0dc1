// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline is the research workflow state machine. Every transition
// takes the current record and returns the next one; a rejected transition
// returns the record it was given together with the error, so callers can
// persist the result unconditionally.
//
// The Controller calls the generation, trend and search adapters
// synchronously and never retries on its own. Every retry is a new user
// action.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/pkg/types"
)

// Sentinel errors for user mistakes. Adapter failures arrive as
// *failure.Error instead.
var (
	ErrWrongPhase    = errors.New("action not allowed in the current phase")
	ErrNotACandidate = errors.New("not one of the current candidates")
	ErrEmptyMarket   = errors.New("core market is empty")
	ErrNoSnippets    = errors.New("no mined snippets to analyze")
	ErrUnknownAction = errors.New("unknown action")
	ErrInvalidRecord = errors.New("research record is inconsistent")
)

// Generator produces list or free-text output for a prompt.
type Generator interface {
	Configured() bool
	GenerateList(ctx context.Context, prompt string) ([]string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// TrendSource fetches a popularity series. An empty series means the signal
// is unavailable; it is never an error.
type TrendSource interface {
	Fetch(ctx context.Context, topic string) types.TrendSeries
}

// Searcher runs a web search and returns grouped raw results.
type Searcher interface {
	Configured() bool
	Search(ctx context.Context, query string, resultCount int) ([]types.ResultGroup, error)
}

// Controller sequences the research phases.
type Controller struct {
	gen      Generator
	trends   TrendSource
	search   Searcher
	cfg      types.PipelineConfig
	logger   *zap.Logger
	progress io.Writer
}

// New returns a Controller. Zero-valued query settings in cfg fall back to
// types.DefaultPipelineConfig. Any adapter may be nil; transitions that need
// a missing adapter fail with KindConfigMissing.
func New(gen Generator, trends TrendSource, search Searcher, cfg types.PipelineConfig, logger *zap.Logger) *Controller {
	def := types.DefaultPipelineConfig()
	if cfg.Mining.Domain == "" && cfg.Mining.PathFilter == "" && len(cfg.Mining.Keywords) == 0 {
		cfg.Mining.Domain = def.Mining.Domain
		cfg.Mining.PathFilter = def.Mining.PathFilter
		cfg.Mining.Keywords = def.Mining.Keywords
	}
	if len(cfg.Mining.Categories) == 0 {
		cfg.Mining.Categories = def.Mining.Categories
	}
	if cfg.Refine.PrefixRunes <= 0 {
		cfg.Refine.PrefixRunes = def.Refine.PrefixRunes
	}
	if cfg.Refine.QuerySuffix == "" {
		cfg.Refine.QuerySuffix = def.Refine.QuerySuffix
	}
	if cfg.Refine.MaxCompetitors <= 0 {
		cfg.Refine.MaxCompetitors = def.Refine.MaxCompetitors
	}
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = def.ResultCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		gen:      gen,
		trends:   trends,
		search:   search,
		cfg:      cfg,
		logger:   logger,
		progress: io.Discard,
	}
}

// SetProgress directs human-readable progress lines to w.
func (c *Controller) SetProgress(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	c.progress = w
}

// Config returns the effective pipeline settings.
func (c *Controller) Config() types.PipelineConfig {
	return c.cfg
}

// require rejects kind unless rec is in one of the phases it may start from.
func (c *Controller) require(kind ActionKind, rec types.ResearchRecord) error {
	from := transitions[kind]
	if slices.Contains(from, rec.Phase) {
		return nil
	}
	return fmt.Errorf("%w: %s needs phase %s, session is in %s", ErrWrongPhase, kind, phaseList(from), rec.Phase)
}

func (c *Controller) generatorReady() bool {
	return c.gen != nil && c.gen.Configured()
}

func (c *Controller) searcherReady() bool {
	return c.search != nil && c.search.Configured()
}

func phaseList(phases []types.Phase) string {
	switch len(phases) {
	case 0:
		return "(none)"
	case 1:
		return string(phases[0])
	}
	s := string(phases[0])
	for _, p := range phases[1:] {
		s += "|" + string(p)
	}
	return s
}
