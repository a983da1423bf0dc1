// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/validation-engine/internal/failure"
	"github.com/pdiddy/validation-engine/pkg/types"
)

// Build runs the synthesis chain from the record's current phase to
// Complete. The chain has three commit points:
//
//	Mining -> Synthesizing:           pain points, then opportunity
//	Synthesizing -> CompetitorRefine: competitor search, then moat
//	CompetitorRefine -> Complete:     landing prompt
//
// Each prompt embeds the previous output, so the calls run strictly in
// sequence. When a stage fails, Build returns the record as of the last
// committed stage together with the error; calling Build again resumes from
// there.
func (c *Controller) Build(ctx context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	if err := c.require(ActionBuild, rec); err != nil {
		return rec, err
	}
	if rec.Phase == types.PhaseMining && len(rec.Snippets) == 0 {
		return rec, ErrNoSnippets
	}
	if !c.generatorReady() {
		return rec, failure.ConfigMissing(opBuild, "generation API key")
	}

	stages := []struct {
		from types.Phase
		run  func(context.Context, types.ResearchRecord) (types.ResearchRecord, error)
	}{
		{types.PhaseMining, c.synthesize},
		{types.PhaseSynthesizing, c.refine},
		{types.PhaseCompetitorRefine, c.landing},
	}

	cur := rec
	for _, s := range stages {
		if cur.Phase != s.from {
			continue
		}
		next, err := s.run(ctx, cur)
		if err != nil {
			return cur, err
		}
		cur = next
	}
	return cur, nil
}

// synthesize extracts pain points from the snippets and proposes one
// opportunity from them.
func (c *Controller) synthesize(ctx context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	niche := rec.Niche()

	fmt.Fprintf(c.progress, "Extracting pain points from %d snippets...\n", len(rec.Snippets))
	prompt, err := render(painTmpl, struct{ Niche, Snippets string }{niche, strings.Join(rec.Snippets, "\n")})
	if err != nil {
		return rec, fmt.Errorf("rendering pain prompt: %w", err)
	}
	pain, err := c.gen.GenerateText(ctx, prompt)
	if err != nil {
		return rec, fmt.Errorf("extracting pain points: %w", err)
	}

	fmt.Fprintln(c.progress, "Generating business opportunity...")
	prompt, err = render(opportunityTmpl, struct{ Niche, PainPoints string }{niche, pain})
	if err != nil {
		return rec, fmt.Errorf("rendering opportunity prompt: %w", err)
	}
	opportunity, err := c.gen.GenerateText(ctx, prompt)
	if err != nil {
		return rec, fmt.Errorf("generating opportunity: %w", err)
	}

	next := rec.Clone()
	next.PainPoints = pain
	next.Opportunity = opportunity
	next.Phase = types.PhaseSynthesizing
	return next, nil
}

// refine searches for competitors of the opportunity and argues a moat
// against them. An empty competitor list is not an error.
func (c *Controller) refine(ctx context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	if !c.searcherReady() {
		return rec, failure.ConfigMissing(opBuild, "search API key")
	}

	query := BuildCompetitorQuery(rec.Opportunity, c.cfg.Refine)
	fmt.Fprintf(c.progress, "Searching competitors: %s\n", query)
	groups, err := c.search.Search(ctx, query, c.cfg.ResultCount)
	if err != nil {
		return rec, fmt.Errorf("searching competitors: %w", err)
	}
	competitors := competitorLines(groups, c.cfg.Refine.MaxCompetitors)

	fmt.Fprintf(c.progress, "Refining moat against %d competitors...\n", len(competitors))
	prompt, err := render(moatTmpl, struct {
		Opportunity string
		Competitors []string
	}{rec.Opportunity, competitors})
	if err != nil {
		return rec, fmt.Errorf("rendering moat prompt: %w", err)
	}
	moat, err := c.gen.GenerateText(ctx, prompt)
	if err != nil {
		return rec, fmt.Errorf("generating moat: %w", err)
	}

	next := rec.Clone()
	next.Competitors = competitors
	next.Moat = moat
	next.Phase = types.PhaseCompetitorRefine
	return next, nil
}

// landing writes the landing-page prompt from the opportunity and moat.
func (c *Controller) landing(ctx context.Context, rec types.ResearchRecord) (types.ResearchRecord, error) {
	fmt.Fprintln(c.progress, "Writing landing page prompt...")
	prompt, err := render(landingTmpl, struct{ Opportunity, Moat string }{rec.Opportunity, rec.Moat})
	if err != nil {
		return rec, fmt.Errorf("rendering landing prompt: %w", err)
	}
	landing, err := c.gen.GenerateText(ctx, prompt)
	if err != nil {
		return rec, fmt.Errorf("generating landing prompt: %w", err)
	}

	next := rec.Clone()
	next.LandingPrompt = landing
	next.Phase = types.PhaseComplete
	fmt.Fprintln(c.progress, "Analysis complete")
	return next, nil
}
