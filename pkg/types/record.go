// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the validation-engine pipeline:
// the research record threaded through every phase transition, the trend and
// search result shapes returned by the external-service adapters, and the
// configuration structs for each stage.
package types

import (
	"fmt"
	"slices"
)

// Phase is a named state of the research workflow. The phase gates which
// user actions are valid.
type Phase string

const (
	PhaseInput            Phase = "input"
	PhaseLevel1           Phase = "level1"
	PhaseLevel2           Phase = "level2"
	PhaseLocked           Phase = "locked"
	PhaseTrendCheck       Phase = "trend_check"
	PhaseMining           Phase = "mining"
	PhaseSynthesizing     Phase = "synthesizing"
	PhaseCompetitorRefine Phase = "competitor_refine"
	PhaseComplete         Phase = "complete"
)

// phaseOrder lists phases in workflow order.
var phaseOrder = []Phase{
	PhaseInput,
	PhaseLevel1,
	PhaseLevel2,
	PhaseLocked,
	PhaseTrendCheck,
	PhaseMining,
	PhaseSynthesizing,
	PhaseCompetitorRefine,
	PhaseComplete,
}

// Phases returns all phases in workflow order.
func Phases() []Phase {
	return slices.Clone(phaseOrder)
}

// Index returns the position of p in the workflow, or -1 if p is unknown.
func (p Phase) Index() int {
	return slices.Index(phaseOrder, p)
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// AtLeast reports whether p is at or past other in workflow order.
func (p Phase) AtLeast(other Phase) bool {
	return p.Index() >= other.Index()
}

// Terminal reports whether p is the final phase.
func (p Phase) Terminal() bool {
	return p == PhaseComplete
}

// ResearchRecord is the single mutable aggregate of one research session.
// Empty strings mean "unset" for the optional text fields.
type ResearchRecord struct {
	// CoreMarket is the user-supplied seed topic (e.g. "Wealth").
	CoreMarket string `json:"core_market" yaml:"core_market"`

	// Categories are the level-1 candidates, in generation order.
	Categories []string `json:"categories" yaml:"categories"`

	// SelectedCategory is the chosen level-1 category.
	SelectedCategory string `json:"selected_category,omitempty" yaml:"selected_category,omitempty"`

	// SubNiches are the level-2 candidates within SelectedCategory.
	SubNiches []string `json:"sub_niches" yaml:"sub_niches"`

	// SelectedNiche is the locked niche all downstream analysis is about.
	SelectedNiche string `json:"selected_niche,omitempty" yaml:"selected_niche,omitempty"`

	// TrendSeries is present only when the trend fetch returned data for the niche.
	TrendSeries *TrendSeries `json:"trend_series,omitempty" yaml:"trend_series,omitempty"`

	// Snippets hold raw mined text in insertion order. Duplicates are kept.
	Snippets []string `json:"snippets" yaml:"snippets"`

	// Competitors is the competitor list fed into the moat prompt.
	Competitors []string `json:"competitors,omitempty" yaml:"competitors,omitempty"`

	PainPoints    string `json:"pain_points,omitempty" yaml:"pain_points,omitempty"`
	Opportunity   string `json:"opportunity,omitempty" yaml:"opportunity,omitempty"`
	Moat          string `json:"moat,omitempty" yaml:"moat,omitempty"`
	LandingPrompt string `json:"landing_prompt,omitempty" yaml:"landing_prompt,omitempty"`

	// Phase is the current workflow state.
	Phase Phase `json:"phase" yaml:"phase"`
}

// NewRecord returns the empty record a session starts with and every reset
// returns to.
func NewRecord() ResearchRecord {
	return ResearchRecord{
		Categories: []string{},
		SubNiches:  []string{},
		Snippets:   []string{},
		Phase:      PhaseInput,
	}
}

// Clone returns a deep copy of r so transitions never share backing arrays
// with the record they were given.
func (r ResearchRecord) Clone() ResearchRecord {
	c := r
	c.Categories = cloneStrings(r.Categories)
	c.SubNiches = cloneStrings(r.SubNiches)
	c.Snippets = cloneStrings(r.Snippets)
	c.Competitors = slices.Clone(r.Competitors)
	if r.TrendSeries != nil {
		ts := *r.TrendSeries
		ts.Points = slices.Clone(r.TrendSeries.Points)
		c.TrendSeries = &ts
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// Niche returns the locked niche, or "" before the lock.
func (r ResearchRecord) Niche() string {
	return r.SelectedNiche
}

// Validate checks the record invariants. It returns the first violation found.
func (r ResearchRecord) Validate() error {
	if !r.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", r.Phase)
	}

	if r.SelectedCategory != "" {
		if !r.Phase.AtLeast(PhaseLevel2) {
			return fmt.Errorf("selected category set in phase %s", r.Phase)
		}
		if !slices.Contains(r.Categories, r.SelectedCategory) {
			return fmt.Errorf("selected category %q is not a candidate", r.SelectedCategory)
		}
	} else if r.Phase.AtLeast(PhaseLevel2) {
		return fmt.Errorf("phase %s requires a selected category", r.Phase)
	}

	if r.SelectedNiche != "" {
		if !r.Phase.AtLeast(PhaseLocked) {
			return fmt.Errorf("selected niche set in phase %s", r.Phase)
		}
		if !slices.Contains(r.SubNiches, r.SelectedNiche) {
			return fmt.Errorf("selected niche %q is not a candidate", r.SelectedNiche)
		}
	} else if r.Phase.AtLeast(PhaseLocked) {
		return fmt.Errorf("phase %s requires a selected niche", r.Phase)
	}

	if r.Phase.AtLeast(PhaseLevel1) && len(r.Categories) == 0 {
		return fmt.Errorf("phase %s requires categories", r.Phase)
	}

	if len(r.Snippets) > 0 && !r.Phase.AtLeast(PhaseMining) {
		return fmt.Errorf("snippets present in phase %s", r.Phase)
	}

	synthesis := []struct {
		name  string
		value string
		phase Phase
	}{
		{"pain points", r.PainPoints, PhaseSynthesizing},
		{"opportunity", r.Opportunity, PhaseSynthesizing},
		{"moat", r.Moat, PhaseCompetitorRefine},
		{"landing prompt", r.LandingPrompt, PhaseComplete},
	}
	for i := 1; i < len(synthesis); i++ {
		if synthesis[i].value != "" && synthesis[i-1].value == "" {
			return fmt.Errorf("%s set before %s", synthesis[i].name, synthesis[i-1].name)
		}
	}
	for _, f := range synthesis {
		if (f.value != "") != r.Phase.AtLeast(f.phase) {
			return fmt.Errorf("%s does not match phase %s", f.name, r.Phase)
		}
	}

	if r.PainPoints != "" && len(r.Snippets) == 0 {
		return fmt.Errorf("pain points present without snippets")
	}
	return nil
}
