// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/validation-engine/internal/pipeline"
	"github.com/pdiddy/validation-engine/internal/session"
	"github.com/pdiddy/validation-engine/pkg/types"
)

const (
	previewSnippets = 5
	previewRunes    = 160
)

// printStatus writes a human-readable summary of the session: phase,
// candidates, outputs produced so far and the actions available next.
func printStatus(w io.Writer, sess session.Session) {
	r := sess.Record
	fmt.Fprintf(w, "Session:  %s\n", sess.ID)
	fmt.Fprintf(w, "Phase:    %s\n", r.Phase)
	if r.CoreMarket != "" {
		fmt.Fprintf(w, "Market:   %s\n", r.CoreMarket)
	}
	if r.SelectedCategory != "" {
		fmt.Fprintf(w, "Category: %s\n", r.SelectedCategory)
	}
	if r.SelectedNiche != "" {
		fmt.Fprintf(w, "Niche:    %s\n", r.SelectedNiche)
	}

	switch r.Phase {
	case types.PhaseLevel1:
		printList(w, "Categories", r.Categories)
	case types.PhaseLevel2:
		printList(w, "Sub-niches", r.SubNiches)
	}

	if r.TrendSeries != nil {
		printTrend(w, *r.TrendSeries)
	}
	if len(r.Snippets) > 0 {
		fmt.Fprintf(w, "Snippets: %d\n", len(r.Snippets))
	}

	for _, out := range []struct{ name, text string }{
		{"Pain points", r.PainPoints},
		{"Opportunity", r.Opportunity},
		{"Moat", r.Moat},
		{"Landing prompt", r.LandingPrompt},
	} {
		if out.text != "" {
			fmt.Fprintf(w, "\n%s:\n%s\n", out.name, strings.TrimSpace(out.text))
		}
	}

	names := make([]string, 0)
	for _, k := range pipeline.Allowed(r.Phase) {
		names = append(names, string(k))
	}
	fmt.Fprintf(w, "\nNext: %s\n", strings.Join(names, ", "))
}

func printList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "\n%s:\n", title)
	for i, item := range items {
		fmt.Fprintf(w, "  %d. %s\n", i+1, item)
	}
}

// printTrend summarizes a series by its range and latest value.
func printTrend(w io.Writer, ts types.TrendSeries) {
	if ts.Empty() {
		return
	}
	lo, hi := ts.Points[0].Value, ts.Points[0].Value
	for _, p := range ts.Points {
		lo = min(lo, p.Value)
		hi = max(hi, p.Value)
	}
	last := ts.Points[len(ts.Points)-1]
	fmt.Fprintf(w, "Trend:    %q over %s, %d points, range %d-%d, latest %d (%s)\n",
		ts.Topic, ts.Timeframe, len(ts.Points), lo, hi, last.Value, last.Time.Format("2006-01-02"))
}

// printSnippets previews the first mined snippets.
func printSnippets(w io.Writer, snippets []string) {
	n := min(len(snippets), previewSnippets)
	if n == 0 {
		return
	}
	fmt.Fprintf(w, "\nFirst %d of %d snippets:\n", n, len(snippets))
	for _, s := range snippets[:n] {
		fmt.Fprintf(w, "  - %s\n", truncate(s, previewRunes))
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
