// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"strings"

	"github.com/pdiddy/validation-engine/pkg/types"
)

// BuildMiningQuery returns the complaint-biased search query for niche:
//
//	<niche> site:<domain> inurl:<path> (<k1> OR <k2> OR <k3>)
//
// Empty filters are omitted.
func BuildMiningQuery(niche string, cfg types.MiningConfig) string {
	parts := []string{strings.TrimSpace(niche)}
	if cfg.Domain != "" {
		parts = append(parts, "site:"+cfg.Domain)
	}
	if cfg.PathFilter != "" {
		parts = append(parts, "inurl:"+cfg.PathFilter)
	}
	if len(cfg.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(cfg.Keywords, " OR ")))
	}
	return strings.Join(parts, " ")
}

// BuildCompetitorQuery returns the competitor-discovery query: the first
// cfg.PrefixRunes characters of the opportunity followed by cfg.QuerySuffix.
// Whitespace in the prefix is collapsed to single spaces.
func BuildCompetitorQuery(opportunity string, cfg types.RefineConfig) string {
	prefix := strings.TrimSpace(opportunity)
	if cfg.PrefixRunes > 0 {
		if r := []rune(prefix); len(r) > cfg.PrefixRunes {
			prefix = string(r[:cfg.PrefixRunes])
		}
	}
	prefix = strings.Join(strings.Fields(prefix), " ")
	if cfg.QuerySuffix == "" {
		return prefix
	}
	return prefix + " " + cfg.QuerySuffix
}

// FlattenSnippets collects one text per result item, taking the snippet when
// present and falling back to the title. Groups are visited in the given
// category order; an empty order visits them as returned. Items with neither
// field are skipped. Duplicates are kept.
func FlattenSnippets(groups []types.ResultGroup, order []string) []string {
	snippets := []string{}
	visit := func(g types.ResultGroup) {
		for _, item := range g.Items {
			switch {
			case item.Snippet != "":
				snippets = append(snippets, item.Snippet)
			case item.Title != "":
				snippets = append(snippets, item.Title)
			}
		}
	}

	if len(order) == 0 {
		for _, g := range groups {
			visit(g)
		}
		return snippets
	}
	for _, category := range order {
		for _, g := range groups {
			if g.Category == category {
				visit(g)
			}
		}
	}
	return snippets
}

// competitorLines renders up to limit search results as "title: snippet"
// lines for the moat prompt.
func competitorLines(groups []types.ResultGroup, limit int) []string {
	lines := []string{}
	for _, g := range groups {
		for _, item := range g.Items {
			if limit > 0 && len(lines) >= limit {
				return lines
			}
			title := item.Title
			if title == "" {
				title = item.Question
			}
			switch {
			case title != "" && item.Snippet != "":
				lines = append(lines, title+": "+item.Snippet)
			case title != "":
				lines = append(lines, title)
			case item.Snippet != "":
				lines = append(lines, item.Snippet)
			}
		}
	}
	return lines
}
