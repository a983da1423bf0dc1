// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a completed research record as a document. Assembly
// is a pure function of the record: no external calls, no clock-dependent
// content.
package report

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/validation-engine/pkg/types"
)

var (
	// ErrNotComplete is returned for records that have not finished the pipeline.
	ErrNotComplete = errors.New("report requires a completed research record")
	// ErrUnknownFormat is returned for formats other than pdf and markdown.
	ErrUnknownFormat = errors.New("unknown report format")
)

// Section headings, in document order.
const (
	HeadingPainPoints  = "Top Pain Points"
	HeadingOpportunity = "Validated Business Idea"
	HeadingMoat        = "Defensible Moat"
	HeadingLanding     = "Landing Page Prompt"
)

type section struct {
	Heading string
	Body    string
}

type document struct {
	Title    string
	Sections []section
}

// Assemble renders rec in the requested format. It refuses records that are
// not Complete.
func Assemble(rec types.ResearchRecord, format types.ReportFormat) ([]byte, error) {
	if rec.Phase != types.PhaseComplete {
		return nil, fmt.Errorf("%w (phase %s)", ErrNotComplete, rec.Phase)
	}

	doc := newDocument(rec)
	switch format {
	case types.ReportPDF, "":
		return renderPDF(doc)
	case types.ReportMarkdown:
		return renderMarkdown(doc), nil
	default:
		return nil, fmt.Errorf("%w %q (want pdf or markdown)", ErrUnknownFormat, format)
	}
}

// Filename suggests a file name for rec's report, e.g.
// "rental-arbitrage-validation.pdf".
func Filename(rec types.ResearchRecord, format types.ReportFormat) string {
	ext := ".pdf"
	if format == types.ReportMarkdown {
		ext = ".md"
	}
	slug := slugify(rec.Niche())
	if slug == "" {
		slug = "research"
	}
	return slug + "-validation" + ext
}

func newDocument(rec types.ResearchRecord) document {
	return document{
		Title: "Market Validation Report: " + rec.Niche(),
		Sections: []section{
			{HeadingPainPoints, strings.TrimSpace(rec.PainPoints)},
			{HeadingOpportunity, strings.TrimSpace(rec.Opportunity)},
			{HeadingMoat, strings.TrimSpace(rec.Moat)},
			{HeadingLanding, strings.TrimSpace(rec.LandingPrompt)},
		},
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
