// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/validation-engine/pkg/types"
)

func completeRecord() types.ResearchRecord {
	r := types.NewRecord()
	r.CoreMarket = "Wealth"
	r.Categories = []string{"Real Estate"}
	r.SelectedCategory = "Real Estate"
	r.SubNiches = []string{"Rental Arbitrage"}
	r.SelectedNiche = "Rental Arbitrage"
	r.Snippets = []string{"I hate this market"}
	r.PainPoints = "Landlords ban subletting — “it’s a nightmare”"
	r.Opportunity = "A lease-compliance marketplace…"
	r.Moat = "Exclusive landlord network \U0001F680"
	r.LandingPrompt = "Before: stress. After: calm. Bridge: us."
	r.Phase = types.PhaseComplete
	return r
}

func TestAssembleRefusesIncompleteRecords(t *testing.T) {
	for _, p := range types.Phases() {
		if p == types.PhaseComplete {
			continue
		}
		rec := completeRecord()
		rec.Phase = p
		_, err := Assemble(rec, types.ReportPDF)
		assert.ErrorIs(t, err, ErrNotComplete, "phase %s", p)
	}
}

func TestAssembleUnknownFormat(t *testing.T) {
	_, err := Assemble(completeRecord(), "docx")
	require.ErrorIs(t, err, ErrUnknownFormat)
	assert.Contains(t, err.Error(), "docx")
}

func TestAssembleMarkdown(t *testing.T) {
	out, err := Assemble(completeRecord(), types.ReportMarkdown)
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# Market Validation Report: Rental Arbitrage\n"))
	assertOrdered(t, md, HeadingPainPoints, HeadingOpportunity, HeadingMoat, HeadingLanding)
	assert.Contains(t, md, "“it’s a nightmare”", "markdown keeps text as-is")
	assert.Contains(t, md, "## Landing Page Prompt\n\nBefore: stress. After: calm. Bridge: us.\n")
}

func TestAssemblePDF(t *testing.T) {
	compressPDF = false
	defer func() { compressPDF = true }()

	out, err := Assemble(completeRecord(), types.ReportPDF)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	pdf := string(out)
	assert.Contains(t, pdf, "Market Validation Report: Rental Arbitrage")
	assertOrdered(t, pdf, HeadingPainPoints, HeadingOpportunity, HeadingMoat, HeadingLanding)
	assert.Contains(t, pdf, `Landlords ban subletting - "it's a nightmare"`)
	assert.Contains(t, pdf, "marketplace...")
	assert.Contains(t, pdf, "Exclusive landlord network ?")
}

func TestAssembleIsPure(t *testing.T) {
	rec := completeRecord()
	a, err := Assemble(rec, types.ReportMarkdown)
	require.NoError(t, err)
	b, err := Assemble(rec, types.ReportMarkdown)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, completeRecord(), rec)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dashes", "a–b—c", "a-b-c"},
		{"quotes", "“quoted” ‘single’", `"quoted" 'single'`},
		{"ellipsis", "wait…", "wait..."},
		{"latin-1 kept", "café naïve £", "café naïve £"},
		{"outside latin-1", "日本 \U0001F600 €", "?? ? ?"},
		{"c1 controls", "a\u0085b", "a?b"},
		{"newlines kept", "line1\r\nline2\tx", "line1\nline2\tx"},
		{"bullets", "• one", "- one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestLatin1Encoding(t *testing.T) {
	assert.Equal(t, "caf\xe9", latin1("café"))
	assert.Equal(t, "?", latin1("中"))
}

func TestFilename(t *testing.T) {
	rec := completeRecord()
	assert.Equal(t, "rental-arbitrage-validation.pdf", Filename(rec, types.ReportPDF))
	assert.Equal(t, "rental-arbitrage-validation.md", Filename(rec, types.ReportMarkdown))
	assert.Equal(t, "research-validation.pdf", Filename(types.NewRecord(), types.ReportPDF))
}

// assertOrdered checks that each needle appears in s after the previous one.
func assertOrdered(t *testing.T, s string, needles ...string) {
	t.Helper()
	pos := 0
	for _, n := range needles {
		i := strings.Index(s[pos:], n)
		if !assert.GreaterOrEqual(t, i, 0, "%q missing or out of order", n) {
			return
		}
		pos += i + len(n)
	}
}
