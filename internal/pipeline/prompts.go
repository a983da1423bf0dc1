// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"text/template"
)

// categoriesTmpl expands a core market into level-1 categories.
var categoriesTmpl = template.Must(template.New("categories").Parse(`Act as a market research expert. Break down the market '{{.Market}}' into 5 distinct, high-level categories.
Return ONLY a raw JSON array of strings.
Example: ["Real Estate", "Crypto", "Stock Market", "Personal Finance", "Business"]
`))

// subNichesTmpl expands a category into level-2 sub-niches.
var subNichesTmpl = template.Must(template.New("subniches").Parse(`Generate 5 specific, profitable sub-niches for the category: '{{.Category}}'{{if .Market}} within the market '{{.Market}}'{{end}}.
Return ONLY a raw JSON array of strings.
Example: ["Flipping Houses", "Rental Arbitrage", "Short-Term Rentals", "REIT Investing", "Property Management"]
`))

// painTmpl extracts pain points from mined discussion snippets.
var painTmpl = template.Must(template.New("pain").Parse(`Analyze these Reddit snippets about '{{.Niche}}':
{{.Snippets}}

Extract 3-5 specific, visceral pain points and direct user quotes.
`))

// opportunityTmpl proposes one business opportunity from the pain points.
var opportunityTmpl = template.Must(template.New("opportunity").Parse(`Based on these pain points in the '{{.Niche}}' market:
{{.PainPoints}}

Propose the single strongest business opportunity that resolves them.
Start with a one-sentence summary of the product, then describe who it serves,
what it does differently, and how it makes money.
`))

// moatTmpl argues a defensible differentiator against the competitors found.
var moatTmpl = template.Must(template.New("moat").Parse(`This business opportunity is under consideration:
{{.Opportunity}}

These are existing competitors and alternatives found by web search:
{{if .Competitors}}{{range .Competitors}}- {{.}}
{{end}}{{else}}- (no direct competitors found)
{{end}}
Act as a startup strategist. Explain the defensible moat this business can build
against these competitors: the unfair advantage, why incumbents cannot easily copy
it, and the first three steps to establish it.
`))

// landingTmpl writes a Before-After-Bridge landing page prompt.
var landingTmpl = template.Must(template.New("landing").Parse(`Take this business opportunity and its moat:

Opportunity:
{{.Opportunity}}

Moat:
{{.Moat}}

Write a 'Before-After-Bridge' prompt for a Landing Page.
The output should be a single prompt string that I can paste into an AI image/copy generator.
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
