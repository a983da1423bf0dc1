// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// compressPDF controls content-stream compression. Tests turn it off to
// inspect the rendered text.
var compressPDF = true

const (
	pageMargin = 20.0
	titleSize  = 16.0
	headSize   = 14.0
	bodySize   = 11.0
)

// smartPunct maps typographic punctuation to plain ASCII.
var smartPunct = strings.NewReplacer(
	"\u2013", "-", // en dash
	"\u2014", "-", // em dash
	"\u2212", "-", // minus sign
	"\u2018", "'",
	"\u2019", "'",
	"\u201A", "'",
	"\u201C", `"`,
	"\u201D", `"`,
	"\u201E", `"`,
	"\u2026", "...",
	"\u2022", "-", // bullet
	"\u00A0", " ",
	"\r\n", "\n",
)

// Normalize rewrites s so every character is representable in Latin-1 for
// the PDF core fonts: smart punctuation becomes ASCII and anything else
// outside the range becomes "?".
func Normalize(s string) string {
	s = smartPunct.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20, r >= 0x7F && r <= 0x9F, r > 0xFF:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// latin1 normalizes s and encodes it as ISO-8859-1 bytes, the encoding the
// core fonts expect.
func latin1(s string) string {
	n := Normalize(s)
	out, err := charmap.ISO8859_1.NewEncoder().String(n)
	if err != nil {
		return n
	}
	return out
}

func renderPDF(doc document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compressPDF)
	pdf.SetTitle(latin1(doc.Title), false)
	pdf.SetCreator("validation-engine", false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", titleSize)
	pdf.MultiCell(0, 9, latin1(doc.Title), "", "L", false)
	pdf.Ln(4)

	for _, s := range doc.Sections {
		pdf.SetFont("Helvetica", "B", headSize)
		pdf.MultiCell(0, 8, latin1(s.Heading), "", "L", false)
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "", bodySize)
		pdf.MultiCell(0, 6, latin1(s.Body), "", "L", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering PDF: %w", err)
	}
	return buf.Bytes(), nil
}
