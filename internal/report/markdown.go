// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"fmt"
)

// renderMarkdown writes the document as Markdown. Text is kept as-is; only
// the PDF path needs a restricted character set.
func renderMarkdown(doc document) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", doc.Title)
	for _, s := range doc.Sections {
		fmt.Fprintf(&buf, "\n## %s\n\n%s\n", s.Heading, s.Body)
	}
	return buf.Bytes()
}
