// Package tables detects tabular content in extracted pages, using a
// whitespace-column text heuristic and an optional whole-document visual
// extractor.
package tables

import (
	"strings"

	"github.com/clearbasin/planengine/internal/layout"
)

// Table is the generic row/column representation both detectors normalize
// to. Header may be empty for visual tables.
type Table struct {
	Header []string
	Rows   [][]string
	// Source records which detector produced the table.
	Source string
}

const (
	SourceTextHeuristic = "text-heuristic"
	SourceVisual        = "visual-extractor"
)

// HTML renders the table with escaped cell text.
func (t Table) HTML() string {
	width := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > width {
			width = len(r)
		}
	}

	var b strings.Builder
	b.WriteString(`<table data-detected="` + t.Source + `">`)
	if len(t.Header) > 0 {
		b.WriteString("<thead><tr>")
		for i := 0; i < width; i++ {
			b.WriteString("<th>" + layout.EscapeHTML(cell(t.Header, i)) + "</th>")
		}
		b.WriteString("</tr></thead>")
	}
	b.WriteString("<tbody>")
	for _, r := range t.Rows {
		b.WriteString("<tr>")
		for i := 0; i < width; i++ {
			b.WriteString("<td>" + layout.EscapeHTML(cell(r, i)) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
