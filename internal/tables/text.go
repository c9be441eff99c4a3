package tables

import (
	"regexp"
	"strings"
)

var columnGap = regexp.MustCompile(`\s{2,}`)

// SplitColumns splits a text line into columns wherever two or more
// consecutive whitespace characters occur.
func SplitColumns(line string) []string {
	parts := columnGap.Split(line, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TextDetector finds tables in plain page text: a contiguous run of lines
// each yielding at least MinColumns columns forms one table. The first row
// of a run is treated as the header.
type TextDetector struct {
	MinColumns int
}

// NewTextDetector creates a detector with the given column threshold.
func NewTextDetector(minColumns int) *TextDetector {
	if minColumns < 2 {
		minColumns = 3
	}
	return &TextDetector{MinColumns: minColumns}
}

// Detect scans plain text for column-aligned runs. A blank line or a line
// below the column threshold ends the current run.
func (d *TextDetector) Detect(plain string) []Table {
	var tables []Table
	var run [][]string

	flush := func() {
		if len(run) == 0 {
			return
		}
		tables = append(tables, Table{
			Header: run[0],
			Rows:   run[1:],
			Source: SourceTextHeuristic,
		})
		run = nil
	}

	for _, raw := range strings.Split(plain, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		cols := SplitColumns(line)
		if len(cols) >= d.MinColumns {
			run = append(run, cols)
		} else {
			flush()
		}
	}
	flush()
	return tables
}
