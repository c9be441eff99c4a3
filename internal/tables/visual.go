package tables

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// VisualExtractor shells out to an external table-extraction tool that
// analyzes the whole source document at once and prints a page-to-tables
// mapping as JSON on stdout:
//
//	{"pageTables": [{"page": 1, "tables": [[["a","b"],["c","d"]]]}]}
//
// Failure here is non-fatal to the pipeline; the caller keeps the
// text-heuristic tables only.
type VisualExtractor struct {
	// BinPath is the extractor binary. Empty disables the visual pass.
	BinPath string
}

// NewVisualExtractor creates a VisualExtractor for the given binary path.
func NewVisualExtractor(binPath string) *VisualExtractor {
	return &VisualExtractor{BinPath: binPath}
}

// Enabled reports whether an extractor binary is configured.
func (v *VisualExtractor) Enabled() bool {
	return v.BinPath != ""
}

type visualResult struct {
	PageTables []struct {
		Page   int             `json:"page"`
		Tables json.RawMessage `json:"tables"`
	} `json:"pageTables"`
}

// Extract runs the extractor over the whole document and returns tables
// grouped by page number.
func (v *VisualExtractor) Extract(ctx context.Context, srcPath string) (map[int][]Table, error) {
	if !v.Enabled() {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, v.BinPath, srcPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run table extractor: %w (%s)", err, stderr.String())
	}

	var result visualResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("decode table extractor output: %w", err)
	}

	out := make(map[int][]Table)
	for _, pt := range result.PageTables {
		if pt.Page < 1 {
			continue
		}
		for _, grid := range decodeGrids(pt.Tables) {
			out[pt.Page] = append(out[pt.Page], Table{Rows: grid, Source: SourceVisual})
		}
	}
	return out, nil
}

// decodeGrids normalizes the extractor's nested and occasionally irregular
// table shapes into rectangular cell grids. A flat row array is treated as a
// single-row table; scalar cells are stringified.
func decodeGrids(raw json.RawMessage) [][][]string {
	var anyTables []any
	if err := json.Unmarshal(raw, &anyTables); err != nil {
		return nil
	}

	var grids [][][]string
	for _, t := range anyTables {
		if grid := NormalizeGrid(t); len(grid) > 0 {
			grids = append(grids, grid)
		}
	}
	return grids
}

// NormalizeGrid coerces one decoded table value into rows of string cells.
func NormalizeGrid(v any) [][]string {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	// Flat array of scalars is a single row.
	if _, nested := rows[0].([]any); !nested {
		return [][]string{normalizeRow(rows)}
	}

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells, ok := r.([]any)
		if !ok {
			// Irregular shape: treat the stray value as a one-cell row.
			out = append(out, []string{stringify(r)})
			continue
		}
		out = append(out, normalizeRow(cells))
	}
	return out
}

func normalizeRow(cells []any) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, stringify(c))
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
