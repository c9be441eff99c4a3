package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitColumns(t *testing.T) {
	cols := SplitColumns("BMP Name    Quantity   Cost")
	assert.Equal(t, []string{"BMP Name", "Quantity", "Cost"}, cols)

	// Single spaces do not split.
	cols = SplitColumns("one two three")
	assert.Equal(t, []string{"one two three"}, cols)
}

func TestTextDetector_RequiresThreeColumns(t *testing.T) {
	d := NewTextDetector(3)

	// Two-column lines never form a table.
	plain := "left  right\nfoo  bar\nbaz  qux"
	assert.Empty(t, d.Detect(plain))
}

func TestTextDetector_HeaderAndBodyRows(t *testing.T) {
	d := NewTextDetector(3)

	plain := "Practice  Quantity  Cost\n" +
		"Cover crop  120 ac  $4,000\n" +
		"Fencing  2 mi  $12,000\n"

	tabs := d.Detect(plain)
	require.Len(t, tabs, 1)
	assert.Equal(t, []string{"Practice", "Quantity", "Cost"}, tabs[0].Header)
	require.Len(t, tabs[0].Rows, 2)
	assert.Equal(t, []string{"Fencing", "2 mi", "$12,000"}, tabs[0].Rows[1])
	assert.Equal(t, SourceTextHeuristic, tabs[0].Source)
}

func TestTextDetector_BlankLineEndsRun(t *testing.T) {
	d := NewTextDetector(3)

	plain := "a  b  c\nd  e  f\n\ng  h  i\nj  k  l"
	tabs := d.Detect(plain)
	require.Len(t, tabs, 2)
	assert.Equal(t, []string{"a", "b", "c"}, tabs[0].Header)
	assert.Equal(t, []string{"g", "h", "i"}, tabs[1].Header)
}

func TestTextDetector_NarrowLineEndsRun(t *testing.T) {
	d := NewTextDetector(3)

	plain := "a  b  c\nd  e  f\nplain paragraph text\ng  h  i"
	tabs := d.Detect(plain)
	// The second run is a lone header-only table.
	require.Len(t, tabs, 2)
	assert.Len(t, tabs[0].Rows, 1)
	assert.Empty(t, tabs[1].Rows)
}

func TestNormalizeGrid(t *testing.T) {
	// Nested rows pass through.
	grid := NormalizeGrid([]any{[]any{"a", "b"}, []any{"c", "d"}})
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, grid)

	// A flat row array becomes a single-row table.
	grid = NormalizeGrid([]any{"a", "b", "c"})
	assert.Equal(t, [][]string{{"a", "b", "c"}}, grid)

	// Scalar and nil cells are stringified.
	grid = NormalizeGrid([]any{[]any{float64(3), nil, true}})
	assert.Equal(t, [][]string{{"3", "", "true"}}, grid)

	assert.Nil(t, NormalizeGrid("not a table"))
	assert.Nil(t, NormalizeGrid([]any{}))
}

func TestTableHTML_EscapesCells(t *testing.T) {
	tab := Table{
		Header: []string{"Name", "Target"},
		Rows:   [][]string{{"N & P", "< 3"}},
		Source: SourceTextHeuristic,
	}
	html := tab.HTML()
	assert.Contains(t, html, "<th>Name</th>")
	assert.Contains(t, html, "<td>N &amp; P</td>")
	assert.Contains(t, html, "<td>&lt; 3</td>")
}
