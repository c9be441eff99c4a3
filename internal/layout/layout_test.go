package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbasin/planengine/internal/pdf"
)

func frag(text string, y, size float64) pdf.Fragment {
	return pdf.Fragment{Text: text, Y: y, FontSize: size}
}

func TestConverter_ClustersFragmentsWithinEpsilon(t *testing.T) {
	c := NewConverter(DefaultConfig())

	page := c.Convert([]pdf.Fragment{
		frag("Watershed ", 700.0, 12),
		frag("Plan", 701.5, 12), // within epsilon of 2.0
		frag("Second line", 680.0, 12),
	})

	require.Len(t, page.Blocks, 2)
	assert.Equal(t, "Watershed Plan", page.Blocks[0].Text)
	assert.Equal(t, "Second line", page.Blocks[1].Text)
}

func TestConverter_OrdersLinesTopToBottom(t *testing.T) {
	c := NewConverter(DefaultConfig())

	// Bottom-up coordinates: larger y is higher on the page.
	page := c.Convert([]pdf.Fragment{
		frag("bottom", 100, 10),
		frag("top", 700, 10),
		frag("middle", 400, 10),
	})

	require.Len(t, page.Blocks, 3)
	assert.Equal(t, "top", page.Blocks[0].Text)
	assert.Equal(t, "middle", page.Blocks[1].Text)
	assert.Equal(t, "bottom", page.Blocks[2].Text)
}

func TestConverter_HeadingLevelsFromFontSize(t *testing.T) {
	c := NewConverter(DefaultConfig())

	page := c.Convert([]pdf.Fragment{
		frag("Title", 700, 24),
		frag("Subtitle", 650, 19),
		frag("Body text one", 600, 10),
		frag("Body text two", 580, 10),
		frag("Body text three", 560, 10),
	})

	require.Len(t, page.Blocks, 5)
	assert.Equal(t, Block{Kind: BlockHeading, Level: 1, Text: "Title"}, page.Blocks[0])
	assert.Equal(t, Block{Kind: BlockHeading, Level: 2, Text: "Subtitle"}, page.Blocks[1])
	assert.Equal(t, BlockParagraph, page.Blocks[2].Kind)
}

func TestConverter_ThresholdsOrdering(t *testing.T) {
	c := NewConverter(DefaultConfig())

	samples := [][]float64{
		{10},
		{10, 10, 10},
		{8, 12, 36},
		{1, 1, 1, 100},
		{7.5, 9.25, 11},
	}
	for _, fs := range samples {
		h1, h2 := c.Thresholds(fs)
		assert.GreaterOrEqual(t, h1, h2, "h1 threshold must never drop below h2 for %v", fs)
	}

	h1, h2 := c.Thresholds(nil)
	assert.Zero(t, h1)
	assert.Zero(t, h2)
}

func TestConverter_DropsBlankLines(t *testing.T) {
	c := NewConverter(DefaultConfig())

	page := c.Convert([]pdf.Fragment{
		frag("   ", 700, 10),
		frag("real", 600, 10),
	})

	require.Len(t, page.Blocks, 1)
	assert.Equal(t, "real", page.Blocks[0].Text)
	assert.Equal(t, "real", page.PlainText())
}

func TestPage_HTMLEscapesLiteralText(t *testing.T) {
	c := NewConverter(DefaultConfig())

	page := c.Convert([]pdf.Fragment{
		frag("N < 3 mg/L & P > 0.1", 700, 10),
	})

	html := page.HTML(4)
	assert.Contains(t, html, `data-page="4"`)
	assert.Contains(t, html, "<p>N &lt; 3 mg/L &amp; P &gt; 0.1</p>")
}
