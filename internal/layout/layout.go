// Package layout converts positioned text fragments into a lightweight
// markup tree plus a plain-text rendering.
package layout

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/clearbasin/planengine/internal/pdf"
)

// BlockKind classifies a layout block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
)

// Block is one line of the page classified by the heading heuristic.
type Block struct {
	Kind BlockKind
	// Level is 1 or 2 for headings, 0 for paragraphs.
	Level int
	Text  string
}

// Page is the markup tree for a single page.
type Page struct {
	Blocks []Block
}

// Config holds the converter's heuristic constants.
type Config struct {
	// LineEpsilon is the vertical clustering tolerance: two fragments belong
	// to the same line iff their y coordinates differ by at most this much.
	LineEpsilon float64
	// H1Ratio/H2Ratio scale the page mean font size, H1MaxRatio/H2MaxRatio
	// the page max font size. A heading threshold is the larger of the two.
	H1Ratio    float64
	H2Ratio    float64
	H1MaxRatio float64
	H2MaxRatio float64
}

// DefaultConfig mirrors the documented heuristic defaults.
func DefaultConfig() Config {
	return Config{
		LineEpsilon: 2.0,
		H1Ratio:     1.45,
		H2Ratio:     1.2,
		H1MaxRatio:  0.9,
		H2MaxRatio:  0.75,
	}
}

// Converter clusters fragments into lines and infers heading levels from
// relative font size.
type Converter struct {
	cfg Config
}

// NewConverter creates a Converter with the given config.
func NewConverter(cfg Config) *Converter {
	if cfg.LineEpsilon <= 0 {
		cfg = DefaultConfig()
	}
	return &Converter{cfg: cfg}
}

type line struct {
	y     float64
	parts []pdf.Fragment
}

// Thresholds returns the h1/h2 heading thresholds for a font-size sample.
// h1 is always >= h2.
func (c *Converter) Thresholds(fontSizes []float64) (h1, h2 float64) {
	if len(fontSizes) == 0 {
		return 0, 0
	}
	var sum, max float64
	for _, s := range fontSizes {
		sum += s
		if s > max {
			max = s
		}
	}
	mean := sum / float64(len(fontSizes))
	h1 = math.Max(mean*c.cfg.H1Ratio, max*c.cfg.H1MaxRatio)
	h2 = math.Max(mean*c.cfg.H2Ratio, max*c.cfg.H2MaxRatio)
	return h1, h2
}

// Convert builds the markup tree for one page's fragments. Lines are ordered
// top to bottom (descending y in the bottom-up page coordinate system);
// blank lines are dropped.
func (c *Converter) Convert(frags []pdf.Fragment) Page {
	var lines []*line
	for _, f := range frags {
		var target *line
		for _, l := range lines {
			if math.Abs(l.y-f.Y) <= c.cfg.LineEpsilon {
				target = l
				break
			}
		}
		if target == nil {
			target = &line{y: f.Y}
			lines = append(lines, target)
		}
		target.parts = append(target.parts, f)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var fontSizes []float64
	for _, l := range lines {
		for _, p := range l.parts {
			fontSizes = append(fontSizes, p.FontSize)
		}
	}
	h1, h2 := c.Thresholds(fontSizes)

	var page Page
	for _, l := range lines {
		var b strings.Builder
		var sizeSum float64
		for _, p := range l.parts {
			b.WriteString(p.Text)
			sizeSum += p.FontSize
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		lineMean := sizeSum / float64(len(l.parts))

		switch {
		case lineMean >= h1:
			page.Blocks = append(page.Blocks, Block{Kind: BlockHeading, Level: 1, Text: text})
		case lineMean >= h2:
			page.Blocks = append(page.Blocks, Block{Kind: BlockHeading, Level: 2, Text: text})
		default:
			page.Blocks = append(page.Blocks, Block{Kind: BlockParagraph, Text: text})
		}
	}
	return page
}

// PlainText renders the page one line per block.
func (p Page) PlainText() string {
	out := make([]string, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		out = append(out, b.Text)
	}
	return strings.Join(out, "\n")
}

// HTML renders the markup tree. Literal text is always escaped.
func (p Page) HTML(pageNumber int) string {
	var b strings.Builder
	b.WriteString(`<section data-page="`)
	b.WriteString(strconv.Itoa(pageNumber))
	b.WriteString(`"><div class="pdf-page">`)
	for _, blk := range p.Blocks {
		switch {
		case blk.Kind == BlockHeading && blk.Level == 1:
			b.WriteString("<h1>" + EscapeHTML(blk.Text) + "</h1>")
		case blk.Kind == BlockHeading:
			b.WriteString("<h2>" + EscapeHTML(blk.Text) + "</h2>")
		default:
			b.WriteString("<p>" + EscapeHTML(blk.Text) + "</p>")
		}
	}
	b.WriteString("</div></section>")
	return b.String()
}

// EscapeHTML escapes the markup-significant characters of literal text.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
