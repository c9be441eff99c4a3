package pdf

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Fragment is a positioned run of text with its font size, in the page's
// bottom-up coordinate system.
type Fragment struct {
	Text     string
	X        float64
	Y        float64
	FontSize float64
}

// Fragments returns the text fragments of one page (1-based) of the source
// document. The underlying reader panics on malformed content streams, so a
// failure is recovered and reported as an error scoped to that page only.
func Fragments(srcPath string, pageNr int) (frags []Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags = nil
			err = fmt.Errorf("parse page %d: %v", pageNr, r)
		}
	}()

	f, reader, err := pdf.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer f.Close()

	if pageNr < 1 || pageNr > reader.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1..%d)", pageNr, reader.NumPage())
	}

	page := reader.Page(pageNr)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d has no content", pageNr)
	}

	content := page.Content()
	frags = make([]Fragment, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		frags = append(frags, Fragment{
			Text:     t.S,
			X:        t.X,
			Y:        t.Y,
			FontSize: t.FontSize,
		})
	}
	return frags, nil
}
