// Package pdf wraps source-document access: page splitting, positioned text
// fragments and embedded image extraction.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageArtifact is a single-page sub-document written to disk.
type PageArtifact struct {
	PageNumber int
	Path       string
}

// Splitter produces one single-page PDF artifact per page of a source
// document.
type Splitter struct{}

// NewSplitter creates a Splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// PageCount returns the number of pages in the source document.
func (s *Splitter) PageCount(srcPath string) (int, error) {
	n, err := api.PageCountFile(srcPath)
	if err != nil {
		return 0, fmt.Errorf("page count %s: %w", srcPath, err)
	}
	return n, nil
}

// Split writes page-N.pdf artifacts into destDir and returns them in page
// order.
func (s *Splitter) Split(srcPath, destDir string) ([]PageArtifact, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure artifact dir: %w", err)
	}

	total, err := s.PageCount(srcPath)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "planengine-split-*")
	if err != nil {
		return nil, fmt.Errorf("create split temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.SplitFile(srcPath, tmpDir, 1, nil); err != nil {
		return nil, fmt.Errorf("split %s: %w", srcPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	out := make([]PageArtifact, 0, total)
	for pageNr := 1; pageNr <= total; pageNr++ {
		src := filepath.Join(tmpDir, fmt.Sprintf("%s_%d.pdf", base, pageNr))
		dest := filepath.Join(destDir, fmt.Sprintf("page-%d.pdf", pageNr))
		if err := moveFile(src, dest); err != nil {
			return nil, fmt.Errorf("place page %d artifact: %w", pageNr, err)
		}
		out = append(out, PageArtifact{PageNumber: pageNr, Path: dest})
	}
	return out, nil
}

func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copy.
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, raw, 0o644)
}
