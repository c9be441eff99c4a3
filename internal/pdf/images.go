package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Image is an exportable raster image extracted from a page.
type Image struct {
	PageNumber int
	// Index is 1-based within the page.
	Index int
	Path  string
	// Ext is jpg for baseline-JPEG streams, jp2 for JPEG2000.
	Ext string
}

// exportableExts lists stream encodings exported as-is. Other encodings
// (raw/indexed bitmaps, CCITT fax) are skipped.
var exportableExts = map[string]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"jp2":  "jp2",
	"jpx":  "jp2",
}

// extractedName matches pdfcpu's extract naming: <base>_<page>_<resource>.<ext>
var extractedName = regexp.MustCompile(`_(\d+)_[^_]*\.([A-Za-z0-9]+)$`)

// ImageExtractor pulls baseline-JPEG and JPEG2000 image streams out of a
// source document and writes them to per-upload artifact storage.
type ImageExtractor struct{}

// NewImageExtractor creates an ImageExtractor.
func NewImageExtractor() *ImageExtractor {
	return &ImageExtractor{}
}

// Extract writes exportable images into destDir as image-<page>-<index>.<ext>
// and returns them grouped in (page, index) order.
func (e *ImageExtractor) Extract(srcPath, destDir string) ([]Image, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure artifact dir: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "planengine-images-*")
	if err != nil {
		return nil, fmt.Errorf("create image temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractImagesFile(srcPath, tmpDir, nil, nil); err != nil {
		return nil, fmt.Errorf("extract images %s: %w", srcPath, err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("read image temp dir: %w", err)
	}

	type candidate struct {
		page int
		name string
		ext  string
	}
	var kept []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := extractedName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		ext, ok := exportableExts[strings.ToLower(m[2])]
		if !ok {
			continue
		}
		page, err := strconv.Atoi(m[1])
		if err != nil || page < 1 {
			continue
		}
		kept = append(kept, candidate{page: page, name: entry.Name(), ext: ext})
	}

	// Stable (page, name) order so indices are deterministic.
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].page != kept[j].page {
			return kept[i].page < kept[j].page
		}
		return kept[i].name < kept[j].name
	})

	out := make([]Image, 0, len(kept))
	perPage := map[int]int{}
	for _, c := range kept {
		perPage[c.page]++
		dest := filepath.Join(destDir, fmt.Sprintf("image-%d-%d.%s", c.page, perPage[c.page], c.ext))
		if err := moveFile(filepath.Join(tmpDir, c.name), dest); err != nil {
			return nil, fmt.Errorf("place image artifact: %w", err)
		}
		out = append(out, Image{
			PageNumber: c.page,
			Index:      perPage[c.page],
			Path:       dest,
			Ext:        c.ext,
		})
	}
	return out, nil
}
