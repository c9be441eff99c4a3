// Package pipeline implements the document extraction job: split, per-page
// layout recovery, table and image artifacts, model extraction and entity
// reconciliation.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clearbasin/planengine/internal/ai"
	"github.com/clearbasin/planengine/internal/config"
	"github.com/clearbasin/planengine/internal/layout"
	"github.com/clearbasin/planengine/internal/observability"
	"github.com/clearbasin/planengine/internal/pdf"
	"github.com/clearbasin/planengine/internal/queue"
	"github.com/clearbasin/planengine/internal/storage"
	"github.com/clearbasin/planengine/internal/tables"
)

// Splitter produces one sub-document per page.
type Splitter interface {
	Split(srcPath, destDir string) ([]pdf.PageArtifact, error)
}

// FragmentReader reads positioned text fragments from one page of a document.
type FragmentReader func(srcPath string, pageNr int) ([]pdf.Fragment, error)

// ImageExtractor pulls embedded raster images out of a document.
type ImageExtractor interface {
	Extract(srcPath, destDir string) ([]pdf.Image, error)
}

// VisualTableExtractor detects tables from page geometry via an external
// tool. Enabled reports whether the tool is configured at all.
type VisualTableExtractor interface {
	Enabled() bool
	Extract(ctx context.Context, srcPath string) (map[int][]tables.Table, error)
}

// PageExtractor turns page markup into a structured extraction result.
type PageExtractor interface {
	ExtractPage(ctx context.Context, markup string) (*ai.ExtractionResult, string)
}

// Reconciler folds one page's extraction result into the document's records.
type Reconciler interface {
	Reconcile(ctx context.Context, uploadID uuid.UUID, result *ai.ExtractionResult) error
}

// Processor handles extract_pdf jobs end to end.
type Processor struct {
	uploads   storage.UploadStore
	pages     storage.PageStore
	artifacts storage.ArtifactStore

	splitter  Splitter
	fragments FragmentReader
	images    ImageExtractor
	visual    VisualTableExtractor
	textTab   *tables.TextDetector
	converter *layout.Converter
	extractor PageExtractor
	reconcile Reconciler

	storageDir  string
	concurrency int
	logger      *observability.Logger
}

// Deps bundles the processor's collaborators.
type Deps struct {
	Uploads   storage.UploadStore
	Pages     storage.PageStore
	Artifacts storage.ArtifactStore
	Splitter  Splitter
	Fragments FragmentReader
	Images    ImageExtractor
	Visual    VisualTableExtractor
	Extractor PageExtractor
	Reconcile Reconciler
}

// NewProcessor wires an extraction processor from configuration and stores.
func NewProcessor(cfg config.ExtractionConfig, storageDir string, deps Deps, logger *observability.Logger) *Processor {
	layoutCfg := layout.Config{
		LineEpsilon: cfg.LineEpsilon,
		H1Ratio:     cfg.H1Ratio,
		H2Ratio:     cfg.H2Ratio,
		H1MaxRatio:  cfg.H1MaxRatio,
		H2MaxRatio:  cfg.H2MaxRatio,
	}
	concurrency := cfg.PageConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{
		uploads:     deps.Uploads,
		pages:       deps.Pages,
		artifacts:   deps.Artifacts,
		splitter:    deps.Splitter,
		fragments:   deps.Fragments,
		images:      deps.Images,
		visual:      deps.Visual,
		textTab:     tables.NewTextDetector(cfg.MinTableColumns),
		converter:   layout.NewConverter(layoutCfg),
		extractor:   deps.Extractor,
		reconcile:   deps.Reconcile,
		storageDir:  storageDir,
		concurrency: concurrency,
		logger:      logger.WithComponent("pipeline"),
	}
}

// Process runs one extraction job. Per-page parse failures mark that page
// and continue; failures that invalidate the whole document fail the job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	uploadID, err := uploadIDFromPayload(job.Payload)
	if err != nil {
		return err
	}
	logger := p.logger.WithJob(job.ID.String())

	upload, err := p.uploads.ResolveByID(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("resolve upload %s: %w", uploadID, err)
	}
	if sum, sumErr := fileChecksum(upload.Path); sumErr == nil {
		logger.Info().
			Str("upload", upload.ID.String()).
			Str("sha256", sum).
			Msg("processing document")
	}

	docDir := filepath.Join(p.storageDir, upload.ID.String())
	artifacts, err := p.splitter.Split(upload.Path, filepath.Join(docDir, "pages"))
	if err != nil {
		return fmt.Errorf("split document: %w", err)
	}
	for _, art := range artifacts {
		if _, err := p.pages.UpsertSplit(ctx, upload.ID, art.PageNumber, art.Path); err != nil {
			return fmt.Errorf("record page %d split: %w", art.PageNumber, err)
		}
	}

	visualTables := p.extractVisualTables(ctx, logger, upload.Path)
	pageImages := p.extractImages(logger, upload.Path, filepath.Join(docDir, "images"))

	extracted := make([]*storage.PageRecord, 0, len(artifacts))
	for _, art := range artifacts {
		rec, ok := p.processPage(ctx, logger, upload.ID, art, visualTables[art.PageNumber], pageImages[art.PageNumber], filepath.Join(docDir, "tables"))
		if ok {
			extracted = append(extracted, rec)
		}
	}

	results, err := p.runModelExtraction(ctx, extracted)
	if err != nil {
		return err
	}

	// Reconciliation is serial in page order so each page sees the records
	// the previous pages produced.
	for i, rec := range extracted {
		if results[i] == nil {
			continue
		}
		if err := p.reconcile.Reconcile(ctx, upload.ID, results[i]); err != nil {
			return fmt.Errorf("reconcile page %d: %w", rec.PageNumber, err)
		}
	}

	logger.Info().
		Int("pages", len(artifacts)).
		Int("extracted", len(extracted)).
		Msg("document processed")
	return nil
}

func (p *Processor) extractVisualTables(ctx context.Context, logger *observability.Logger, srcPath string) map[int][]tables.Table {
	if p.visual == nil || !p.visual.Enabled() {
		return nil
	}
	byPage, err := p.visual.Extract(ctx, srcPath)
	if err != nil {
		logger.Warn().Err(err).Msg("visual table extraction failed, keeping text heuristic only")
		return nil
	}
	return byPage
}

func (p *Processor) extractImages(logger *observability.Logger, srcPath, destDir string) map[int][]pdf.Image {
	if p.images == nil {
		return nil
	}
	imgs, err := p.images.Extract(srcPath, destDir)
	if err != nil {
		logger.Warn().Err(err).Msg("image extraction failed, continuing without images")
		return nil
	}
	byPage := make(map[int][]pdf.Image)
	for _, img := range imgs {
		byPage[img.PageNumber] = append(byPage[img.PageNumber], img)
	}
	return byPage
}

// processPage recovers layout and artifacts for one page. A parse failure
// marks the page and reports ok=false; the rest of the document continues.
func (p *Processor) processPage(ctx context.Context, logger *observability.Logger, uploadID uuid.UUID, art pdf.PageArtifact, visual []tables.Table, images []pdf.Image, tablesDir string) (*storage.PageRecord, bool) {
	frags, err := p.fragments(art.Path, 1)
	if err != nil {
		logger.Warn().Err(err).Int("page", art.PageNumber).Msg("page parse failed")
		if markErr := p.pages.MarkError(ctx, uploadID, art.PageNumber); markErr != nil {
			logger.Error().Err(markErr).Int("page", art.PageNumber).Msg("could not mark page errored")
		}
		return nil, false
	}

	page := p.converter.Convert(frags)
	text := page.PlainText()
	html := page.HTML(art.PageNumber)

	rec, err := p.pages.UpsertExtracted(ctx, uploadID, art.PageNumber, html, text, storage.PageStatusDone)
	if err != nil {
		logger.Error().Err(err).Int("page", art.PageNumber).Msg("could not persist extracted page")
		return nil, false
	}

	detected := append(p.textTab.Detect(text), visual...)
	for i, tab := range detected {
		if err := p.saveTable(ctx, rec, i+1, tab, tablesDir); err != nil {
			logger.Error().Err(err).Int("page", art.PageNumber).Int("table", i+1).Msg("could not persist table artifact")
		}
	}
	for i, img := range images {
		if err := p.artifacts.SaveImage(ctx, &storage.ImageArtifact{
			PageRecordID: rec.ID,
			Index:        i + 1,
			Path:         img.Path,
		}); err != nil {
			logger.Error().Err(err).Int("page", art.PageNumber).Int("image", i+1).Msg("could not persist image artifact")
		}
	}
	return rec, true
}

func (p *Processor) saveTable(ctx context.Context, rec *storage.PageRecord, idx int, tab tables.Table, tablesDir string) error {
	if err := os.MkdirAll(tablesDir, 0o755); err != nil {
		return fmt.Errorf("ensure tables dir: %w", err)
	}
	path := filepath.Join(tablesDir, fmt.Sprintf("page-%d-table-%d.html", rec.PageNumber, idx))
	if err := os.WriteFile(path, []byte(tab.HTML()), 0o644); err != nil {
		return fmt.Errorf("write table artifact: %w", err)
	}
	return p.artifacts.SaveTable(ctx, &storage.TableArtifact{
		PageRecordID: rec.ID,
		Index:        idx,
		Path:         path,
	})
}

// runModelExtraction sends page markup through the model with a bounded
// pool. Results line up with the input slice; nil means the page degraded.
func (p *Processor) runModelExtraction(ctx context.Context, recs []*storage.PageRecord) ([]*ai.ExtractionResult, error) {
	results := make([]*ai.ExtractionResult, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			markup := ""
			if rec.ExtractedHTML != nil {
				markup = *rec.ExtractedHTML
			}
			result, raw := p.extractor.ExtractPage(gctx, markup)

			var structured, rawOut *string
			if result != nil {
				if encoded, err := json.Marshal(result); err == nil {
					s := string(encoded)
					structured = &s
				}
			}
			if raw != "" {
				rawOut = &raw
			}
			if err := p.pages.SetModelResult(gctx, rec.ID, structured, rawOut); err != nil {
				return fmt.Errorf("persist model result for page %d: %w", rec.PageNumber, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func uploadIDFromPayload(payload map[string]any) (uuid.UUID, error) {
	raw, _ := payload["uploadId"].(string)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("job payload has no uploadId")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("job payload uploadId: %w", err)
	}
	return id, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
