package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbasin/planengine/internal/ai"
	"github.com/clearbasin/planengine/internal/config"
	"github.com/clearbasin/planengine/internal/observability"
	"github.com/clearbasin/planengine/internal/pdf"
	"github.com/clearbasin/planengine/internal/queue"
	"github.com/clearbasin/planengine/internal/storage"
)

type fakeUploads struct {
	upload *storage.Upload
}

func (f *fakeUploads) ResolveByID(_ context.Context, id uuid.UUID) (*storage.Upload, error) {
	if f.upload == nil || f.upload.ID != id {
		return nil, storage.ErrNotFound
	}
	return f.upload, nil
}

type fakeSplitter struct {
	artifacts []pdf.PageArtifact
	err       error
}

func (f *fakeSplitter) Split(_, _ string) ([]pdf.PageArtifact, error) {
	return f.artifacts, f.err
}

type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]*ai.ExtractionResult
	calls   int
}

func (f *fakeExtractor) ExtractPage(_ context.Context, markup string) (*ai.ExtractionResult, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for needle, result := range f.results {
		if strings.Contains(markup, needle) {
			return result, "raw response"
		}
	}
	return nil, ""
}

type recordingReconciler struct {
	mu      sync.Mutex
	results []*ai.ExtractionResult
}

func (r *recordingReconciler) Reconcile(_ context.Context, _ uuid.UUID, result *ai.ExtractionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

// lineFragments lays each input line out as one fragment per descending
// y position with a body font size.
func lineFragments(lines ...string) []pdf.Fragment {
	frags := make([]pdf.Fragment, 0, len(lines))
	y := 700.0
	for _, line := range lines {
		frags = append(frags, pdf.Fragment{Text: line, X: 72, Y: y, FontSize: 10})
		y -= 14
	}
	return frags
}

type fixture struct {
	processor *Processor
	uploadID  uuid.UUID
	pages     *storage.MemoryPageStore
	artifacts *storage.MemoryArtifactStore
	extractor *fakeExtractor
	reconcile *recordingReconciler
}

func newFixture(t *testing.T, pageLines map[int][]string, pageErrs map[int]error, results map[string]*ai.ExtractionResult) *fixture {
	t.Helper()
	uploadID := uuid.New()
	artifacts := make([]pdf.PageArtifact, 0, len(pageLines))
	for n := 1; n <= len(pageLines)+len(pageErrs); n++ {
		artifacts = append(artifacts, pdf.PageArtifact{PageNumber: n, Path: fmt.Sprintf("page-%d.pdf", n)})
	}

	fragments := func(path string, _ int) ([]pdf.Fragment, error) {
		var pageNr int
		fmt.Sscanf(path, "page-%d.pdf", &pageNr)
		if err := pageErrs[pageNr]; err != nil {
			return nil, err
		}
		return lineFragments(pageLines[pageNr]...), nil
	}

	f := &fixture{
		uploadID:  uploadID,
		pages:     storage.NewMemoryPageStore(),
		artifacts: storage.NewMemoryArtifactStore(),
		extractor: &fakeExtractor{results: results},
		reconcile: &recordingReconciler{},
	}
	cfg := config.ExtractionConfig{
		PageConcurrency: 2,
		LineEpsilon:     2.0,
		H1Ratio:         1.45,
		H2Ratio:         1.2,
		H1MaxRatio:      0.9,
		H2MaxRatio:      0.75,
		MinTableColumns: 3,
	}
	f.processor = NewProcessor(cfg, t.TempDir(), Deps{
		Uploads:   &fakeUploads{upload: &storage.Upload{ID: uploadID, Path: "missing.pdf"}},
		Pages:     f.pages,
		Artifacts: f.artifacts,
		Splitter:  &fakeSplitter{artifacts: artifacts},
		Fragments: fragments,
		Extractor: f.extractor,
		Reconcile: f.reconcile,
	}, observability.Nop())
	return f
}

func (f *fixture) run(t *testing.T) error {
	t.Helper()
	job := &queue.Job{
		ID:      uuid.New(),
		Kind:    queue.KindExtractPDF,
		Payload: map[string]any{"uploadId": f.uploadID.String()},
	}
	return f.processor.Process(context.Background(), job)
}

func TestProcessTwoPlainPages(t *testing.T) {
	goals := &ai.ExtractionResult{Goals: []map[string]any{{"title": "Reduce nitrogen"}}}
	f := newFixture(t, map[int][]string{
		1: {"Watershed Plan Overview", "The plan covers the upper basin."},
		2: {"Water quality goals are described here."},
	}, nil, map[string]*ai.ExtractionResult{"Watershed Plan Overview": goals})

	require.NoError(t, f.run(t))

	records, err := f.pages.ListByUpload(context.Background(), f.uploadID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, storage.PageStatusDone, rec.Status)
		require.NotNil(t, rec.ExtractedHTML)
		assert.Contains(t, *rec.ExtractedHTML, fmt.Sprintf(`data-page="%d"`, rec.PageNumber))

		tabs, err := f.artifacts.ListTablesByPage(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Empty(t, tabs)
	}

	// Page one matched the model fixture, page two degraded.
	require.NotNil(t, records[0].StructuredResult)
	assert.Contains(t, *records[0].StructuredResult, "Reduce nitrogen")
	assert.Nil(t, records[1].StructuredResult)

	require.Len(t, f.reconcile.results, 1)
	assert.Equal(t, goals, f.reconcile.results[0])
	assert.Equal(t, 2, f.extractor.calls)
}

func TestProcessWithoutModelCredentials(t *testing.T) {
	f := newFixture(t, map[int][]string{
		1: {"A page the model never sees."},
	}, nil, nil)

	require.NoError(t, f.run(t))

	records, err := f.pages.ListByUpload(context.Background(), f.uploadID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, storage.PageStatusDone, records[0].Status)
	assert.Nil(t, records[0].StructuredResult)
	assert.Nil(t, records[0].RawModelOutput)
	assert.Empty(t, f.reconcile.results)
}

func TestProcessMarksUnparsablePage(t *testing.T) {
	f := newFixture(t, map[int][]string{
		1: {"Readable page."},
	}, map[int]error{2: fmt.Errorf("parse page 2: malformed content stream")}, nil)

	require.NoError(t, f.run(t))

	records, err := f.pages.ListByUpload(context.Background(), f.uploadID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, storage.PageStatusDone, records[0].Status)
	assert.Equal(t, storage.PageStatusError, records[1].Status)
	assert.Nil(t, records[1].ExtractedText)
	assert.Equal(t, 1, f.extractor.calls)
}

func TestProcessDetectsTextTables(t *testing.T) {
	f := newFixture(t, map[int][]string{
		1: {
			"Monitoring Schedule",
			"Parameter    Frequency    Station",
			"Nitrogen     Monthly      ST-01",
			"Phosphorus   Quarterly    ST-02",
		},
	}, nil, nil)

	require.NoError(t, f.run(t))

	records, err := f.pages.ListByUpload(context.Background(), f.uploadID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	tabs, err := f.artifacts.ListTablesByPage(context.Background(), records[0].ID)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, 1, tabs[0].Index)
	assert.Contains(t, tabs[0].Path, "page-1-table-1.html")
}

func TestProcessRejectsBadPayload(t *testing.T) {
	f := newFixture(t, map[int][]string{1: {"x"}}, nil, nil)

	job := &queue.Job{ID: uuid.New(), Kind: queue.KindExtractPDF, Payload: map[string]any{}}
	err := f.processor.Process(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploadId")

	job.Payload = map[string]any{"uploadId": "not-a-uuid"}
	assert.Error(t, f.processor.Process(context.Background(), job))
}

func TestProcessFailsWhenUploadMissing(t *testing.T) {
	f := newFixture(t, map[int][]string{1: {"x"}}, nil, nil)
	job := &queue.Job{
		ID:      uuid.New(),
		Kind:    queue.KindExtractPDF,
		Payload: map[string]any{"uploadId": uuid.New().String()},
	}
	err := f.processor.Process(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
