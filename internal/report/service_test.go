package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/clearbasin/planengine/internal/observability"
	"github.com/clearbasin/planengine/internal/storage"
)

func seedEntities(t *testing.T, store *storage.MemoryEntityStore, uploadID uuid.UUID) {
	t.Helper()
	records := []*storage.EntityRecord{
		{Category: storage.CategoryGoal, Fields: storage.JSONMap{
			"title":    "Reduce nitrogen",
			"progress": map[string]any{"value": 40.0, "unit": "%"},
		}},
		{Category: storage.CategoryGoal, Fields: storage.JSONMap{
			"title":    "Restore wetlands",
			"progress": map[string]any{"value": "60", "unit": "%"},
		}},
		{Category: storage.CategoryGoal, Fields: storage.JSONMap{
			"title": "Plan outreach",
		}},
		{Category: storage.CategoryBMP, Fields: storage.JSONMap{
			"name":     "Riparian buffer",
			"evidence": []any{"p.2"},
		}},
		{Category: storage.CategoryMonitoring, Fields: storage.JSONMap{
			"parameter": "Total Phosphorus",
		}},
	}
	for _, rec := range records {
		rec.UploadID = uploadID
		require.NoError(t, store.Save(context.Background(), rec))
	}
}

func TestBuildReport(t *testing.T) {
	store := storage.NewMemoryEntityStore()
	uploadID := uuid.New()
	seedEntities(t, store, uploadID)

	svc := NewService(store, observability.Nop())
	report, err := svc.Build(context.Background(), uploadID)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.TotalGoals)
	assert.Equal(t, 1, report.Summary.TotalBMPs)
	// Only the two goals with percentage progress participate.
	assert.InDelta(t, 50.0, report.Summary.CompletionRate, 0.001)
	assert.Len(t, report.Categories[storage.CategoryMonitoring], 1)
	assert.Empty(t, report.Categories[storage.CategoryOutreach])
}

func TestBuildReportEmptyDocument(t *testing.T) {
	svc := NewService(storage.NewMemoryEntityStore(), observability.Nop())
	report, err := svc.Build(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Summary.TotalGoals)
	assert.Zero(t, report.Summary.CompletionRate)
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		name string
		in   any
		pct  float64
		ok   bool
	}{
		{"number", map[string]any{"value": 35.5, "unit": "%"}, 35.5, true},
		{"string", map[string]any{"value": "80%", "unit": "%"}, 80, true},
		{"clamped", map[string]any{"value": 140.0, "unit": "%"}, 100, true},
		{"wrong unit", map[string]any{"value": 12.0, "unit": "mg/L"}, 0, false},
		{"no unit", map[string]any{"value": 12.0}, 0, false},
		{"not an object", "55%", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pct, ok := progressPercent(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.pct, pct, 0.001)
		})
	}
}

func TestExportXLSX(t *testing.T) {
	store := storage.NewMemoryEntityStore()
	uploadID := uuid.New()
	seedEntities(t, store, uploadID)

	svc := NewService(store, observability.Nop())
	report, err := svc.Build(context.Background(), uploadID)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plan.xlsx")
	require.NoError(t, ExportXLSX(report, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, "Goals")
	assert.Contains(t, sheets, "BMPs")
	assert.Contains(t, sheets, "Geographic Areas")

	rows, err := f.GetRows("Goals")
	require.NoError(t, err)
	// Header plus three goal records.
	require.Len(t, rows, 4)
	assert.Contains(t, rows[0], "title")

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, "Total goals", summary[1][0])
	assert.Equal(t, "3", summary[1][1])
}
