package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/clearbasin/planengine/internal/storage"
)

var sheetNames = map[storage.Category]string{
	storage.CategoryGoal:           "Goals",
	storage.CategoryBMP:            "BMPs",
	storage.CategoryImplementation: "Implementation",
	storage.CategoryMonitoring:     "Monitoring",
	storage.CategoryOutreach:       "Outreach",
	storage.CategoryGeographicArea: "Geographic Areas",
}

// ExportXLSX writes a workbook with a summary sheet plus one sheet per
// entity category.
func ExportXLSX(report *Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, report); err != nil {
		return err
	}
	for _, category := range storage.Categories {
		if err := writeCategorySheet(f, category, report.Categories[category]); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write workbook %s: %w", path, err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, report *Report) error {
	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	rows := [][]any{
		{"Document", report.UploadID.String()},
		{"Total goals", report.Summary.TotalGoals},
		{"Total BMPs", report.Summary.TotalBMPs},
		{"Completion rate (%)", report.Summary.CompletionRate},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeCategorySheet(f *excelize.File, category storage.Category, records []*storage.EntityRecord) error {
	sheet := sheetNames[category]
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	columns := columnKeys(records)
	header := make([]any, len(columns))
	for i, key := range columns {
		header[i] = key
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	for i, rec := range records {
		row := make([]any, len(columns))
		for j, key := range columns {
			row[j] = cellValue(rec.Fields[key])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// columnKeys collects every field key seen across the records, sorted for a
// stable layout.
func columnKeys(records []*storage.EntityRecord) []string {
	seen := map[string]struct{}{}
	for _, rec := range records {
		for key := range rec.Fields {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// cellValue renders a field for a spreadsheet cell. Scalars pass through,
// structured values serialize to compact JSON.
func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
