package store

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/DaveyBK/c-test-intake-app/internal/model"
)

// ExportAllResults builds the export payload for every stored result.
func (s *Store) ExportAllResults(now time.Time) (model.ResultExport, error) {
	results, err := s.ListResults()
	if err != nil {
		return model.ResultExport{}, fmt.Errorf("list results: %w", err)
	}
	return model.ResultExport{
		ExportedAt: now,
		NumResults: len(results),
		Results:    results,
	}, nil
}

// ExportResultsExcel renders all stored results as an xlsx workbook,
// one row per result.
func (s *Store) ExportResultsExcel(now time.Time) ([]byte, error) {
	export, err := s.ExportAllResults(now)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"id", "student_id", "test_version", "test_date", "num_items",
		"num_correct", "percentage", "score", "placement_level", "sync_status", "synced_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, r := range export.Results {
		row := i + 2
		syncedAt := ""
		if r.SyncedAt != nil {
			syncedAt = r.SyncedAt.Format("2006-01-02 15:04:05")
		}
		values := []any{
			r.ID,
			r.StudentID,
			r.TestVersion,
			r.TestDate.Format("2006-01-02 15:04:05"),
			r.NumItems,
			r.NumCorrect,
			r.Percentage,
			r.Score,
			r.PlacementLevel,
			string(r.SyncStatus),
			syncedAt,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "K", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
