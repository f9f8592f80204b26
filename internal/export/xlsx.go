// Package export writes record snapshots to spreadsheet files.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"presswatch/internal/formatter"
	"presswatch/internal/models"
	"presswatch/internal/query"

	"github.com/xuri/excelize/v2"
)

const (
	// RecordsSheet holds one row per record.
	RecordsSheet = "Press Releases"
	// SummarySheet holds headline numbers of the export.
	SummarySheet = "Summary"
)

// Columns returns the core columns followed by the derived ones.
func Columns(derived []string) []string {
	return append(append([]string{}, models.CoreColumns...), derived...)
}

// WriteXLSX writes records to an Excel workbook at path. Link cells are
// written as hyperlinks.
func WriteXLSX(path string, records []models.Record, columns []string) error {
	if len(columns) == 0 {
		columns = models.CoreColumns
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeRow(f, RecordsSheet, 1, columns); err != nil {
		return err
	}

	linkCol := -1

	for i, c := range columns {
		if c == models.ColumnLink {
			linkCol = i + 1
		}
	}

	for i, r := range records {
		row := i + 2

		values := make([]string, len(columns))
		for j, c := range columns {
			values[j] = formatter.Value(r, c)
		}

		if err := writeRow(f, RecordsSheet, row, values); err != nil {
			return err
		}

		if linkCol > 0 && r.Link != "" {
			cell, err := excelize.CoordinatesToCellName(linkCol, row)
			if err != nil {
				return err
			}

			if err := f.SetCellHyperLink(RecordsSheet, cell, r.Link, "External"); err != nil {
				return fmt.Errorf("failed to link %s: %w", cell, err)
			}
		}
	}

	if err := writeSummary(f, query.Summarize(records)); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}

	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}

	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}

	return nil
}

func writeSummary(f *excelize.File, s query.Summary) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	rows := [][]string{
		{"Records", fmt.Sprint(s.Count)},
		{"Top company", s.TopCompany},
		{"Earliest", s.Earliest},
		{"Latest", s.Latest},
	}

	for i, r := range rows {
		if err := writeRow(f, SummarySheet, i+1, r); err != nil {
			return err
		}
	}

	return nil
}
