// Package report turns the volumes CSV produced by a segmentation run into a
// formatted spreadsheet and summary statistics.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Sheet names inside the generated workbook.
const (
	VolumesSheet = "Brain Volumes"
	SummarySheet = "Summary"
)

// maxColumnWidth caps auto-sized columns; subject paths can be very long.
const maxColumnWidth = 50

// Conversion reports the shape of the converted table. Rows counts data rows,
// the header excluded.
type Conversion struct {
	Rows    int
	Columns int
}

// ConvertCSV reads a volumes CSV and writes it as an .xlsx workbook. The
// "Brain Volumes" sheet preserves the CSV shape cell for cell; a "Summary"
// sheet adds per-subject statistics. Column widths grow with their content.
func ConvertCSV(csvPath, xlsxPath string) (*Conversion, error) {
	records, err := readCSV(csvPath)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", VolumesSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, record := range records {
		row := make([]interface{}, len(record))
		for j, value := range record {
			// Header cells stay text; numeric-looking data cells become numbers.
			if i > 0 {
				if num, err := strconv.ParseFloat(value, 64); err == nil {
					row[j] = num
					continue
				}
			}
			row[j] = value
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(VolumesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	for j := range records[0] {
		col, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to name column %d: %w", j+1, err)
		}
		if err := f.SetColWidth(VolumesSheet, col, col, columnWidth(records, j)); err != nil {
			return nil, fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	if err := writeSummarySheet(f, records); err != nil {
		return nil, err
	}

	if err := f.SaveAs(xlsxPath); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", xlsxPath, err)
	}
	return &Conversion{Rows: len(records) - 1, Columns: len(records[0])}, nil
}

// columnWidth sizes a column to its longest cell, header included, plus
// padding, capped at maxColumnWidth.
func columnWidth(records [][]string, col int) float64 {
	longest := 0
	for _, record := range records {
		if col < len(record) && len(record[col]) > longest {
			longest = len(record[col])
		}
	}
	width := float64(longest + 2)
	if width > maxColumnWidth {
		width = maxColumnWidth
	}
	return width
}

// writeSummarySheet appends one statistics row per subject.
func writeSummarySheet(f *excelize.File, records [][]string) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	classes := classColumns()
	header := append([]interface{}{"subject", "regions", "total volume", "mean", "std dev", "min", "max"},
		toAny(classes)...)
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}

	for i, record := range records[1:] {
		stats := Summarize(records[0], record)
		row := []interface{}{
			stats.Subject,
			stats.Regions,
			stats.Total,
			stats.Mean,
			stats.StdDev,
			stats.Min,
			stats.Max,
		}
		for _, class := range classes {
			row = append(row, stats.ByClass[class])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address summary row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+2, err)
		}
	}
	return nil
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// readCSV loads the whole table and rejects shapes the converter cannot
// represent faithfully.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return records, nil
}
