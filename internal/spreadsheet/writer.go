// Package spreadsheet renders structured statement data to an XLSX workbook.
package spreadsheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/statement"
)

const (
	dataSheet    = "Bank Statement"
	summarySheet = "Summary"
)

// Writer renders conversion results to disk.
type Writer struct {
	logger *observability.Logger
}

// NewWriter creates a spreadsheet writer.
func NewWriter(logger *observability.Logger) *Writer {
	return &Writer{logger: logger}
}

// Generate writes the table to an XLSX workbook at path. The data sheet gets
// a styled, frozen header row with an auto-filter; amount columns are written
// as numbers so spreadsheet formulas work on them. A second sheet summarises
// the conversion.
func (w *Writer) Generate(table statement.TableData, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return fmt.Errorf("rename data sheet: %w", err)
	}

	if err := w.writeData(f, table); err != nil {
		return err
	}

	if err := w.writeSummary(f, table); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	w.logger.Debug().Str("path", path).Int("rows", table.RowCount()).Msg("Workbook generated")
	return nil
}

func (w *Writer) writeData(f *excelize.File, table statement.TableData) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range table.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(dataSheet, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(dataSheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		width := 16.0
		if strings.EqualFold(header, "Description") {
			width = 42.0
		}
		if err := f.SetColWidth(dataSheet, name, name, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for rowIdx, row := range table.Rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("data cell name: %w", err)
			}

			if colIdx < len(table.Headers) && isAmountColumn(table.Headers[colIdx]) {
				if num, ok := statement.NormalizeAmount(value); ok {
					if err := f.SetCellValue(dataSheet, cell, num); err != nil {
						return fmt.Errorf("write amount cell: %w", err)
					}
					continue
				}
			}

			if err := f.SetCellValue(dataSheet, cell, value); err != nil {
				return fmt.Errorf("write data cell: %w", err)
			}
		}
	}

	if err := f.SetPanes(dataSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header row: %w", err)
	}

	if len(table.Headers) > 0 {
		lastCol, err := excelize.ColumnNumberToName(len(table.Headers))
		if err != nil {
			return fmt.Errorf("filter column name: %w", err)
		}
		filterRange := fmt.Sprintf("A1:%s%d", lastCol, len(table.Rows)+1)
		if err := f.AutoFilter(dataSheet, filterRange, nil); err != nil {
			return fmt.Errorf("set auto-filter: %w", err)
		}
	}

	return nil
}

func (w *Writer) writeSummary(f *excelize.File, table statement.TableData) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	cells := [][2]any{
		{"Total Records", table.RowCount()},
		{"Columns", len(table.Headers)},
		{"Generated At", time.Now().UTC().Format(time.RFC3339)},
	}

	for i, pair := range cells {
		row := i + 1
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), pair[0]); err != nil {
			return fmt.Errorf("write summary label: %w", err)
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), pair[1]); err != nil {
			return fmt.Errorf("write summary value: %w", err)
		}
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 20); err != nil {
		return fmt.Errorf("set summary width: %w", err)
	}
	return nil
}

func isAmountColumn(header string) bool {
	h := strings.ToLower(header)
	return strings.Contains(h, "amount") || strings.Contains(h, "balance")
}
