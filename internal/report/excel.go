package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/loadpress/loadpress/pkg/errors"
)

// ExcelRenderer renders a report as an xlsx workbook with a summary sheet
// and a measurements sheet.
type ExcelRenderer struct{}

func (r *ExcelRenderer) Kind() string      { return "excel" }
func (r *ExcelRenderer) Extension() string { return "xlsx" }

func (r *ExcelRenderer) Render(doc *Document, outPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return errors.NewInternalError("failed to build excel report").WithCause(err)
	}

	if err := f.SetCellValue(summarySheet, "A1", fmt.Sprintf("Load Test Report - Task %d", doc.Task.ID)); err != nil {
		return errors.NewInternalError("failed to build excel report").WithCause(err)
	}

	row := 3
	for _, pair := range summaryPairs(doc) {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), pair[0])
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), pair[1])
		row++
	}

	if doc.Table != nil && len(doc.Table.Headers) > 0 {
		const dataSheet = "Measurements"
		if _, err := f.NewSheet(dataSheet); err != nil {
			return errors.NewInternalError("failed to build excel report").WithCause(err)
		}

		for col, h := range doc.Table.Headers {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return errors.NewInternalError("failed to build excel report").WithCause(err)
			}
			f.SetCellValue(dataSheet, cell, h)
		}
		for i, rowData := range doc.Table.Rows {
			for col, val := range rowData {
				cell, err := excelize.CoordinatesToCellName(col+1, i+2)
				if err != nil {
					return errors.NewInternalError("failed to build excel report").WithCause(err)
				}
				f.SetCellValue(dataSheet, cell, val)
			}
		}
	}

	if err := f.SaveAs(outPath); err != nil {
		return errors.NewInternalError("failed to write excel report").WithCause(err)
	}
	return nil
}
