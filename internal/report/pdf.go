package report

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/loadpress/loadpress/pkg/errors"
)

// PDFRenderer renders a report as a PDF document.
type PDFRenderer struct{}

func (r *PDFRenderer) Kind() string      { return "pdf" }
func (r *PDFRenderer) Extension() string { return "pdf" }

func (r *PDFRenderer) Render(doc *Document, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Load Test Report - Task %d", doc.Task.ID))
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, pair := range summaryPairs(doc) {
		pdf.Cell(60, 6, pair[0])
		pdf.Cell(0, 6, pair[1])
		pdf.Ln(6)
	}
	pdf.Ln(6)

	if doc.Table != nil && len(doc.Table.Headers) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(40, 10, "Measurements")
		pdf.Ln(10)

		colWidth := 190.0 / float64(len(doc.Table.Headers))

		pdf.SetFont("Arial", "B", 8)
		for _, h := range doc.Table.Headers {
			pdf.CellFormat(colWidth, 6, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range doc.Table.Rows {
			for i := 0; i < len(doc.Table.Headers); i++ {
				cell := ""
				if i < len(row) {
					cell = row[i]
				}
				pdf.CellFormat(colWidth, 6, cell, "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return errors.NewInternalError("failed to write pdf report").WithCause(err)
	}
	return nil
}
