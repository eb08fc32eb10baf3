package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

// pdfCellLimit keeps free-text answers from blowing up a table cell.
const pdfCellLimit = 120

// PDFExporter renders a Sheet into a landscape tabular PDF. The last
// column gets double width since it carries the answer text.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a single-table PDF document titled with sheet.Title.
func (e *PDFExporter) Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Columns) == 0 {
		return nil, fmt.Errorf("pdf requires at least one column")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if sheet.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, sheet.Title, "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	widths := columnWidths(len(sheet.Columns), 277)

	pdf.SetFont("Arial", "B", 10)
	for i, col := range sheet.Columns {
		pdf.CellFormat(widths[i], 8, col, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range sheet.Rows {
		for i := range sheet.Columns {
			var value string
			if i < len(row) {
				value = truncate(row[i], pdfCellLimit)
			}
			pdf.CellFormat(widths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths splits the usable width so the final column is twice as
// wide as the others.
func columnWidths(cols int, usable float64) []float64 {
	widths := make([]float64, cols)
	if cols == 1 {
		widths[0] = usable
		return widths
	}
	unit := usable / float64(cols+1)
	for i := 0; i < cols-1; i++ {
		widths[i] = unit
	}
	widths[cols-1] = unit * 2
	return widths
}

// truncate cuts on a rune boundary so multi-byte text stays valid UTF-8.
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "..."
}
