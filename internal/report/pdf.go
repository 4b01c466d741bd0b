package report

import (
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders doc as an A4 PDF using a core font.
func WritePDF(w io.Writer, doc Document) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Quiz Report", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 10, "Quiz Report", "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range doc.summaryLines() {
		pdf.MultiCell(0, 7, tr(line), "", "L", false)
	}
	pdf.Ln(4)

	for _, row := range doc.Rows {
		lines := row.lines()
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 7, tr(lines[0]), "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
		for _, line := range lines[1:] {
			pdf.MultiCell(0, 6, tr(line), "", "L", false)
		}
		pdf.Ln(3)
	}

	return pdf.Output(w)
}
