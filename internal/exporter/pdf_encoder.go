package exporter

import (
	"io"

	"github.com/go-pdf/fpdf"
)

const pdfRowHeight = 7.0

// PDFEncoder implements RowEncoder as a landscape A4 grid. The header is
// repeated on every page. The whole document is held in memory until Close.
type PDFEncoder struct {
	pdf       *fpdf.Fpdf
	w         io.Writer
	tr        func(string) string
	columns   []string
	cellWidth float64
	closed    bool
	err       error
}

func NewPDFEncoder(w io.Writer) *PDFEncoder {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 10)
	e := &PDFEncoder{
		pdf: pdf,
		w:   w,
		// Core fonts are cp1252; translate UTF-8 input instead of emitting mojibake.
		tr: pdf.UnicodeTranslatorFromDescriptor(""),
	}
	pdf.SetHeaderFunc(e.writeColumns)
	return e
}

func (e *PDFEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	e.columns = columns

	pageWidth, _ := e.pdf.GetPageSize()
	left, _, right, _ := e.pdf.GetMargins()
	n := len(columns)
	if n == 0 {
		n = 1
	}
	e.cellWidth = (pageWidth - left - right) / float64(n)

	e.pdf.AddPage()
	return e.check()
}

func (e *PDFEncoder) writeColumns() {
	if len(e.columns) == 0 {
		return
	}
	e.pdf.SetFont("Arial", "B", 10)
	for _, col := range e.columns {
		e.pdf.CellFormat(e.cellWidth, pdfRowHeight, e.fit(col), "1", 0, "C", false, 0, "")
	}
	e.pdf.Ln(-1)
	e.pdf.SetFont("Arial", "", 10)
}

func (e *PDFEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}
	for _, v := range values {
		align := "L"
		if isNumber(v) {
			align = "R"
		}
		e.pdf.CellFormat(e.cellWidth, pdfRowHeight, e.fit(formatValue(v)), "1", 0, align, false, 0, "")
	}
	e.pdf.Ln(-1)
	return e.check()
}

// fit translates s and truncates it to the cell width.
func (e *PDFEncoder) fit(s string) string {
	s = e.tr(s)
	limit := e.cellWidth - 2*e.pdf.GetCellMargin()
	if e.pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && e.pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func (e *PDFEncoder) check() error {
	if e.err == nil && e.pdf.Err() {
		e.err = e.pdf.Error()
	}
	return e.err
}

// Flush is a no-op: the document is produced on Close.
func (e *PDFEncoder) Flush() error {
	return e.err
}

func (e *PDFEncoder) Error() error {
	return e.err
}

// Close renders the document to the underlying writer.
func (e *PDFEncoder) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	if e.err != nil {
		return e.err
	}
	if err := e.pdf.Output(e.w); err != nil {
		e.err = err
	}
	return e.err
}
