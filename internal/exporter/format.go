package exporter

import (
	"fmt"
	"io"
	"strings"

	"restables/internal/apperr"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// ParseFormat resolves a format name. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatExcel, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", apperr.ErrInvalidFormat, s)
	}
}

// ContentType is the HTTP media type served for f. CSV keeps text/plain so
// browsers render streamed tables inline.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/x-ndjson"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension is the file suffix for stored exports, dot included.
func (f Format) Extension() string {
	if f == FormatJSON {
		return ".jsonl"
	}
	return "." + string(f)
}

// Streaming reports whether output can be flushed before the last row.
func (f Format) Streaming() bool {
	return f == FormatCSV || f == FormatJSON
}

// NewEncoder returns the RowEncoder for f writing to w.
func NewEncoder(f Format, w io.Writer) (RowEncoder, error) {
	switch f {
	case FormatCSV, "":
		return NewCSVEncoder(w), nil
	case FormatJSON:
		return NewJSONEncoder(w), nil
	case FormatExcel:
		return NewExcelEncoder(w), nil
	case FormatPDF:
		return NewPDFEncoder(w), nil
	default:
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidFormat, f)
	}
}
