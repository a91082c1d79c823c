// Package exporter renders result cursors as CSV lines and other file formats.
package exporter

import "io"

// RowEncoder writes a header and rows in one output format.
type RowEncoder interface {
	// WriteHeader writes the column headers. Called exactly once, before any row.
	WriteHeader(columns []string) error

	// WriteRow writes a single row of normalised values.
	WriteRow(values []any) error

	// Flush pushes buffered bytes to the underlying writer where the format
	// allows partial output. Whole-file formats defer everything to Close.
	Flush() error

	// Error returns the first error that occurred during encoding, if any.
	Error() error

	// Close finalises the output (trailers, zip directory, PDF body).
	io.Closer
}
