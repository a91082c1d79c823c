package exporter

import (
	"bufio"
	"io"
)

// CSVEncoder writes the same quote-non-numeric lines as LineStream through a
// 64KB buffer, for file exports.
type CSVEncoder struct {
	buf    *bufio.Writer
	record []byte
	err    error
}

func NewCSVEncoder(w io.Writer) *CSVEncoder {
	return &CSVEncoder{buf: bufio.NewWriterSize(w, 64*1024)}
}

func (e *CSVEncoder) WriteHeader(columns []string) error {
	return e.write(headerValues(columns))
}

func (e *CSVEncoder) WriteRow(values []any) error {
	return e.write(values)
}

func (e *CSVEncoder) write(values []any) error {
	if e.err != nil {
		return e.err
	}
	e.record = appendRecord(e.record[:0], values)
	if _, err := e.buf.Write(e.record); err != nil {
		e.err = err
	}
	return e.err
}

func (e *CSVEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.buf.Flush(); err != nil {
		e.err = err
	}
	return e.err
}

func (e *CSVEncoder) Error() error {
	return e.err
}

func (e *CSVEncoder) Close() error {
	return e.Flush()
}
