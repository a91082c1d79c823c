package exporter

import (
	"fmt"
	"io"

	"restables/internal/driver"
)

// LineStream lazily renders a result cursor as CSV text: the header line
// first, then one line per row. Rows are read from the cursor only as lines
// are requested, so memory stays bounded by a single row. It is single-pass
// and not safe for concurrent use.
type LineStream struct {
	rows     driver.RowStreamer
	header   []string
	numeric  []bool
	values   []any
	scanArgs []any
	record   []any
	buf      []byte

	headerSent bool
	done       bool
	count      int64
	err        error
}

// NewLineStream prepares a line stream over rows. Ownership of rows passes
// to the stream; Close releases it.
func NewLineStream(rows driver.RowStreamer) (*LineStream, error) {
	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	// Type names only refine quoting; a driver without them still streams.
	types, _ := rows.ColumnTypes()

	n := len(header)
	s := &LineStream{
		rows:     rows,
		header:   header,
		numeric:  numericColumns(types, n),
		values:   make([]any, n),
		scanArgs: make([]any, n),
		record:   make([]any, n),
		buf:      make([]byte, 0, 256),
	}
	for i := range s.values {
		s.scanArgs[i] = &s.values[i]
	}
	return s, nil
}

// Header returns the column names emitted on the first line.
func (s *LineStream) Header() []string { return s.header }

// Next advances to the next line. It returns false when the cursor is
// exhausted or on error; check Err afterwards.
func (s *LineStream) Next() bool {
	if s.done {
		return false
	}
	if !s.headerSent {
		s.headerSent = true
		s.buf = appendRecord(s.buf[:0], headerValues(s.header))
		return true
	}

	if !s.rows.Next() {
		s.done = true
		s.err = s.rows.Err()
		return false
	}
	if err := s.rows.Scan(s.scanArgs...); err != nil {
		s.done = true
		s.err = fmt.Errorf("row scan failed: %w", err)
		return false
	}
	for i, v := range s.values {
		s.record[i] = cellValue(v, s.numeric[i])
	}
	s.buf = appendRecord(s.buf[:0], s.record)
	s.count++
	return true
}

// Line returns the current line including its CRLF terminator. The slice is
// reused by the next call to Next.
func (s *LineStream) Line() []byte { return s.buf }

// Rows is the number of data lines produced so far.
func (s *LineStream) Rows() int64 { return s.count }

// Err returns the first cursor or scan error.
func (s *LineStream) Err() error { return s.err }

// Close releases the underlying cursor. Safe to call on a partially consumed stream.
func (s *LineStream) Close() error {
	s.done = true
	return s.rows.Close()
}

type flusher interface{ Flush() }

type errFlusher interface{ Flush() error }

// StreamTo writes every remaining line to w. When flushEvery is positive and w
// can flush (http.Flusher or bufio.Writer), it is flushed after the header and
// then every flushEvery lines. It returns the number of data rows written.
func (s *LineStream) StreamTo(w io.Writer, flushEvery int) (int64, error) {
	flush := func() error {
		switch f := w.(type) {
		case errFlusher:
			return f.Flush()
		case flusher:
			f.Flush()
		}
		return nil
	}

	var lines int
	for s.Next() {
		if _, err := w.Write(s.buf); err != nil {
			return s.count, fmt.Errorf("write line: %w", err)
		}
		lines++
		if flushEvery > 0 && (lines == 1 || (lines-1)%flushEvery == 0) {
			if err := flush(); err != nil {
				return s.count, fmt.Errorf("flush: %w", err)
			}
		}
	}
	if s.err != nil {
		return s.count, s.err
	}
	return s.count, flush()
}
