package exporter

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// maxExcelRows is the xlsx sheet limit, header included.
const maxExcelRows = 1048576

var ErrExcelRowLimit = errors.New("excel row limit exceeded (1,048,576 rows)")

// ExcelEncoder implements RowEncoder for .xlsx using excelize's StreamWriter.
// The workbook is written to w on Close.
type ExcelEncoder struct {
	f      *excelize.File
	sw     *excelize.StreamWriter
	w      io.Writer
	rowIdx int
	closed bool
	err    error
}

func NewExcelEncoder(w io.Writer) *ExcelEncoder {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter("Sheet1")
	if err != nil {
		_ = f.Close()
		return &ExcelEncoder{err: err, closed: true}
	}
	return &ExcelEncoder{f: f, sw: sw, w: w, rowIdx: 1}
}

func (e *ExcelEncoder) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, col := range columns {
		row[i] = col
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) WriteRow(values []any) error {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = excelValue(v)
	}
	return e.setRow(row)
}

func excelValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case number:
		if f, err := strconv.ParseFloat(string(val), 64); err == nil {
			return f
		}
		return string(val)
	case string:
		return sanitizeFormula(val)
	case time.Time:
		return val.Format(TimeLayout)
	default:
		if isNumber(v) {
			return v
		}
		return sanitizeFormula(formatValue(v))
	}
}

func (e *ExcelEncoder) setRow(row []any) error {
	if e.err != nil {
		return e.err
	}
	if e.rowIdx > maxExcelRows {
		e.err = ErrExcelRowLimit
		return e.err
	}

	cell, err := excelize.CoordinatesToCellName(1, e.rowIdx)
	if err != nil {
		e.err = err
		return err
	}
	if err := e.sw.SetRow(cell, row); err != nil {
		e.err = err
		return err
	}
	e.rowIdx++
	return nil
}

// Flush is a no-op: a workbook cannot be emitted incrementally.
func (e *ExcelEncoder) Flush() error {
	return e.err
}

func (e *ExcelEncoder) Error() error {
	return e.err
}

// Close writes the workbook to the underlying writer and releases it.
func (e *ExcelEncoder) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	defer e.f.Close()

	if e.err != nil {
		return e.err
	}
	if err := e.sw.Flush(); err != nil {
		e.err = err
		return err
	}
	if err := e.f.Write(e.w); err != nil {
		e.err = err
	}
	return e.err
}
