package exporter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// JSONEncoder implements RowEncoder for JSON Lines. Each row is an object
// whose keys follow the selected column order.
type JSONEncoder struct {
	buf  *bufio.Writer
	keys [][]byte
	line []byte
	err  error
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{buf: bufio.NewWriterSize(w, 64*1024)}
}

// WriteHeader captures the column names as pre-encoded object keys. No line is written.
func (e *JSONEncoder) WriteHeader(columns []string) error {
	e.keys = make([][]byte, len(columns))
	for i, col := range columns {
		key, err := json.Marshal(col)
		if err != nil {
			e.err = err
			return err
		}
		e.keys[i] = key
	}
	return nil
}

func (e *JSONEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	e.line = append(e.line[:0], '{')
	for i, v := range values {
		if i > 0 {
			e.line = append(e.line, ',')
		}
		if i < len(e.keys) {
			e.line = append(e.line, e.keys[i]...)
		} else {
			e.line = fmt.Appendf(e.line, `"column_%d"`, i)
		}
		e.line = append(e.line, ':')

		data, err := jsonValue(v)
		if err != nil {
			e.err = fmt.Errorf("encode column %d: %w", i, err)
			return e.err
		}
		e.line = append(e.line, data...)
	}
	e.line = append(e.line, '}', '\n')

	if _, err := e.buf.Write(e.line); err != nil {
		e.err = err
	}
	return e.err
}

func jsonValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case number:
		return []byte(val), nil
	case nil, bool, string:
		return json.Marshal(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return json.Marshal(formatValue(val))
		}
		return json.Marshal(val)
	default:
		if isNumber(v) {
			return json.Marshal(val)
		}
		return json.Marshal(formatValue(v))
	}
}

func (e *JSONEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.buf.Flush(); err != nil {
		e.err = err
	}
	return e.err
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return e.Flush()
}
