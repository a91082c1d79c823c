package exporter

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the textual form of date/time values in every format.
const TimeLayout = "2006-01-02 15:04:05"

// number is database text known to hold a numeric value, e.g. a MySQL
// DECIMAL read over the text protocol.
type number string

var numericTypes = map[string]bool{
	"INT": true, "INTEGER": true, "TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "BIGINT": true,
	"INT2": true, "INT4": true, "INT8": true, "SERIAL": true, "BIGSERIAL": true,
	"DECIMAL": true, "NUMERIC": true, "FLOAT": true, "FLOAT4": true, "FLOAT8": true,
	"DOUBLE": true, "REAL": true,
}

// isNumericType reports whether a database type name denotes a number.
// Size modifiers and UNSIGNED are ignored: "DECIMAL(10,2)" and
// "UNSIGNED BIGINT" both count.
func isNumericType(name string) bool {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "UNSIGNED ")
	name = strings.TrimSuffix(name, " UNSIGNED")
	return numericTypes[strings.TrimSpace(name)]
}

func numericColumns(types []*sql.ColumnType, n int) []bool {
	numeric := make([]bool, n)
	for i, ct := range types {
		if i < n && ct != nil {
			numeric[i] = isNumericType(ct.DatabaseTypeName())
		}
	}
	return numeric
}

// cellValue normalises a scanned driver value. Byte slices become strings,
// or numbers when their column is numeric and the text parses as one.
func cellValue(v any, numeric bool) any {
	var s string
	switch val := v.(type) {
	case []byte:
		s = string(val)
	case string:
		s = val
	case sql.RawBytes:
		s = string(val)
	default:
		return v
	}
	if numeric && isDecimalText(s) {
		return number(s)
	}
	return s
}

// isDecimalText accepts [+-]digits[.digits][(e|E)[+-]digits] with at least
// one mantissa digit. NaN, Inf and hex forms are rejected.
func isDecimalText(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

// isNumber reports whether v is written without quotes.
func isNumber(v any) bool {
	switch v.(type) {
	case number, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case number:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(TimeLayout)
	case bool:
		if val {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return formatFloat(val, 64)
	case float32:
		return formatFloat(float64(val), 32)
	default:
		return fmt.Sprint(val)
	}
}

// formatFloat writes the shortest digits that round-trip. Magnitudes below
// 1e-4 or from 1e16 up use exponent form ("1e+20", "1.5e-05"); the rest are
// fixed, with ".0" kept on integral values.
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	e := strconv.FormatFloat(f, 'e', -1, bits)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if f != 0 && (exp < -4 || exp >= 16) {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// appendField appends one CSV field. Numbers are bare; everything else,
// NULL included, is quoted with embedded quotes doubled.
func appendField(buf []byte, v any) []byte {
	s := formatValue(v)
	if isNumber(v) {
		return append(buf, s...)
	}
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			buf = append(buf, '"')
		}
		buf = append(buf, s[i])
	}
	return append(buf, '"')
}

// appendRecord appends a full CSV line including the CRLF terminator.
func appendRecord(buf []byte, values []any) []byte {
	for i, v := range values {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendField(buf, v)
	}
	return append(buf, '\r', '\n')
}

func headerValues(columns []string) []any {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	return values
}

// sanitizeFormula defuses spreadsheet formula injection in text cells.
func sanitizeFormula(s string) string {
	if s != "" {
		switch s[0] {
		case '=', '+', '-', '@':
			return "'" + s
		}
	}
	return s
}
