package exporter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"restables/internal/apperr"
	"restables/internal/testdb"
)

// fakeRows is an in-memory cursor that records how far it has been advanced.
type fakeRows struct {
	cols   []string
	data   [][]any
	pos    int
	nexts  int
	closed bool
	err    error
}

func (f *fakeRows) Columns() ([]string, error)              { return f.cols, nil }
func (f *fakeRows) ColumnTypes() ([]*sql.ColumnType, error) { return nil, nil }
func (f *fakeRows) Err() error                              { return f.err }
func (f *fakeRows) Close() error                            { f.closed = true; return nil }

func (f *fakeRows) Next() bool {
	f.nexts++
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.pos-1]
	for i := range dest {
		*dest[i].(*any) = row[i]
	}
	return nil
}

func queryUsers(t *testing.T, query string) *sql.Rows {
	t.Helper()
	conn := testdb.Open(t, testdb.Users...)
	rows, err := conn.DB().Query(query)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	t.Cleanup(func() { rows.Close() })
	return rows
}

func collect(t *testing.T, s *LineStream) []string {
	t.Helper()
	var lines []string
	for s.Next() {
		lines = append(lines, string(s.Line()))
	}
	if err := s.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	return lines
}

func TestLineStreamQuoting(t *testing.T) {
	rows := queryUsers(t, `SELECT id, name, age FROM users ORDER BY id`)
	s, err := NewLineStream(rows)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	want := []string{
		"\"id\",\"name\",\"age\"\r\n",
		"1,\"ada\",36\r\n",
		"2,\"grace\",45\r\n",
		"3,\"linus\",28\r\n",
		"4,\"margaret, \"\"peggy\"\"\",52\r\n",
		"5,\"ken\",41\r\n",
	}
	got := collect(t, s)
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if s.Rows() != 5 {
		t.Errorf("Rows() = %d, want 5", s.Rows())
	}
}

func TestLineStreamRoundTrip(t *testing.T) {
	rows := queryUsers(t, `SELECT name, id FROM users ORDER BY id`)
	s, err := NewLineStream(rows)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var buf bytes.Buffer
	if _, err := s.StreamTo(&buf, 0); err != nil {
		t.Fatalf("StreamTo error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}
	want := [][]string{
		{"name", "id"},
		{"ada", "1"},
		{"grace", "2"},
		{"linus", "3"},
		{`margaret, "peggy"`, "4"},
		{"ken", "5"},
	}
	if len(records) != len(want) {
		t.Fatalf("records = %q", records)
	}
	for i := range want {
		for j := range want[i] {
			if records[i][j] != want[i][j] {
				t.Errorf("record[%d][%d] = %q, want %q", i, j, records[i][j], want[i][j])
			}
		}
	}
}

func TestLineStreamIsLazy(t *testing.T) {
	rows := &fakeRows{
		cols: []string{"n"},
		data: [][]any{{int64(1)}, {int64(2)}, {int64(3)}},
	}
	s, err := NewLineStream(rows)
	if err != nil {
		t.Fatal(err)
	}

	if !s.Next() {
		t.Fatal("no header line")
	}
	if rows.nexts != 0 {
		t.Errorf("cursor advanced %d times before first data line", rows.nexts)
	}
	if !s.Next() || string(s.Line()) != "1\r\n" {
		t.Fatalf("first data line = %q", s.Line())
	}
	if rows.nexts != 1 {
		t.Errorf("cursor advanced %d times, want 1", rows.nexts)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !rows.closed {
		t.Error("Close did not release the cursor")
	}
	if s.Next() {
		t.Error("Next() after Close returned true")
	}
}

func TestLineStreamHeaderOnly(t *testing.T) {
	s, err := NewLineStream(&fakeRows{cols: []string{"name", "id"}})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, s)
	if len(got) != 1 || got[0] != "\"name\",\"id\"\r\n" {
		t.Errorf("lines = %q", got)
	}
}

func TestLineStreamValueKinds(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	rows := &fakeRows{
		cols: []string{"a", "b", "c", "d", "e", "f"},
		data: [][]any{{nil, true, 2.5, []byte("raw"), ts, "=SUM(A1)"}},
	}
	s, err := NewLineStream(rows)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, s)
	want := "\"\",True,2.5,\"raw\",\"2024-03-09 14:05:07\",\"=SUM(A1)\"\r\n"
	if len(got) != 2 || got[1] != want {
		t.Errorf("data line = %q, want %q", got, want)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{true, "True"},
		{false, "False"},
		{1.0, "1.0"},
		{2.5, "2.5"},
		{-0.5, "-0.5"},
		{0.0, "0.0"},
		{1e20, "1e+20"},
		{1e16, "1e+16"},
		{1e15, "1000000000000000.0"},
		{0.0001, "0.0001"},
		{0.000015, "1.5e-05"},
		{0.1, "0.1"},
		{float32(0.1), "0.1"},
		{math.NaN(), "nan"},
		{math.Inf(-1), "-inf"},
		{int64(-7), "-7"},
		{number("12.50"), "12.50"},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.in), func(t *testing.T) {
			if got := formatValue(tc.in); got != tc.want {
				t.Errorf("formatValue(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLineStreamIterationError(t *testing.T) {
	boom := errors.New("connection reset")
	s, err := NewLineStream(&fakeRows{cols: []string{"n"}, err: boom})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := s.StreamTo(&buf, 0); !errors.Is(err, boom) {
		t.Fatalf("StreamTo error = %v, want %v", err, boom)
	}
}

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestStreamToFlushes(t *testing.T) {
	data := make([][]any, 10)
	for i := range data {
		data[i] = []any{int64(i)}
	}
	s, err := NewLineStream(&fakeRows{cols: []string{"n"}, data: data})
	if err != nil {
		t.Fatal(err)
	}

	w := &flushRecorder{}
	n, err := s.StreamTo(w, 4)
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("rows = %d, want 10", n)
	}
	// header, after lines 5 and 9, then the final flush
	if w.flushes != 4 {
		t.Errorf("flushes = %d, want 4", w.flushes)
	}
	if strings.Count(w.String(), "\r\n") != 11 {
		t.Errorf("output = %q", w.String())
	}
}

func TestIsNumericType(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"INTEGER", true},
		{"int", true},
		{"DECIMAL(10,2)", true},
		{"UNSIGNED BIGINT", true},
		{"BIGINT UNSIGNED", true},
		{"FLOAT8", true},
		{"NUMERIC", true},
		{"VARCHAR", false},
		{"TEXT", false},
		{"DATETIME", false},
		{"", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isNumericType(tc.name); got != tc.want {
				t.Errorf("isNumericType(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		numeric bool
		want    any
	}{
		{"numeric bytes", []byte("12.50"), true, number("12.50")},
		{"numeric text negative exponent", "-1.5e-3", true, number("-1.5e-3")},
		{"text column digits stay text", []byte("0042"), false, "0042"},
		{"NaN is not a number", "NaN", true, "NaN"},
		{"hex is not a number", "0x10", true, "0x10"},
		{"int passthrough", int64(7), false, int64(7)},
		{"nil passthrough", nil, true, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cellValue(tc.in, tc.numeric); got != tc.want {
				t.Errorf("cellValue(%v, %v) = %#v, want %#v", tc.in, tc.numeric, got, tc.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatCSV},
		{"csv", FormatCSV},
		{"JSON", FormatJSON},
		{" xlsx ", FormatExcel},
		{"pdf", FormatPDF},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			if err != nil || got != tc.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tc.in, got, err)
			}
		})
	}

	_, err := ParseFormat("xml")
	if !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Fatalf("ParseFormat(xml) error = %v", err)
	}
	if apperr.HTTPStatus(err) != 400 {
		t.Errorf("HTTPStatus = %d, want 400", apperr.HTTPStatus(err))
	}
}

func streamUsers(t *testing.T, f Format) []byte {
	t.Helper()
	rows := queryUsers(t, `SELECT id, name, age FROM users ORDER BY id`)
	var buf bytes.Buffer
	enc, err := NewEncoder(f, &buf)
	if err != nil {
		t.Fatal(err)
	}
	res, err := StreamRows(context.Background(), rows, enc, 2)
	if err != nil {
		t.Fatalf("StreamRows(%s) error: %v", f, err)
	}
	if res.RowsProcessed != 5 {
		t.Errorf("RowsProcessed = %d, want 5", res.RowsProcessed)
	}
	return buf.Bytes()
}

func TestStreamRowsCSVMatchesLineStream(t *testing.T) {
	out := string(streamUsers(t, FormatCSV))
	if !strings.HasPrefix(out, "\"id\",\"name\",\"age\"\r\n1,\"ada\",36\r\n") {
		t.Errorf("csv output = %q", out)
	}
}

func TestStreamRowsJSON(t *testing.T) {
	out := string(streamUsers(t, FormatJSON))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("json lines = %q", lines)
	}
	if lines[0] != `{"id":1,"name":"ada","age":36}` {
		t.Errorf("first line = %s", lines[0])
	}
	if lines[3] != `{"id":4,"name":"margaret, \"peggy\"","age":52}` {
		t.Errorf("fourth line = %s", lines[3])
	}
}

func TestJSONEncoderExtraColumns(t *testing.T) {
	var buf bytes.Buffer
	enc := NewJSONEncoder(&buf)
	if err := enc.WriteHeader([]string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := enc.WriteRow([]any{int64(1), "x", number("2.0")}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "{\"a\":1,\"column_1\":\"x\",\"column_2\":2.0}\n" {
		t.Errorf("output = %q", got)
	}
}

func TestStreamRowsExcel(t *testing.T) {
	out := streamUsers(t, FormatExcel)
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("sheet rows = %d, want 6", len(rows))
	}
	if strings.Join(rows[0], ",") != "id,name,age" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[2][1] != "grace" || rows[2][2] != "45" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestExcelValueSanitizesFormulas(t *testing.T) {
	if got := excelValue("=HYPERLINK(\"x\")"); got != "'=HYPERLINK(\"x\")" {
		t.Errorf("excelValue = %v", got)
	}
	if got := excelValue(int64(-3)); got != int64(-3) {
		t.Errorf("excelValue(-3) = %v", got)
	}
}

func TestStreamRowsPDF(t *testing.T) {
	out := streamUsers(t, FormatPDF)
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF signature: %q", out[:min(len(out), 16)])
	}
}

func TestStreamRowsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows := &fakeRows{cols: []string{"n"}, data: [][]any{{int64(1)}}}
	_, err := StreamRows(ctx, rows, NewCSVEncoder(io.Discard), 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("StreamRows error = %v, want context.Canceled", err)
	}
}
