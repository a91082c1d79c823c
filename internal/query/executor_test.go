package query

import (
	"context"
	"errors"
	"slices"
	"testing"

	"restables/internal/apperr"
	"restables/internal/catalog"
	"restables/internal/security"
	"restables/internal/testdb"
)

type userRow struct {
	name string
	id   int64
}

func runPlan(t *testing.T, fields, opts string) ([]string, []userRow) {
	t.Helper()
	ctx := context.Background()
	conn := testdb.Open(t, testdb.Users...)

	meta, err := catalog.New(conn, security.Visibility{}).DescribeTable(ctx, "users")
	if err != nil {
		t.Fatalf("DescribeTable error: %v", err)
	}
	plan, err := BuildPlan(meta, ParseFields(fields), mustOptions(t, opts))
	if err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	stream, err := Execute(ctx, conn, plan)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	defer stream.Close()

	header, err := stream.Columns()
	if err != nil {
		t.Fatal(err)
	}
	var rows []userRow
	for stream.Next() {
		var r userRow
		if err := stream.Scan(&r.name, &r.id); err != nil {
			t.Fatalf("Scan error: %v", err)
		}
		rows = append(rows, r)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	return header, rows
}

func TestExecuteOrderedWindow(t *testing.T) {
	header, rows := runPlan(t, "name,id", "age:d,limit:2:1")

	if !slices.Equal(header, []string{"name", "id"}) {
		t.Errorf("header = %v", header)
	}
	want := []userRow{{"grace", 2}, {"ken", 5}}
	if !slices.Equal(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestExecuteAscendingAll(t *testing.T) {
	_, rows := runPlan(t, "name,id", "id:a")
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	for i, r := range rows {
		if r.id != int64(i+1) {
			t.Errorf("rows[%d].id = %d, want %d", i, r.id, i+1)
		}
	}
}

func TestExecuteLimitZero(t *testing.T) {
	header, rows := runPlan(t, "name,id", "limit:0")
	if !slices.Equal(header, []string{"name", "id"}) {
		t.Errorf("header = %v", header)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}
}

func TestResultStreamCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t, testdb.Users...)
	meta, err := catalog.New(conn, security.Visibility{}).DescribeTable(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	plan, err := BuildPlan(meta, ParseFields("*"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	stream, err := Execute(ctx, conn, plan)
	if err != nil {
		t.Fatal(err)
	}

	if !stream.Next() {
		t.Fatal("expected at least one row")
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if stream.Next() {
		t.Error("Next() after Close returned true")
	}
	if err := stream.Scan(new(int64)); err == nil {
		t.Error("Scan after Close succeeded")
	}
}

func TestExecuteMissingTableFails(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t, testdb.Users...)
	meta := catalog.NewTableMetadata("dropped", []catalog.Column{{Name: "id"}})
	plan, err := BuildPlan(meta, ParseFields("*"), Options{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Execute(ctx, conn, plan)
	var ee *apperr.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("Execute error = %v, want ExecutionError", err)
	}
	if apperr.HTTPStatus(err) != 500 {
		t.Errorf("HTTPStatus = %d, want 500", apperr.HTTPStatus(err))
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	conn := testdb.Open(t, testdb.Users...)
	meta, err := catalog.New(conn, security.Visibility{}).DescribeTable(context.Background(), "users")
	if err != nil {
		t.Fatal(err)
	}
	plan, err := BuildPlan(meta, ParseFields("*"), Options{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Execute(ctx, conn, plan); err == nil {
		t.Fatal("Execute with canceled context succeeded")
	}
}
