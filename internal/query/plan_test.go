package query

import (
	"errors"
	"slices"
	"testing"

	"restables/internal/apperr"
	"restables/internal/catalog"
	"restables/internal/driver"
)

func usersMeta() *catalog.TableMetadata {
	return catalog.NewTableMetadata("users", []catalog.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "name", Type: "TEXT"},
		{Name: "age", Type: "INTEGER"},
	})
}

func mustOptions(t *testing.T, raw string) Options {
	t.Helper()
	opts, err := ParseOptions(raw)
	if err != nil {
		t.Fatalf("ParseOptions(%q) error: %v", raw, err)
	}
	return opts
}

func TestBuildPlanWildcard(t *testing.T) {
	plan, err := BuildPlan(usersMeta(), ParseFields("*"), Options{})
	if err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	if got := plan.Header(); !slices.Equal(got, []string{"id", "name", "age"}) {
		t.Errorf("Header() = %v", got)
	}
}

func TestBuildPlanCallerOrder(t *testing.T) {
	plan, err := BuildPlan(usersMeta(), ParseFields("name,id"), mustOptions(t, "age:d,limit:2:1"))
	if err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	if got := plan.Header(); !slices.Equal(got, []string{"name", "id"}) {
		t.Errorf("Header() = %v", got)
	}
	if len(plan.Ordering) != 1 || plan.Ordering[0] != (Ordering{"age", Descending}) {
		t.Errorf("Ordering = %v", plan.Ordering)
	}
	if plan.Limit == nil || *plan.Limit != 2 || plan.Offset == nil || *plan.Offset != 1 {
		t.Errorf("Limit/Offset = %v/%v", plan.Limit, plan.Offset)
	}
}

func TestBuildPlanUnknownColumns(t *testing.T) {
	tests := []struct {
		name   string
		fields string
		opts   string
		column string
	}{
		{"unknown field", "nonexistent_col", "", "nonexistent_col"},
		{"second field unknown", "id,nope", "", "nope"},
		{"empty field", "id,", "", ""},
		{"unknown ordering", "*", "height:a", "height"},
		{"injection attempt", "id FROM users; DROP TABLE users --", "", "id FROM users; DROP TABLE users --"},
		{"case mismatch", "ID", "", "ID"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildPlan(usersMeta(), ParseFields(tc.fields), mustOptions(t, tc.opts))
			var se *apperr.SchemaError
			if !errors.As(err, &se) || se.Kind != apperr.ColumnNotFound {
				t.Fatalf("BuildPlan error = %v, want ColumnNotFound", err)
			}
			if se.Name != tc.column {
				t.Errorf("SchemaError.Name = %q, want %q", se.Name, tc.column)
			}
		})
	}
}

func TestPlanSQL(t *testing.T) {
	plan, err := BuildPlan(usersMeta(), ParseFields("name,id"), mustOptions(t, "age:d,name:a,limit:2:1"))
	if err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}

	tests := []struct {
		dialect driver.Dialect
		want    string
	}{
		{driver.SQLiteDialect{}, `SELECT "name", "id" FROM "users" ORDER BY "age" DESC, "name" ASC LIMIT 2 OFFSET 1`},
		{driver.PostgresDialect{}, `SELECT "name", "id" FROM "users" ORDER BY "age" DESC, "name" ASC LIMIT 2 OFFSET 1`},
		{driver.MySQLDialect{}, "SELECT `name`, `id` FROM `users` ORDER BY `age` DESC, `name` ASC LIMIT 2 OFFSET 1"},
	}

	for _, tc := range tests {
		t.Run(tc.dialect.Name(), func(t *testing.T) {
			got, args, err := plan.SQL(tc.dialect)
			if err != nil {
				t.Fatalf("SQL error: %v", err)
			}
			if got != tc.want {
				t.Errorf("SQL() = %s\nwant     %s", got, tc.want)
			}
			if len(args) != 0 {
				t.Errorf("args = %v, want none", args)
			}
		})
	}
}

func TestPlanSQLNoOptions(t *testing.T) {
	plan, err := BuildPlan(usersMeta(), ParseFields("*"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := plan.SQL(driver.SQLiteDialect{})
	if err != nil {
		t.Fatal(err)
	}
	if got != `SELECT "id", "name", "age" FROM "users"` {
		t.Errorf("SQL() = %s", got)
	}
}

func TestPlanSQLLimitZero(t *testing.T) {
	plan, err := BuildPlan(usersMeta(), ParseFields("id"), mustOptions(t, "limit:0"))
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := plan.SQL(driver.SQLiteDialect{})
	if err != nil {
		t.Fatal(err)
	}
	if got != `SELECT "id" FROM "users" LIMIT 0` {
		t.Errorf("SQL() = %s", got)
	}
}

func TestPlanSQLQuestionMarkInIdentifier(t *testing.T) {
	meta := catalog.NewTableMetadata("odd", []catalog.Column{{Name: "why?", Type: "text"}})
	plan, err := BuildPlan(meta, ParseFields("why?"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := plan.SQL(driver.PostgresDialect{})
	if err != nil {
		t.Fatal(err)
	}
	if got != `SELECT "why?" FROM "odd"` {
		t.Errorf("SQL() = %s", got)
	}
}
