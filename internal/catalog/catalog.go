// Package catalog reflects table and column metadata from a live connection.
// Nothing is cached: every call queries the backend again.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"

	"restables/internal/apperr"
	"restables/internal/driver"
	"restables/internal/security"
)

// Column is one reflected column.
type Column struct {
	Name string
	Type string
}

// TableMetadata is a table name and its columns in catalog order. It is
// immutable once returned.
type TableMetadata struct {
	Name    string
	Columns []Column
	byName  map[string]int
}

// NewTableMetadata indexes columns by exact name. For duplicate names the
// first occurrence wins.
func NewTableMetadata(name string, columns []Column) *TableMetadata {
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, ok := byName[c.Name]; !ok {
			byName[c.Name] = i
		}
	}
	return &TableMetadata{Name: name, Columns: columns, byName: byName}
}

// Column looks up a column by exact name.
func (t *TableMetadata) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in catalog order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog reflects one connection through its visibility policy.
type Catalog struct {
	conn       *driver.Connection
	visibility security.Visibility
}

func New(conn *driver.Connection, visibility security.Visibility) *Catalog {
	return &Catalog{conn: conn, visibility: visibility}
}

// Connection returns the connection the catalog reflects.
func (c *Catalog) Connection() *driver.Connection { return c.conn }

// ListTables returns the visible base tables.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	tables, err := c.baseTables(ctx)
	if err != nil {
		return nil, err
	}
	return c.visibility.Filter(tables), nil
}

// baseTables lists every base table as the backend spells it.
func (c *Catalog) baseTables(ctx context.Context) ([]string, error) {
	query, args := c.conn.Dialect().ListTablesQuery()
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Execution("list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Execution("list tables", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Execution("list tables", err)
	}
	return tables, nil
}

// Gate rejects hidden tables with the same error as a missing one.
func (c *Catalog) Gate(table string) error {
	if !c.visibility.Visible(table) {
		return apperr.TableHidden(table)
	}
	return nil
}

// DescribeTable reflects the columns of a visible base table. The name must
// match a listed table exactly; case-folding backends would otherwise
// resolve "SECRETS" to a hidden "secrets". Views are not base tables.
func (c *Catalog) DescribeTable(ctx context.Context, table string) (*TableMetadata, error) {
	if err := c.Gate(table); err != nil {
		return nil, err
	}
	tables, err := c.baseTables(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, table) {
		return nil, apperr.TableMissing(table)
	}

	query, args := c.conn.Dialect().DescribeTableQuery(table)
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Execution("describe table", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var name, typ sql.NullString
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, apperr.Execution("describe table", err)
		}
		columns = append(columns, Column{Name: name.String, Type: typ.String})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Execution("describe table", err)
	}

	if len(columns) == 0 {
		return nil, apperr.TableMissing(table)
	}
	return NewTableMetadata(table, columns), nil
}

// CountRows runs SELECT COUNT(*) against a visible, existing table.
func (c *Catalog) CountRows(ctx context.Context, table string) (int64, error) {
	meta, err := c.DescribeTable(ctx, table)
	if err != nil {
		return 0, err
	}
	return c.Count(ctx, meta)
}

// Count runs the aggregate for already reflected metadata.
func (c *Catalog) Count(ctx context.Context, meta *TableMetadata) (int64, error) {
	d := c.conn.Dialect()
	query, args, err := sq.Select("COUNT(*)").
		From(driver.Ident(d, meta.Name)).
		PlaceholderFormat(d.Placeholder()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := c.conn.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperr.Execution("count rows", err)
	}
	return n, nil
}
