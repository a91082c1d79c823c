package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"restables/internal/apperr"
	"restables/internal/catalog"
	"restables/internal/driver"
)

// Plan is a fully resolved query: every column reference exists in the table.
type Plan struct {
	Table    string
	Columns  []catalog.Column
	Ordering []Ordering
	Limit    *uint64
	Offset   *uint64
}

// BuildPlan resolves fields and ordering columns against meta by exact name.
// Unknown names fail with a ColumnNotFound SchemaError; nothing from the
// request reaches the SQL text except through this lookup.
func BuildPlan(meta *catalog.TableMetadata, fields FieldSelection, opts Options) (*Plan, error) {
	columns, err := ResolveFields(meta, fields)
	if err != nil {
		return nil, err
	}
	p := &Plan{Table: meta.Name, Columns: columns, Limit: opts.Limit, Offset: opts.Offset}

	for _, o := range opts.Ordering {
		col, ok := meta.Column(o.Column)
		if !ok {
			return nil, apperr.ColumnMissing(o.Column)
		}
		p.Ordering = append(p.Ordering, Ordering{Column: col.Name, Direction: o.Direction})
	}
	return p, nil
}

// ResolveFields maps a field selection onto meta's columns. The wildcard
// yields catalog order; explicit names keep the caller's order.
func ResolveFields(meta *catalog.TableMetadata, fields FieldSelection) ([]catalog.Column, error) {
	if fields.All {
		return append([]catalog.Column(nil), meta.Columns...), nil
	}
	columns := make([]catalog.Column, 0, len(fields.Names))
	for _, name := range fields.Names {
		col, ok := meta.Column(name)
		if !ok {
			return nil, apperr.ColumnMissing(name)
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// Header returns the selected column names in selection order.
func (p *Plan) Header() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// SQL renders the plan for a dialect: projection, then ordering in parse
// order, then limit, then offset.
func (p *Plan) SQL(d driver.Dialect) (string, []any, error) {
	if len(p.Columns) == 0 {
		return "", nil, fmt.Errorf("table %s has no columns to select", p.Table)
	}

	cols := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		cols[i] = driver.Ident(d, c.Name)
	}

	b := sq.Select(cols...).
		From(driver.Ident(d, p.Table)).
		PlaceholderFormat(d.Placeholder())

	for _, o := range p.Ordering {
		b = b.OrderBy(driver.Ident(d, o.Column) + " " + o.Direction.String())
	}
	if p.Limit != nil {
		b = b.Limit(*p.Limit)
	}
	if p.Offset != nil {
		b = b.Offset(*p.Offset)
	}
	return b.ToSql()
}
