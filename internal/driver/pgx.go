package driver

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"restables/internal/config"
)

// PgxDialect targets PostgreSQL through the pgx stdlib adapter. Reflection
// and SQL generation are shared with PostgresDialect.
type PgxDialect struct {
	pg PostgresDialect
}

func (PgxDialect) Name() string       { return "pgx" }
func (PgxDialect) DriverName() string { return "pgx" }

func (d PgxDialect) BuildDSN(cfg config.Connection) (string, error) { return d.pg.BuildDSN(cfg) }
func (d PgxDialect) QuoteIdent(name string) string                 { return d.pg.QuoteIdent(name) }
func (d PgxDialect) Placeholder() sq.PlaceholderFormat             { return d.pg.Placeholder() }
func (d PgxDialect) ListTablesQuery() (string, []any)              { return d.pg.ListTablesQuery() }
func (d PgxDialect) TxOptions() *sql.TxOptions                     { return d.pg.TxOptions() }

func (d PgxDialect) DescribeTableQuery(table string) (string, []any) {
	return d.pg.DescribeTableQuery(table)
}
