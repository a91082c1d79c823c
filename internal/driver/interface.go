package driver

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"restables/internal/config"
)

// Driver abstracts the database connection and query execution.
type Driver interface {
	// Name returns the connection name.
	Name() string

	// Ping verifies the connection to the database.
	Ping(ctx context.Context) error

	// Query executes a query and returns a RowStreamer to iterate over results.
	Query(ctx context.Context, query string, args ...any) (RowStreamer, error)

	// Close closes the database connection.
	Close() error
}

// RowStreamer iterates over query results.
// It is forward-only and single-pass; *sql.Rows satisfies it directly.
type RowStreamer interface {
	// Columns returns the column names. Safe to call after Query returns.
	Columns() ([]string, error)

	// ColumnTypes returns column information such as database type name.
	ColumnTypes() ([]*sql.ColumnType, error)

	// Next advances to the next row. Returns false when there are no more rows or an error occurs.
	Next() bool

	// Scan copies the columns in the current row into the values pointed at by dest.
	Scan(dest ...any) error

	// Err returns the error, if any, that was encountered during iteration.
	Err() error

	// Close closes the streamer and frees resources.
	Close() error
}

// Dialect captures everything that differs between backends: how to reach
// them, how to quote identifiers and how to reflect their catalog.
type Dialect interface {
	// Name is the dialect key used in connection configuration.
	Name() string

	// DriverName is the database/sql driver registered for this dialect.
	DriverName() string

	// BuildDSN constructs a driver DSN from connection settings.
	BuildDSN(cfg config.Connection) (string, error)

	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string

	// Placeholder is the bind parameter style for generated statements.
	Placeholder() sq.PlaceholderFormat

	// ListTablesQuery returns the query listing base tables, one name per row.
	ListTablesQuery() (string, []any)

	// DescribeTableQuery returns the query yielding (column name, column type)
	// rows in ordinal order. No rows means the table does not exist.
	DescribeTableQuery(table string) (string, []any)

	// TxOptions returns the options for read transactions, or nil for driver defaults.
	TxOptions() *sql.TxOptions
}
