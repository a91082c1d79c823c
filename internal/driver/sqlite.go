package driver

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"restables/internal/config"
)

// SQLiteDialect targets SQLite files via modernc.org/sqlite. Database is the
// file path; host, port and credentials are ignored.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string       { return "sqlite" }
func (SQLiteDialect) DriverName() string { return "sqlite" }

// BuildDSN opens the file with query_only set on every pooled connection so
// nothing issued through this connection can write.
func (SQLiteDialect) BuildDSN(cfg config.Connection) (string, error) {
	if cfg.Database == "" {
		return "", fmt.Errorf("sqlite connection requires database path")
	}
	q := url.Values{}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	q.Add("_pragma", "query_only(1)")
	return "file:" + strings.TrimPrefix(cfg.Database, "file:") + "?" + q.Encode(), nil
}

func (SQLiteDialect) QuoteIdent(name string) string { return quoteWith(`"`, name) }

func (SQLiteDialect) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (SQLiteDialect) ListTablesQuery() (string, []any) {
	return `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`, nil
}

func (SQLiteDialect) DescribeTableQuery(table string) (string, []any) {
	return `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, []any{table}
}

// TxOptions is nil: SQLite transactions are serializable already and the
// driver rejects explicit isolation levels.
func (SQLiteDialect) TxOptions() *sql.TxOptions { return nil }
