package driver

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"restables/internal/config"
)

// PostgresDialect targets PostgreSQL via lib/pq.
type PostgresDialect struct{}

func (PostgresDialect) Name() string       { return "postgres" }
func (PostgresDialect) DriverName() string { return "postgres" }

func (PostgresDialect) BuildDSN(cfg config.Connection) (string, error) {
	return postgresURL(cfg)
}

func (PostgresDialect) QuoteIdent(name string) string { return quoteWith(`"`, name) }

func (PostgresDialect) Placeholder() sq.PlaceholderFormat { return sq.Dollar }

func (PostgresDialect) ListTablesQuery() (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`, nil
}

func (PostgresDialect) DescribeTableQuery(table string) (string, []any) {
	return `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, []any{table}
}

func (PostgresDialect) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
}

// postgresURL builds a postgres:// URL understood by both lib/pq and pgx.
func postgresURL(cfg config.Connection) (string, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return "", fmt.Errorf("postgres connection requires host and database")
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	if len(cfg.Params) > 0 {
		q := url.Values{}
		for k, v := range cfg.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
