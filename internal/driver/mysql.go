package driver

import (
	"database/sql"
	"fmt"
	"net"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"restables/internal/config"
)

// MySQLDialect targets MySQL and MariaDB via go-sql-driver/mysql.
type MySQLDialect struct{}

func (MySQLDialect) Name() string       { return "mysql" }
func (MySQLDialect) DriverName() string { return "mysql" }

func (MySQLDialect) BuildDSN(cfg config.Connection) (string, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return "", fmt.Errorf("mysql connection requires host and database")
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if len(cfg.Params) > 0 {
		mc.Params = cfg.Params
	}
	return mc.FormatDSN(), nil
}

func (MySQLDialect) QuoteIdent(name string) string { return quoteWith("`", name) }

func (MySQLDialect) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (MySQLDialect) ListTablesQuery() (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`, nil
}

func (MySQLDialect) DescribeTableQuery(table string) (string, []any) {
	return `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, []any{table}
}

// TxOptions requests a consistent snapshot for the lifetime of a stream.
func (MySQLDialect) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
}
