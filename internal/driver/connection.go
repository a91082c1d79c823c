package driver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"restables/internal/config"
)

const (
	ConnectionTimeout  = 10 * time.Second
	MaxConnectionsIdle = 2
	MaxConnectionsOpen = 10
)

// Connection is an open handle on one configured database.
type Connection struct {
	name    string
	cfg     config.Connection
	dialect Dialect
	dsn     string
	db      *sql.DB
}

// Open resolves the dialect for cfg, opens the pool and verifies it with a ping.
func Open(ctx context.Context, name string, cfg config.Connection) (*Connection, error) {
	dialect, err := Lookup(cfg.Dialect)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", name, err)
	}

	dsn, err := dialect.BuildDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", name, err)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", name, err)
	}
	db.SetMaxIdleConns(MaxConnectionsIdle)
	db.SetMaxOpenConns(MaxConnectionsOpen)
	db.SetConnMaxLifetime(time.Hour)

	c := &Connection{name: name, cfg: cfg, dialect: dialect, dsn: dsn, db: db}

	pingCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", name, err)
	}
	return c, nil
}

func (c *Connection) Name() string { return c.name }

// Config returns the settings the connection was opened with.
func (c *Connection) Config() config.Connection { return c.cfg }

func (c *Connection) Dialect() Dialect { return c.dialect }

// DB exposes the underlying pool.
func (c *Connection) DB() *sql.DB { return c.db }

func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Query runs an ad-hoc statement outside any transaction.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (RowStreamer, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Connection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// matches reports whether the connection was opened for the same target.
func (c *Connection) matches(cfg config.Connection) bool {
	d, err := Lookup(cfg.Dialect)
	if err != nil || d.Name() != c.dialect.Name() {
		return false
	}
	dsn, err := d.BuildDSN(cfg)
	return err == nil && dsn == c.dsn
}

var _ Driver = (*Connection)(nil)
