// Package service wires configuration, catalog and query engine into the
// operations the HTTP API and the CLI expose.
package service

import (
	"context"
	"fmt"

	"restables/internal/catalog"
	"restables/internal/config"
	"restables/internal/driver"
	"restables/internal/query"
)

// Service answers catalog and data requests against the configured
// connections. Configuration is re-read from the source on every call.
type Service struct {
	source config.Source
	conns  *driver.Manager
}

func New(source config.Source, conns *driver.Manager) *Service {
	return &Service{source: source, conns: conns}
}

// Connections lists the configured connection names in sorted order.
func (s *Service) Connections(ctx context.Context) ([]string, error) {
	conns, err := s.source.Connections()
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	return conns.Names(), nil
}

func (s *Service) catalog(ctx context.Context, name string) (*catalog.Catalog, error) {
	conns, err := s.source.Connections()
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	cfg, err := conns.Lookup(name)
	if err != nil {
		return nil, err
	}
	conn, err := s.conns.Get(ctx, name, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return catalog.New(conn, cfg.Visibility()), nil
}

// Tables lists the visible tables of a connection.
func (s *Service) Tables(ctx context.Context, connection string) ([]string, error) {
	cat, err := s.catalog(ctx, connection)
	if err != nil {
		return nil, err
	}
	tables, err := cat.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []string{}
	}
	return tables, nil
}

// TableInfo is a table's column names and current row count.
type TableInfo struct {
	Columns []string `json:"columns"`
	Rows    int64    `json:"rows"`
}

// Describe reflects a visible table and counts its rows.
func (s *Service) Describe(ctx context.Context, connection, table string) (*TableInfo, error) {
	cat, err := s.catalog(ctx, connection)
	if err != nil {
		return nil, err
	}
	meta, err := cat.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	n, err := cat.Count(ctx, meta)
	if err != nil {
		return nil, err
	}
	return &TableInfo{Columns: meta.ColumnNames(), Rows: n}, nil
}

// Request names a table query in the URL mini-language.
type Request struct {
	Connection string
	Table      string
	// Fields is "*" or a comma-separated column list.
	Fields string
	// Options is the optional ordering and limit string.
	Options string
}

// Prepared is a validated query that has not run yet.
type Prepared struct {
	Request Request
	Plan    *query.Plan
	conn    *driver.Connection
}

// Prepare validates req without touching table data. Errors surface in a
// fixed order: unknown connection, unknown or hidden table, unknown field,
// then the first bad option token, read left to right. An ordering token
// naming an unknown column is bad.
func (s *Service) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	cat, err := s.catalog(ctx, req.Connection)
	if err != nil {
		return nil, err
	}
	meta, err := cat.DescribeTable(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	fields := query.ParseFields(req.Fields)
	if _, err := query.ResolveFields(meta, fields); err != nil {
		return nil, err
	}
	opts, err := query.ParseOptionsFor(req.Options, meta)
	if err != nil {
		return nil, err
	}
	plan, err := query.BuildPlan(meta, fields, opts)
	if err != nil {
		return nil, err
	}
	return &Prepared{Request: req, Plan: plan, conn: cat.Connection()}, nil
}

// Execute starts the prepared query. The caller must Close the stream.
func (p *Prepared) Execute(ctx context.Context) (*query.ResultStream, error) {
	return query.Execute(ctx, p.conn, p.Plan)
}

// Open prepares and executes req in one step.
func (s *Service) Open(ctx context.Context, req Request) (*query.ResultStream, error) {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx)
}

// Close releases every pooled connection.
func (s *Service) Close() error {
	return s.conns.Close()
}
