package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"restables/internal/apperr"
	"restables/internal/driver"
)

// ResultStream is a forward-only cursor over a plan's rows. It owns a read
// transaction and the pooled connection behind it until Close.
type ResultStream struct {
	rows   *sql.Rows
	tx     *sql.Tx
	header []string
	closed bool
}

// Execute runs plan on conn inside a read transaction. Rows are fetched
// from the backend as the caller advances the stream.
func Execute(ctx context.Context, conn *driver.Connection, plan *Plan) (*ResultStream, error) {
	d := conn.Dialect()
	query, args, err := plan.SQL(d)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	tx, err := conn.DB().BeginTx(ctx, d.TxOptions())
	if err != nil {
		return nil, apperr.Execution("begin transaction", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, apperr.Execution("query execution", err)
	}

	return &ResultStream{rows: rows, tx: tx, header: plan.Header()}, nil
}

// Columns returns the selected column names in selection order.
func (s *ResultStream) Columns() ([]string, error) {
	return append([]string(nil), s.header...), nil
}

func (s *ResultStream) ColumnTypes() ([]*sql.ColumnType, error) {
	if s.closed {
		return nil, errors.New("result stream closed")
	}
	return s.rows.ColumnTypes()
}

func (s *ResultStream) Next() bool {
	if s.closed {
		return false
	}
	return s.rows.Next()
}

func (s *ResultStream) Scan(dest ...any) error {
	if s.closed {
		return errors.New("result stream closed")
	}
	return s.rows.Scan(dest...)
}

// Err reports a backend failure hit while iterating.
func (s *ResultStream) Err() error {
	return apperr.Execution("rows iteration", s.rows.Err())
}

// Close releases the cursor and ends the transaction. It is safe to call
// more than once and on a partially consumed stream.
func (s *ResultStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	rowsErr := s.rows.Close()
	txErr := s.tx.Rollback()
	if errors.Is(txErr, sql.ErrTxDone) {
		txErr = nil
	}
	return errors.Join(rowsErr, txErr)
}

var _ driver.RowStreamer = (*ResultStream)(nil)
