package exporter

import (
	"context"
	"fmt"
	"time"

	"restables/internal/driver"
)

// ExportResult contains stats about a finished export.
type ExportResult struct {
	RowsProcessed int64
	Duration      time.Duration
}

// StreamRows pumps every row of rows into enc with a reused scan buffer, so
// memory stays constant regardless of row count. flushEvery > 0 flushes the
// encoder every that many rows. On success the encoder is closed, which
// finalises whole-file formats. rows is not closed.
func StreamRows(ctx context.Context, rows driver.RowStreamer, enc RowEncoder, flushEvery int) (*ExportResult, error) {
	start := time.Now()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	types, _ := rows.ColumnTypes()
	numeric := numericColumns(types, len(columns))

	if err := enc.WriteHeader(columns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	record := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	var rowCount int64
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		for i, v := range values {
			record[i] = cellValue(v, numeric[i])
		}
		if err := enc.WriteRow(record); err != nil {
			return nil, fmt.Errorf("row write failed: %w", err)
		}
		rowCount++

		if flushEvery > 0 && rowCount%int64(flushEvery) == 0 {
			if err := enc.Flush(); err != nil {
				return nil, fmt.Errorf("flush failed: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalise output: %w", err)
	}
	return &ExportResult{RowsProcessed: rowCount, Duration: time.Since(start)}, nil
}
