package exec

import (
	"context"
	"database/sql"
	"time"

	"github.com/orahub/oracle-mcp/internal/oraerr"
)

// rowSource abstracts *sql.Rows so row collection can be tested without
// a live driver.
type rowSource interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type sqlRowSource struct {
	rows *sql.Rows
}

func (s sqlRowSource) Columns() ([]string, error) { return s.rows.Columns() }
func (s sqlRowSource) Next() bool                 { return s.rows.Next() }
func (s sqlRowSource) Scan(dest ...any) error     { return s.rows.Scan(dest...) }
func (s sqlRowSource) Err() error                 { return s.rows.Err() }

// collectRows materializes up to maxRows rows, checking the context at
// every fetch-batch boundary so client cancellation and deadlines are
// observed mid-result-set.
func (e *Engine) collectRows(ctx context.Context, src rowSource, fetchSize, maxRows int) (*Result, error) {
	cols, err := src.Columns()
	if err != nil {
		return nil, oraerr.FromOracle(err)
	}

	result := &Result{
		Columns: cols,
		Rows:    make([]map[string]any, 0),
	}

	count := 0
	for src.Next() {
		if count%fetchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, oraerr.FromOracle(err)
			}
		}
		if count >= maxRows {
			result.Truncated = true
			break
		}

		row, truncated, err := e.scanRow(src, cols)
		if err != nil {
			return nil, oraerr.FromOracle(err)
		}
		result.Truncated = result.Truncated || truncated
		result.Rows = append(result.Rows, row)
		count++
	}

	if err := src.Err(); err != nil {
		return nil, oraerr.FromOracle(err)
	}
	return result, nil
}

// streamRows feeds rows to fn, polling the context between batches.
func (e *Engine) streamRows(ctx context.Context, src rowSource, fetchSize int, fn RowFunc) error {
	cols, err := src.Columns()
	if err != nil {
		return oraerr.FromOracle(err)
	}

	count := 0
	for src.Next() {
		if count%fetchSize == 0 {
			if err := ctx.Err(); err != nil {
				return oraerr.FromOracle(err)
			}
		}

		row, _, err := e.scanRow(src, cols)
		if err != nil {
			return oraerr.FromOracle(err)
		}
		keep, err := fn(row)
		if err != nil {
			return oraerr.AsError(err)
		}
		if !keep {
			return nil
		}
		count++
	}
	if err := src.Err(); err != nil {
		return oraerr.FromOracle(err)
	}
	return nil
}

// scanRow scans the current row into a column-name-keyed map. Column
// names arrive uppercased per Oracle defaults; values are shaped for
// JSON transport.
func (e *Engine) scanRow(src rowSource, cols []string) (map[string]any, bool, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := src.Scan(ptrs...); err != nil {
		return nil, false, err
	}

	truncated := false
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		shaped, cut := e.shapeValue(values[i])
		truncated = truncated || cut
		row[col] = shaped
	}
	return row, truncated, nil
}

// shapeValue converts driver values for JSON transport. LOBs beyond the
// preview size are cut; the caller surfaces the truncation marker.
func (e *Engine) shapeValue(v any) (any, bool) {
	switch val := v.(type) {
	case []byte:
		if len(val) > e.opts.LobPreviewBytes {
			return string(val[:e.opts.LobPreviewBytes]), true
		}
		return string(val), false
	case string:
		if len(val) > e.opts.LobPreviewBytes {
			return val[:e.opts.LobPreviewBytes], true
		}
		return val, false
	case time.Time:
		return val.Format(time.RFC3339Nano), false
	default:
		return val, false
	}
}
