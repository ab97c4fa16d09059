// Package exec runs SQL plans against pooled connections: queries with
// batched fetching and cancellation polls, non-query statements, and
// PL/SQL blocks with named output parameters.
package exec

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/pool"
)

// Mode selects how a plan is executed.
type Mode string

const (
	// ModeQuery materializes rows up to the row cap.
	ModeQuery Mode = "query"
	// ModeStream invokes a callback per row until exhaustion or stop.
	ModeStream Mode = "stream"
	// ModeExecute runs a non-result statement.
	ModeExecute Mode = "execute"
	// ModePLSQL runs an anonymous block or CALL, collecting out params.
	ModePLSQL Mode = "plsql"
)

// Plan is one executable statement with its binds and limits.
type Plan struct {
	SQL       string
	Binds     []any
	Mode      Mode
	FetchSize int
	MaxRows   int
	Timeout   time.Duration
	// PrepareOnly parses the statement without running it. Used for
	// limit-zero queries that must not execute the body.
	PrepareOnly bool
}

// Result is the uniform execution outcome.
type Result struct {
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
	// RowsAffected is nil for DDL and queries.
	RowsAffected *int64         `json:"rows_affected,omitempty"`
	OutParams    map[string]any `json:"out_params,omitempty"`
	// Truncated marks a row set cut off at the row cap, or a LOB cut at
	// the preview size.
	Truncated bool `json:"truncated,omitempty"`
}

// RowFunc receives streamed rows; returning false stops the cursor.
type RowFunc func(row map[string]any) (bool, error)

// Options carries the engine defaults from configuration.
type Options struct {
	DefaultFetchSize int
	MaxRows          int
	DefaultTimeout   time.Duration
	LobPreviewBytes  int
}

// Engine executes plans. It holds no connection state of its own; every
// call runs on a pool entry.
type Engine struct {
	pool   *pool.Pool
	opts   Options
	logger zerolog.Logger
}

// New creates an engine over the pool.
func New(p *pool.Pool, opts Options, logger zerolog.Logger) *Engine {
	if opts.DefaultFetchSize <= 0 {
		opts.DefaultFetchSize = 1000
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 10_000
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 5 * time.Minute
	}
	if opts.LobPreviewBytes <= 0 {
		opts.LobPreviewBytes = 64 * 1024
	}
	return &Engine{pool: p, opts: opts, logger: logger.With().Str("component", "exec").Logger()}
}

// Execute runs one plan inside a scoped pool acquisition.
func (e *Engine) Execute(ctx context.Context, tool string, plan Plan) (*Result, error) {
	var result *Result
	err := e.pool.WithConnection(ctx, tool, func(ctx context.Context, entry *pool.Entry) error {
		var execErr error
		result, execErr = e.ExecuteOn(ctx, entry, plan)
		return execErr
	})
	return result, err
}

// ExecuteOn runs one plan on an already-borrowed entry. Handlers that
// need several statements on one session (multi-step operations with
// compensation) acquire once and call this repeatedly.
func (e *Engine) ExecuteOn(ctx context.Context, entry *pool.Entry, plan Plan) (*Result, error) {
	ctx, cancel := e.planContext(ctx, plan)
	defer cancel()

	switch plan.Mode {
	case ModeQuery, "":
		return e.query(ctx, entry, plan)
	case ModeExecute:
		return e.exec(ctx, entry, plan)
	case ModePLSQL:
		return e.plsql(ctx, entry, plan)
	case ModeStream:
		return nil, oraerr.Validation(oraerr.CodeInvalidParam, "stream mode requires StreamOn")
	default:
		return nil, oraerr.Validation(oraerr.CodeInvalidParam, "unknown execution mode %q", plan.Mode)
	}
}

// StreamOn runs a query plan and feeds rows to fn one at a time.
func (e *Engine) StreamOn(ctx context.Context, entry *pool.Entry, plan Plan, fn RowFunc) error {
	ctx, cancel := e.planContext(ctx, plan)
	defer cancel()

	rows, err := entry.Session().QueryContext(ctx, plan.SQL, plan.Binds...)
	if err != nil {
		return oraerr.FromOracle(err)
	}
	defer func() { _ = rows.Close() }()

	return e.streamRows(ctx, sqlRowSource{rows}, e.fetchSize(plan), fn)
}

func (e *Engine) planContext(ctx context.Context, plan Plan) (context.Context, context.CancelFunc) {
	timeout := plan.Timeout
	if timeout <= 0 {
		timeout = e.opts.DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (e *Engine) fetchSize(plan Plan) int {
	if plan.FetchSize > 0 {
		return plan.FetchSize
	}
	return e.opts.DefaultFetchSize
}

// rowCap clamps the plan's row limit to the configured maximum.
func (e *Engine) rowCap(plan Plan) (capped int, clamped bool) {
	if plan.MaxRows <= 0 || plan.MaxRows > e.opts.MaxRows {
		return e.opts.MaxRows, plan.MaxRows > e.opts.MaxRows
	}
	return plan.MaxRows, false
}

func (e *Engine) query(ctx context.Context, entry *pool.Entry, plan Plan) (*Result, error) {
	if plan.PrepareOnly {
		// Parse without running the body. The prepared handle stays in
		// the entry's statement cache for the real call.
		if _, err := entry.Prepare(ctx, plan.SQL); err != nil {
			return nil, oraerr.FromOracle(err)
		}
		return &Result{Rows: []map[string]any{}}, nil
	}

	stmt, err := entry.Prepare(ctx, plan.SQL)
	if err != nil {
		return nil, oraerr.FromOracle(err)
	}

	rows, err := stmt.QueryContext(ctx, plan.Binds...)
	if err != nil {
		return nil, oraerr.FromOracle(err)
	}
	defer func() { _ = rows.Close() }()

	maxRows, clamped := e.rowCap(plan)
	result, err := e.collectRows(ctx, sqlRowSource{rows}, e.fetchSize(plan), maxRows)
	if err != nil {
		return nil, err
	}
	result.Truncated = result.Truncated || clamped && len(result.Rows) == maxRows
	return result, nil
}

func (e *Engine) exec(ctx context.Context, entry *pool.Entry, plan Plan) (*Result, error) {
	res, err := entry.Session().ExecContext(ctx, plan.SQL, plan.Binds...)
	if err != nil {
		return nil, oraerr.FromOracle(err)
	}

	result := &Result{}
	if res != nil && !isDDL(plan.SQL) {
		if n, affErr := res.RowsAffected(); affErr == nil {
			result.RowsAffected = &n
		}
	}
	return result, nil
}

func (e *Engine) plsql(ctx context.Context, entry *pool.Entry, plan Plan) (*Result, error) {
	if _, err := entry.Session().ExecContext(ctx, plan.SQL, plan.Binds...); err != nil {
		return nil, oraerr.FromOracle(err)
	}

	result := &Result{}
	// Named sql.Out binds carry values back from the block.
	for _, bind := range plan.Binds {
		named, ok := bind.(sql.NamedArg)
		if !ok {
			continue
		}
		out, ok := named.Value.(sql.Out)
		if !ok || out.Dest == nil {
			continue
		}
		if result.OutParams == nil {
			result.OutParams = make(map[string]any)
		}
		result.OutParams[strings.ToUpper(named.Name)] = derefOut(out.Dest)
	}
	return result, nil
}

// isDDL reports whether the statement is DDL, for which affected-row
// counts are meaningless.
func isDDL(sqlText string) bool {
	head := strings.ToUpper(strings.TrimSpace(sqlText))
	for _, kw := range []string{"CREATE", "ALTER", "DROP", "TRUNCATE", "GRANT", "REVOKE", "COMMENT"} {
		if strings.HasPrefix(head, kw+" ") || head == kw {
			return true
		}
	}
	return false
}

func derefOut(dest any) any {
	switch v := dest.(type) {
	case *string:
		return *v
	case *int64:
		return *v
	case *float64:
		return *v
	case *bool:
		return *v
	case *any:
		return *v
	default:
		return dest
	}
}
