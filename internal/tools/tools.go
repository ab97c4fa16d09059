// Package tools is the catalog: every tool descriptor, its input
// schema, and its handler. Handlers are thin compositions over the
// builder, the engine, and the capability detector.
package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orahub/oracle-mcp/internal/capability"
	"github.com/orahub/oracle-mcp/internal/config"
	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/pool"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
)

// Deps is everything a handler may touch.
type Deps struct {
	Engine   *exec.Engine
	Pool     *pool.Pool
	Detector *capability.Detector
	Builder  *sqlbuild.Builder
	Config   *config.Config
	Logger   zerolog.Logger
}

// Register populates the registry according to the configured edition:
// enhanced carries core, analytics, and ai; enterprise adds security,
// performance, and diagnostic.
func Register(r *registry.Registry, d Deps) error {
	groups := [][]*registry.Descriptor{
		d.databaseTools(),
		d.userTools(),
		d.tableTools(),
		d.recordTools(),
		d.analyticsTools(),
		d.vectorTools(),
	}
	if d.Config.Edition == config.EditionEnterprise {
		groups = append(groups,
			d.securityTools(),
			d.performanceTools(),
			d.diagnosticTools(),
		)
	}

	for _, group := range groups {
		for _, desc := range group {
			if err := r.Register(desc); err != nil {
				return err
			}
		}
	}
	return nil
}

// schema wraps a raw JSON Schema literal. Malformed literals are a
// programming error caught by the registry at startup.
func schema(raw string) json.RawMessage {
	return json.RawMessage(raw)
}

// rowsResult is the common shape for read-only catalog tools.
func rowsResult(key string, res *exec.Result) map[string]any {
	return map[string]any{
		key:       res.Rows,
		"count":   len(res.Rows),
		"columns": res.Columns,
	}
}

// outcome wraps an execution result, propagating the truncation flag.
func outcome(data any, res *exec.Result) *registry.Outcome {
	o := &registry.Outcome{Data: data}
	if res != nil {
		o.Truncated = res.Truncated
	}
	return o
}

// catalogQuery builds a handler for a fixed read-only dictionary query
// whose rows are returned under key.
func (d Deps) catalogQuery(key, sqlText string) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
		res, err := d.Engine.Execute(ctx, key, exec.Plan{SQL: sqlText, Mode: exec.ModeQuery})
		if err != nil {
			return nil, err
		}
		return outcome(rowsResult(key, res), res), nil
	}
}

// runQuery executes a built statement in query mode.
func (d Deps) runQuery(ctx context.Context, tool string, stmt sqlbuild.Statement, maxRows int) (*exec.Result, error) {
	return d.Engine.Execute(ctx, tool, exec.Plan{
		SQL:     stmt.SQL,
		Binds:   stmt.Binds,
		Mode:    exec.ModeQuery,
		MaxRows: maxRows,
	})
}

// runExec executes a built statement in execute mode.
func (d Deps) runExec(ctx context.Context, tool string, stmt sqlbuild.Statement) (*exec.Result, error) {
	return d.Engine.Execute(ctx, tool, exec.Plan{
		SQL:   stmt.SQL,
		Binds: stmt.Binds,
		Mode:  exec.ModeExecute,
	})
}

// Typed argument accessors. The validator has already coerced types;
// these guard against handler/schema drift.

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}

func stringSliceArg(args map[string]any, name string) []string {
	raw, ok := args[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatSliceArg(args map[string]any, name string) []float64 {
	raw, ok := args[name].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case float64:
			out = append(out, v)
		case int:
			out = append(out, float64(v))
		}
	}
	return out
}

func mapArg(args map[string]any, name string) map[string]any {
	m, _ := args[name].(map[string]any)
	return m
}

// requireCapability is for handlers whose capability need depends on
// the arguments rather than the descriptor.
func (d Deps) requireCapability(ctx context.Context, tag capability.Tag, hint string) error {
	if !d.Detector.Supports(ctx, tag) {
		return oraerr.Capability("this operation requires the %s feature", tag).WithHint(hint)
	}
	return nil
}

// firstKeyword returns the leading SQL keyword, uppercased.
func firstKeyword(sqlText string) string {
	fields := strings.Fields(strings.ToUpper(sqlText))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// normalizedIdent escapes and uppercases an identifier used as a bind
// value against dictionary views, which store names uppercased.
func normalizedIdent(s string) (string, error) {
	return sqlbuild.EscapeIdentifier(s)
}

// scalarFrom pulls a single named column out of the first row.
func scalarFrom(res *exec.Result, col string) any {
	if len(res.Rows) == 0 {
		return nil
	}
	return res.Rows[0][col]
}
