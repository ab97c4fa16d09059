package tools

import (
	"context"

	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
)

func (d Deps) recordTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "query_records",
			Description: "Query rows from a table with optional projection, filter, ordering, and limit.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"columns": {"type": "array", "items": {"type": "string"}},
					"where": {"type": "string", "maxLength": 4000},
					"order_by": {"type": "array", "items": {"type": "string"}},
					"limit": {"type": "integer", "minimum": 0}
				},
				"required": ["table"]
			}`),
			Handler: d.queryRecords,
		},
		{
			Name:        "count_records",
			Description: "Count rows in a table with an optional filter.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"where": {"type": "string", "maxLength": 4000}
				},
				"required": ["table"]
			}`),
			Handler: d.countRecords,
		},
		{
			Name:        "insert_record",
			Description: "Insert one row; every value travels as a bind parameter.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"values": {"type": "object"}
				},
				"required": ["table", "values"]
			}`),
			Handler: d.insertRecord,
		},
		{
			Name:        "update_records",
			Description: "Update rows matching a mandatory filter; set values travel as binds.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"set": {"type": "object"},
					"where": {"type": "string", "minLength": 1, "maxLength": 4000}
				},
				"required": ["table", "set", "where"]
			}`),
			Handler: d.updateRecords,
		},
		{
			Name:        "delete_records",
			Description: "Delete rows matching a mandatory filter.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"where": {"type": "string", "minLength": 1, "maxLength": 4000}
				},
				"required": ["table", "where"]
			}`),
			Handler: d.deleteRecords,
		},
		{
			Name:        "execute_sql",
			Description: "Run a single caller-supplied SELECT statement.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"sql": {"type": "string", "minLength": 1},
					"max_rows": {"type": "integer", "minimum": 1}
				},
				"required": ["sql"]
			}`),
			Handler: d.executeSQL,
		},
		{
			Name:        "execute_plsql",
			Description: "Run a single anonymous PL/SQL block.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"block": {"type": "string", "minLength": 1}
				},
				"required": ["block"]
			}`),
			Handler: d.executePLSQL,
		},
	}
}

func (d Deps) queryRecords(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	limit := -1
	if _, ok := args["limit"]; ok {
		limit = intArg(args, "limit")
	}

	stmt, err := d.Builder.QueryRecords(sqlbuild.QuerySpec{
		Table:   stringArg(args, "table"),
		Columns: stringSliceArg(args, "columns"),
		Where:   stringArg(args, "where"),
		OrderBy: stringSliceArg(args, "order_by"),
	})
	if err != nil {
		return nil, err
	}

	plan := exec.Plan{SQL: stmt.SQL, Binds: stmt.Binds, Mode: exec.ModeQuery}
	var warnings []string
	switch {
	case limit == 0:
		// A zero limit parses the statement without running the body.
		plan.PrepareOnly = true
	case limit > 0:
		if limit > d.Config.Query.MaxRows {
			warnings = append(warnings, "limit clamped to configured max_rows")
		}
		plan.MaxRows = limit
	}

	res, err := d.Engine.Execute(ctx, "query_records", plan)
	if err != nil {
		return nil, err
	}

	o := outcome(map[string]any{
		"rows":      res.Rows,
		"columns":   res.Columns,
		"row_count": len(res.Rows),
	}, res)
	o.Warnings = warnings
	return o, nil
}

func (d Deps) countRecords(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table, err := normalizedIdent(stringArg(args, "table"))
	if err != nil {
		return nil, err
	}

	sqlText := "SELECT COUNT(*) AS N FROM " + table
	if where := stringArg(args, "where"); where != "" {
		if err := sqlbuild.CheckPredicate(where); err != nil {
			return nil, err
		}
		sqlText += " WHERE " + where
	}

	res, err := d.Engine.Execute(ctx, "count_records", exec.Plan{SQL: sqlText, Mode: exec.ModeQuery})
	if err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{
		"table": table,
		"count": scalarFrom(res, "N"),
	}}, nil
}

func (d Deps) insertRecord(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stmt, err := d.Builder.InsertRecord(stringArg(args, "table"), mapArg(args, "values"))
	if err != nil {
		return nil, err
	}
	res, err := d.runExec(ctx, "insert_record", stmt)
	if err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{
		"table":    stringArg(args, "table"),
		"inserted": affected(res),
	}}, nil
}

func (d Deps) updateRecords(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stmt, err := d.Builder.UpdateRecords(
		stringArg(args, "table"),
		mapArg(args, "set"),
		stringArg(args, "where"),
	)
	if err != nil {
		return nil, err
	}
	res, err := d.runExec(ctx, "update_records", stmt)
	if err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{
		"table":   stringArg(args, "table"),
		"updated": affected(res),
	}}, nil
}

func (d Deps) deleteRecords(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stmt, err := d.Builder.DeleteRecords(stringArg(args, "table"), stringArg(args, "where"))
	if err != nil {
		return nil, err
	}
	res, err := d.runExec(ctx, "delete_records", stmt)
	if err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{
		"table":   stringArg(args, "table"),
		"deleted": affected(res),
	}}, nil
}

// executeSQL accepts only a single SELECT: DML and DDL must go through
// the typed tools where the safety checks live.
func (d Deps) executeSQL(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	sqlText := stringArg(args, "sql")
	if err := sqlbuild.ValidateSingleStatement(sqlText); err != nil {
		return nil, err
	}
	if !isSelect(sqlText) {
		return nil, oraerr.Security(oraerr.CodeMultiStatement,
			"only SELECT statements are accepted here").
			WithHint("use the dedicated tools for DML and DDL")
	}

	res, err := d.Engine.Execute(ctx, "execute_sql", exec.Plan{
		SQL:     sqlText,
		Mode:    exec.ModeQuery,
		MaxRows: intArg(args, "max_rows"),
	})
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{
		"rows":      res.Rows,
		"columns":   res.Columns,
		"row_count": len(res.Rows),
	}, res), nil
}

func (d Deps) executePLSQL(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	block := stringArg(args, "block")
	if err := sqlbuild.ValidateSingleStatement(block); err != nil {
		return nil, err
	}

	res, err := d.Engine.Execute(ctx, "execute_plsql", exec.Plan{SQL: block, Mode: exec.ModePLSQL})
	if err != nil {
		return nil, err
	}
	data := map[string]any{"executed": true}
	if len(res.OutParams) > 0 {
		data["out_params"] = res.OutParams
	}
	return &registry.Outcome{Data: data}, nil
}

func isSelect(sqlText string) bool {
	head := firstKeyword(sqlText)
	return head == "SELECT" || head == "WITH"
}

func affected(res *exec.Result) int64 {
	if res == nil || res.RowsAffected == nil {
		return 0
	}
	return *res.RowsAffected
}
