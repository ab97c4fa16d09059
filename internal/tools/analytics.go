package tools

import (
	"context"
	"fmt"

	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
)

func (d Deps) analyticsTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "window_functions",
			Description: "Apply a window function (ROW_NUMBER, RANK, LAG, NTILE, ...) over a table.",
			Category:    "analytics",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"function": {"type": "string", "minLength": 1, "maxLength": 30},
					"column": {"type": "string", "maxLength": 128},
					"buckets": {"type": "integer", "minimum": 1},
					"offset": {"type": "integer", "minimum": 0},
					"percentile": {"type": "number", "minimum": 0, "maximum": 1},
					"partition_by": {"type": "array", "items": {"type": "string"}},
					"order_by": {"type": "array", "items": {"type": "string"}},
					"alias": {"type": "string", "maxLength": 128},
					"where": {"type": "string", "maxLength": 4000},
					"limit": {"type": "integer", "minimum": 1}
				},
				"required": ["table", "function"]
			}`),
			Handler: d.windowFunctions,
		},
		{
			Name:        "pivot_operations",
			Description: "Pivot rows into columns over a source query.",
			Category:    "analytics",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"source_query": {"type": "string", "minLength": 1},
					"pivot_column": {"type": "string", "minLength": 1, "maxLength": 128},
					"values": {"type": "array", "items": {"type": "string"}},
					"aggregate": {"type": "string", "enum": ["SUM", "AVG", "MIN", "MAX", "COUNT"]},
					"measure_column": {"type": "string", "maxLength": 128}
				},
				"required": ["source_query", "pivot_column", "values"]
			}`),
			Handler: d.pivotOperations,
		},
		{
			Name:        "unpivot_operations",
			Description: "Unpivot columns into rows over a source query.",
			Category:    "analytics",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"source_query": {"type": "string", "minLength": 1},
					"value_column": {"type": "string", "minLength": 1, "maxLength": 128},
					"name_column": {"type": "string", "minLength": 1, "maxLength": 128},
					"columns": {"type": "array", "items": {"type": "string"}},
					"include_nulls": {"type": "boolean", "default": false}
				},
				"required": ["source_query", "value_column", "name_column", "columns"]
			}`),
			Handler: d.unpivotOperations,
		},
		{
			Name:        "aggregate_records",
			Description: "Group rows and aggregate a measure column.",
			Category:    "analytics",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"group_by": {"type": "array", "items": {"type": "string"}},
					"aggregate": {"type": "string", "enum": ["SUM", "AVG", "MIN", "MAX", "COUNT", "MEDIAN", "STDDEV"]},
					"measure_column": {"type": "string", "maxLength": 128},
					"where": {"type": "string", "maxLength": 4000}
				},
				"required": ["table", "aggregate"]
			}`),
			Handler: d.aggregateRecords,
		},
		{
			Name:        "hierarchical_query",
			Description: "Walk a parent-child hierarchy with CONNECT BY.",
			Category:    "analytics",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"id_column": {"type": "string", "minLength": 1, "maxLength": 128},
					"parent_column": {"type": "string", "minLength": 1, "maxLength": 128},
					"start_with": {"type": "string", "maxLength": 4000},
					"max_depth": {"type": "integer", "minimum": 1, "maximum": 64}
				},
				"required": ["table", "id_column", "parent_column"]
			}`),
			Handler: d.hierarchicalQuery,
		},
		{
			Name:        "percentile_analysis",
			Description: "Compute PERCENTILE_CONT or PERCENTILE_DISC over an order column.",
			Category:    "analytics",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"function": {"type": "string", "enum": ["PERCENTILE_CONT", "PERCENTILE_DISC"], "default": "PERCENTILE_CONT"},
					"percentile": {"type": "number", "minimum": 0, "maximum": 1},
					"order_by": {"type": "array", "items": {"type": "string"}},
					"partition_by": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["table", "percentile", "order_by"]
			}`),
			Handler: d.percentileAnalysis,
		},
	}
}

func analyticalSpecFromArgs(args map[string]any) sqlbuild.AnalyticalSpec {
	spec := sqlbuild.AnalyticalSpec{
		Table:       stringArg(args, "table"),
		Function:    stringArg(args, "function"),
		Column:      stringArg(args, "column"),
		Buckets:     intArg(args, "buckets"),
		Offset:      intArg(args, "offset"),
		PartitionBy: stringSliceArg(args, "partition_by"),
		OrderBy:     stringSliceArg(args, "order_by"),
		Alias:       stringArg(args, "alias"),
		Where:       stringArg(args, "where"),
		Limit:       intArg(args, "limit"),
	}
	if p, ok := args["percentile"].(float64); ok {
		spec.Percentile = p
	}
	return spec
}

func (d Deps) windowFunctions(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stmt, err := d.Builder.Analytical(analyticalSpecFromArgs(args))
	if err != nil {
		return nil, err
	}
	res, err := d.runQuery(ctx, "window_functions", stmt, 0)
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{"rows": res.Rows, "columns": res.Columns}, res), nil
}

func (d Deps) pivotOperations(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stmt, err := d.Builder.Pivot(sqlbuild.PivotSpec{
		SourceQuery:   stringArg(args, "source_query"),
		PivotColumn:   stringArg(args, "pivot_column"),
		Values:        stringSliceArg(args, "values"),
		Aggregate:     stringArg(args, "aggregate"),
		MeasureColumn: stringArg(args, "measure_column"),
	})
	if err != nil {
		return nil, err
	}
	res, err := d.runQuery(ctx, "pivot_operations", stmt, 0)
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{"rows": res.Rows, "columns": res.Columns}, res), nil
}

func (d Deps) unpivotOperations(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stmt, err := d.Builder.Unpivot(sqlbuild.UnpivotSpec{
		SourceQuery:  stringArg(args, "source_query"),
		ValueColumn:  stringArg(args, "value_column"),
		NameColumn:   stringArg(args, "name_column"),
		Columns:      stringSliceArg(args, "columns"),
		IncludeNulls: boolArg(args, "include_nulls"),
	})
	if err != nil {
		return nil, err
	}
	res, err := d.runQuery(ctx, "unpivot_operations", stmt, 0)
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{"rows": res.Rows, "columns": res.Columns}, res), nil
}

func (d Deps) aggregateRecords(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table, err := normalizedIdent(stringArg(args, "table"))
	if err != nil {
		return nil, err
	}
	agg := stringArg(args, "aggregate")

	measure := "*"
	if col := stringArg(args, "measure_column"); col != "" {
		if measure, err = normalizedIdent(col); err != nil {
			return nil, err
		}
	} else if agg != "COUNT" {
		return nil, oraerr.Validation(oraerr.CodeMissingParam, "%s requires a measure column", agg)
	}

	groupCols := make([]string, 0, 4)
	for _, col := range stringSliceArg(args, "group_by") {
		escaped, err := normalizedIdent(col)
		if err != nil {
			return nil, err
		}
		groupCols = append(groupCols, escaped)
	}

	sqlText := fmt.Sprintf("SELECT %s(%s) AS VALUE FROM %s", agg, measure, table)
	if len(groupCols) > 0 {
		projection := ""
		for _, c := range groupCols {
			projection += c + ", "
		}
		sqlText = fmt.Sprintf("SELECT %s%s(%s) AS VALUE FROM %s", projection, agg, measure, table)
	}
	if where := stringArg(args, "where"); where != "" {
		if err := sqlbuild.CheckPredicate(where); err != nil {
			return nil, err
		}
		sqlText += " WHERE " + where
	}
	if len(groupCols) > 0 {
		sqlText += " GROUP BY "
		for i, c := range groupCols {
			if i > 0 {
				sqlText += ", "
			}
			sqlText += c
		}
	}

	res, err := d.Engine.Execute(ctx, "aggregate_records", exec.Plan{SQL: sqlText, Mode: exec.ModeQuery})
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{"rows": res.Rows, "columns": res.Columns}, res), nil
}

func (d Deps) hierarchicalQuery(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table, err := normalizedIdent(stringArg(args, "table"))
	if err != nil {
		return nil, err
	}
	idCol, err := normalizedIdent(stringArg(args, "id_column"))
	if err != nil {
		return nil, err
	}
	parentCol, err := normalizedIdent(stringArg(args, "parent_column"))
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf(
		"SELECT t.*, LEVEL AS HIERARCHY_LEVEL FROM %s t CONNECT BY PRIOR %s = %s",
		table, idCol, parentCol)
	if start := stringArg(args, "start_with"); start != "" {
		if err := sqlbuild.CheckPredicate(start); err != nil {
			return nil, err
		}
		sqlText += " START WITH " + start
	} else {
		sqlText += fmt.Sprintf(" START WITH %s IS NULL", parentCol)
	}
	if depth := intArg(args, "max_depth"); depth > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) WHERE HIERARCHY_LEVEL <= %d", sqlText, depth)
	}

	res, err := d.Engine.Execute(ctx, "hierarchical_query", exec.Plan{SQL: sqlText, Mode: exec.ModeQuery})
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{"rows": res.Rows, "columns": res.Columns}, res), nil
}

func (d Deps) percentileAnalysis(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	fn := stringArg(args, "function")
	if fn == "" {
		fn = "PERCENTILE_CONT"
	}
	spec := sqlbuild.AnalyticalSpec{
		Table:       stringArg(args, "table"),
		Function:    fn,
		PartitionBy: stringSliceArg(args, "partition_by"),
		OrderBy:     stringSliceArg(args, "order_by"),
	}
	if p, ok := args["percentile"].(float64); ok {
		spec.Percentile = p
	}

	stmt, err := d.Builder.Analytical(spec)
	if err != nil {
		return nil, err
	}
	res, err := d.runQuery(ctx, "percentile_analysis", stmt, 0)
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{"rows": res.Rows, "columns": res.Columns}, res), nil
}
