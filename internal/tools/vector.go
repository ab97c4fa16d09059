package tools

import (
	"context"
	"strconv"

	"github.com/orahub/oracle-mcp/internal/capability"
	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
)

func (d Deps) vectorTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "vector_search",
			Description: "Find the rows whose vector column is nearest to a query vector.",
			Category:    "ai",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"vector_column": {"type": "string", "minLength": 1, "maxLength": 128},
					"query_vector": {"type": "array", "items": {"type": "number"}},
					"metric": {"type": "string", "enum": ["cosine", "euclidean", "manhattan"], "default": "cosine"},
					"top_k": {"type": "integer", "minimum": 1, "maximum": 1000, "default": 10},
					"columns": {"type": "array", "items": {"type": "string"}},
					"where": {"type": "string", "maxLength": 4000}
				},
				"required": ["table", "vector_column", "query_vector"]
			}`),
			Requires: []capability.Tag{capability.TagVector},
			Handler:  d.vectorSearch,
		},
		{
			Name:        "create_vector_table",
			Description: "Create a table with a VECTOR column for similarity search.",
			Category:    "ai",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"id_column": {"type": "string", "default": "id"},
					"vector_column": {"type": "string", "default": "embedding"},
					"dimensions": {"type": "integer", "minimum": 1, "maximum": 65535},
					"format": {"type": "string", "enum": ["FLOAT32", "FLOAT64", "INT8"], "default": "FLOAT32"}
				},
				"required": ["table", "dimensions"]
			}`),
			Requires: []capability.Tag{capability.TagVector},
			Handler:  d.createVectorTable,
		},
		{
			Name:        "create_vector_index",
			Description: "Create an approximate similarity index over a VECTOR column.",
			Category:    "ai",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"index": {"type": "string", "minLength": 1, "maxLength": 128},
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"vector_column": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["index", "table", "vector_column"]
			}`),
			Requires: []capability.Tag{capability.TagVector},
			Handler:  d.createVectorIndex,
		},
		{
			Name:        "list_vector_columns",
			Description: "List VECTOR columns visible to the connected user.",
			Category:    "ai",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Requires:    []capability.Tag{capability.TagVector},
			Handler: d.catalogQuery("vector_columns",
				"SELECT table_name, column_name, data_type FROM user_tab_columns WHERE data_type = 'VECTOR' ORDER BY table_name, column_name"),
		},
	}
}

func (d Deps) vectorSearch(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	metric := stringArg(args, "metric")
	if metric == "" {
		metric = "cosine"
	}
	topK := intArg(args, "top_k")

	stmt, err := d.Builder.VectorSearch(sqlbuild.VectorSpec{
		Table:        stringArg(args, "table"),
		VectorColumn: stringArg(args, "vector_column"),
		Query:        floatSliceArg(args, "query_vector"),
		Metric:       metric,
		TopK:         topK,
		Columns:      stringSliceArg(args, "columns"),
		Where:        stringArg(args, "where"),
	})
	if err != nil {
		return nil, err
	}

	res, err := d.runQuery(ctx, "vector_search", stmt, 0)
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{
		"matches": res.Rows,
		"count":   len(res.Rows),
		"metric":  metric,
	}, res), nil
}

func (d Deps) createVectorTable(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	idCol := stringArg(args, "id_column")
	if idCol == "" {
		idCol = "id"
	}
	vecCol := stringArg(args, "vector_column")
	if vecCol == "" {
		vecCol = "embedding"
	}
	format := stringArg(args, "format")
	if format == "" {
		format = "FLOAT32"
	}

	stmt, err := d.Builder.CreateTable(sqlbuild.TableSpec{
		Name: stringArg(args, "table"),
		Columns: []sqlbuild.ColumnDef{
			{Name: idCol, Type: "NUMBER", NotNull: true},
			{Name: vecCol, Type: "VECTOR", Size: formatVectorSize(intArg(args, "dimensions"), format)},
		},
		PrimaryKey: []string{idCol},
	})
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "create_vector_table", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{
		"table":         stringArg(args, "table"),
		"vector_column": vecCol,
		"dimensions":    intArg(args, "dimensions"),
	}}, nil
}

func (d Deps) createVectorIndex(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	idx, err := normalizedIdent(stringArg(args, "index"))
	if err != nil {
		return nil, err
	}
	table, err := normalizedIdent(stringArg(args, "table"))
	if err != nil {
		return nil, err
	}
	vecCol, err := normalizedIdent(stringArg(args, "vector_column"))
	if err != nil {
		return nil, err
	}

	sqlText := "CREATE VECTOR INDEX " + idx + " ON " + table + " (" + vecCol + ") ORGANIZATION NEIGHBOR PARTITIONS"
	if _, err := d.Engine.Execute(ctx, "create_vector_index", exec.Plan{SQL: sqlText, Mode: exec.ModeExecute}); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"index": idx, "table": table}}, nil
}

func formatVectorSize(dimensions int, format string) string {
	return strconv.Itoa(dimensions) + ", " + format
}
