package tools

import (
	"context"

	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
)

func (d Deps) tableTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "list_tables",
			Description: "List tables in a schema, excluding dictionary tables by default.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"schema": {"type": "string", "maxLength": 128},
					"include_system": {"type": "boolean", "default": false}
				}
			}`),
			Handler: d.listTables,
		},
		{
			Name:        "create_table",
			Description: "Create a table from a column specification with whitelisted types.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"columns": {"type": "array", "items": {"type": "object"}},
					"primary_key": {"type": "array", "items": {"type": "string"}},
					"tablespace": {"type": "string", "maxLength": 128}
				},
				"required": ["table", "columns"]
			}`),
			Handler: d.createTable,
		},
		{
			Name:        "drop_table",
			Description: "Drop a table, optionally purging it from the recycle bin.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"purge": {"type": "boolean", "default": false}
				},
				"required": ["table"]
			}`),
			Handler: d.dropTable,
		},
		{
			Name:        "truncate_table",
			Description: "Remove all rows from a table without logging individual deletes.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["table"]
			}`),
			Handler: d.truncateTable,
		},
		{
			Name:        "describe_table",
			Description: "Show column names, types, and nullability for a table.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"schema": {"type": "string", "maxLength": 128}
				},
				"required": ["table"]
			}`),
			Handler: d.describeTable,
		},
		{
			Name:        "list_views",
			Description: "List views visible to the connected user.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("views",
				"SELECT view_name FROM user_views ORDER BY view_name"),
		},
		{
			Name:        "list_indexes",
			Description: "List indexes for a table.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["table"]
			}`),
			Handler: d.listIndexes,
		},
		{
			Name:        "create_index",
			Description: "Create an index over one or more columns.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"index": {"type": "string", "minLength": 1, "maxLength": 128},
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"columns": {"type": "array", "items": {"type": "string"}},
					"unique": {"type": "boolean", "default": false}
				},
				"required": ["index", "table", "columns"]
			}`),
			Handler: d.createIndex,
		},
		{
			Name:        "drop_index",
			Description: "Drop an index.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"index": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["index"]
			}`),
			Handler: d.dropIndex,
		},
		{
			Name:        "list_constraints",
			Description: "List constraints for a table.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["table"]
			}`),
			Handler: d.listConstraints,
		},
		{
			Name:        "list_sequences",
			Description: "List sequences owned by the connected user.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("sequences",
				"SELECT sequence_name, min_value, max_value, increment_by, last_number FROM user_sequences ORDER BY sequence_name"),
		},
		{
			Name:        "create_view",
			Description: "Create a view over a single SELECT statement.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"view": {"type": "string", "minLength": 1, "maxLength": 128},
					"query": {"type": "string", "minLength": 1},
					"or_replace": {"type": "boolean", "default": false}
				},
				"required": ["view", "query"]
			}`),
			Handler: d.createView,
		},
		{
			Name:        "drop_view",
			Description: "Drop a view.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"view": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["view"]
			}`),
			Handler: d.dropView,
		},
		{
			Name:        "list_synonyms",
			Description: "List synonyms visible to the connected user.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("synonyms",
				"SELECT synonym_name, table_owner, table_name, db_link FROM user_synonyms ORDER BY synonym_name"),
		},
		{
			Name:        "create_synonym",
			Description: "Create a synonym for a table, view, or other object.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"synonym": {"type": "string", "minLength": 1, "maxLength": 128},
					"target": {"type": "string", "minLength": 1, "maxLength": 257},
					"public": {"type": "boolean", "default": false}
				},
				"required": ["synonym", "target"]
			}`),
			Handler: d.createSynonym,
		},
		{
			Name:        "drop_synonym",
			Description: "Drop a synonym.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"synonym": {"type": "string", "minLength": 1, "maxLength": 128},
					"public": {"type": "boolean", "default": false}
				},
				"required": ["synonym"]
			}`),
			Handler: d.dropSynonym,
		},
		{
			Name:        "rebuild_index",
			Description: "Rebuild an index, optionally online.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"index": {"type": "string", "minLength": 1, "maxLength": 128},
					"online": {"type": "boolean", "default": false}
				},
				"required": ["index"]
			}`),
			Handler: d.rebuildIndex,
		},
		{
			Name:        "create_sequence",
			Description: "Create a sequence with optional start, increment, cache, and cycle.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"sequence": {"type": "string", "minLength": 1, "maxLength": 128},
					"start_with": {"type": "integer"},
					"increment_by": {"type": "integer"},
					"cache": {"type": "integer", "minimum": 2},
					"cycle": {"type": "boolean", "default": false}
				},
				"required": ["sequence"]
			}`),
			Handler: d.createSequence,
		},
		{
			Name:        "drop_sequence",
			Description: "Drop a sequence.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"sequence": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["sequence"]
			}`),
			Handler: d.dropSequence,
		},
		{
			Name:        "list_triggers",
			Description: "List triggers owned by the connected user.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("triggers",
				"SELECT trigger_name, trigger_type, triggering_event, table_name, status FROM user_triggers ORDER BY trigger_name"),
		},
		{
			Name:        "list_materialized_views",
			Description: "List materialized views owned by the connected user.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("materialized_views",
				"SELECT mview_name, container_name, refresh_mode, refresh_method, last_refresh_date FROM user_mviews ORDER BY mview_name"),
		},
		{
			Name:        "list_recyclebin",
			Description: "List dropped objects still recoverable from the recycle bin.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("objects",
				"SELECT object_name, original_name, type, droptime, can_undrop FROM recyclebin ORDER BY droptime DESC"),
		},
		{
			Name:        "flashback_table",
			Description: "Restore a dropped table from the recycle bin.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"rename_to": {"type": "string", "maxLength": 128}
				},
				"required": ["table"]
			}`),
			Handler: d.flashbackTable,
		},
		{
			Name:        "comment_on",
			Description: "Set the comment on a table or one of its columns.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128},
					"column": {"type": "string", "maxLength": 128},
					"comment": {"type": "string", "maxLength": 4000}
				},
				"required": ["table", "comment"]
			}`),
			Handler: d.commentOn,
		},
	}
}

func (d Deps) listTables(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	plan := exec.Plan{
		SQL:  "SELECT table_name, tablespace_name, num_rows FROM user_tables ORDER BY table_name",
		Mode: exec.ModeQuery,
	}
	if schemaName := stringArg(args, "schema"); schemaName != "" {
		owner, err := normalizedIdent(schemaName)
		if err != nil {
			return nil, err
		}
		plan.SQL = "SELECT table_name, tablespace_name, num_rows FROM all_tables WHERE owner = :1 ORDER BY table_name"
		plan.Binds = []any{owner}
	}

	res, err := d.Engine.Execute(ctx, "list_tables", plan)
	if err != nil {
		return nil, err
	}

	includeSystem := boolArg(args, "include_system")
	tables := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		name, _ := row["TABLE_NAME"].(string)
		if !includeSystem && sqlbuild.IsSystemObject(name) {
			continue
		}
		tables = append(tables, row)
	}

	return outcome(map[string]any{"tables": tables, "count": len(tables)}, res), nil
}

func (d Deps) createTable(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	rawCols, ok := args["columns"].([]any)
	if !ok || len(rawCols) == 0 {
		return nil, oraerr.Validation(oraerr.CodeMissingParam, "at least one column is required")
	}

	cols := make([]sqlbuild.ColumnDef, 0, len(rawCols))
	for _, raw := range rawCols {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, oraerr.Validation(oraerr.CodeInvalidParam, "each column must be an object")
		}
		cols = append(cols, sqlbuild.ColumnDef{
			Name:    stringArg(m, "name"),
			Type:    stringArg(m, "type"),
			Size:    stringArg(m, "size"),
			NotNull: boolArg(m, "not_null"),
		})
	}

	stmt, err := d.Builder.CreateTable(sqlbuild.TableSpec{
		Name:       stringArg(args, "table"),
		Columns:    cols,
		PrimaryKey: stringSliceArg(args, "primary_key"),
		Tablespace: stringArg(args, "tablespace"),
	})
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "create_table", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{
		"table":   stringArg(args, "table"),
		"columns": len(cols),
	}}, nil
}

func (d Deps) dropTable(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table := stringArg(args, "table")
	stmt, err := d.Builder.DropTable(table, boolArg(args, "purge"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "drop_table", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"table": table, "dropped": true}}, nil
}

func (d Deps) truncateTable(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table := stringArg(args, "table")
	stmt, err := d.Builder.TruncateTable(table)
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "truncate_table", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"table": table, "truncated": true}}, nil
}

func (d Deps) describeTable(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table, err := normalizedIdent(stringArg(args, "table"))
	if err != nil {
		return nil, err
	}

	plan := exec.Plan{
		SQL: "SELECT column_name, data_type, data_length, data_precision, data_scale, nullable " +
			"FROM user_tab_columns WHERE table_name = :1 ORDER BY column_id",
		Binds: []any{table},
		Mode:  exec.ModeQuery,
	}
	if schemaName := stringArg(args, "schema"); schemaName != "" {
		owner, err := normalizedIdent(schemaName)
		if err != nil {
			return nil, err
		}
		plan.SQL = "SELECT column_name, data_type, data_length, data_precision, data_scale, nullable " +
			"FROM all_tab_columns WHERE table_name = :1 AND owner = :2 ORDER BY column_id"
		plan.Binds = []any{table, owner}
	}

	res, err := d.Engine.Execute(ctx, "describe_table", plan)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, oraerr.Validation(oraerr.CodeInvalidParam, "table %s does not exist or is not visible", table)
	}
	return outcome(map[string]any{"table": table, "columns": res.Rows}, res), nil
}

func (d Deps) listIndexes(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table, err := normalizedIdent(stringArg(args, "table"))
	if err != nil {
		return nil, err
	}

	res, err := d.Engine.Execute(ctx, "list_indexes", exec.Plan{
		SQL: "SELECT index_name, index_type, uniqueness, status FROM user_indexes " +
			"WHERE table_name = :1 ORDER BY index_name",
		Binds: []any{table},
		Mode:  exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{"table": table, "indexes": res.Rows, "count": len(res.Rows)}, res), nil
}

func (d Deps) createIndex(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stmt, err := d.Builder.CreateIndex(
		stringArg(args, "index"),
		stringArg(args, "table"),
		stringSliceArg(args, "columns"),
		boolArg(args, "unique"),
	)
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "create_index", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"index": stringArg(args, "index")}}, nil
}

func (d Deps) dropIndex(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stmt, err := d.Builder.DropIndex(stringArg(args, "index"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "drop_index", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"index": stringArg(args, "index"), "dropped": true}}, nil
}

func (d Deps) listConstraints(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table, err := normalizedIdent(stringArg(args, "table"))
	if err != nil {
		return nil, err
	}

	res, err := d.Engine.Execute(ctx, "list_constraints", exec.Plan{
		SQL: "SELECT constraint_name, constraint_type, status, search_condition_vc FROM user_constraints " +
			"WHERE table_name = :1 ORDER BY constraint_name",
		Binds: []any{table},
		Mode:  exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}
	return outcome(map[string]any{"table": table, "constraints": res.Rows, "count": len(res.Rows)}, res), nil
}

func (d Deps) createView(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	view := stringArg(args, "view")
	stmt, err := d.Builder.CreateView(view, stringArg(args, "query"), boolArg(args, "or_replace"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "create_view", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"view": view}}, nil
}

func (d Deps) dropView(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	view := stringArg(args, "view")
	stmt, err := d.Builder.DropView(view)
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "drop_view", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"view": view, "dropped": true}}, nil
}

func (d Deps) createSynonym(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	syn := stringArg(args, "synonym")
	stmt, err := d.Builder.CreateSynonym(syn, stringArg(args, "target"), boolArg(args, "public"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "create_synonym", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"synonym": syn, "target": stringArg(args, "target")}}, nil
}

func (d Deps) dropSynonym(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	syn := stringArg(args, "synonym")
	stmt, err := d.Builder.DropSynonym(syn, boolArg(args, "public"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "drop_synonym", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"synonym": syn, "dropped": true}}, nil
}

func (d Deps) rebuildIndex(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	index := stringArg(args, "index")
	stmt, err := d.Builder.RebuildIndex(index, boolArg(args, "online"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "rebuild_index", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"index": index, "rebuilt": true}}, nil
}

func (d Deps) createSequence(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	seq := stringArg(args, "sequence")
	stmt, err := d.Builder.CreateSequence(sqlbuild.SequenceSpec{
		Name:        seq,
		StartWith:   int64(intArg(args, "start_with")),
		IncrementBy: int64(intArg(args, "increment_by")),
		Cache:       intArg(args, "cache"),
		Cycle:       boolArg(args, "cycle"),
	})
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "create_sequence", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"sequence": seq}}, nil
}

func (d Deps) dropSequence(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	seq := stringArg(args, "sequence")
	stmt, err := d.Builder.DropSequence(seq)
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "drop_sequence", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"sequence": seq, "dropped": true}}, nil
}

func (d Deps) flashbackTable(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table := stringArg(args, "table")
	stmt, err := d.Builder.FlashbackTable(table, stringArg(args, "rename_to"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "flashback_table", stmt); err != nil {
		return nil, err
	}
	data := map[string]any{"table": table, "restored": true}
	if renamed := stringArg(args, "rename_to"); renamed != "" {
		data["renamed_to"] = renamed
	}
	return &registry.Outcome{Data: data}, nil
}

func (d Deps) commentOn(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table := stringArg(args, "table")
	stmt, err := d.Builder.CommentOn(table, stringArg(args, "column"), stringArg(args, "comment"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "comment_on", stmt); err != nil {
		return nil, err
	}
	data := map[string]any{"table": table}
	if col := stringArg(args, "column"); col != "" {
		data["column"] = col
	}
	return &registry.Outcome{Data: data}, nil
}
