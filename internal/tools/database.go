package tools

import (
	"context"

	"github.com/orahub/oracle-mcp/internal/capability"
	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/secret"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
)

const pdbHint = "pluggable database support requires Oracle 12c or later running as a CDB"

func (d Deps) databaseTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "list_databases",
			Description: "List the database and, where supported, its pluggable databases.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"include_pdbs": {"type": "boolean", "default": true},
					"include_status": {"type": "boolean", "default": false}
				}
			}`),
			Handler: d.listDatabases,
		},
		{
			Name:        "create_database",
			Description: "Create a pluggable database or report why a traditional database cannot be created online.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "minLength": 1, "maxLength": 128},
					"type": {"type": "string", "enum": ["traditional", "pdb"], "default": "pdb"},
					"admin_user": {"type": "string", "default": "pdbadmin"},
					"admin_password": {"type": "string", "format": "password"}
				},
				"required": ["name"]
			}`),
			Handler: d.createDatabase,
		},
		{
			Name:        "drop_database",
			Description: "Drop a pluggable database including its datafiles.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["name"]
			}`),
			Requires: []capability.Tag{capability.TagPDB},
			Handler:  d.dropDatabase,
		},
		{
			Name:        "pdb_operations",
			Description: "Open, close, or save state of a pluggable database.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"pdb_name": {"type": "string", "minLength": 1, "maxLength": 128},
					"operation": {"type": "string", "enum": ["open", "close", "read_only", "save_state", "OPEN", "CLOSE", "READ_ONLY", "SAVE_STATE"]}
				},
				"required": ["pdb_name", "operation"]
			}`),
			Requires: []capability.Tag{capability.TagPDB},
			Handler:  d.pdbOperations,
		},
		{
			Name:        "database_info",
			Description: "Report version, edition, container mode, and detected features.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler:     d.databaseInfo,
		},
		{
			Name:        "list_tablespaces",
			Description: "List tablespaces with their status and contents type.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("tablespaces",
				"SELECT tablespace_name, status, contents, extent_management FROM user_tablespaces ORDER BY tablespace_name"),
		},
		{
			Name:        "list_profiles",
			Description: "List resource profiles visible to the connected user.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("profiles",
				"SELECT DISTINCT profile FROM user_password_limits ORDER BY profile"),
		},
		{
			Name:        "list_parameters",
			Description: "Show initialization parameters, optionally filtered by name.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"name_like": {"type": "string", "maxLength": 128}
				}
			}`),
			Handler: d.listParameters,
		},
		{
			Name:        "list_dblinks",
			Description: "List database links visible to the connected user.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("dblinks",
				"SELECT owner, db_link, username, host, created FROM all_db_links ORDER BY db_link"),
		},
		{
			Name:        "list_scheduler_jobs",
			Description: "List scheduler jobs owned by the connected user.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("jobs",
				"SELECT job_name, job_type, enabled, state, last_start_date, next_run_date FROM user_scheduler_jobs ORDER BY job_name"),
		},
	}
}

func (d Deps) listDatabases(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	includePDBs := true
	if _, ok := args["include_pdbs"]; ok {
		includePDBs = boolArg(args, "include_pdbs")
	}

	info, err := d.Detector.Info(ctx)
	if err != nil {
		return nil, err
	}

	nameRes, err := d.Engine.Execute(ctx, "list_databases", exec.Plan{
		SQL: "SELECT name, open_mode FROM v$database", Mode: exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}

	databases := make([]map[string]any, 0, 4)
	for _, row := range nameRes.Rows {
		databases = append(databases, map[string]any{
			"name":      row["NAME"],
			"type":      "CDB",
			"open_mode": row["OPEN_MODE"],
		})
	}

	pdbSupport := info.Supports(capability.TagPDB)
	if includePDBs && pdbSupport {
		pdbRes, err := d.Engine.Execute(ctx, "list_databases", exec.Plan{
			SQL: "SELECT name, open_mode FROM v$pdbs ORDER BY name", Mode: exec.ModeQuery,
		})
		if err != nil {
			return nil, err
		}
		for _, row := range pdbRes.Rows {
			databases = append(databases, map[string]any{
				"name":      row["NAME"],
				"type":      "PDB",
				"open_mode": row["OPEN_MODE"],
			})
		}
	}

	return &registry.Outcome{Data: map[string]any{
		"databases":   databases,
		"count":       len(databases),
		"pdb_support": pdbSupport,
	}}, nil
}

func (d Deps) createDatabase(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	dbType := stringArg(args, "type")
	if dbType == "" {
		dbType = "pdb"
	}
	if dbType == "traditional" {
		return nil, oraerr.Validation(oraerr.CodeInvalidParam,
			"traditional database creation requires DBCA outside a live session").
			WithHint("use type=pdb to create a pluggable database")
	}
	if err := d.requireCapability(ctx, capability.TagPDB, pdbHint); err != nil {
		return nil, err
	}

	password := secret.NewPassword(stringArg(args, "admin_password"))
	admin := stringArg(args, "admin_user")
	if admin == "" {
		admin = "pdbadmin"
	}

	stmt, err := d.Builder.CreatePDB(sqlbuild.PDBSpec{
		Name:          stringArg(args, "name"),
		AdminUser:     admin,
		AdminPassword: password,
	})
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "create_database", stmt); err != nil {
		return nil, err
	}

	// A new PDB starts MOUNTED; open it so it is usable immediately.
	openStmt, err := d.Builder.AlterPDB(stringArg(args, "name"), "open")
	if err != nil {
		return nil, err
	}
	warnings := []string(nil)
	if _, err := d.runExec(ctx, "create_database", openStmt); err != nil {
		warnings = append(warnings, "pdb created but could not be opened")
	}

	return &registry.Outcome{
		Data:     map[string]any{"name": stringArg(args, "name"), "type": "pdb"},
		Warnings: warnings,
	}, nil
}

func (d Deps) dropDatabase(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	name := stringArg(args, "name")

	// The PDB must be closed before it can be dropped.
	closeStmt, err := d.Builder.AlterPDB(name, "close")
	if err != nil {
		return nil, err
	}
	warnings := []string(nil)
	if _, err := d.runExec(ctx, "drop_database", closeStmt); err != nil {
		warnings = append(warnings, "close before drop failed; attempting drop anyway")
	}

	stmt, err := d.Builder.DropPDB(name)
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "drop_database", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{
		Data:     map[string]any{"name": name, "dropped": true},
		Warnings: warnings,
	}, nil
}

func (d Deps) pdbOperations(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	name := stringArg(args, "pdb_name")
	op := stringArg(args, "operation")

	stmt, err := d.Builder.AlterPDB(name, op)
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "pdb_operations", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"pdb_name": name, "operation": op}}, nil
}

func (d Deps) databaseInfo(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	info, err := d.Detector.Info(ctx)
	if err != nil {
		return nil, err
	}

	features := make(map[string]bool, len(capability.KnownTags))
	for tag := range capability.KnownTags {
		features[string(tag)] = info.Supports(tag)
	}

	data := map[string]any{
		"version":  info.Version,
		"edition":  string(info.Edition),
		"is_cdb":   info.IsCDB,
		"features": features,
	}
	var warnings []string
	if info.Degraded {
		warnings = append(warnings, "capability probe failed; optional features reported unavailable")
	}
	return &registry.Outcome{Data: data, Warnings: warnings}, nil
}

func (d Deps) listParameters(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	plan := exec.Plan{
		SQL:  "SELECT name, value, isdefault FROM v$parameter ORDER BY name",
		Mode: exec.ModeQuery,
	}
	if like := stringArg(args, "name_like"); like != "" {
		plan.SQL = "SELECT name, value, isdefault FROM v$parameter WHERE name LIKE :1 ORDER BY name"
		plan.Binds = []any{"%" + like + "%"}
	}

	res, err := d.Engine.Execute(ctx, "list_parameters", plan)
	if err != nil {
		return nil, err
	}
	return outcome(rowsResult("parameters", res), res), nil
}
