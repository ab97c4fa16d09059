package tools

import (
	"context"

	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/pool"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/secret"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
)

func (d Deps) userTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "create_user",
			Description: "Create a database user with optional tablespace, profile, and privileges.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"username": {"type": "string", "minLength": 1, "maxLength": 128},
					"password": {"type": "string", "format": "password", "minLength": 1},
					"tablespace": {"type": "string", "maxLength": 128},
					"profile": {"type": "string", "maxLength": 128},
					"privileges": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["username", "password"]
			}`),
			Handler: d.createUser,
		},
		{
			Name:        "drop_user",
			Description: "Drop a database user, optionally cascading owned objects.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"username": {"type": "string", "minLength": 1, "maxLength": 128},
					"cascade": {"type": "boolean", "default": false}
				},
				"required": ["username"]
			}`),
			Handler: d.dropUser,
		},
		{
			Name:        "list_users",
			Description: "List database users with account status.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("users",
				"SELECT username, account_status, default_tablespace, created FROM dba_users ORDER BY username"),
		},
		{
			Name:        "list_schemas",
			Description: "List schemas that own at least one object.",
			Category:    "core",
			Visibility:  registry.Public,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("schemas",
				"SELECT username, default_tablespace, created FROM all_users ORDER BY username"),
		},
		{
			Name:        "grant_privileges",
			Description: "Grant system or object privileges to a user.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"username": {"type": "string", "minLength": 1, "maxLength": 128},
					"privilege_type": {"type": "string", "enum": ["system", "object"], "default": "system"},
					"privileges": {"type": "array", "items": {"type": "string"}},
					"object": {"type": "string", "maxLength": 256}
				},
				"required": ["username", "privileges"]
			}`),
			Handler: d.grantPrivileges,
		},
		{
			Name:        "revoke_privileges",
			Description: "Revoke system or object privileges from a user.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"username": {"type": "string", "minLength": 1, "maxLength": 128},
					"privilege_type": {"type": "string", "enum": ["system", "object"], "default": "system"},
					"privileges": {"type": "array", "items": {"type": "string"}},
					"object": {"type": "string", "maxLength": 256}
				},
				"required": ["username", "privileges"]
			}`),
			Handler: d.revokePrivileges,
		},
		{
			Name:        "list_privileges",
			Description: "List system privileges and roles granted to a user.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"username": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["username"]
			}`),
			Handler: d.listPrivileges,
		},
		{
			Name:        "list_sessions",
			Description: "List active database sessions.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("sessions",
				"SELECT sid, serial#, username, status, machine, program FROM v$session WHERE type = 'USER' ORDER BY sid"),
		},
		{
			Name:        "list_roles",
			Description: "List database roles.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("roles",
				"SELECT role, authentication_type, common FROM dba_roles ORDER BY role"),
		},
		{
			Name:        "create_role",
			Description: "Create a database role.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"role": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["role"]
			}`),
			Handler: d.createRole,
		},
		{
			Name:        "drop_role",
			Description: "Drop a database role.",
			Category:    "core",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"role": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["role"]
			}`),
			Handler: d.dropRole,
		},
	}
}

// createUser is a multi-step operation: CREATE USER followed by one
// GRANT per privilege, all on a single borrowed session. If a grant
// fails, the freshly created user is dropped so the database returns to
// its pre-call state; the hint reports whether compensation ran.
func (d Deps) createUser(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	username := stringArg(args, "username")
	password := secret.NewPassword(stringArg(args, "password"))
	tablespace := stringArg(args, "tablespace")
	privileges := stringSliceArg(args, "privileges")

	createStmt, err := d.Builder.CreateUser(username, password, tablespace, stringArg(args, "profile"))
	if err != nil {
		return nil, err
	}

	var grantStmts []sqlbuild.Statement
	if len(privileges) > 0 {
		grantStmts, err = d.Builder.Grants(username, privileges, "")
		if err != nil {
			return nil, err
		}
	}

	err = d.Pool.WithConnection(ctx, "create_user", func(ctx context.Context, entry *pool.Entry) error {
		if _, execErr := d.Engine.ExecuteOn(ctx, entry, exec.Plan{SQL: createStmt.SQL, Mode: exec.ModeExecute}); execErr != nil {
			return execErr
		}
		for _, grant := range grantStmts {
			if _, execErr := d.Engine.ExecuteOn(ctx, entry, exec.Plan{SQL: grant.SQL, Mode: exec.ModeExecute}); execErr != nil {
				return d.compensateCreateUser(ctx, entry, username, execErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &registry.Outcome{Data: map[string]any{
		"username":   username,
		"tablespace": tablespace,
		"privileges": privileges,
	}}, nil
}

// compensateCreateUser drops the user created earlier in the same call.
// The returned error always describes the grant failure; the hint says
// whether the rollback succeeded.
func (d Deps) compensateCreateUser(ctx context.Context, entry *pool.Entry, username string, cause error) error {
	oe := oraerr.AsError(cause)

	dropStmt, buildErr := d.Builder.DropUser(username, true)
	if buildErr != nil {
		return oe.WithHint("privilege grant failed; user was created but could not be rolled back")
	}
	if _, dropErr := d.Engine.ExecuteOn(ctx, entry, exec.Plan{SQL: dropStmt.SQL, Mode: exec.ModeExecute}); dropErr != nil {
		d.Logger.Warn().Str("username", username).Msg("compensating drop after failed grant did not succeed")
		return oe.WithHint("privilege grant failed; user was created but could not be rolled back")
	}
	return oe.WithHint("privilege grant failed; the newly created user was dropped")
}

func (d Deps) dropUser(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	username := stringArg(args, "username")
	stmt, err := d.Builder.DropUser(username, boolArg(args, "cascade"))
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "drop_user", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"username": username, "dropped": true}}, nil
}

func (d Deps) grantPrivileges(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	username := stringArg(args, "username")
	privileges := stringSliceArg(args, "privileges")
	object := ""
	if stringArg(args, "privilege_type") == "object" {
		object = stringArg(args, "object")
		if object == "" {
			return nil, oraerr.Validation(oraerr.CodeMissingParam, "object privileges require an object")
		}
	}

	stmts, err := d.Builder.Grants(username, privileges, object)
	if err != nil {
		return nil, err
	}

	granted := make([]string, 0, len(stmts))
	err = d.Pool.WithConnection(ctx, "grant_privileges", func(ctx context.Context, entry *pool.Entry) error {
		for i, stmt := range stmts {
			if _, execErr := d.Engine.ExecuteOn(ctx, entry, exec.Plan{SQL: stmt.SQL, Mode: exec.ModeExecute}); execErr != nil {
				return oraerr.AsError(execErr).WithHint(
					"earlier grants in this call were applied; later ones were not")
			}
			granted = append(granted, privileges[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"granted": granted}}, nil
}

func (d Deps) revokePrivileges(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	username := stringArg(args, "username")
	privileges := stringSliceArg(args, "privileges")
	object := ""
	if stringArg(args, "privilege_type") == "object" {
		object = stringArg(args, "object")
	}

	stmts, err := d.Builder.Revokes(username, privileges, object)
	if err != nil {
		return nil, err
	}

	revoked := make([]string, 0, len(stmts))
	err = d.Pool.WithConnection(ctx, "revoke_privileges", func(ctx context.Context, entry *pool.Entry) error {
		for i, stmt := range stmts {
			if _, execErr := d.Engine.ExecuteOn(ctx, entry, exec.Plan{SQL: stmt.SQL, Mode: exec.ModeExecute}); execErr != nil {
				return execErr
			}
			revoked = append(revoked, privileges[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"revoked": revoked}}, nil
}

func (d Deps) listPrivileges(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	username, err := normalizedIdent(stringArg(args, "username"))
	if err != nil {
		return nil, err
	}

	sysRes, err := d.Engine.Execute(ctx, "list_privileges", exec.Plan{
		SQL:   "SELECT privilege, admin_option FROM dba_sys_privs WHERE grantee = :1 ORDER BY privilege",
		Binds: []any{username},
		Mode:  exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}

	roleRes, err := d.Engine.Execute(ctx, "list_privileges", exec.Plan{
		SQL:   "SELECT granted_role, admin_option FROM dba_role_privs WHERE grantee = :1 ORDER BY granted_role",
		Binds: []any{username},
		Mode:  exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}

	return &registry.Outcome{Data: map[string]any{
		"username":   username,
		"privileges": sysRes.Rows,
		"roles":      roleRes.Rows,
	}}, nil
}

func (d Deps) createRole(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	role := stringArg(args, "role")
	stmt, err := d.Builder.CreateRole(role)
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "create_role", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"role": role}}, nil
}

func (d Deps) dropRole(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	role := stringArg(args, "role")
	stmt, err := d.Builder.DropRole(role)
	if err != nil {
		return nil, err
	}
	if _, err := d.runExec(ctx, "drop_role", stmt); err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"role": role, "dropped": true}}, nil
}
