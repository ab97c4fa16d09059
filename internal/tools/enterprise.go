package tools

import (
	"context"
	"database/sql"
	"strings"

	"github.com/orahub/oracle-mcp/internal/capability"
	"github.com/orahub/oracle-mcp/internal/exec"
	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/pool"
	"github.com/orahub/oracle-mcp/internal/registry"
	"github.com/orahub/oracle-mcp/internal/sqlbuild"
)

func (d Deps) securityTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "tde_status",
			Description: "Report transparent data encryption wallet status and encrypted tablespaces.",
			Category:    "security",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Requires:    []capability.Tag{capability.TagTDE},
			Handler:     d.tdeStatus,
		},
		{
			Name:        "list_audit_policies",
			Description: "List unified audit policies and whether they are enabled.",
			Category:    "security",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("policies",
				"SELECT DISTINCT policy_name FROM audit_unified_policies ORDER BY policy_name"),
		},
		{
			Name:        "list_vpd_policies",
			Description: "List virtual private database policies.",
			Category:    "security",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("policies",
				"SELECT object_owner, object_name, policy_name, function, enable FROM all_policies ORDER BY object_owner, object_name"),
		},
		{
			Name:        "privilege_audit",
			Description: "Report users holding powerful system privileges.",
			Category:    "security",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("grants",
				"SELECT grantee, privilege FROM dba_sys_privs WHERE privilege IN ('ALTER SYSTEM', 'ALTER USER', 'DROP ANY TABLE', 'SELECT ANY TABLE', 'GRANT ANY PRIVILEGE') ORDER BY grantee, privilege"),
		},
	}
}

func (d Deps) performanceTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "awr_snapshot",
			Description: "Take an AWR snapshot or render a report between two snapshots.",
			Category:    "performance",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"operation": {"type": "string", "enum": ["take", "report"]},
					"begin": {"type": "integer", "minimum": 1},
					"end": {"type": "integer", "minimum": 1}
				},
				"required": ["operation"]
			}`),
			Requires: []capability.Tag{capability.TagAWR},
			Handler:  d.awrSnapshot,
		},
		{
			Name:        "execution_plan",
			Description: "Explain a SELECT statement and return its plan.",
			Category:    "performance",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"sql": {"type": "string", "minLength": 1}
				},
				"required": ["sql"]
			}`),
			Handler: d.executionPlan,
		},
		{
			Name:        "sql_monitor",
			Description: "List recently active statements with elapsed time and buffer gets.",
			Category:    "performance",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"top_n": {"type": "integer", "minimum": 1, "maximum": 100, "default": 20}
				}
			}`),
			Handler: d.sqlMonitor,
		},
		{
			Name:        "optimizer_stats",
			Description: "Gather optimizer statistics for a table.",
			Category:    "performance",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"table": {"type": "string", "minLength": 1, "maxLength": 128}
				},
				"required": ["table"]
			}`),
			Handler: d.optimizerStats,
		},
		{
			Name:        "memory_stats",
			Description: "Show SGA component sizes.",
			Category:    "performance",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("components",
				"SELECT component, current_size, min_size, max_size FROM v$sga_dynamic_components ORDER BY component"),
		},
		{
			Name:        "tablespace_usage",
			Description: "Show used and free space per tablespace.",
			Category:    "performance",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("tablespaces",
				"SELECT tablespace_name, used_space, tablespace_size, ROUND(used_percent, 2) AS used_percent FROM dba_tablespace_usage_metrics ORDER BY tablespace_name"),
		},
		{
			Name:        "session_stats",
			Description: "Show session counts by status and wait class.",
			Category:    "performance",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler: d.catalogQuery("sessions",
				"SELECT status, COUNT(*) AS sessions FROM v$session WHERE type = 'USER' GROUP BY status ORDER BY status"),
		},
	}
}

func (d Deps) diagnosticTools() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "alert_log",
			Description: "Read recent alert log entries.",
			Category:    "diagnostic",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"last_n": {"type": "integer", "minimum": 1, "maximum": 1000, "default": 100}
				}
			}`),
			Handler: d.alertLog,
		},
		{
			Name:        "pool_stats",
			Description: "Report connection pool statistics without an Oracle round trip.",
			Category:    "diagnostic",
			Visibility:  registry.Restricted,
			InputSchema: schema(`{"type": "object", "properties": {}}`),
			Handler:     d.poolStats,
		},
	}
}

func (d Deps) tdeStatus(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	walletRes, err := d.Engine.Execute(ctx, "tde_status", exec.Plan{
		SQL: "SELECT wrl_type, status, wallet_type FROM v$encryption_wallet", Mode: exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}

	tsRes, err := d.Engine.Execute(ctx, "tde_status", exec.Plan{
		SQL: "SELECT ts.name FROM v$tablespace ts JOIN v$encrypted_tablespaces et ON ts.ts# = et.ts#", Mode: exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}

	return &registry.Outcome{Data: map[string]any{
		"wallets":               walletRes.Rows,
		"encrypted_tablespaces": tsRes.Rows,
	}}, nil
}

// awrSnapshot drives DBMS_WORKLOAD_REPOSITORY. Taking a snapshot
// returns its id through a bind; report mode streams the text report
// rows into a single string.
func (d Deps) awrSnapshot(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	switch stringArg(args, "operation") {
	case "take":
		var snapID int64
		res, err := d.Engine.Execute(ctx, "awr_snapshot", exec.Plan{
			SQL:   "BEGIN :snap_id := dbms_workload_repository.create_snapshot; END;",
			Mode:  exec.ModePLSQL,
			Binds: []any{sql.Named("snap_id", sql.Out{Dest: &snapID})},
		})
		if err != nil {
			return nil, err
		}
		return &registry.Outcome{Data: map[string]any{"snap_id": res.OutParams["SNAP_ID"]}}, nil

	case "report":
		begin := intArg(args, "begin")
		end := intArg(args, "end")
		if begin == 0 || end == 0 {
			return nil, oraerr.Validation(oraerr.CodeMissingParam, "report requires begin and end snapshot ids")
		}
		// Report text routinely runs past the query row cap, and a
		// truncated report is useless, so the rows are streamed instead
		// of buffered.
		var lines []string
		err := d.Pool.WithConnection(ctx, "awr_snapshot", func(ctx context.Context, entry *pool.Entry) error {
			return d.Engine.StreamOn(ctx, entry, exec.Plan{
				SQL: "SELECT output FROM TABLE(dbms_workload_repository.awr_report_text(" +
					"(SELECT dbid FROM v$database), 1, :1, :2))",
				Binds: []any{begin, end},
				Mode:  exec.ModeStream,
			}, func(row map[string]any) (bool, error) {
				if s, ok := row["OUTPUT"].(string); ok {
					lines = append(lines, s)
				}
				return true, nil
			})
		})
		if err != nil {
			return nil, err
		}
		return &registry.Outcome{Data: map[string]any{
			"report_text": strings.Join(lines, "\n"),
			"lines":       len(lines),
		}}, nil

	default:
		return nil, oraerr.Validation(oraerr.CodeInvalidParam, "operation must be take or report")
	}
}

// executionPlan explains the statement then reads the plan table on the
// same session, since DBMS_XPLAN.DISPLAY reads session state.
func (d Deps) executionPlan(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	sqlText := stringArg(args, "sql")
	if err := validateExplainTarget(sqlText); err != nil {
		return nil, err
	}

	var planRows []map[string]any
	err := d.Pool.WithConnection(ctx, "execution_plan", func(ctx context.Context, entry *pool.Entry) error {
		if _, err := d.Engine.ExecuteOn(ctx, entry, exec.Plan{
			SQL: "EXPLAIN PLAN FOR " + sqlText, Mode: exec.ModeExecute,
		}); err != nil {
			return err
		}
		res, err := d.Engine.ExecuteOn(ctx, entry, exec.Plan{
			SQL:  "SELECT plan_table_output FROM TABLE(dbms_xplan.display())",
			Mode: exec.ModeQuery,
		})
		if err != nil {
			return err
		}
		planRows = res.Rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(planRows))
	for _, row := range planRows {
		if s, ok := row["PLAN_TABLE_OUTPUT"].(string); ok {
			lines = append(lines, s)
		}
	}
	return &registry.Outcome{Data: map[string]any{"plan": strings.Join(lines, "\n")}}, nil
}

func (d Deps) sqlMonitor(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	topN := intArg(args, "top_n")
	if topN == 0 {
		topN = 20
	}

	res, err := d.Engine.Execute(ctx, "sql_monitor", exec.Plan{
		SQL: "SELECT sql_id, executions, elapsed_time, buffer_gets, disk_reads, rows_processed " +
			"FROM v$sql ORDER BY elapsed_time DESC FETCH FIRST :1 ROWS ONLY",
		Binds: []any{topN},
		Mode:  exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}
	return outcome(rowsResult("statements", res), res), nil
}

func (d Deps) optimizerStats(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	table, err := normalizedIdent(stringArg(args, "table"))
	if err != nil {
		return nil, err
	}

	_, err = d.Engine.Execute(ctx, "optimizer_stats", exec.Plan{
		SQL:   "BEGIN dbms_stats.gather_table_stats(ownname => USER, tabname => :tab); END;",
		Binds: []any{sql.Named("tab", table)},
		Mode:  exec.ModePLSQL,
	})
	if err != nil {
		return nil, err
	}
	return &registry.Outcome{Data: map[string]any{"table": table, "gathered": true}}, nil
}

func (d Deps) alertLog(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	lastN := intArg(args, "last_n")
	if lastN == 0 {
		lastN = 100
	}

	res, err := d.Engine.Execute(ctx, "alert_log", exec.Plan{
		SQL: "SELECT originating_timestamp, message_text FROM v$diag_alert_ext " +
			"ORDER BY originating_timestamp DESC FETCH FIRST :1 ROWS ONLY",
		Binds: []any{lastN},
		Mode:  exec.ModeQuery,
	})
	if err != nil {
		return nil, err
	}
	return outcome(rowsResult("entries", res), res), nil
}

// poolStats is local: it never touches Oracle.
func (d Deps) poolStats(ctx context.Context, args map[string]any) (*registry.Outcome, error) {
	stats := d.Pool.Stats()
	return &registry.Outcome{Data: map[string]any{
		"created": stats.Created,
		"idle":    stats.Idle,
		"in_use":  stats.InUse,
		"waiting": stats.Waiting,
		"max":     stats.MaxSize,
	}}, nil
}

// validateExplainTarget keeps EXPLAIN PLAN to a single SELECT.
func validateExplainTarget(sqlText string) error {
	if err := sqlbuild.ValidateSingleStatement(sqlText); err != nil {
		return err
	}
	if !isSelect(sqlText) {
		return oraerr.Validation(oraerr.CodeInvalidParam, "only SELECT statements can be explained")
	}
	return nil
}
