package sqlbuild

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/secret"
)

// noArgWindowFns take no column argument. They still carry the empty
// argument list Oracle requires: ROW_NUMBER() OVER (...).
var noArgWindowFns = map[string]bool{
	"ROW_NUMBER": true,
	"RANK":       true,
	"DENSE_RANK": true,
}

// columnWindowFns take a column argument, with an optional integer
// offset for LAG/LEAD.
var columnWindowFns = map[string]bool{
	"LAG":         true,
	"LEAD":        true,
	"FIRST_VALUE": true,
	"LAST_VALUE":  true,
	"SUM":         true,
	"AVG":         true,
	"MIN":         true,
	"MAX":         true,
	"COUNT":       true,
	"MEDIAN":      true,
	"STDDEV":      true,
	"VARIANCE":    true,
}

// percentileFns use WITHIN GROUP ordering instead of an OVER order.
var percentileFns = map[string]bool{
	"PERCENTILE_CONT": true,
	"PERCENTILE_DISC": true,
}

// AnalyticalSpec describes one window-function query.
type AnalyticalSpec struct {
	Table    string
	Function string
	// Column is the function argument; ignored for no-argument functions
	// and NTILE.
	Column string
	// Buckets is NTILE's argument.
	Buckets int
	// Offset is LAG/LEAD's second argument; zero omits it.
	Offset int
	// Percentile is PERCENTILE_CONT/DISC's argument in [0,1].
	Percentile  float64
	PartitionBy []string
	OrderBy     []string
	Alias       string
	Where       string
	Limit       int
}

// Analytical builds a window-function SELECT. The OVER clause is always
// present; what goes inside it depends on the function family.
func (b *Builder) Analytical(spec AnalyticalSpec) (Statement, error) {
	table, err := EscapeIdentifier(spec.Table)
	if err != nil {
		return Statement{}, err
	}

	fn := strings.ToUpper(strings.TrimSpace(spec.Function))
	var call, over string

	switch {
	case noArgWindowFns[fn]:
		call = fn + "()"
		over, err = overClause(spec.PartitionBy, spec.OrderBy, true)
	case fn == "NTILE":
		if spec.Buckets <= 0 {
			return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "NTILE requires a positive bucket count")
		}
		call = fmt.Sprintf("NTILE(%d)", spec.Buckets)
		over, err = overClause(spec.PartitionBy, spec.OrderBy, true)
	case percentileFns[fn]:
		if spec.Percentile < 0 || spec.Percentile > 1 {
			return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "percentile must be between 0 and 1")
		}
		if len(spec.OrderBy) == 0 {
			return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "%s requires an order column", fn)
		}
		within, werr := orderByClause(spec.OrderBy)
		if werr != nil {
			return Statement{}, werr
		}
		call = fmt.Sprintf("%s(%s) WITHIN GROUP (ORDER BY %s)", fn, formatPercentile(spec.Percentile), within)
		over, err = overClause(spec.PartitionBy, nil, false)
	case columnWindowFns[fn]:
		col, cerr := EscapeIdentifier(spec.Column)
		if cerr != nil {
			return Statement{}, cerr
		}
		if (fn == "LAG" || fn == "LEAD") && spec.Offset > 0 {
			call = fmt.Sprintf("%s(%s, %d)", fn, col, spec.Offset)
		} else {
			call = fn + "(" + col + ")"
		}
		needOrder := fn == "LAG" || fn == "LEAD" || fn == "FIRST_VALUE" || fn == "LAST_VALUE"
		over, err = overClause(spec.PartitionBy, spec.OrderBy, needOrder)
	default:
		return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "analytical function %q is not supported", spec.Function)
	}
	if err != nil {
		return Statement{}, err
	}

	alias := "RESULT"
	if spec.Alias != "" {
		if alias, err = EscapeIdentifier(spec.Alias); err != nil {
			return Statement{}, err
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT t.*, " + call + " OVER (" + over + ") AS " + alias + " FROM " + table + " t")
	if spec.Where != "" {
		if err := CheckPredicate(spec.Where); err != nil {
			return Statement{}, err
		}
		sb.WriteString(" WHERE " + spec.Where)
	}
	if spec.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" FETCH FIRST %d ROWS ONLY", spec.Limit))
	}
	return Statement{SQL: sb.String()}, nil
}

// overClause renders the OVER body. requireOrder enforces the ORDER BY
// that ranking and positional functions need to be meaningful.
func overClause(partitionBy, orderBy []string, requireOrder bool) (string, error) {
	var parts []string
	if len(partitionBy) > 0 {
		cols := make([]string, 0, len(partitionBy))
		for _, c := range partitionBy {
			escaped, err := EscapeIdentifier(c)
			if err != nil {
				return "", err
			}
			cols = append(cols, escaped)
		}
		parts = append(parts, "PARTITION BY "+strings.Join(cols, ", "))
	}
	if len(orderBy) > 0 {
		clause, err := orderByClause(orderBy)
		if err != nil {
			return "", err
		}
		parts = append(parts, "ORDER BY "+clause)
	} else if requireOrder {
		return "", oraerr.Validation(oraerr.CodeMissingParam, "this function requires an order column")
	}
	return strings.Join(parts, " "), nil
}

// formatPercentile renders the fraction without float noise.
func formatPercentile(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}

// pivotAggregates bounds the aggregate inside PIVOT.
var pivotAggregates = map[string]bool{
	"SUM": true, "AVG": true, "MIN": true, "MAX": true, "COUNT": true,
}

// pivotNumeric classifies a pivot IN-list value as a numeric literal,
// which Oracle accepts unquoted.
var pivotNumeric = regexp.MustCompile(`^[0-9]+$`)

// pivotAliasStrip reduces a value to a column alias: every non-word
// character becomes an underscore.
var pivotAliasStrip = regexp.MustCompile(`[^A-Za-z0-9_]`)

// PivotSpec describes a PIVOT over an inline source query.
type PivotSpec struct {
	// SourceQuery is a single SELECT that produces the rows to pivot.
	SourceQuery string
	// PivotColumn is the column whose values become columns.
	PivotColumn string
	// Values is the IN list. Numeric strings emit as numeric literals,
	// everything else as quoted string literals; each gets an alias
	// derived from the value.
	Values []string
	// Aggregate and MeasureColumn select what fills the pivoted cells;
	// they default to COUNT(*).
	Aggregate     string
	MeasureColumn string
}

// selectSource vets an inline source query: a single SELECT, with any
// trailing terminator stripped.
func selectSource(query string) (string, error) {
	source := strings.TrimSpace(query)
	if source == "" {
		return "", oraerr.Validation(oraerr.CodeMissingParam, "source query is required")
	}
	if !strings.HasPrefix(strings.ToUpper(source), "SELECT") {
		return "", oraerr.Validation(oraerr.CodeInvalidParam, "source query must be a SELECT")
	}
	if err := ValidateSingleStatement(source); err != nil {
		return "", err
	}
	return strings.TrimSuffix(source, ";"), nil
}

// Pivot builds a PIVOT query with a literal IN list. Oracle does not
// accept binds inside PIVOT ... IN, so values are classified and
// escaped here.
func (b *Builder) Pivot(spec PivotSpec) (Statement, error) {
	source, err := selectSource(spec.SourceQuery)
	if err != nil {
		return Statement{}, err
	}

	forCol, err := EscapeIdentifier(spec.PivotColumn)
	if err != nil {
		return Statement{}, err
	}
	if len(spec.Values) == 0 {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "pivot requires at least one value")
	}

	measure := "COUNT(*)"
	if spec.Aggregate != "" || spec.MeasureColumn != "" {
		agg := strings.ToUpper(strings.TrimSpace(spec.Aggregate))
		if agg == "" {
			agg = "COUNT"
		}
		if !pivotAggregates[agg] {
			return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "pivot aggregate %q is not supported", spec.Aggregate)
		}
		col := "*"
		if spec.MeasureColumn != "" {
			if col, err = EscapeIdentifier(spec.MeasureColumn); err != nil {
				return Statement{}, err
			}
		}
		measure = agg + "(" + col + ")"
	}

	entries := make([]string, 0, len(spec.Values))
	for _, v := range spec.Values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "pivot value is empty")
		}
		alias := pivotAliasStrip.ReplaceAllString(trimmed, "_")
		if pivotNumeric.MatchString(trimmed) {
			// Numeric literals stay unquoted on both sides of AS.
			entries = append(entries, trimmed+" AS "+alias)
		} else {
			literal := "'" + strings.ReplaceAll(trimmed, "'", "''") + "'"
			entries = append(entries, literal+" AS "+alias)
		}
	}

	sql := "SELECT * FROM (" + source + ") PIVOT (" + measure +
		" FOR " + forCol + " IN (" + strings.Join(entries, ", ") + "))"
	return Statement{SQL: sql}, nil
}

// UnpivotSpec describes an UNPIVOT over an inline source query: the
// named source columns rotate into rows of (name, value).
type UnpivotSpec struct {
	SourceQuery string
	// ValueColumn names the measure column in the output.
	ValueColumn string
	// NameColumn names the label column in the output.
	NameColumn string
	// Columns are the source columns rotated into rows.
	Columns []string
	// IncludeNulls keeps rows whose measure is NULL; Oracle drops them
	// by default.
	IncludeNulls bool
}

// Unpivot builds an UNPIVOT query, the inverse of Pivot.
func (b *Builder) Unpivot(spec UnpivotSpec) (Statement, error) {
	source, err := selectSource(spec.SourceQuery)
	if err != nil {
		return Statement{}, err
	}
	valueCol, err := EscapeIdentifier(spec.ValueColumn)
	if err != nil {
		return Statement{}, err
	}
	nameCol, err := EscapeIdentifier(spec.NameColumn)
	if err != nil {
		return Statement{}, err
	}
	if len(spec.Columns) == 0 {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "unpivot requires at least one column")
	}

	cols := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		escaped, err := EscapeIdentifier(c)
		if err != nil {
			return Statement{}, err
		}
		cols = append(cols, escaped)
	}

	clause := "UNPIVOT"
	if spec.IncludeNulls {
		clause = "UNPIVOT INCLUDE NULLS"
	}
	sql := "SELECT * FROM (" + source + ") " + clause + " (" + valueCol +
		" FOR " + nameCol + " IN (" + strings.Join(cols, ", ") + "))"
	return Statement{SQL: sql}, nil
}

// vectorMetrics maps the accepted distance metric names to Oracle's
// VECTOR_DISTANCE keywords.
var vectorMetrics = map[string]string{
	"cosine":    "COSINE",
	"euclidean": "EUCLIDEAN",
	"manhattan": "MANHATTAN",
	"dot":       "DOT",
}

// VectorSpec describes a similarity search against a VECTOR column.
type VectorSpec struct {
	Table        string
	VectorColumn string
	// Query is the probe vector; it binds as a TO_VECTOR string.
	Query   []float64
	Metric  string
	TopK    int
	Columns []string
	Where   string
}

// VectorSearch builds a 23ai VECTOR_DISTANCE similarity query. Callers
// gate on the vector capability before running it.
func (b *Builder) VectorSearch(spec VectorSpec) (Statement, error) {
	table, err := EscapeIdentifier(spec.Table)
	if err != nil {
		return Statement{}, err
	}
	vecCol, err := EscapeIdentifier(spec.VectorColumn)
	if err != nil {
		return Statement{}, err
	}
	if len(spec.Query) == 0 {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "query vector is required")
	}
	metric, ok := vectorMetrics[strings.ToLower(strings.TrimSpace(spec.Metric))]
	if !ok {
		return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "distance metric %q is not supported", spec.Metric)
	}
	topK := spec.TopK
	if topK <= 0 {
		topK = 10
	}

	projection := "t.*"
	if len(spec.Columns) > 0 {
		cols := make([]string, 0, len(spec.Columns))
		for _, c := range spec.Columns {
			escaped, err := EscapeIdentifier(c)
			if err != nil {
				return Statement{}, err
			}
			cols = append(cols, "t."+escaped)
		}
		projection = strings.Join(cols, ", ")
	}

	parts := make([]string, len(spec.Query))
	for i, f := range spec.Query {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	probe := "[" + strings.Join(parts, ",") + "]"

	var sb strings.Builder
	sb.WriteString("SELECT " + projection + ", VECTOR_DISTANCE(t." + vecCol + ", TO_VECTOR(:1), " + metric + ") AS DISTANCE FROM " + table + " t")
	if spec.Where != "" {
		if err := CheckPredicate(spec.Where); err != nil {
			return Statement{}, err
		}
		sb.WriteString(" WHERE " + spec.Where)
	}
	sb.WriteString(fmt.Sprintf(" ORDER BY DISTANCE FETCH FIRST %d ROWS ONLY", topK))
	return Statement{SQL: sb.String(), Binds: []any{probe}}, nil
}

// PDBSpec describes CREATE PLUGGABLE DATABASE.
type PDBSpec struct {
	Name                string
	AdminUser           string
	AdminPassword       secret.Password
	FileNameConvertFrom string
	FileNameConvertTo   string
}

// CreatePDB builds CREATE PLUGGABLE DATABASE. The admin password embeds
// in the DDL; the Redacted form is the only loggable rendering.
func (b *Builder) CreatePDB(spec PDBSpec) (Statement, error) {
	name, err := EscapeIdentifier(spec.Name)
	if err != nil {
		return Statement{}, err
	}
	admin, err := EscapeIdentifier(spec.AdminUser)
	if err != nil {
		return Statement{}, err
	}
	pwd, err := passwordIdent(spec.AdminPassword)
	if err != nil {
		return Statement{}, err
	}

	head := "CREATE PLUGGABLE DATABASE " + name + " ADMIN USER " + admin + " IDENTIFIED BY "
	stmt := head + pwd
	redacted := head + `"` + secret.Redacted + `"`

	if spec.FileNameConvertFrom != "" && spec.FileNameConvertTo != "" {
		from := strings.ReplaceAll(spec.FileNameConvertFrom, "'", "''")
		to := strings.ReplaceAll(spec.FileNameConvertTo, "'", "''")
		clause := " FILE_NAME_CONVERT = ('" + from + "', '" + to + "')"
		stmt += clause
		redacted += clause
	}
	return Statement{SQL: stmt, Redacted: redacted}, nil
}

// pdbOps maps the accepted PDB lifecycle operations to their clauses.
var pdbOps = map[string]string{
	"open":       "OPEN",
	"close":      "CLOSE IMMEDIATE",
	"read_only":  "OPEN READ ONLY",
	"save_state": "SAVE STATE",
}

// AlterPDB builds ALTER PLUGGABLE DATABASE for a lifecycle operation.
func (b *Builder) AlterPDB(name, op string) (Statement, error) {
	pdb, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	clause, ok := pdbOps[strings.ToLower(strings.TrimSpace(op))]
	if !ok {
		return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "pdb operation %q is not supported", op)
	}
	return Statement{SQL: "ALTER PLUGGABLE DATABASE " + pdb + " " + clause}, nil
}

// DropPDB builds DROP PLUGGABLE DATABASE, always removing datafiles.
func (b *Builder) DropPDB(name string) (Statement, error) {
	pdb, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DROP PLUGGABLE DATABASE " + pdb + " INCLUDING DATAFILES"}, nil
}
