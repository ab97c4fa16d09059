package sqlbuild

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/secret"
)

// Statement is one executable statement with its bind plan. Redacted,
// when set, is the only form safe for logs: the SQL text itself may
// embed a credential (Oracle DDL cannot bind passwords).
type Statement struct {
	SQL   string
	Binds []any
	// Redacted is the log-safe rendering; empty means SQL is already safe.
	Redacted string
}

// LogSQL returns the form of the statement that may be logged.
func (s Statement) LogSQL() string {
	if s.Redacted != "" {
		return s.Redacted
	}
	return s.SQL
}

// Builder generates Oracle statements. It carries the security policy
// for system-user protection.
type Builder struct {
	blockSystemUsers bool
	extraDenylist    map[string]bool
}

// New creates a builder. extraDenylist is appended to the built-in
// system-user denylist.
func New(blockSystemUsers bool, extraDenylist []string) *Builder {
	extra := make(map[string]bool, len(extraDenylist))
	for _, name := range extraDenylist {
		extra[strings.ToUpper(strings.TrimSpace(name))] = true
	}
	return &Builder{blockSystemUsers: blockSystemUsers, extraDenylist: extra}
}

// checkUserTarget blocks destructive operations against system accounts.
func (b *Builder) checkUserTarget(username string) error {
	if !b.blockSystemUsers {
		return nil
	}
	upper := strings.ToUpper(strings.TrimSpace(username))
	if IsSystemUser(upper) || b.extraDenylist[upper] {
		return oraerr.Security(oraerr.CodeSystemUser, "operations on system user %s are blocked", upper)
	}
	return nil
}

// checkObjectTarget blocks destructive operations against dictionary
// objects.
func (b *Builder) checkObjectTarget(name string) error {
	if IsSystemObject(name) {
		return oraerr.Security(oraerr.CodeSystemObject, "destructive operations on system object %s are blocked", strings.ToUpper(name))
	}
	return nil
}

// passwordIdent vets a password for embedding as a quoted Oracle
// password (CREATE USER ... IDENTIFIED BY "..."). Oracle DDL offers no
// bind position for it, so the quote character is rejected outright.
func passwordIdent(password secret.Password) (string, error) {
	raw := password.Reveal()
	if raw == "" {
		return "", oraerr.Validation(oraerr.CodeMissingParam, "password is required")
	}
	if strings.ContainsAny(raw, `"`+"\x00\n\r") {
		return "", oraerr.Validation(oraerr.CodeInvalidParam, "password contains characters Oracle does not allow")
	}
	return `"` + raw + `"`, nil
}

// CreateUser builds the CREATE USER statement. Grants are separate
// statements (see Grants) so a failure there can be compensated.
func (b *Builder) CreateUser(username string, password secret.Password, tablespace, profile string) (Statement, error) {
	if err := b.checkUserTarget(username); err != nil {
		return Statement{}, err
	}
	user, err := EscapeIdentifier(username)
	if err != nil {
		return Statement{}, err
	}
	pwd, err := passwordIdent(password)
	if err != nil {
		return Statement{}, err
	}

	var sb, redacted strings.Builder
	head := "CREATE USER " + user + " IDENTIFIED BY "
	sb.WriteString(head + pwd)
	redacted.WriteString(head + `"` + secret.Redacted + `"`)

	if tablespace != "" {
		ts, err := EscapeIdentifier(tablespace)
		if err != nil {
			return Statement{}, err
		}
		clause := " DEFAULT TABLESPACE " + ts + " QUOTA UNLIMITED ON " + ts
		sb.WriteString(clause)
		redacted.WriteString(clause)
	}
	if profile != "" {
		p, err := EscapeIdentifier(profile)
		if err != nil {
			return Statement{}, err
		}
		sb.WriteString(" PROFILE " + p)
		redacted.WriteString(" PROFILE " + p)
	}

	return Statement{SQL: sb.String(), Redacted: redacted.String()}, nil
}

// privilegePattern accepts Oracle privilege names: words separated by
// single spaces (CREATE SESSION, SELECT ANY TABLE, CONNECT).
var privilegePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z_]*( [A-Za-z_]+)*$`)

// Grants builds one GRANT per privilege. object is empty for system
// privileges and roles; set it for object privileges.
func (b *Builder) Grants(username string, privileges []string, object string) ([]Statement, error) {
	user, err := EscapeIdentifier(username)
	if err != nil {
		return nil, err
	}
	if len(privileges) == 0 {
		return nil, oraerr.Validation(oraerr.CodeMissingParam, "at least one privilege is required")
	}

	var target string
	if object != "" {
		obj, err := EscapeIdentifier(object)
		if err != nil {
			return nil, err
		}
		target = " ON " + obj
	}

	stmts := make([]Statement, 0, len(privileges))
	for _, priv := range privileges {
		cleaned := strings.ToUpper(strings.TrimSpace(priv))
		if !privilegePattern.MatchString(cleaned) {
			return nil, oraerr.Validation(oraerr.CodeInvalidParam, "invalid privilege %q", priv)
		}
		stmts = append(stmts, Statement{SQL: "GRANT " + cleaned + target + " TO " + user})
	}
	return stmts, nil
}

// Revokes mirrors Grants for REVOKE.
func (b *Builder) Revokes(username string, privileges []string, object string) ([]Statement, error) {
	stmts, err := b.Grants(username, privileges, object)
	if err != nil {
		return nil, err
	}
	for i := range stmts {
		stmts[i].SQL = strings.Replace(stmts[i].SQL, "GRANT ", "REVOKE ", 1)
		stmts[i].SQL = strings.Replace(stmts[i].SQL, " TO ", " FROM ", 1)
	}
	return stmts, nil
}

// DropUser builds DROP USER, cascading when requested.
func (b *Builder) DropUser(username string, cascade bool) (Statement, error) {
	if err := b.checkUserTarget(username); err != nil {
		return Statement{}, err
	}
	user, err := EscapeIdentifier(username)
	if err != nil {
		return Statement{}, err
	}
	stmt := "DROP USER " + user
	if cascade {
		stmt += " CASCADE"
	}
	return Statement{SQL: stmt}, nil
}

// columnTypes is the whitelist of column types CreateTable accepts.
// Values indicate whether the type takes a size argument.
var columnTypes = map[string]bool{
	"NUMBER":        true,
	"VARCHAR2":      true,
	"CHAR":          true,
	"NCHAR":         true,
	"NVARCHAR2":     true,
	"DATE":          false,
	"TIMESTAMP":     false,
	"CLOB":          false,
	"BLOB":          false,
	"RAW":           true,
	"FLOAT":         true,
	"BINARY_DOUBLE": false,
	"VECTOR":        true,
}

// ColumnDef describes one column for CreateTable.
type ColumnDef struct {
	Name string
	// Type must be in the whitelist.
	Type string
	// Size renders as the parenthesized argument: length, precision and
	// scale ("10,2"), or vector dimensions ("768, FLOAT32").
	Size    string
	NotNull bool
}

// sizePattern bounds the parenthesized type argument: digits, commas,
// spaces, and the vector format keywords.
var sizePattern = regexp.MustCompile(`^[0-9]+(\s*,\s*([0-9]+|FLOAT32|FLOAT64|INT8|BINARY|\*))?$`)

// TableSpec describes a table for CreateTable.
type TableSpec struct {
	Name       string
	Columns    []ColumnDef
	PrimaryKey []string
	Tablespace string
}

// CreateTable builds CREATE TABLE with whitelisted column types.
func (b *Builder) CreateTable(spec TableSpec) (Statement, error) {
	if err := b.checkObjectTarget(spec.Name); err != nil {
		return Statement{}, err
	}
	table, err := EscapeIdentifier(spec.Name)
	if err != nil {
		return Statement{}, err
	}
	if len(spec.Columns) == 0 {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "at least one column is required")
	}

	defs := make([]string, 0, len(spec.Columns)+1)
	for _, col := range spec.Columns {
		name, err := EscapeIdentifier(col.Name)
		if err != nil {
			return Statement{}, err
		}
		typ := strings.ToUpper(strings.TrimSpace(col.Type))
		takesSize, ok := columnTypes[typ]
		if !ok {
			return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "column type %q is not allowed", col.Type)
		}

		def := name + " " + typ
		if col.Size != "" {
			if !takesSize {
				return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "type %s does not take a size", typ)
			}
			size := strings.ToUpper(strings.TrimSpace(col.Size))
			if !sizePattern.MatchString(size) {
				return Statement{}, oraerr.Validation(oraerr.CodeInvalidParam, "invalid size %q for column %s", col.Size, name)
			}
			def += "(" + size + ")"
		}
		if col.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	if len(spec.PrimaryKey) > 0 {
		cols := make([]string, 0, len(spec.PrimaryKey))
		for _, pk := range spec.PrimaryKey {
			name, err := EscapeIdentifier(pk)
			if err != nil {
				return Statement{}, err
			}
			cols = append(cols, name)
		}
		defs = append(defs, "CONSTRAINT "+table+"_PK PRIMARY KEY ("+strings.Join(cols, ", ")+")")
	}

	stmt := "CREATE TABLE " + table + " (" + strings.Join(defs, ", ") + ")"
	if spec.Tablespace != "" {
		ts, err := EscapeIdentifier(spec.Tablespace)
		if err != nil {
			return Statement{}, err
		}
		stmt += " TABLESPACE " + ts
	}
	return Statement{SQL: stmt}, nil
}

// DropTable builds DROP TABLE; system objects are refused.
func (b *Builder) DropTable(name string, purge bool) (Statement, error) {
	if err := b.checkObjectTarget(name); err != nil {
		return Statement{}, err
	}
	table, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	stmt := "DROP TABLE " + table
	if purge {
		stmt += " PURGE"
	}
	return Statement{SQL: stmt}, nil
}

// TruncateTable builds TRUNCATE TABLE; system objects are refused.
func (b *Builder) TruncateTable(name string) (Statement, error) {
	if err := b.checkObjectTarget(name); err != nil {
		return Statement{}, err
	}
	table, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "TRUNCATE TABLE " + table}, nil
}

// CreateIndex builds CREATE [UNIQUE] INDEX.
func (b *Builder) CreateIndex(name, table string, columns []string, unique bool) (Statement, error) {
	idx, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	if err := b.checkObjectTarget(table); err != nil {
		return Statement{}, err
	}
	tbl, err := EscapeIdentifier(table)
	if err != nil {
		return Statement{}, err
	}
	if len(columns) == 0 {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "at least one column is required")
	}
	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		escaped, err := EscapeIdentifier(c)
		if err != nil {
			return Statement{}, err
		}
		cols = append(cols, escaped)
	}

	stmt := "CREATE "
	if unique {
		stmt += "UNIQUE "
	}
	stmt += "INDEX " + idx + " ON " + tbl + " (" + strings.Join(cols, ", ") + ")"
	return Statement{SQL: stmt}, nil
}

// DropIndex builds DROP INDEX.
func (b *Builder) DropIndex(name string) (Statement, error) {
	idx, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DROP INDEX " + idx}, nil
}

// QuerySpec describes a row query over one table.
type QuerySpec struct {
	Table   string
	Columns []string
	// Where is a caller-supplied predicate; it is vetted, not parsed.
	Where   string
	OrderBy []string
	// Limit caps the rows via FETCH FIRST; zero means no clause.
	Limit int
}

// QueryRecords builds a SELECT over one table.
func (b *Builder) QueryRecords(spec QuerySpec) (Statement, error) {
	table, err := EscapeIdentifier(spec.Table)
	if err != nil {
		return Statement{}, err
	}

	projection := "*"
	if len(spec.Columns) > 0 {
		cols := make([]string, 0, len(spec.Columns))
		for _, c := range spec.Columns {
			escaped, err := EscapeIdentifier(c)
			if err != nil {
				return Statement{}, err
			}
			cols = append(cols, escaped)
		}
		projection = strings.Join(cols, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + projection + " FROM " + table)

	if spec.Where != "" {
		if err := CheckPredicate(spec.Where); err != nil {
			return Statement{}, err
		}
		sb.WriteString(" WHERE " + spec.Where)
	}

	if len(spec.OrderBy) > 0 {
		clause, err := orderByClause(spec.OrderBy)
		if err != nil {
			return Statement{}, err
		}
		sb.WriteString(" ORDER BY " + clause)
	}

	if spec.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" FETCH FIRST %d ROWS ONLY", spec.Limit))
	}
	return Statement{SQL: sb.String()}, nil
}

// InsertRecord builds a single-row INSERT with every value bound.
// Columns are emitted in sorted order for deterministic SQL text, which
// keeps the per-connection statement cache effective.
func (b *Builder) InsertRecord(table string, values map[string]any) (Statement, error) {
	if err := b.checkObjectTarget(table); err != nil {
		return Statement{}, err
	}
	tbl, err := EscapeIdentifier(table)
	if err != nil {
		return Statement{}, err
	}
	if len(values) == 0 {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "at least one column value is required")
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]string, 0, len(names))
	placeholders := make([]string, 0, len(names))
	binds := make([]any, 0, len(names))
	for i, name := range names {
		escaped, err := EscapeIdentifier(name)
		if err != nil {
			return Statement{}, err
		}
		cols = append(cols, escaped)
		placeholders = append(placeholders, fmt.Sprintf(":%d", i+1))
		binds = append(binds, values[name])
	}

	return Statement{
		SQL:   "INSERT INTO " + tbl + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")",
		Binds: binds,
	}, nil
}

// UpdateRecords builds an UPDATE with bound SET values. A predicate is
// mandatory: unfiltered updates are refused.
func (b *Builder) UpdateRecords(table string, set map[string]any, where string) (Statement, error) {
	if err := b.checkObjectTarget(table); err != nil {
		return Statement{}, err
	}
	tbl, err := EscapeIdentifier(table)
	if err != nil {
		return Statement{}, err
	}
	if len(set) == 0 {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "at least one column to set is required")
	}
	if strings.TrimSpace(where) == "" {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "update requires a where predicate")
	}
	if err := CheckPredicate(where); err != nil {
		return Statement{}, err
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	assignments := make([]string, 0, len(names))
	binds := make([]any, 0, len(names))
	for i, name := range names {
		escaped, err := EscapeIdentifier(name)
		if err != nil {
			return Statement{}, err
		}
		assignments = append(assignments, fmt.Sprintf("%s = :%d", escaped, i+1))
		binds = append(binds, set[name])
	}

	return Statement{
		SQL:   "UPDATE " + tbl + " SET " + strings.Join(assignments, ", ") + " WHERE " + where,
		Binds: binds,
	}, nil
}

// DeleteRecords builds a DELETE; a predicate is mandatory.
func (b *Builder) DeleteRecords(table, where string) (Statement, error) {
	if err := b.checkObjectTarget(table); err != nil {
		return Statement{}, err
	}
	tbl, err := EscapeIdentifier(table)
	if err != nil {
		return Statement{}, err
	}
	if strings.TrimSpace(where) == "" {
		return Statement{}, oraerr.Validation(oraerr.CodeMissingParam, "delete requires a where predicate")
	}
	if err := CheckPredicate(where); err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DELETE FROM " + tbl + " WHERE " + where}, nil
}

// orderByClause escapes "COL [ASC|DESC]" entries.
func orderByClause(entries []string) (string, error) {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		fields := strings.Fields(entry)
		if len(fields) == 0 || len(fields) > 2 {
			return "", oraerr.Validation(oraerr.CodeInvalidParam, "invalid order by entry %q", entry)
		}
		col, err := EscapeIdentifier(fields[0])
		if err != nil {
			return "", err
		}
		if len(fields) == 2 {
			dir := strings.ToUpper(fields[1])
			if dir != "ASC" && dir != "DESC" {
				return "", oraerr.Validation(oraerr.CodeInvalidParam, "order direction must be ASC or DESC, got %q", fields[1])
			}
			col += " " + dir
		}
		parts = append(parts, col)
	}
	return strings.Join(parts, ", "), nil
}
