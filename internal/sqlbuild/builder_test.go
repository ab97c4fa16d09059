package sqlbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/secret"
)

func TestEscapeIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "simple", in: "employees", want: "EMPLOYEES"},
		{name: "already upper", in: "EMPLOYEES", want: "EMPLOYEES"},
		{name: "underscore and digits", in: "loan_applications_2", want: "LOAN_APPLICATIONS_2"},
		{name: "dollar and hash", in: "tmp$work#1", want: "TMP$WORK#1"},
		{name: "strips injection", in: "emp; DROP TABLE x--", want: "EMPDROPTABLEX"},
		{name: "strips quotes", in: `emp"loyees`, want: "EMPLOYEES"},
		{name: "trims whitespace", in: "  scott  ", want: "SCOTT"},
		{name: "empty", in: "", wantErr: true},
		{name: "only invalid chars", in: "';--", wantErr: true},
		{name: "leading digit", in: "1table", wantErr: true},
		{name: "too long", in: strings.Repeat("A", 129), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EscapeIdentifier(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateSingleStatement(t *testing.T) {
	require.NoError(t, ValidateSingleStatement("SELECT 1 FROM DUAL"))
	require.NoError(t, ValidateSingleStatement("SELECT 1 FROM DUAL;"))
	require.NoError(t, ValidateSingleStatement("SELECT ';' FROM DUAL"))
	require.NoError(t, ValidateSingleStatement(`SELECT "a;b" FROM t`))
	require.NoError(t, ValidateSingleStatement("BEGIN NULL; END;"))
	require.NoError(t, ValidateSingleStatement("DECLARE n NUMBER; BEGIN n := 1; END;"))

	err := ValidateSingleStatement("SELECT 1 FROM DUAL; DROP TABLE t")
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindSecurity))

	require.Error(t, ValidateSingleStatement(""))
	require.Error(t, ValidateSingleStatement("SELECT 'unterminated FROM DUAL"))
}

func TestCheckPredicate(t *testing.T) {
	require.NoError(t, CheckPredicate("salary > 100 AND dept = 'IT'"))
	for _, bad := range []string{"1=1; DROP TABLE t", "1=1 -- comment", "1=1 /* x */"} {
		err := CheckPredicate(bad)
		require.Error(t, err, bad)
		assert.True(t, oraerr.IsKind(err, oraerr.KindSecurity))
	}
}

func TestCreateUser(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.CreateUser("appuser", secret.NewPassword("tiger"), "users", "")
	require.NoError(t, err)
	assert.Equal(t, `CREATE USER APPUSER IDENTIFIED BY "tiger" DEFAULT TABLESPACE USERS QUOTA UNLIMITED ON USERS`, stmt.SQL)

	// The loggable rendering must not carry the password.
	assert.NotContains(t, stmt.LogSQL(), "tiger")
	assert.Contains(t, stmt.LogSQL(), secret.Redacted)
}

func TestCreateUserBlocksSystemUsers(t *testing.T) {
	b := New(true, []string{"appadmin"})

	for _, name := range []string{"SYS", "system", "DbSnMp", "appadmin"} {
		_, err := b.CreateUser(name, secret.NewPassword("x"), "", "")
		require.Error(t, err, name)
		var oe *oraerr.Error
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, oraerr.CodeSystemUser, oe.Code)
	}

	// Protection off: the same names build.
	open := New(false, nil)
	_, err := open.CreateUser("system", secret.NewPassword("x"), "", "")
	require.NoError(t, err)
}

func TestCreateUserRejectsQuoteInPassword(t *testing.T) {
	b := New(true, nil)
	_, err := b.CreateUser("appuser", secret.NewPassword(`pa"ss`), "", "")
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))
	assert.NotContains(t, err.Error(), `pa"ss`)
}

func TestGrantsEmitSeparateStatements(t *testing.T) {
	b := New(true, nil)

	stmts, err := b.Grants("appuser", []string{"CREATE SESSION", "connect", "RESOURCE"}, "")
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Equal(t, "GRANT CREATE SESSION TO APPUSER", stmts[0].SQL)
	assert.Equal(t, "GRANT CONNECT TO APPUSER", stmts[1].SQL)
	assert.Equal(t, "GRANT RESOURCE TO APPUSER", stmts[2].SQL)
}

func TestGrantsObjectPrivilege(t *testing.T) {
	b := New(true, nil)
	stmts, err := b.Grants("appuser", []string{"SELECT"}, "hr.employees")
	require.NoError(t, err)
	assert.Equal(t, "GRANT SELECT ON HREMPLOYEES TO APPUSER", stmts[0].SQL)
}

func TestGrantsRejectInvalidPrivilege(t *testing.T) {
	b := New(true, nil)
	_, err := b.Grants("appuser", []string{"SELECT; DROP TABLE t"}, "")
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))
}

func TestRevokes(t *testing.T) {
	b := New(true, nil)
	stmts, err := b.Revokes("appuser", []string{"CREATE SESSION"}, "")
	require.NoError(t, err)
	assert.Equal(t, "REVOKE CREATE SESSION FROM APPUSER", stmts[0].SQL)
}

func TestDropUser(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.DropUser("olduser", true)
	require.NoError(t, err)
	assert.Equal(t, "DROP USER OLDUSER CASCADE", stmt.SQL)

	_, err = b.DropUser("SYS", false)
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindSecurity))
}

func TestCreateTable(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.CreateTable(TableSpec{
		Name: "loan_applications",
		Columns: []ColumnDef{
			{Name: "id", Type: "NUMBER", Size: "10", NotNull: true},
			{Name: "loan_type", Type: "varchar2", Size: "30"},
			{Name: "amount", Type: "NUMBER", Size: "12,2"},
			{Name: "created", Type: "DATE"},
		},
		PrimaryKey: []string{"id"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE TABLE LOAN_APPLICATIONS (ID NUMBER(10) NOT NULL, LOAN_TYPE VARCHAR2(30), AMOUNT NUMBER(12,2), CREATED DATE, CONSTRAINT LOAN_APPLICATIONS_PK PRIMARY KEY (ID))",
		stmt.SQL)
}

func TestCreateTableRejectsUnknownType(t *testing.T) {
	b := New(true, nil)
	_, err := b.CreateTable(TableSpec{
		Name:    "t",
		Columns: []ColumnDef{{Name: "c", Type: "SYS.ANYDATA"}},
	})
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))
}

func TestCreateTableVectorColumn(t *testing.T) {
	b := New(true, nil)
	stmt, err := b.CreateTable(TableSpec{
		Name:    "docs",
		Columns: []ColumnDef{{Name: "embedding", Type: "VECTOR", Size: "768, FLOAT32"}},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "EMBEDDING VECTOR(768, FLOAT32)")
}

func TestCreateTableRejectsSizeOnSizelessType(t *testing.T) {
	b := New(true, nil)
	_, err := b.CreateTable(TableSpec{
		Name:    "t",
		Columns: []ColumnDef{{Name: "c", Type: "DATE", Size: "10"}},
	})
	require.Error(t, err)
}

func TestDropTableBlocksSystemObjects(t *testing.T) {
	b := New(true, nil)
	for _, name := range []string{"DBA_USERS", "v$session", "CDB_PDBS"} {
		_, err := b.DropTable(name, false)
		require.Error(t, err, name)
		var oe *oraerr.Error
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, oraerr.CodeSystemObject, oe.Code)
	}

	stmt, err := b.DropTable("scratch", true)
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE SCRATCH PURGE", stmt.SQL)
}

func TestQueryRecords(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.QueryRecords(QuerySpec{
		Table:   "employees",
		Columns: []string{"employee_id", "last_name"},
		Where:   "department_id = 10",
		OrderBy: []string{"last_name", "employee_id DESC"},
		Limit:   25,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT EMPLOYEE_ID, LAST_NAME FROM EMPLOYEES WHERE department_id = 10 ORDER BY LAST_NAME, EMPLOYEE_ID DESC FETCH FIRST 25 ROWS ONLY",
		stmt.SQL)
}

func TestQueryRecordsRejectsInjectedPredicate(t *testing.T) {
	b := New(true, nil)
	_, err := b.QueryRecords(QuerySpec{Table: "t", Where: "1=1; DELETE FROM t"})
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindSecurity))
}

func TestInsertRecordBindsEveryValue(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.InsertRecord("employees", map[string]any{
		"last_name":   "King",
		"employee_id": 100,
		"salary":      24000,
	})
	require.NoError(t, err)
	// Columns sort for deterministic text.
	assert.Equal(t, "INSERT INTO EMPLOYEES (EMPLOYEE_ID, LAST_NAME, SALARY) VALUES (:1, :2, :3)", stmt.SQL)
	assert.Equal(t, []any{100, "King", 24000}, stmt.Binds)
}

func TestUpdateRecordsRequiresPredicate(t *testing.T) {
	b := New(true, nil)

	_, err := b.UpdateRecords("employees", map[string]any{"salary": 1}, "")
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))

	stmt, err := b.UpdateRecords("employees", map[string]any{"salary": 25000}, "employee_id = 100")
	require.NoError(t, err)
	assert.Equal(t, "UPDATE EMPLOYEES SET SALARY = :1 WHERE employee_id = 100", stmt.SQL)
	assert.Equal(t, []any{25000}, stmt.Binds)
}

func TestDeleteRecordsRequiresPredicate(t *testing.T) {
	b := New(true, nil)

	_, err := b.DeleteRecords("employees", " ")
	require.Error(t, err)

	stmt, err := b.DeleteRecords("employees", "employee_id = 100")
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM EMPLOYEES WHERE employee_id = 100", stmt.SQL)
}

func TestCreateIndex(t *testing.T) {
	b := New(true, nil)
	stmt, err := b.CreateIndex("emp_name_ix", "employees", []string{"last_name", "first_name"}, true)
	require.NoError(t, err)
	assert.Equal(t, "CREATE UNIQUE INDEX EMP_NAME_IX ON EMPLOYEES (LAST_NAME, FIRST_NAME)", stmt.SQL)
}
