package sqlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/secret"
)

func TestAnalyticalRowNumber(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.Analytical(AnalyticalSpec{
		Table:       "employees",
		Function:    "ROW_NUMBER",
		PartitionBy: []string{"DEPARTMENT_ID"},
		OrderBy:     []string{"SALARY DESC"},
	})
	require.NoError(t, err)
	// The single () after the function name is required Oracle syntax.
	assert.Contains(t, stmt.SQL, "ROW_NUMBER() OVER (PARTITION BY DEPARTMENT_ID ORDER BY SALARY DESC)")
	assert.NotContains(t, stmt.SQL, "ROW_NUMBER()()")
}

func TestAnalyticalRankVariants(t *testing.T) {
	b := New(true, nil)
	for _, fn := range []string{"RANK", "DENSE_RANK"} {
		stmt, err := b.Analytical(AnalyticalSpec{
			Table:    "employees",
			Function: fn,
			OrderBy:  []string{"SALARY DESC"},
		})
		require.NoError(t, err, fn)
		assert.Contains(t, stmt.SQL, fn+"() OVER (ORDER BY SALARY DESC)")
	}
}

func TestAnalyticalNtile(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.Analytical(AnalyticalSpec{
		Table:    "employees",
		Function: "ntile",
		Buckets:  4,
		OrderBy:  []string{"SALARY"},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "NTILE(4) OVER (ORDER BY SALARY)")

	_, err = b.Analytical(AnalyticalSpec{Table: "t", Function: "NTILE", OrderBy: []string{"C"}})
	require.Error(t, err)
}

func TestAnalyticalLagWithOffset(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.Analytical(AnalyticalSpec{
		Table:       "employees",
		Function:    "LAG",
		Column:      "salary",
		Offset:      2,
		PartitionBy: []string{"department_id"},
		OrderBy:     []string{"hire_date"},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "LAG(SALARY, 2) OVER (PARTITION BY DEPARTMENT_ID ORDER BY HIRE_DATE)")
}

func TestAnalyticalPercentileUsesWithinGroup(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.Analytical(AnalyticalSpec{
		Table:       "employees",
		Function:    "PERCENTILE_CONT",
		Percentile:  0.5,
		OrderBy:     []string{"SALARY"},
		PartitionBy: []string{"DEPARTMENT_ID"},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY SALARY) OVER (PARTITION BY DEPARTMENT_ID)")
}

func TestAnalyticalRequiresOrderForRanking(t *testing.T) {
	b := New(true, nil)
	_, err := b.Analytical(AnalyticalSpec{Table: "t", Function: "ROW_NUMBER"})
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))
}

func TestAnalyticalUnknownFunction(t *testing.T) {
	b := New(true, nil)
	_, err := b.Analytical(AnalyticalSpec{Table: "t", Function: "EXTRACTVALUE", OrderBy: []string{"C"}})
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))
}

func TestPivotMixedValues(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.Pivot(PivotSpec{
		SourceQuery: "SELECT loan_type, amount FROM loan_applications",
		PivotColumn: "loan_type",
		Values:      []string{"Personal", "Auto", "100"},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "'Personal' AS Personal")
	assert.Contains(t, stmt.SQL, "'Auto' AS Auto")
	assert.Contains(t, stmt.SQL, "100 AS 100")
	assert.NotContains(t, stmt.SQL, "'100'")
}

func TestPivotEscapesStringValues(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.Pivot(PivotSpec{
		SourceQuery:   "SELECT region, sales FROM orders",
		PivotColumn:   "region",
		Values:        []string{"O'Brien County", "North-East"},
		Aggregate:     "SUM",
		MeasureColumn: "sales",
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "SUM(SALES)")
	assert.Contains(t, stmt.SQL, "'O''Brien County' AS O_Brien_County")
	assert.Contains(t, stmt.SQL, "'North-East' AS North_East")
}

func TestPivotRejectsNonSelectSource(t *testing.T) {
	b := New(true, nil)

	_, err := b.Pivot(PivotSpec{
		SourceQuery: "DELETE FROM t",
		PivotColumn: "c",
		Values:      []string{"x"},
	})
	require.Error(t, err)

	_, err = b.Pivot(PivotSpec{
		SourceQuery: "SELECT 1 FROM DUAL; DROP TABLE t",
		PivotColumn: "c",
		Values:      []string{"x"},
	})
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindSecurity))
}

func TestVectorSearch(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.VectorSearch(VectorSpec{
		Table:        "documents",
		VectorColumn: "embedding",
		Query:        []float64{0.1, 0.2, 0.3},
		Metric:       "cosine",
		TopK:         5,
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "VECTOR_DISTANCE(t.EMBEDDING, TO_VECTOR(:1), COSINE)")
	assert.Contains(t, stmt.SQL, "ORDER BY DISTANCE FETCH FIRST 5 ROWS ONLY")
	require.Len(t, stmt.Binds, 1)
	assert.Equal(t, "[0.1,0.2,0.3]", stmt.Binds[0])
}

func TestVectorSearchRejectsUnknownMetric(t *testing.T) {
	b := New(true, nil)
	_, err := b.VectorSearch(VectorSpec{
		Table:        "documents",
		VectorColumn: "embedding",
		Query:        []float64{0.1},
		Metric:       "hamming",
	})
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))
}

func TestCreatePDBRedactsPassword(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.CreatePDB(PDBSpec{
		Name:          "salespdb",
		AdminUser:     "pdbadmin",
		AdminPassword: secret.NewPassword("hunter2"),
	})
	require.NoError(t, err)
	assert.Equal(t, `CREATE PLUGGABLE DATABASE SALESPDB ADMIN USER PDBADMIN IDENTIFIED BY "hunter2"`, stmt.SQL)
	assert.NotContains(t, stmt.LogSQL(), "hunter2")
}

func TestAlterPDB(t *testing.T) {
	b := New(true, nil)

	stmt, err := b.AlterPDB("salespdb", "open")
	require.NoError(t, err)
	assert.Equal(t, "ALTER PLUGGABLE DATABASE SALESPDB OPEN", stmt.SQL)

	stmt, err = b.AlterPDB("salespdb", "close")
	require.NoError(t, err)
	assert.Equal(t, "ALTER PLUGGABLE DATABASE SALESPDB CLOSE IMMEDIATE", stmt.SQL)

	_, err = b.AlterPDB("salespdb", "explode")
	require.Error(t, err)
}
