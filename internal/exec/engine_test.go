package exec

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/pool"
	"github.com/orahub/oracle-mcp/internal/retry"
)

// fakeSession implements pool.Session for engine tests.
type fakeSession struct {
	execSQL   []string
	execErr   error
	affected  int64
	preparedN int
}

func (f *fakeSession) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}

func (f *fakeSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.execSQL = append(f.execSQL, query)
	if f.execErr != nil {
		return nil, f.execErr
	}
	return fakeResult{affected: f.affected}, nil
}

func (f *fakeSession) PrepareContext(ctx context.Context, query string) (pool.PreparedStatement, error) {
	f.preparedN++
	return fakeStmt{}, nil
}

func (f *fakeSession) PingContext(ctx context.Context) error { return nil }
func (f *fakeSession) Close() error                          { return nil }

type fakeStmt struct{}

func (fakeStmt) QueryContext(ctx context.Context, args ...any) (*sql.Rows, error) { return nil, nil }
func (fakeStmt) ExecContext(ctx context.Context, args ...any) (sql.Result, error) { return nil, nil }
func (fakeStmt) Close() error                                                     { return nil }

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

// fakeRows implements rowSource over literal data.
type fakeRows struct {
	cols []string
	data [][]any
	idx  int
	err  error
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, nil }
func (f *fakeRows) Next() bool                 { return f.idx < len(f.data) }
func (f *fakeRows) Err() error                 { return f.err }
func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.idx]
	f.idx++
	for i := range dest {
		*(dest[i].(*any)) = row[i]
	}
	return nil
}

func testEngine(t *testing.T, session pool.Session) (*Engine, *pool.Entry, func(broken bool)) {
	t.Helper()
	p := pool.New(pool.Config{
		MaxSize:        1,
		AcquireTimeout: time.Second,
		ConnectRetry:   retry.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
	}, func(ctx context.Context) (pool.Session, error) {
		return session, nil
	}, zerolog.Nop())
	t.Cleanup(p.Close)

	engine := New(p, Options{MaxRows: 100, DefaultFetchSize: 10}, zerolog.Nop())
	entry, err := p.Acquire(context.Background(), "test")
	require.NoError(t, err)
	return engine, entry, func(broken bool) { p.Release(entry, broken) }
}

func TestCollectRowsShapesValues(t *testing.T) {
	engine := New(nil, Options{MaxRows: 100, DefaultFetchSize: 10}, zerolog.Nop())

	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	src := &fakeRows{
		cols: []string{"USERNAME", "CREATED", "PAYLOAD"},
		data: [][]any{
			{"HR", when, []byte("blob-bytes")},
			{"SCOTT", when, nil},
		},
	}

	result, err := engine.collectRows(context.Background(), src, 10, 100)
	require.NoError(t, err)

	assert.Equal(t, []string{"USERNAME", "CREATED", "PAYLOAD"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "HR", result.Rows[0]["USERNAME"])
	assert.Equal(t, "2026-03-14T09:26:53Z", result.Rows[0]["CREATED"])
	assert.Equal(t, "blob-bytes", result.Rows[0]["PAYLOAD"])
	assert.Nil(t, result.Rows[1]["PAYLOAD"])
	assert.False(t, result.Truncated)
}

func TestCollectRowsCapsAndFlagsTruncation(t *testing.T) {
	engine := New(nil, Options{MaxRows: 100, DefaultFetchSize: 10}, zerolog.Nop())

	data := make([][]any, 10)
	for i := range data {
		data[i] = []any{i}
	}
	src := &fakeRows{cols: []string{"N"}, data: data}

	result, err := engine.collectRows(context.Background(), src, 4, 5)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.True(t, result.Truncated)
}

func TestCollectRowsObservesCancellationBetweenBatches(t *testing.T) {
	engine := New(nil, Options{MaxRows: 1000, DefaultFetchSize: 10}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())

	data := make([][]any, 50)
	for i := range data {
		data[i] = []any{i}
	}
	src := &fakeRows{cols: []string{"N"}, data: data}

	// Cancel before the first batch boundary check.
	cancel()

	_, err := engine.collectRows(ctx, src, 10, 1000)
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindCancelled))
}

func TestCollectRowsMapsDeadline(t *testing.T) {
	engine := New(nil, Options{MaxRows: 1000, DefaultFetchSize: 1}, zerolog.Nop())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	src := &fakeRows{cols: []string{"N"}, data: [][]any{{1}}}
	_, err := engine.collectRows(ctx, src, 1, 1000)
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindTimeout))
}

func TestStreamRowsStopsOnCallback(t *testing.T) {
	engine := New(nil, Options{MaxRows: 1000, DefaultFetchSize: 10}, zerolog.Nop())

	data := make([][]any, 10)
	for i := range data {
		data[i] = []any{i}
	}
	src := &fakeRows{cols: []string{"N"}, data: data}

	seen := 0
	err := engine.streamRows(context.Background(), src, 10, func(row map[string]any) (bool, error) {
		seen++
		return seen < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestLobPreviewTruncation(t *testing.T) {
	engine := New(nil, Options{MaxRows: 100, DefaultFetchSize: 10, LobPreviewBytes: 8}, zerolog.Nop())

	big := make([]byte, 100)
	for i := range big {
		big[i] = 'x'
	}
	src := &fakeRows{cols: []string{"DOC"}, data: [][]any{{big}}}

	result, err := engine.collectRows(context.Background(), src, 10, 100)
	require.NoError(t, err)
	assert.Len(t, result.Rows[0]["DOC"], 8)
	assert.True(t, result.Truncated)
}

func TestExecModeReturnsAffectedRows(t *testing.T) {
	session := &fakeSession{affected: 3}
	engine, entry, release := testEngine(t, session)
	defer release(false)

	result, err := engine.ExecuteOn(context.Background(), entry, Plan{
		SQL:  "UPDATE employees SET salary = salary * 1.1 WHERE department_id = :1",
		Mode: ModeExecute,
	})
	require.NoError(t, err)
	require.NotNil(t, result.RowsAffected)
	assert.Equal(t, int64(3), *result.RowsAffected)
}

func TestExecModeDDLHasNilAffected(t *testing.T) {
	session := &fakeSession{affected: 0}
	engine, entry, release := testEngine(t, session)
	defer release(false)

	result, err := engine.ExecuteOn(context.Background(), entry, Plan{
		SQL:  "CREATE TABLE t (n NUMBER)",
		Mode: ModeExecute,
	})
	require.NoError(t, err)
	assert.Nil(t, result.RowsAffected)
}

func TestExecModeMapsOracleError(t *testing.T) {
	session := &fakeSession{execErr: errors.New("ORA-00942: table or view does not exist")}
	engine, entry, release := testEngine(t, session)
	defer release(false)

	_, err := engine.ExecuteOn(context.Background(), entry, Plan{
		SQL:  "DROP TABLE missing",
		Mode: ModeExecute,
	})
	require.Error(t, err)
	var oe *oraerr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "ORA-00942", oe.Code)
	assert.Equal(t, oraerr.KindPrivilege, oe.Kind)
}

func TestPLSQLCollectsOutParams(t *testing.T) {
	session := &fakeSession{}
	engine, entry, release := testEngine(t, session)
	defer release(false)

	var snapID int64 = 42
	result, err := engine.ExecuteOn(context.Background(), entry, Plan{
		SQL:  "BEGIN :snap_id := dbms_workload_repository.create_snapshot; END;",
		Mode: ModePLSQL,
		Binds: []any{
			sql.Named("snap_id", sql.Out{Dest: &snapID}),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.OutParams["SNAP_ID"])
}

func TestPrepareOnlySkipsExecution(t *testing.T) {
	session := &fakeSession{}
	engine, entry, release := testEngine(t, session)
	defer release(false)

	result, err := engine.ExecuteOn(context.Background(), entry, Plan{
		SQL:         "SELECT * FROM employees",
		Mode:        ModeQuery,
		PrepareOnly: true,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, 1, session.preparedN, "statement must be prepared")
	assert.Empty(t, session.execSQL, "statement body must not run")
}

func TestRowCapClampsToConfiguredMax(t *testing.T) {
	engine := New(nil, Options{MaxRows: 100, DefaultFetchSize: 10}, zerolog.Nop())

	capped, clamped := engine.rowCap(Plan{MaxRows: 5000})
	assert.Equal(t, 100, capped)
	assert.True(t, clamped)

	capped, clamped = engine.rowCap(Plan{MaxRows: 50})
	assert.Equal(t, 50, capped)
	assert.False(t, clamped)

	capped, _ = engine.rowCap(Plan{})
	assert.Equal(t, 100, capped)
}

func TestIsDDL(t *testing.T) {
	assert.True(t, isDDL("CREATE TABLE t (n NUMBER)"))
	assert.True(t, isDDL("  drop user scott"))
	assert.True(t, isDDL("GRANT CONNECT TO scott"))
	assert.False(t, isDDL("UPDATE t SET n = 1"))
	assert.False(t, isDDL("SELECT 1 FROM DUAL"))
}

func TestUnknownModeRejected(t *testing.T) {
	session := &fakeSession{}
	engine, entry, release := testEngine(t, session)
	defer release(false)

	_, err := engine.ExecuteOn(context.Background(), entry, Plan{SQL: "SELECT 1 FROM DUAL", Mode: "batch"})
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindValidation))
}
