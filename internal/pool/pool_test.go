package pool

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/retry"
	"github.com/orahub/oracle-mcp/internal/secret"
)

// fakeSession implements Session without a database.
type fakeSession struct {
	mu       sync.Mutex
	closed   bool
	queries  []string
	prepared []string
	queryErr error
}

func (f *fakeSession) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	err := f.queryErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	// The pool only closes the (nil) rows handle, which is a no-op here.
	return nil, nil
}

func (f *fakeSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeSession) PrepareContext(ctx context.Context, query string) (PreparedStatement, error) {
	f.mu.Lock()
	f.prepared = append(f.prepared, query)
	f.mu.Unlock()
	return &fakeStmt{}, nil
}

func (f *fakeSession) PingContext(ctx context.Context) error { return nil }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

type fakeStmt struct {
	closed atomic.Bool
}

func (s *fakeStmt) QueryContext(ctx context.Context, args ...any) (*sql.Rows, error) {
	return nil, nil
}
func (s *fakeStmt) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	return nil, nil
}
func (s *fakeStmt) Close() error {
	s.closed.Store(true)
	return nil
}

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}
}

func newTestPool(t *testing.T, cfg Config, factory Factory) *Pool {
	t.Helper()
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = time.Second
	}
	if cfg.ConnectRetry.MaxRetries == 0 {
		cfg.ConnectRetry = fastRetry()
	}
	p := New(cfg, factory, zerolog.Nop())
	t.Cleanup(p.Close)
	return p
}

func countingFactory(dialed *atomic.Int32) Factory {
	return func(ctx context.Context) (Session, error) {
		dialed.Add(1)
		return &fakeSession{}, nil
	}
}

func TestAcquireReleaseReuse(t *testing.T) {
	var dialed atomic.Int32
	p := newTestPool(t, Config{MaxSize: 2}, countingFactory(&dialed))

	ctx := context.Background()
	entry, err := p.Acquire(ctx, "list_tables")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.BorrowerToken())

	p.Release(entry, false)

	again, err := p.Acquire(ctx, "list_tables")
	require.NoError(t, err)
	p.Release(again, false)

	assert.Equal(t, int32(1), dialed.Load(), "released connection must be reused")
	assert.Same(t, entry, again)
}

func TestCreatedNeverExceedsMaxSize(t *testing.T) {
	var dialed atomic.Int32
	p := newTestPool(t, Config{MaxSize: 3, AcquireTimeout: 50 * time.Millisecond}, countingFactory(&dialed))

	ctx := context.Background()
	var entries []*Entry
	for i := 0; i < 3; i++ {
		e, err := p.Acquire(ctx, "t")
		require.NoError(t, err)
		entries = append(entries, e)
	}

	stats := p.Stats()
	assert.Equal(t, 3, stats.Created)
	assert.Equal(t, 3, stats.InUse)
	assert.Equal(t, 0, stats.Idle)

	// Saturated: fourth acquire times out with the pool error.
	_, err := p.Acquire(ctx, "t")
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindTimeout))
	var oe *oraerr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, oraerr.CodePoolTimeout, oe.Code)

	for _, e := range entries {
		p.Release(e, false)
	}
	assert.Equal(t, int32(3), dialed.Load())
}

func TestStatsInvariant(t *testing.T) {
	p := newTestPool(t, Config{MaxSize: 4}, countingFactory(&atomic.Int32{}))

	ctx := context.Background()
	a, _ := p.Acquire(ctx, "t")
	b, _ := p.Acquire(ctx, "t")
	p.Release(a, false)

	s := p.Stats()
	assert.Equal(t, s.Created, s.Idle+s.InUse, "in_use + idle == created")
	p.Release(b, false)
}

func TestBrokenConnectionNeverReturnsToIdle(t *testing.T) {
	var dialed atomic.Int32
	p := newTestPool(t, Config{MaxSize: 1}, countingFactory(&dialed))

	ctx := context.Background()
	entry, err := p.Acquire(ctx, "t")
	require.NoError(t, err)
	session := entry.session.(*fakeSession)

	p.Release(entry, true)

	assert.True(t, session.closed, "broken connection must be destroyed")
	assert.Equal(t, 0, p.Stats().Created)

	// Next acquire dials a fresh connection.
	fresh, err := p.Acquire(ctx, "t")
	require.NoError(t, err)
	assert.NotSame(t, entry, fresh)
	assert.Equal(t, int32(2), dialed.Load())
	p.Release(fresh, false)
}

func TestSaturatedWaiterIsServedFIFO(t *testing.T) {
	p := newTestPool(t, Config{MaxSize: 1, AcquireTimeout: 2 * time.Second}, countingFactory(&atomic.Int32{}))

	ctx := context.Background()
	first, err := p.Acquire(ctx, "t")
	require.NoError(t, err)

	got := make(chan *Entry, 1)
	go func() {
		e, acquireErr := p.Acquire(ctx, "t")
		if acquireErr != nil {
			got <- nil
			return
		}
		got <- e
	}()

	// Give the waiter time to enqueue, then release.
	time.Sleep(50 * time.Millisecond)
	p.Release(first, false)

	select {
	case e := <-got:
		require.NotNil(t, e)
		p.Release(e, false)
	case <-time.After(time.Second):
		t.Fatal("waiter was not served after release")
	}
}

func TestMaxLifetimeDestroysOnRelease(t *testing.T) {
	var dialed atomic.Int32
	p := newTestPool(t, Config{MaxSize: 1, MaxLifetime: 10 * time.Millisecond}, countingFactory(&dialed))

	ctx := context.Background()
	entry, err := p.Acquire(ctx, "t")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	p.Release(entry, false)

	assert.True(t, entry.session.(*fakeSession).closed)
	assert.Equal(t, 0, p.Stats().Created)
}

func TestAcquireAfterCloseFails(t *testing.T) {
	p := New(Config{MaxSize: 1, AcquireTimeout: time.Second, ConnectRetry: fastRetry()},
		countingFactory(&atomic.Int32{}), zerolog.Nop())
	p.Close()

	_, err := p.Acquire(context.Background(), "t")
	require.Error(t, err)
	var oe *oraerr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, oraerr.CodePoolClosed, oe.Code)
}

func TestDialFailureSurfacesDriverError(t *testing.T) {
	p := newTestPool(t, Config{MaxSize: 1}, func(ctx context.Context) (Session, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	_, err := p.Acquire(context.Background(), "t")
	require.Error(t, err)
	assert.True(t, oraerr.IsKind(err, oraerr.KindDriver))
	assert.Equal(t, 0, p.Stats().Created, "failed dial must free its slot")
}

func TestWithConnectionReleasesOnAllPaths(t *testing.T) {
	p := newTestPool(t, Config{MaxSize: 1}, countingFactory(&atomic.Int32{}))
	ctx := context.Background()

	// Success path.
	err := p.WithConnection(ctx, "t", func(ctx context.Context, e *Entry) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stats().Idle)

	// Error path: non-driver errors keep the connection.
	sentinel := oraerr.Validation(oraerr.CodeInvalidParam, "bad")
	err = p.WithConnection(ctx, "t", func(ctx context.Context, e *Entry) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, p.Stats().Idle)

	// Driver errors mark the connection broken.
	err = p.WithConnection(ctx, "t", func(ctx context.Context, e *Entry) error {
		return oraerr.New(oraerr.KindDriver, "E_DRIVER", "socket fault")
	})
	require.Error(t, err)
	assert.Equal(t, 0, p.Stats().Created)

	// Panic path: released as broken, panic propagates.
	assert.Panics(t, func() {
		_ = p.WithConnection(ctx, "t", func(ctx context.Context, e *Entry) error {
			panic("handler bug")
		})
	})
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestValidationFailureDiscardsIdle(t *testing.T) {
	bad := &fakeSession{queryErr: errors.New("ORA-03113: end-of-file on communication channel")}
	sessions := []Session{bad, &fakeSession{}}
	var idx int
	p := newTestPool(t, Config{MaxSize: 1}, func(ctx context.Context) (Session, error) {
		s := sessions[idx]
		idx++
		return s, nil
	})

	ctx := context.Background()
	entry, err := p.Acquire(ctx, "t")
	require.NoError(t, err)
	p.Release(entry, false)

	// The idle entry fails its validation probe; the pool must discard
	// it and dial a replacement.
	entry2, err := p.Acquire(ctx, "t")
	require.NoError(t, err)
	assert.NotSame(t, entry, entry2)
	assert.True(t, bad.closed)
	p.Release(entry2, false)
}

func TestStatementCacheLRU(t *testing.T) {
	cache := newStmtCache(2)

	s1, s2, s3 := &fakeStmt{}, &fakeStmt{}, &fakeStmt{}
	cache.put("SELECT 1 FROM DUAL", s1)
	cache.put("SELECT 2 FROM DUAL", s2)

	// Touch s1 so s2 is the eviction candidate.
	_, ok := cache.get("SELECT 1 FROM DUAL")
	require.True(t, ok)

	cache.put("SELECT 3 FROM DUAL", s3)

	assert.Equal(t, 2, cache.len())
	assert.True(t, s2.closed.Load(), "evicted statement must be closed")
	assert.False(t, s1.closed.Load())

	_, ok = cache.get("SELECT 2 FROM DUAL")
	assert.False(t, ok)
}

func TestEntryPrepareUsesCache(t *testing.T) {
	p := newTestPool(t, Config{MaxSize: 1}, countingFactory(&atomic.Int32{}))

	ctx := context.Background()
	entry, err := p.Acquire(ctx, "t")
	require.NoError(t, err)
	defer p.Release(entry, false)

	session := entry.session.(*fakeSession)

	_, err = entry.Prepare(ctx, "SELECT owner FROM all_tables")
	require.NoError(t, err)
	_, err = entry.Prepare(ctx, "SELECT owner FROM all_tables")
	require.NoError(t, err)

	assert.Len(t, session.prepared, 1, "second prepare must hit the cache")
	assert.Equal(t, 1, entry.StatementCacheLen())
}

func TestLeakDetectionWarnsWithoutReclaim(t *testing.T) {
	p := newTestPool(t, Config{MaxSize: 1, LeakThreshold: 10 * time.Millisecond}, countingFactory(&atomic.Int32{}))

	ctx := context.Background()
	entry, err := p.Acquire(ctx, "slow_tool")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	p.sweepOnce()

	// The entry is still lent to us: leaks are reported, not reclaimed.
	assert.Equal(t, StateInUse, entry.state)
	assert.True(t, entry.leakWarned)
	p.Release(entry, false)
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "scheme form", url: "oracle://db1:1521/ORCLPDB1"},
		{name: "bare form", url: "db1:1521/ORCLPDB1"},
		{name: "sid form", url: "db1:1521:XE"},
		{name: "tcps form", url: "tcps://db1:2484/ORCLPDB1"},
		{name: "default port", url: "oracle://db1/ORCLPDB1"},
		{name: "missing service", url: "oracle://db1:1521", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := BuildDSN(tt.url, "scott", secret.NewPassword("tiger"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, dsn, "db1")
		})
	}
}
