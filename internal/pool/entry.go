package pool

import (
	"container/list"
	"context"
	"database/sql"
	"time"
)

// State tracks an entry through its lifecycle.
type State int

const (
	StateIdle State = iota
	StateInUse
	StateBroken
	StateClosing
)

// Session is the driver-level surface the pool manages. *sql.Conn is
// adapted to it by the production factory; tests substitute fakes.
type Session interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (PreparedStatement, error)
	PingContext(ctx context.Context) error
	Close() error
}

// PreparedStatement is the prepared-statement surface cached per entry.
// *sql.Stmt satisfies it.
type PreparedStatement interface {
	QueryContext(ctx context.Context, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	Close() error
}

// Entry is one pooled connection. It is owned exclusively by the pool
// and lent to one borrower at a time.
type Entry struct {
	session Session

	// Guarded by the pool mutex.
	state         State
	createdAt     time.Time
	lastUsedAt    time.Time
	borrowerToken string
	borrowerTool  string
	borrowedAt    time.Time
	leakWarned    bool

	stmts *stmtCache
}

// Session exposes the underlying driver session to the execution engine.
func (e *Entry) Session() Session {
	return e.session
}

// BorrowerToken identifies the current borrower for leak reports.
func (e *Entry) BorrowerToken() string {
	return e.borrowerToken
}

// Prepare returns a prepared statement for sqlText, consulting the
// per-entry cache. The statement must not be closed by the caller; the
// cache owns it until eviction or entry destruction.
func (e *Entry) Prepare(ctx context.Context, sqlText string) (PreparedStatement, error) {
	if stmt, ok := e.stmts.get(sqlText); ok {
		return stmt, nil
	}
	stmt, err := e.session.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	e.stmts.put(sqlText, stmt)
	return stmt, nil
}

// StatementCacheLen reports the number of cached prepared statements.
func (e *Entry) StatementCacheLen() int {
	return e.stmts.len()
}

// destroy closes the cached statements and the session.
func (e *Entry) destroy() error {
	e.stmts.closeAll()
	return e.session.Close()
}

// stmtCache is a per-entry LRU of prepared statements keyed by SQL text.
// It is only touched by the entry's current borrower, so it needs no
// locking of its own.
type stmtCache struct {
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type stmtCacheItem struct {
	key  string
	stmt PreparedStatement
}

func newStmtCache(capacity int) *stmtCache {
	return &stmtCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

func (c *stmtCache) get(key string) (PreparedStatement, bool) {
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*stmtCacheItem).stmt, true
}

func (c *stmtCache) put(key string, stmt PreparedStatement) {
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*stmtCacheItem).stmt = stmt
		return
	}
	c.entries[key] = c.order.PushFront(&stmtCacheItem{key: key, stmt: stmt})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		item := oldest.Value.(*stmtCacheItem)
		c.order.Remove(oldest)
		delete(c.entries, item.key)
		_ = item.stmt.Close()
	}
}

func (c *stmtCache) len() int {
	return c.order.Len()
}

func (c *stmtCache) closeAll() {
	for el := c.order.Front(); el != nil; el = el.Next() {
		_ = el.Value.(*stmtCacheItem).stmt.Close()
	}
	c.order.Init()
	c.entries = make(map[string]*list.Element, c.capacity)
}
