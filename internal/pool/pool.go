// Package pool implements a bounded Oracle connection pool with FIFO
// acquisition, idle and lifetime eviction, a validation probe, and leak
// detection. Entries are lent exclusively: a connection is either in the
// idle set or assigned to exactly one borrower.
package pool

import (
	"container/list"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/retry"
)

// defaultStatementCacheSize bounds the per-connection prepared cache.
const defaultStatementCacheSize = 50

// Factory dials one new driver session.
type Factory func(ctx context.Context) (Session, error)

// Config tunes the pool.
type Config struct {
	MaxSize        int
	MinIdle        int
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration
	MaxLifetime    time.Duration
	LeakThreshold  time.Duration
	// ValidationQuery probes idle connections before hand-out.
	ValidationQuery string
	// StatementCacheSize bounds the per-entry prepared statement LRU.
	StatementCacheSize int
	// ConnectRetry bounds backoff while dialing new sessions.
	ConnectRetry retry.Config
}

func (c Config) withDefaults() Config {
	if c.ValidationQuery == "" {
		c.ValidationQuery = "SELECT 1 FROM DUAL"
	}
	if c.StatementCacheSize <= 0 {
		c.StatementCacheSize = defaultStatementCacheSize
	}
	if c.ConnectRetry.MaxRetries <= 0 {
		c.ConnectRetry = retry.Config{
			MaxRetries:     3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Jitter:         0.2,
		}
	}
	return c
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	MaxSize int `json:"max_size"`
	Created int `json:"created"`
	Idle    int `json:"idle"`
	InUse   int `json:"in_use"`
	Waiting int `json:"waiting"`
}

// Pool is the bounded connection pool.
type Pool struct {
	cfg     Config
	factory Factory
	logger  zerolog.Logger

	mu      chanMutex
	idle    []*Entry
	all     map[*Entry]struct{}
	created int
	waiters *list.List // of chan *Entry; nil handoff means "retry"
	closed  bool

	sweeperStop chan struct{}
	sweeperDone chan struct{}
}

// chanMutex is a channel-based mutex so lock acquisition could be made
// context-aware later without changing callers.
type chanMutex chan struct{}

func (m chanMutex) lock()   { m <- struct{}{} }
func (m chanMutex) unlock() { <-m }

// New creates a pool. No connections are dialed until Warm or the first
// Acquire.
func New(cfg Config, factory Factory, logger zerolog.Logger) *Pool {
	p := &Pool{
		cfg:         cfg.withDefaults(),
		factory:     factory,
		logger:      logger.With().Str("component", "pool").Logger(),
		mu:          make(chanMutex, 1),
		all:         make(map[*Entry]struct{}),
		waiters:     list.New(),
		sweeperStop: make(chan struct{}),
		sweeperDone: make(chan struct{}),
	}
	go p.sweep()
	return p
}

// Warm dials up to MinIdle connections ahead of demand. Dial failures
/// are logged, not fatal: the pool recovers on first acquire.
func (p *Pool) Warm(ctx context.Context) {
	for i := 0; i < p.cfg.MinIdle; i++ {
		entry, err := p.dial(ctx)
		if err != nil {
			p.logger.Warn().Err(err).Msg("pool warm-up dial failed")
			return
		}
		p.mu.lock()
		entry.state = StateIdle
		entry.lastUsedAt = time.Now()
		p.idle = append(p.idle, entry)
		p.mu.unlock()
	}
}

// Acquire borrows a connection, waiting in FIFO order when the pool is
// saturated. tool tags the borrower for leak reports.
func (p *Pool) Acquire(ctx context.Context, tool string) (*Entry, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return nil, oraerr.AsError(err)
		}

		p.mu.lock()
		if p.closed {
			p.mu.unlock()
			return nil, oraerr.New(oraerr.KindDriver, oraerr.CodePoolClosed, "connection pool is closed")
		}

		// Prefer an idle connection.
		if entry := p.popIdleLocked(); entry != nil {
			p.lend(entry, tool)
			p.mu.unlock()

			if err := p.validate(ctx, entry); err != nil {
				p.logger.Debug().Err(err).Msg("idle connection failed validation, discarding")
				p.Release(entry, true)
				continue
			}
			return entry, nil
		}

		// Room to grow: dial outside the lock.
		if p.created < p.cfg.MaxSize {
			p.created++
			p.mu.unlock()

			entry, err := p.dial(ctx)
			if err != nil {
				p.mu.lock()
				p.created--
				p.wakeOneLocked(nil)
				p.mu.unlock()
				return nil, err
			}

			p.mu.lock()
			p.all[entry] = struct{}{}
			p.lend(entry, tool)
			p.mu.unlock()
			return entry, nil
		}

		// Saturated: join the FIFO wait queue.
		ch := make(chan *Entry, 1)
		el := p.waiters.PushBack(ch)
		p.mu.unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			p.abandonWaiter(el, ch)
			return nil, poolTimeout(p.cfg.AcquireTimeout)
		}

		timer := time.NewTimer(wait)
		select {
		case entry := <-ch:
			timer.Stop()
			if entry == nil {
				// A slot opened without a reusable connection; retry.
				continue
			}
			p.mu.lock()
			p.lend(entry, tool)
			p.mu.unlock()
			if err := p.validate(ctx, entry); err != nil {
				p.Release(entry, true)
				continue
			}
			return entry, nil
		case <-timer.C:
			p.abandonWaiter(el, ch)
			return nil, poolTimeout(p.cfg.AcquireTimeout)
		case <-ctx.Done():
			timer.Stop()
			p.abandonWaiter(el, ch)
			return nil, oraerr.AsError(ctx.Err())
		}
	}
}

// Release returns a borrowed connection. Broken connections (and those
// past their lifetime) are destroyed instead of re-entering the idle set.
func (p *Pool) Release(entry *Entry, broken bool) {
	p.mu.lock()

	expired := p.cfg.MaxLifetime > 0 && time.Since(entry.createdAt) >= p.cfg.MaxLifetime
	if broken || expired || p.closed {
		entry.state = StateClosing
		p.removeLocked(entry)
		p.wakeOneLocked(nil)
		p.mu.unlock()

		if err := entry.destroy(); err != nil {
			p.logger.Debug().Err(err).Msg("connection close failed")
		}
		return
	}

	entry.state = StateIdle
	entry.borrowerToken = ""
	entry.borrowerTool = ""
	entry.leakWarned = false
	entry.lastUsedAt = time.Now()

	// Hand directly to the oldest waiter, keeping FIFO order.
	if el := p.waiters.Front(); el != nil {
		p.waiters.Remove(el)
		el.Value.(chan *Entry) <- entry
		p.mu.unlock()
		return
	}

	p.idle = append(p.idle, entry)
	p.mu.unlock()
}

// WithConnection runs fn inside a scoped acquisition, guaranteeing
// release on every exit path including panics. Driver-kind failures mark
// the connection broken.
func (p *Pool) WithConnection(ctx context.Context, tool string, fn func(ctx context.Context, entry *Entry) error) error {
	entry, err := p.Acquire(ctx, tool)
	if err != nil {
		return err
	}

	broken := false
	defer func() {
		if r := recover(); r != nil {
			p.Release(entry, true)
			panic(r)
		}
		p.Release(entry, broken)
	}()

	err = fn(ctx, entry)
	if err != nil {
		broken = oraerr.IsKind(err, oraerr.KindDriver)
	}
	return err
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.lock()
	defer p.mu.unlock()
	return Stats{
		MaxSize: p.cfg.MaxSize,
		Created: p.created,
		Idle:    len(p.idle),
		InUse:   p.created - len(p.idle),
		Waiting: p.waiters.Len(),
	}
}

// Close drains the pool: idle entries are destroyed immediately, in-use
// entries are destroyed as they are released.
func (p *Pool) Close() {
	p.mu.lock()
	if p.closed {
		p.mu.unlock()
		return
	}
	p.closed = true

	idle := p.idle
	p.idle = nil
	for _, entry := range idle {
		entry.state = StateClosing
		p.removeLocked(entry)
	}
	for el := p.waiters.Front(); el != nil; el = el.Next() {
		close(el.Value.(chan *Entry))
	}
	p.waiters.Init()
	p.mu.unlock()

	close(p.sweeperStop)
	<-p.sweeperDone

	for _, entry := range idle {
		_ = entry.destroy()
	}
}

// dial creates one session with bounded backoff.
func (p *Pool) dial(ctx context.Context) (*Entry, error) {
	var session Session
	err := retry.Do(ctx, p.cfg.ConnectRetry, func() error {
		var dialErr error
		session, dialErr = p.factory(ctx)
		return dialErr
	}, func(err error) bool {
		// Credential failures will not heal on retry.
		return !oraerr.IsKind(oraerr.FromOracle(err), oraerr.KindPrivilege)
	})
	if err != nil {
		return nil, oraerr.FromOracle(err)
	}

	now := time.Now()
	return &Entry{
		session:    session,
		createdAt:  now,
		lastUsedAt: now,
		stmts:      newStmtCache(p.cfg.StatementCacheSize),
	}, nil
}

// popIdleLocked removes and returns the freshest valid idle entry,
// destroying expired ones along the way. Caller holds the lock.
func (p *Pool) popIdleLocked() *Entry {
	now := time.Now()
	for len(p.idle) > 0 {
		entry := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		tooOld := p.cfg.MaxLifetime > 0 && now.Sub(entry.createdAt) >= p.cfg.MaxLifetime
		tooIdle := p.cfg.IdleTimeout > 0 && now.Sub(entry.lastUsedAt) >= p.cfg.IdleTimeout
		if tooOld || tooIdle {
			entry.state = StateClosing
			p.removeLocked(entry)
			go func() { _ = entry.destroy() }()
			continue
		}
		return entry
	}
	return nil
}

// lend marks an entry as borrowed. Caller holds the lock.
func (p *Pool) lend(entry *Entry, tool string) {
	entry.state = StateInUse
	entry.borrowerToken = uuid.NewString()
	entry.borrowerTool = tool
	entry.borrowedAt = time.Now()
	entry.leakWarned = false
}

// removeLocked forgets an entry. Caller holds the lock.
func (p *Pool) removeLocked(entry *Entry) {
	if _, ok := p.all[entry]; ok {
		delete(p.all, entry)
		p.created--
	}
}

// wakeOneLocked pops the oldest waiter and hands it entry (nil means
// "retry, a slot opened"). Caller holds the lock.
func (p *Pool) wakeOneLocked(entry *Entry) {
	if el := p.waiters.Front(); el != nil {
		p.waiters.Remove(el)
		el.Value.(chan *Entry) <- entry
	}
}

// abandonWaiter removes a wait-queue registration, consuming a handoff
// that raced with the timeout so the entry is not stranded.
func (p *Pool) abandonWaiter(el *list.Element, ch chan *Entry) {
	p.mu.lock()
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		if e == el {
			p.waiters.Remove(e)
			p.mu.unlock()
			return
		}
	}
	p.mu.unlock()

	// Already dequeued by a releaser: take the handoff and put it back.
	select {
	case entry := <-ch:
		if entry != nil {
			p.Release(entry, false)
		}
	default:
	}
}

// validate probes a connection before hand-out.
func (p *Pool) validate(ctx context.Context, entry *Entry) error {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rows, err := entry.session.QueryContext(probeCtx, p.cfg.ValidationQuery)
	if err != nil {
		return err
	}
	if rows != nil {
		return rows.Close()
	}
	return nil
}

// sweep periodically reports leaked borrowers and trims excess idle
// entries down to MinIdle.
func (p *Pool) sweep() {
	defer close(p.sweeperDone)

	interval := p.cfg.LeakThreshold / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.sweeperStop:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

func (p *Pool) sweepOnce() {
	now := time.Now()
	var expired []*Entry

	p.mu.lock()
	if p.cfg.LeakThreshold > 0 {
		for entry := range p.all {
			if entry.state != StateInUse || entry.leakWarned {
				continue
			}
			held := now.Sub(entry.borrowedAt)
			if held >= p.cfg.LeakThreshold {
				entry.leakWarned = true
				// Leaks are reported, never reclaimed: the borrower may
				// legitimately be inside a long statement.
				p.logger.Warn().
					Str("borrower_token", entry.borrowerToken).
					Str("tool", entry.borrowerTool).
					Dur("held", held).
					Msg("connection held past leak threshold")
			}
		}
	}

	// Trim idle entries past IdleTimeout, keeping MinIdle around.
	if p.cfg.IdleTimeout > 0 {
		kept := p.idle[:0]
		for _, entry := range p.idle {
			if len(kept)+1 > p.cfg.MinIdle && now.Sub(entry.lastUsedAt) >= p.cfg.IdleTimeout {
				entry.state = StateClosing
				p.removeLocked(entry)
				expired = append(expired, entry)
				continue
			}
			kept = append(kept, entry)
		}
		p.idle = kept
	}
	p.mu.unlock()

	for _, entry := range expired {
		_ = entry.destroy()
	}
}

func poolTimeout(timeout time.Duration) *oraerr.Error {
	return oraerr.Newf(oraerr.KindTimeout, oraerr.CodePoolTimeout,
		"no connection available within %s", timeout)
}
