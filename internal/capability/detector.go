package capability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// probeRetryFloor bounds how often a failed probe is retried.
const probeRetryFloor = 30 * time.Second

// Prober runs the fixed probe queries against a borrowed connection.
// The production implementation lives in the tools wiring where the pool
// is available; tests substitute a fake.
type Prober interface {
	// Probe returns the raw probe rows: version banners, option rows,
	// and the CDB flag.
	Probe(ctx context.Context) (*ProbeResult, error)
}

// ProbeResult carries the raw rows the probe queries returned.
type ProbeResult struct {
	// Banners are the rows of SELECT banner FROM v$version.
	Banners []string
	// Options maps PARAMETER to VALUE from v$option
	// (values are TRUE/FALSE strings).
	Options map[string]string
	// CDB is the YES/NO value of SELECT cdb FROM v$database.
	CDB string
}

// Detector caches the capability snapshot under a read-write lock with a
// TTL. Reads are lock-then-pointer-copy; refreshes are serialized.
type Detector struct {
	prober Prober
	ttl    time.Duration
	logger zerolog.Logger

	mu          sync.RWMutex
	current     *Set
	lastAttempt time.Time
}

// NewDetector creates a detector. ttl bounds snapshot freshness; zero
// means snapshots never expire until Invalidate is called.
func NewDetector(prober Prober, ttl time.Duration, logger zerolog.Logger) *Detector {
	return &Detector{
		prober: prober,
		ttl:    ttl,
		logger: logger.With().Str("component", "capability").Logger(),
	}
}

// Supports reports whether the current snapshot carries the tag,
// probing first if no fresh snapshot exists. It never blocks beyond the
// probe itself; repeated probe failures are rate limited.
func (d *Detector) Supports(ctx context.Context, tag Tag) bool {
	set, err := d.snapshot(ctx)
	if err != nil {
		return false
	}
	return set.Supports(tag)
}

// Info returns a clone of the current capability snapshot, refreshing it
// when stale.
func (d *Detector) Info(ctx context.Context) (*Set, error) {
	set, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return set.Clone(), nil
}

// Invalidate drops the cached snapshot, forcing a re-probe on next use.
// Called when the pool replaces its connection cohort.
func (d *Detector) Invalidate() {
	d.mu.Lock()
	d.current = nil
	d.lastAttempt = time.Time{}
	d.mu.Unlock()
}

// snapshot returns the cached set when fresh, otherwise refreshes.
func (d *Detector) snapshot(ctx context.Context) (*Set, error) {
	d.mu.RLock()
	set := d.current
	d.mu.RUnlock()

	if set != nil && d.fresh(set) {
		return set, nil
	}
	return d.refresh(ctx)
}

func (d *Detector) fresh(set *Set) bool {
	if d.ttl <= 0 {
		return true
	}
	// Degraded sets expire on the retry floor, not the full TTL, so a
	// recovered database is noticed quickly.
	if set.Degraded {
		return time.Since(set.DetectedAt) < probeRetryFloor
	}
	return time.Since(set.DetectedAt) < d.ttl
}

// refresh runs the probe and swaps the snapshot pointer. Concurrent
// refreshes are serialized; the loser reuses the winner's result.
func (d *Detector) refresh(ctx context.Context) (*Set, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil && d.fresh(d.current) {
		return d.current, nil
	}

	// Rate limit probe attempts after failures.
	if d.current != nil && d.current.Degraded && time.Since(d.lastAttempt) < probeRetryFloor {
		return d.current, nil
	}
	d.lastAttempt = time.Now()

	result, err := d.prober.Probe(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("capability probe failed, caching degraded set")
		d.current = degradedSet(err)
		return d.current, nil
	}

	d.current = buildSet(result)
	d.logger.Info().
		Str("version", d.current.Version).
		Str("edition", string(d.current.Edition)).
		Bool("cdb", d.current.IsCDB).
		Msg("capabilities detected")
	return d.current, nil
}

// buildSet materializes a capability set from raw probe rows.
func buildSet(r *ProbeResult) *Set {
	set := &Set{
		Flags:      make(map[Tag]bool, len(KnownTags)),
		DetectedAt: time.Now(),
	}

	for _, banner := range r.Banners {
		if set.Version == "" {
			set.Version = versionFromBanner(banner)
		}
		if set.Edition == "" {
			set.Edition = editionFromBanner(banner)
		}
	}

	option := func(name string) bool {
		return strings.EqualFold(r.Options[name], "TRUE")
	}

	major := set.MajorVersion()
	set.IsCDB = strings.EqualFold(r.CDB, "YES")

	set.Flags[TagPDB] = major >= 12 && set.IsCDB
	set.Flags[TagAWR] = set.Edition == EditionEE
	set.Flags[TagPartitioning] = option("Partitioning")
	set.Flags[TagVector] = major >= 23
	set.Flags[TagJSON] = major >= 12
	set.Flags[TagTDE] = option("Transparent Data Encryption")
	set.Flags[TagVault] = option("Oracle Database Vault")
	set.Flags[TagParallel] = option("Parallel execution")

	return set
}
