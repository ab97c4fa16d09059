package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	result *ProbeResult
	err    error
	calls  int
}

func (f *fakeProber) Probe(ctx context.Context) (*ProbeResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func probe19cEE() *ProbeResult {
	return &ProbeResult{
		Banners: []string{
			"Oracle Database 19c Enterprise Edition Release 19.3.0.0.0 - Production",
		},
		Options: map[string]string{
			"Partitioning":                "TRUE",
			"Transparent Data Encryption": "TRUE",
			"Oracle Database Vault":       "FALSE",
			"Parallel execution":          "TRUE",
		},
		CDB: "YES",
	}
}

func newTestDetector(p Prober, ttl time.Duration) *Detector {
	return NewDetector(p, ttl, zerolog.Nop())
}

func TestDetect19cEnterprise(t *testing.T) {
	d := newTestDetector(&fakeProber{result: probe19cEE()}, time.Hour)

	set, err := d.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "19.3", set.Version)
	assert.Equal(t, EditionEE, set.Edition)
	assert.True(t, set.IsCDB)
	assert.True(t, set.Supports(TagPDB))
	assert.True(t, set.Supports(TagAWR))
	assert.True(t, set.Supports(TagPartitioning))
	assert.True(t, set.Supports(TagTDE))
	assert.True(t, set.Supports(TagJSON))
	assert.False(t, set.Supports(TagVault))
	assert.False(t, set.Supports(TagVector), "vector needs 23c+")
}

func TestDetect11gNoPDB(t *testing.T) {
	p := &fakeProber{result: &ProbeResult{
		Banners: []string{"Oracle Database 11g Express Edition Release 11.2.0.2.0 - 64bit Production"},
		Options: map[string]string{},
		CDB:     "",
	}}
	d := newTestDetector(p, time.Hour)

	set, err := d.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "11.2", set.Version)
	assert.Equal(t, EditionXE, set.Edition)
	assert.False(t, set.IsCDB)
	assert.False(t, set.Supports(TagPDB))
	assert.False(t, set.Supports(TagAWR))
	assert.False(t, set.Supports(TagJSON))
}

func TestDetect23cVector(t *testing.T) {
	p := &fakeProber{result: &ProbeResult{
		Banners: []string{"Oracle Database 23c Free Release 23.4.0.24.05 - Develop, Learn, and Run for Free"},
		Options: map[string]string{},
		CDB:     "YES",
	}}
	d := newTestDetector(p, time.Hour)

	set, err := d.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23, set.MajorVersion())
	assert.True(t, set.Supports(TagVector))
}

func TestSnapshotCachedWithinTTL(t *testing.T) {
	p := &fakeProber{result: probe19cEE()}
	d := newTestDetector(p, time.Hour)

	ctx := context.Background()
	_, err := d.Info(ctx)
	require.NoError(t, err)
	_, err = d.Info(ctx)
	require.NoError(t, err)
	assert.True(t, d.Supports(ctx, TagAWR))

	assert.Equal(t, 1, p.calls, "snapshot must be cached within TTL")
}

func TestDegradedSetOnProbeFailure(t *testing.T) {
	p := &fakeProber{err: errors.New("ORA-12541: TNS:no listener")}
	d := newTestDetector(p, time.Hour)

	ctx := context.Background()
	set, err := d.Info(ctx)
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Contains(t, set.ProbeError, "ORA-12541")
	for tag := range KnownTags {
		assert.False(t, set.Supports(tag), "degraded set must report %s false", tag)
	}

	// Failed probes are rate limited: an immediate second read must not
	// probe again.
	_, _ = d.Info(ctx)
	assert.Equal(t, 1, p.calls)
}

func TestInvalidateForcesReprobe(t *testing.T) {
	p := &fakeProber{result: probe19cEE()}
	d := newTestDetector(p, time.Hour)

	ctx := context.Background()
	_, err := d.Info(ctx)
	require.NoError(t, err)

	d.Invalidate()
	_, err = d.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestUnknownTagAlwaysFalse(t *testing.T) {
	d := newTestDetector(&fakeProber{result: probe19cEE()}, time.Hour)
	assert.False(t, d.Supports(context.Background(), Tag("flux_capacitor")))
}

func TestInfoReturnsClone(t *testing.T) {
	d := newTestDetector(&fakeProber{result: probe19cEE()}, time.Hour)

	ctx := context.Background()
	a, err := d.Info(ctx)
	require.NoError(t, err)
	a.Flags[TagVector] = true

	b, err := d.Info(ctx)
	require.NoError(t, err)
	assert.False(t, b.Supports(TagVector), "mutating a snapshot must not affect the cache")
}
