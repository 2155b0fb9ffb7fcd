package cookiepool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPool builds a pool with a controllable clock.
func newTestPool(t *testing.T, ids []string, opts Options) (*Pool, *time.Time) {
	t.Helper()
	p := New(ids, opts)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }
	return p, &clock
}

func TestSelect_PrefersHigherHealthScore(t *testing.T) {
	p, _ := newTestPool(t, []string{"a.txt", "b.txt"}, Options{})

	// a: 9/10 successes, b: 1/2 successes.
	for i := 0; i < 9; i++ {
		p.RecordSuccess("a.txt")
	}
	p.RecordFailure("a.txt")
	p.RecordSuccess("b.txt")
	p.RecordFailure("b.txt")

	id, path, err := p.Select()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", id)
	assert.Equal(t, "a.txt", path)
}

func TestSelect_LeastRecentlyUsedBreaksTies(t *testing.T) {
	p, clock := newTestPool(t, []string{"a.txt", "b.txt"}, Options{})

	// Both cookies are untouched, so health scores tie at zero. Using one
	// pushes its lastUsedAt forward and the other must be chosen next.
	first, _, err := p.Select()
	require.NoError(t, err)

	*clock = clock.Add(time.Minute)
	second, _, err := p.Select()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSelect_EmptyPoolIsExhausted(t *testing.T) {
	p, _ := newTestPool(t, nil, Options{})

	_, _, err := p.Select()
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestRecordFailure_QuarantinesAfterConsecutiveFailures(t *testing.T) {
	p, _ := newTestPool(t, []string{"a.txt"}, Options{MaxConsecutiveFailures: 3})

	p.RecordFailure("a.txt")
	p.RecordFailure("a.txt")
	_, _, err := p.Select()
	require.NoError(t, err, "two failures must not quarantine yet")

	p.RecordFailure("a.txt")
	_, _, err = p.Select()
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestRecordFailure_SuccessResetsConsecutiveCount(t *testing.T) {
	p, _ := newTestPool(t, []string{"a.txt"}, Options{MaxConsecutiveFailures: 3, MinSamples: 100})

	p.RecordFailure("a.txt")
	p.RecordFailure("a.txt")
	p.RecordSuccess("a.txt")
	p.RecordFailure("a.txt")
	p.RecordFailure("a.txt")

	_, _, err := p.Select()
	assert.NoError(t, err, "streak was broken, cookie must stay available")
}

func TestRecordFailure_QuarantinesOnLowSuccessRate(t *testing.T) {
	p, _ := newTestPool(t, []string{"a.txt"}, Options{
		MaxConsecutiveFailures: 100,
		MinSuccessRate:         0.30,
		MinSamples:             5,
	})

	// 1 success then 4 failures: rate 0.2 over 5 samples.
	p.RecordSuccess("a.txt")
	p.RecordFailure("a.txt")
	p.RecordFailure("a.txt")
	p.RecordFailure("a.txt")
	p.RecordFailure("a.txt")

	_, _, err := p.Select()
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestRecordFailure_LowRateNeedsMinSamples(t *testing.T) {
	p, _ := newTestPool(t, []string{"a.txt"}, Options{
		MaxConsecutiveFailures: 100,
		MinSuccessRate:         0.30,
		MinSamples:             5,
	})

	// Only 2 samples: rate is 0 but below the sample floor.
	p.RecordFailure("a.txt")
	p.RecordFailure("a.txt")

	_, _, err := p.Select()
	assert.NoError(t, err)
}

func TestSelect_PromotesExpiredQuarantine(t *testing.T) {
	p, clock := newTestPool(t, []string{"a.txt"}, Options{
		Cooldown:               30 * time.Minute,
		MaxConsecutiveFailures: 1,
	})

	p.RecordFailure("a.txt")
	_, _, err := p.Select()
	require.ErrorIs(t, err, ErrPoolExhausted)

	// Still inside the cooldown window.
	*clock = clock.Add(29 * time.Minute)
	_, _, err = p.Select()
	require.ErrorIs(t, err, ErrPoolExhausted)

	// Cooldown passed: the cookie is promoted lazily on the next pick.
	*clock = clock.Add(2 * time.Minute)
	id, _, err := p.Select()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", id)
}

func TestSelect_PromotionClearsConsecutiveFailures(t *testing.T) {
	p, clock := newTestPool(t, []string{"a.txt"}, Options{
		Cooldown:               time.Minute,
		MaxConsecutiveFailures: 2,
	})

	p.RecordFailure("a.txt")
	p.RecordFailure("a.txt")
	*clock = clock.Add(2 * time.Minute)

	_, _, err := p.Select()
	require.NoError(t, err)

	// One more failure must not immediately re-quarantine.
	p.RecordFailure("a.txt")
	_, _, err = p.Select()
	assert.NoError(t, err)
}

func TestSelect_SkipsQuarantinedPicksNextBest(t *testing.T) {
	p, _ := newTestPool(t, []string{"a.txt", "b.txt"}, Options{MaxConsecutiveFailures: 1})

	// a would win on health, but it is quarantined.
	p.RecordSuccess("a.txt")
	p.RecordSuccess("a.txt")
	p.RecordFailure("a.txt")

	id, _, err := p.Select()
	require.NoError(t, err)
	assert.Equal(t, "b.txt", id)
}

func TestStats_Snapshot(t *testing.T) {
	p, _ := newTestPool(t, []string{"a.txt", "b.txt", "c.txt"}, Options{MaxConsecutiveFailures: 1})

	p.RecordSuccess("a.txt")
	p.RecordSuccess("a.txt")
	p.RecordFailure("b.txt")

	st := p.Stats()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Available)
	assert.Equal(t, 1, st.Quarantined)
	assert.InDelta(t, 2.0/3.0, st.SuccessRate, 0.001)

	require.Len(t, st.Cookies, 3)
	assert.Equal(t, "a.txt", st.Cookies[0].ID)
	assert.Equal(t, StateAvailable, st.Cookies[0].State)
	assert.Equal(t, StateQuarantined, st.Cookies[1].State)
	assert.NotNil(t, st.Cookies[1].QuarantinedUntil)
}

func TestStats_ExpiredQuarantineCountsAvailable(t *testing.T) {
	p, clock := newTestPool(t, []string{"a.txt"}, Options{
		Cooldown:               time.Minute,
		MaxConsecutiveFailures: 1,
	})

	p.RecordFailure("a.txt")
	*clock = clock.Add(2 * time.Minute)

	st := p.Stats()
	assert.Equal(t, 1, st.Available)
	assert.Equal(t, 0, st.Quarantined)
	assert.Equal(t, StateAvailable, st.Cookies[0].State)
}

func TestLoad_ScansCookieDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.txt", "two.txt", "notes.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("# cookies"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	p, err := Load(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Size())

	_, path, err := p.Select()
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"), Options{})
	assert.Error(t, err)
}

func TestRecord_UnknownCookieIsIgnored(t *testing.T) {
	p, _ := newTestPool(t, []string{"a.txt"}, Options{})

	p.RecordSuccess("ghost.txt")
	p.RecordFailure("ghost.txt")

	st := p.Stats()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 0.0, st.SuccessRate)
}
