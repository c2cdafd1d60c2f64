package trust

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/providers/github"
	"github.com/depsentry/depsentry/providers/registry"
	"github.com/depsentry/depsentry/results"
)

type fakeRegistry struct {
	mu    sync.Mutex
	calls map[string]int
	meta  map[string]registry.Metadata
	delay map[string]time.Duration
	err   error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		calls: make(map[string]int),
		meta:  make(map[string]registry.Metadata),
		delay: make(map[string]time.Duration),
	}
}

func (f *fakeRegistry) Exists(ctx context.Context, name string) (bool, error) {
	meta, err := f.Meta(ctx, name)
	return meta.Exists, err
}

func (f *fakeRegistry) Meta(ctx context.Context, name string) (registry.Metadata, error) {
	f.mu.Lock()
	f.calls[name]++
	delay := f.delay[name]
	meta := f.meta[name]
	err := f.err
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return registry.Metadata{}, ctx.Err()
		}
	}
	return meta, err
}

func (f *fakeRegistry) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

type fakeGithub struct {
	stats github.Stats
	err   error
	calls int
}

func (f *fakeGithub) Stats(ctx context.Context, repoURL string) (github.Stats, error) {
	f.calls++
	return f.stats, f.err
}

func newTestEngine(t *testing.T, reg registry.Client, gh GithubStatsClient) (*Engine, *ScoringContext) {
	t.Helper()
	dir := t.TempDir()
	sc := &ScoringContext{
		Cache:   NewCache(filepath.Join(dir, "trust_cache.json"), time.Hour),
		Ignores: NewIgnoreRegistry(filepath.Join(dir, "ignore.txt")),
		Top:     NewTopPackages(),
		Clients: map[models.Ecosystem]registry.Client{
			models.EcosystemPython:     reg,
			models.EcosystemJavaScript: reg,
		},
		Github: gh,
	}
	return NewEngine(sc, 4), sc
}

func pyRef(name string) models.PackageReference {
	return models.PackageReference{Name: name, Ecosystem: models.EcosystemPython}
}

func TestScoreHallucinatedPackageIsAlwaysZero(t *testing.T) {
	reg := newFakeRegistry()
	reg.meta["reqeusts-helper"] = registry.Metadata{Exists: false}
	engine, _ := newTestEngine(t, reg, nil)

	score := engine.Score(context.Background(), pyRef("reqeusts-helper"))

	require.NotNil(t, score.Score)
	assert.Equal(t, 0, *score.Score)
	assert.Equal(t, results.LevelLow, score.Level)
	require.NotEmpty(t, score.RiskFactors)
	last := score.RiskFactors[len(score.RiskFactors)-1]
	assert.Contains(t, last.Text, "may not exist")
	assert.Equal(t, results.SeverityHigh, last.Severity)

	// An unknown release date is reported as -1, never as zero days old.
	assert.Equal(t, -1, score.Evidence.ReleaseAgeDays)
}

func TestScorePublishedButNoReleaseIsZero(t *testing.T) {
	reg := newFakeRegistry()
	// Exists on the registry but no release ever published.
	reg.meta["ghost-package"] = registry.Metadata{Exists: true, WeeklyDownloads: 5000}
	engine, _ := newTestEngine(t, reg, nil)

	score := engine.Score(context.Background(), pyRef("ghost-package"))

	require.NotNil(t, score.Score)
	assert.Equal(t, 0, *score.Score)
	assert.Equal(t, results.LevelLow, score.Level)
}

func TestScorePerfectPackage(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	reg.meta["requests"] = registry.Metadata{
		Exists:            true,
		WeeklyDownloads:   50_000_000,
		LatestReleaseTime: now.AddDate(0, -1, 0),
		MaintainerCount:   3,
		GithubRepoURL:     "https://github.com/psf/requests",
	}
	gh := &fakeGithub{stats: github.Stats{
		Stars:      52_000,
		Forks:      9_300,
		LastCommit: now.AddDate(0, 0, -10),
	}}
	engine, _ := newTestEngine(t, reg, gh)
	engine.now = func() time.Time { return now }

	score := engine.Score(context.Background(), pyRef("requests"))

	require.NotNil(t, score.Score)
	assert.Equal(t, 100, *score.Score)
	assert.Equal(t, results.LevelHigh, score.Level)
	assert.Empty(t, score.RiskFactors)
	assert.Equal(t, 1, gh.calls)
	assert.Equal(t, 31, score.Evidence.ReleaseAgeDays)
}

func TestScoreTyposquatNearMiss(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	reg.meta["reqeusts"] = registry.Metadata{
		Exists:            true,
		WeeklyDownloads:   500,
		LatestReleaseTime: now.AddDate(0, 0, -3),
		MaintainerCount:   1,
	}
	engine, _ := newTestEngine(t, reg, nil)
	engine.now = func() time.Time { return now }

	score := engine.Score(context.Background(), pyRef("reqeusts"))

	require.NotNil(t, score.Score)
	assert.Equal(t, results.LevelLow, score.Level)

	var typo *results.RiskFactor
	for i := range score.RiskFactors {
		if score.RiskFactors[i].Severity == results.SeverityHigh {
			typo = &score.RiskFactors[i]
		}
	}
	require.NotNil(t, typo)
	assert.Contains(t, typo.Text, `"requests"`)
	assert.Contains(t, typo.Text, "typosquatting")

	// The near miss must land far below the package it imitates.
	reg.meta["requests"] = registry.Metadata{
		Exists:            true,
		WeeklyDownloads:   50_000_000,
		LatestReleaseTime: now.AddDate(0, -1, 0),
		MaintainerCount:   3,
	}
	genuine := engine.Score(context.Background(), pyRef("requests"))
	require.NotNil(t, genuine.Score)
	assert.Less(t, *score.Score, *genuine.Score)
}

func TestScoreIgnoredPackage(t *testing.T) {
	reg := newFakeRegistry()
	engine, sc := newTestEngine(t, reg, nil)
	require.NoError(t, sc.Ignores.Ignore("internal-corp-lib", "vetted by security team"))

	score := engine.Score(context.Background(), pyRef("internal-corp-lib"))

	assert.Nil(t, score.Score)
	assert.Equal(t, results.LevelIgnored, score.Level)
	require.NotEmpty(t, score.ScoreReasons)
	assert.Contains(t, score.ScoreReasons[0], "ignore list")
	assert.Contains(t, score.ScoreReasons[0], "vetted by security team")

	// No registry traffic for ignored packages, but the verdict caches.
	assert.Equal(t, 0, reg.callCount("internal-corp-lib"))
	_, ok := sc.Cache.Get(models.EcosystemPython, "internal-corp-lib")
	assert.True(t, ok)
}

func TestScoreServedFromCache(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	reg.meta["flask"] = registry.Metadata{
		Exists:            true,
		WeeklyDownloads:   30_000_000,
		LatestReleaseTime: now.AddDate(0, -2, 0),
		MaintainerCount:   2,
	}
	engine, _ := newTestEngine(t, reg, nil)
	engine.now = func() time.Time { return now }

	first := engine.Score(context.Background(), pyRef("flask"))
	second := engine.Score(context.Background(), pyRef("flask"))

	assert.Equal(t, 1, reg.callCount("flask"))
	require.NotNil(t, first.Score)
	require.NotNil(t, second.Score)
	assert.Equal(t, *first.Score, *second.Score)
}

func TestScoreUnignoredBypassesCache(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	reg.meta["leftpad"] = registry.Metadata{
		Exists:            true,
		WeeklyDownloads:   200,
		LatestReleaseTime: now.AddDate(-3, 0, 0),
		MaintainerCount:   1,
	}
	engine, sc := newTestEngine(t, reg, nil)
	engine.now = func() time.Time { return now }

	require.NoError(t, sc.Ignores.Ignore("leftpad", ""))
	ignored := engine.Score(context.Background(), pyRef("leftpad"))
	assert.Equal(t, results.LevelIgnored, ignored.Level)

	require.NoError(t, sc.Ignores.Unignore("leftpad"))
	rescored := engine.Score(context.Background(), pyRef("leftpad"))

	// The stale ignored verdict in the cache must not be served.
	assert.NotEqual(t, results.LevelIgnored, rescored.Level)
	require.NotNil(t, rescored.Score)
	assert.Equal(t, 1, reg.callCount("leftpad"))
}

func TestScoreHandEditedIgnoreFileBypassesCache(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	reg.meta["leftpad"] = registry.Metadata{
		Exists:            true,
		WeeklyDownloads:   200,
		LatestReleaseTime: now.AddDate(-3, 0, 0),
		MaintainerCount:   1,
	}
	engine, sc := newTestEngine(t, reg, nil)
	engine.now = func() time.Time { return now }

	require.NoError(t, sc.Ignores.Ignore("leftpad", ""))
	ignored := engine.Score(context.Background(), pyRef("leftpad"))
	assert.Equal(t, results.LevelIgnored, ignored.Level)

	// Remove the line by editing the file directly, as a user would.
	path := sc.Ignores.path
	require.NoError(t, os.WriteFile(path, []byte("# Packages exempted from trust scoring.\n"), 0o600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	rescored := engine.Score(context.Background(), pyRef("leftpad"))
	assert.NotEqual(t, results.LevelIgnored, rescored.Level)
	require.NotNil(t, rescored.Score)
	assert.Equal(t, 1, reg.callCount("leftpad"))
}

func TestScoreStdlibShortCircuit(t *testing.T) {
	reg := newFakeRegistry()
	engine, _ := newTestEngine(t, reg, nil)

	score := engine.Score(context.Background(), pyRef("os"))

	require.NotNil(t, score.Score)
	assert.Equal(t, 100, *score.Score)
	assert.Equal(t, results.LevelHigh, score.Level)
	assert.Equal(t, 0, reg.callCount("os"))
	require.NotEmpty(t, score.ScoreReasons)
	assert.Contains(t, score.ScoreReasons[0], "built-in module")
}

func TestScoreGithubRateLimited(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	reg.meta["httpx"] = registry.Metadata{
		Exists:            true,
		WeeklyDownloads:   8_000_000,
		LatestReleaseTime: now.AddDate(0, -1, 0),
		MaintainerCount:   2,
		GithubRepoURL:     "https://github.com/encode/httpx",
	}
	gh := &fakeGithub{err: github.ErrRateLimited}
	engine, _ := newTestEngine(t, reg, gh)
	engine.now = func() time.Time { return now }

	score := engine.Score(context.Background(), pyRef("httpx"))

	require.NotNil(t, score.Score)
	assert.Greater(t, *score.Score, 0)
	assert.Contains(t, score.ScoreReasons, "GitHub rate limit reached, repository signals unavailable for this pass")
}

func TestScoreRegistryFailureDegrades(t *testing.T) {
	reg := newFakeRegistry()
	reg.err = assert.AnError
	engine, _ := newTestEngine(t, reg, nil)

	score := engine.Score(context.Background(), pyRef("numpy"))

	require.NotNil(t, score.Score)
	assert.Equal(t, 0, *score.Score)
	assert.Contains(t, score.ScoreReasons, "registry lookup failed after retries, treating package as unpublished")
}

func TestScoreAllPreservesInputOrder(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	names := []string{"alpha-pkg", "beta-pkg", "gamma-pkg", "delta-pkg", "epsilon-pkg"}
	for _, name := range names {
		reg.meta[name] = registry.Metadata{
			Exists:            true,
			WeeklyDownloads:   100_000,
			LatestReleaseTime: now.AddDate(0, -1, 0),
			MaintainerCount:   2,
		}
	}
	// Slow down the earliest packages so completion order inverts.
	reg.delay["alpha-pkg"] = 50 * time.Millisecond
	reg.delay["beta-pkg"] = 30 * time.Millisecond

	engine, _ := newTestEngine(t, reg, nil)
	engine.now = func() time.Time { return now }

	refs := make([]models.PackageReference, len(names))
	for i, name := range names {
		refs[i] = pyRef(name)
	}

	scores, err := engine.ScoreAll(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, scores, len(names))
	for i, name := range names {
		assert.Equal(t, name, scores[i].PackageName)
	}
}

func TestScoreAllCanceledContext(t *testing.T) {
	reg := newFakeRegistry()
	reg.meta["requests"] = registry.Metadata{Exists: true}
	reg.delay["requests"] = 200 * time.Millisecond
	engine, sc := newTestEngine(t, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := engine.ScoreAll(ctx, []models.PackageReference{pyRef("requests")})
	require.Error(t, err)

	// A canceled pass leaves nothing behind in the cache.
	assert.Equal(t, 0, sc.Cache.Len())
}

func TestLevelForThresholds(t *testing.T) {
	cases := []struct {
		ecosystem models.Ecosystem
		score     int
		level     results.TrustLevel
	}{
		{models.EcosystemPython, 80, results.LevelHigh},
		{models.EcosystemPython, 79, results.LevelMedium},
		{models.EcosystemPython, 50, results.LevelMedium},
		{models.EcosystemPython, 49, results.LevelLow},
		{models.EcosystemJavaScript, 75, results.LevelHigh},
		{models.EcosystemJavaScript, 74, results.LevelMedium},
		{models.EcosystemJavaScript, 45, results.LevelMedium},
		{models.EcosystemJavaScript, 44, results.LevelLow},
	}
	for _, c := range cases {
		assert.Equal(t, c.level, LevelFor(c.ecosystem, &c.score), "%s score %d", c.ecosystem, c.score)
	}
	assert.Equal(t, results.LevelIgnored, LevelFor(models.EcosystemPython, nil))
}
