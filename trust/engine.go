// Package trust implements the heuristic trust-scoring engine for
// package references, backed by registry metadata, GitHub repository
// signals, a TTL cache and a user ignore list.
package trust

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/providers/github"
	"github.com/depsentry/depsentry/providers/registry"
	"github.com/depsentry/depsentry/results"
)

// GithubStatsClient fetches repository signals for a linked repo URL.
type GithubStatsClient interface {
	Stats(ctx context.Context, repoURL string) (github.Stats, error)
}

// ScoringContext owns every mutable store the engine consults. Passing
// it explicitly keeps the engine free of global state and lets tests
// run against fixture contexts.
type ScoringContext struct {
	Cache   *Cache
	Ignores *IgnoreRegistry
	Top     *TopPackages
	Clients map[models.Ecosystem]registry.Client
	Github  GithubStatsClient
}

type Engine struct {
	sc          *ScoringContext
	concurrency int64
	now         func() time.Time
}

func NewEngine(sc *ScoringContext, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		sc:          sc,
		concurrency: int64(concurrency),
		now:         time.Now,
	}
}

// Level thresholds per ecosystem. npm's long tail of micro-packages
// skews download and maintenance signals lower, so its cutoffs sit
// slightly below PyPI's.
type thresholds struct {
	high   int
	medium int
}

var ecosystemThresholds = map[models.Ecosystem]thresholds{
	models.EcosystemPython:     {high: 80, medium: 50},
	models.EcosystemJavaScript: {high: 75, medium: 45},
}

// LevelFor maps a score to its trust level. A nil score means ignored.
func LevelFor(ecosystem models.Ecosystem, score *int) results.TrustLevel {
	if score == nil {
		return results.LevelIgnored
	}
	t, ok := ecosystemThresholds[ecosystem]
	if !ok {
		t = thresholds{high: 80, medium: 50}
	}
	switch {
	case *score >= t.high:
		return results.LevelHigh
	case *score >= t.medium:
		return results.LevelMedium
	}
	return results.LevelLow
}

// ScoreAll scores every reference concurrently, bounded by the engine's
// concurrency limit. Results are returned in input order regardless of
// fetch completion order.
func (e *Engine) ScoreAll(ctx context.Context, refs []models.PackageReference) ([]results.TrustScore, error) {
	scores := make([]results.TrustScore, len(refs))
	sem := semaphore.NewWeighted(e.concurrency)
	var wg sync.WaitGroup

	for i, ref := range refs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire semaphore: %w", err)
		}
		wg.Add(1)
		go func(i int, ref models.PackageReference) {
			defer sem.Release(1)
			defer wg.Done()
			scores[i] = e.Score(ctx, ref)
		}(i, ref)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

// Score computes the trust score for one package reference.
func (e *Engine) Score(ctx context.Context, ref models.PackageReference) results.TrustScore {
	name := ref.Name
	ecosystem := ref.Ecosystem

	// Ignore-list override comes before everything else.
	if note, ok := e.sc.Ignores.IsIgnored(name); ok {
		score := results.TrustScore{
			PackageName:  name,
			Purl:         ref.Purl(),
			Ecosystem:    ecosystem,
			Level:        results.LevelIgnored,
			ScoreReasons: []string{ignoreReason(note)},
		}
		e.persist(ctx, ecosystem, name, score)
		return score
	}

	// A freshly unignored package must be rescored, not served stale.
	if e.sc.Ignores.ConsumeUnignored(name) {
		e.sc.Cache.Remove(ecosystem, name)
	} else if cached, ok := e.sc.Cache.Get(ecosystem, name); ok {
		return cached
	}

	if e.sc.Top.IsStdlib(ecosystem, name) {
		score := e.finalize(ctx, ref, 100, results.Evidence{Exists: true, ReleaseAgeDays: -1}, []string{
			fmt.Sprintf("%s is a built-in module of the %s runtime", name, ecosystem),
		}, nil)
		return score
	}

	score := e.compute(ctx, ref)
	e.persist(ctx, ecosystem, name, score)
	return score
}

func (e *Engine) compute(ctx context.Context, ref models.PackageReference) results.TrustScore {
	name := ref.Name
	ecosystem := ref.Ecosystem
	now := e.now()

	var reasons []string
	var risks []results.RiskFactor

	meta, err := e.lookupMeta(ctx, ref)
	if err != nil {
		log.Debug().Err(err).Str("package", name).Msg("registry lookup failed, degrading to not found")
		meta = registry.Metadata{}
		reasons = append(reasons, "registry lookup failed after retries, treating package as unpublished")
	}

	downloads := meta.WeeklyDownloads
	ageDays := -1
	if !meta.LatestReleaseTime.IsZero() {
		ageDays = int(now.Sub(meta.LatestReleaseTime).Hours() / 24)
	}

	// Weighted base score.
	value := 0.0
	if meta.Exists {
		value += 40
		reasons = append(reasons, fmt.Sprintf("published on %s", ecosystem.RegistryName()))
	}
	if downloads > 0 {
		value += math.Min(20, math.Log10(float64(downloads))*5)
		reasons = append(reasons, fmt.Sprintf("%d downloads in the last week", downloads))
	}
	if ageDays >= 0 {
		releaseAgeScore := math.Max(0, 100-float64(ageDays))
		value += releaseAgeScore / 100 * 15
		if releaseAgeScore > 0 {
			reasons = append(reasons, fmt.Sprintf("latest release is %d days old", ageDays))
		}
	}
	if meta.MaintainerCount >= 2 {
		value += 5
		reasons = append(reasons, fmt.Sprintf("%d maintainers", meta.MaintainerCount))
	}
	if meta.HighVulnerabilityCount > 0 {
		value -= float64(10 * meta.HighVulnerabilityCount)
		risks = append(risks, results.RiskFactor{
			Text:     fmt.Sprintf("%d known high-severity vulnerabilities", meta.HighVulnerabilityCount),
			Severity: results.SeverityHigh,
		})
	}

	// Top-package allowlist boost.
	isTop := e.sc.Top.IsTop(ecosystem, name)
	if isTop {
		if value < 85 {
			value = 85
		}
		reasons = append(reasons, fmt.Sprintf("top %s package by download volume", ecosystem.RegistryName()))
	} else if confused, ok := e.sc.Top.NearMiss(ecosystem, name); ok {
		value -= 60
		risks = append(risks, results.RiskFactor{
			Text:     fmt.Sprintf("name is one edit away from popular package %q, possible typosquatting", confused),
			Severity: results.SeverityHigh,
		})
	}

	// GitHub repository signals, fetched once per scoring pass.
	var stats *github.Stats
	if meta.GithubRepoURL != "" && e.sc.Github != nil {
		s, err := e.sc.Github.Stats(ctx, meta.GithubRepoURL)
		switch {
		case errors.Is(err, github.ErrRateLimited):
			reasons = append(reasons, "GitHub rate limit reached, repository signals unavailable for this pass")
		case err != nil:
			log.Debug().Err(err).Str("package", name).Str("repo", meta.GithubRepoURL).Msg("github stats lookup failed")
		default:
			stats = &s
			value += e.githubAdjustment(s, now, &reasons)
		}
	}

	// Risk-factor classification feeding the boosted score.
	highCount, mediumCount := 0, 0
	if stats != nil && !stats.LastCommit.IsZero() && now.Sub(stats.LastCommit) >= 2*365*24*time.Hour {
		risks = append(risks, results.RiskFactor{Text: "no GitHub commit in over two years", Severity: results.SeverityHigh})
		highCount++
	}
	if downloads == 0 {
		risks = append(risks, results.RiskFactor{Text: "no download data available", Severity: results.SeverityHigh})
		highCount++
	}
	if ageDays >= 0 && ageDays < 7 {
		risks = append(risks, results.RiskFactor{Text: "latest release is less than 7 days old", Severity: results.SeverityMedium})
		mediumCount++
	}
	if meta.MaintainerCount == 1 {
		risks = append(risks, results.RiskFactor{Text: "single maintainer", Severity: results.SeverityMedium})
		mediumCount++
	}
	if downloads > 0 && downloads < 10_000 {
		risks = append(risks, results.RiskFactor{Text: "fewer than 10,000 weekly downloads", Severity: results.SeverityMedium})
		mediumCount++
	}

	if isTop {
		value += 30
	}
	switch {
	case downloads > 100_000_000:
		value += 20
	case downloads > 10_000_000:
		value += 10
	}
	value -= float64(20*highCount + 5*mediumCount)

	// Perfect-package clamp.
	recentCommit := stats != nil && !stats.LastCommit.IsZero() && now.Sub(stats.LastCommit) <= 365*24*time.Hour
	if isTop && downloads > 1_000_000 && ageDays >= 0 && ageDays <= 365 &&
		recentCommit && meta.MaintainerCount >= 2 && len(risks) == 0 {
		value = 100
	}

	final := clampScore(value)

	// Hallucination override runs last: a package that does not exist,
	// or has no known release, can never score above zero.
	if !meta.Exists || meta.LatestReleaseTime.IsZero() {
		final = 0
		risks = append(risks, results.RiskFactor{
			Text: fmt.Sprintf("package was not found on %s or has no published release, it may not exist; verify manually before installing",
				ecosystem.RegistryName()),
			Severity: results.SeverityHigh,
		})
	}

	evidence := results.Evidence{
		Exists:                 meta.Exists,
		Downloads:              downloads,
		ReleaseAgeDays:         ageDays,
		HasMultipleMaintainers: meta.MaintainerCount >= 2,
		VulnerabilityCount:     meta.HighVulnerabilityCount,
	}

	return scoreResult(ref, final, evidence, reasons, risks)
}

// githubAdjustment applies the star, fork and commit-recency deltas.
// This is the single canonical GitHub adjustment step.
func (e *Engine) githubAdjustment(stats github.Stats, now time.Time, reasons *[]string) float64 {
	delta := 0.0
	switch {
	case stats.Stars > 1000:
		delta += 10
		*reasons = append(*reasons, fmt.Sprintf("GitHub repository has %d stars", stats.Stars))
	case stats.Stars >= 100:
		delta += 5
		*reasons = append(*reasons, fmt.Sprintf("GitHub repository has %d stars", stats.Stars))
	case stats.Stars < 10:
		delta -= 10
	}
	if stats.Forks > 100 {
		delta += 5
		*reasons = append(*reasons, fmt.Sprintf("GitHub repository has %d forks", stats.Forks))
	}
	if !stats.LastCommit.IsZero() && now.Sub(stats.LastCommit) < 6*30*24*time.Hour {
		delta += 5
		*reasons = append(*reasons, "GitHub repository had a commit in the last 6 months")
	}
	return delta
}

func (e *Engine) lookupMeta(ctx context.Context, ref models.PackageReference) (registry.Metadata, error) {
	client, ok := e.sc.Clients[ref.Ecosystem]
	if !ok {
		return registry.Metadata{}, fmt.Errorf("no registry client for ecosystem %q", ref.Ecosystem)
	}
	return client.Meta(ctx, ref.Name)
}

func (e *Engine) finalize(ctx context.Context, ref models.PackageReference, value int, evidence results.Evidence, reasons []string, risks []results.RiskFactor) results.TrustScore {
	score := scoreResult(ref, value, evidence, reasons, risks)
	e.persist(ctx, ref.Ecosystem, ref.Name, score)
	return score
}

func scoreResult(ref models.PackageReference, value int, evidence results.Evidence, reasons []string, risks []results.RiskFactor) results.TrustScore {
	v := value
	return results.TrustScore{
		PackageName:  ref.Name,
		Purl:         ref.Purl(),
		Ecosystem:    ref.Ecosystem,
		Score:        &v,
		Level:        LevelFor(ref.Ecosystem, &v),
		Evidence:     evidence,
		ScoreReasons: reasons,
		RiskFactors:  risks,
	}
}

// persist caches a computed score unless the pass was canceled, so a
// partially analyzed command leaves no trace.
func (e *Engine) persist(ctx context.Context, ecosystem models.Ecosystem, name string, score results.TrustScore) {
	if ctx.Err() != nil {
		return
	}
	e.sc.Cache.Put(ecosystem, name, score)
}

func clampScore(value float64) int {
	rounded := int(math.Round(value))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

func ignoreReason(note string) string {
	if note != "" {
		return fmt.Sprintf("package is on the ignore list (%s)", note)
	}
	return "package is on the ignore list"
}
