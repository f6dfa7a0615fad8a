// Package syncer runs the synchronization jobs: it pulls provider data,
// decides what to refresh, enriches finished matches and links records
// across providers into the persisted collections.
package syncer

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/config"
	"github.com/kmicac/matchsync/internal/fetcher"
	"github.com/kmicac/matchsync/internal/fuzzy"
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/normalize"
	"github.com/kmicac/matchsync/internal/resolve"
	"github.com/kmicac/matchsync/internal/store"
	"github.com/kmicac/matchsync/internal/upsert"
	"github.com/kmicac/matchsync/pkg/logger"
)

// Job kinds recorded in the run ledger.
const (
	JobAll        = "all"
	JobFixtures   = "fixtures"
	JobStats      = "stats"
	JobTeams      = "teams"
	JobHighlights = "highlights"
	JobPhotos     = "photos"
	JobVideos     = "videos"
)

// Kinds lists every job kind that can be triggered on its own.
var Kinds = []string{JobAll, JobFixtures, JobStats, JobTeams, JobHighlights, JobPhotos, JobVideos}

// Result counts what a run did.
type Result struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

func (r *Result) add(o Result) {
	r.Processed += o.Processed
	r.Skipped += o.Skipped
}

type Syncer struct {
	config *config.Config

	schedule   *fetcher.Fetcher
	stats      *fetcher.Fetcher
	teams      *fetcher.Fetcher
	highlights *fetcher.Fetcher

	fixturePolicy *upsert.Policy
	statsPolicy   *upsert.Policy
	matcher       *fuzzy.Matcher

	locks store.Locks
	now   func() time.Time
}

// NewSyncer creates a new syncer instance
func NewSyncer(cfg *config.Config) *Syncer {
	window := func(days int) time.Duration { return time.Duration(days) * 24 * time.Hour }

	return &Syncer{
		config:     cfg,
		schedule:   fetcher.New(fetcherConfig("schedule", cfg.Fetcher, cfg.Schedule.ProviderConfig, cfg.Fetcher.RequestDelay)),
		stats:      fetcher.New(fetcherConfig("stats", cfg.Fetcher, cfg.Stats.ProviderConfig, cfg.Stats.DetailDelay)),
		teams:      newTeamsFetcher(cfg),
		highlights: fetcher.New(fetcherConfig("highlights", cfg.Fetcher, cfg.Highlights, cfg.Fetcher.RequestDelay)),
		fixturePolicy: upsert.NewPolicy(upsert.Config{
			TerminalStatuses: cfg.Schedule.TerminalStatuses,
			PastWindow:       window(cfg.Policy.PastDays),
			FutureWindow:     window(cfg.Policy.FutureDays),
		}),
		statsPolicy: upsert.NewPolicy(upsert.Config{
			TerminalStatuses: cfg.Stats.TerminalStatuses,
			PastWindow:       window(cfg.Policy.PastDays),
			FutureWindow:     window(cfg.Policy.FutureDays),
		}),
		matcher: fuzzy.NewMatcher(normalize.New(cfg.Resolve.StopWords)),
		now:     time.Now,
	}
}

// setClock replaces the time source of the syncer and its policies.
func (s *Syncer) setClock(now func() time.Time) {
	s.now = now
	s.fixturePolicy.SetClock(now)
	s.statsPolicy.SetClock(now)
}

// newResolver builds a resolver over the given team rosters.
func (s *Syncer) newResolver(teams []models.TeamRecord) *resolve.Resolver {
	r := resolve.NewResolver(resolve.Config{
		LinkThreshold:   s.config.Resolve.LinkThreshold,
		LookupThreshold: s.config.Resolve.LookupThreshold,
		DefaultLeague:   s.config.Resolve.DefaultLeague,
		DefaultLogo:     s.config.Resolve.DefaultLogo,
		Aliases:         s.config.Resolve.Aliases,
	}, s.matcher)
	r.SetTeams(resolve.NewTeamIndex(s.matcher.Normalizer(), teams))
	return r
}

func newTeamsFetcher(cfg *config.Config) *fetcher.Fetcher {
	fc := fetcherConfig("teams", cfg.Fetcher, cfg.Teams.ProviderConfig, cfg.Teams.Delay)
	fc.Envelope = []string{"teams"}
	return fetcher.New(fc)
}

func fetcherConfig(name string, f config.FetcherConfig, p config.ProviderConfig, interval time.Duration) fetcher.Config {
	return fetcher.Config{
		Name:         name,
		UserAgent:    f.UserAgent,
		Keys:         p.APIKeys,
		KeyHeader:    p.KeyHeader,
		KeyParam:     p.KeyParam,
		MinInterval:  max(interval, f.RequestDelay),
		Timeout:      f.RequestTimeout,
		MaxRetries:   f.MaxRetries,
		MaxRotations: f.MaxRotations,
		BackoffBase:  f.BackoffBase,
		BackoffMax:   f.BackoffMax,
		Cooldown:     f.RateLimitCooloff,
	}
}

// resetFetchers starts every provider at its first credential.
func (s *Syncer) resetFetchers() {
	s.schedule.Reset()
	s.stats.Reset()
	s.teams.Reset()
	s.highlights.Reset()
}

// Run dispatches one job kind.
func (s *Syncer) Run(ctx context.Context, kind string) (Result, error) {
	switch kind {
	case JobAll:
		return s.SyncAll(ctx)
	case JobFixtures:
		return s.SyncFixtures(ctx)
	case JobStats:
		return s.SyncStats(ctx)
	case JobTeams:
		return s.SyncTeams(ctx)
	case JobHighlights:
		return s.LinkHighlights(ctx)
	case JobPhotos:
		return s.EnrichSquadPhotos(ctx)
	case JobVideos:
		return s.DedupeVideos()
	}
	return Result{}, errors.Newf("unknown job kind %q", kind)
}

// SyncAll refreshes teams, fixtures and stats, relinks highlights and
// deduplicates the video lists. Squad photos are left to their own job.
func (s *Syncer) SyncAll(ctx context.Context) (Result, error) {
	logger.Info("Starting full synchronization")

	job := s.createJob(JobAll)
	var total Result

	steps := []struct {
		name string
		run  func(context.Context) (Result, error)
	}{
		{JobTeams, s.SyncTeams},
		{JobFixtures, s.SyncFixtures},
		{JobStats, s.SyncStats},
		{JobHighlights, s.LinkHighlights},
		{JobVideos, func(context.Context) (Result, error) { return s.DedupeVideos() }},
	}

	for _, step := range steps {
		res, err := step.run(ctx)
		total.add(res)
		if err != nil {
			err = errors.Wrapf(err, "%s", step.name)
			s.failJob(job, total, err)
			return total, err
		}
	}

	s.completeJob(job, total)
	logger.Info("Full synchronization completed successfully",
		zap.Int("processed", total.Processed),
		zap.Int("skipped", total.Skipped))
	return total, nil
}

// abort reports whether err must stop the whole run rather than one source.
func abort(ctx context.Context, err error) bool {
	return fetcher.IsFatal(err) || ctx.Err() != nil
}

// loadCollection loads path, logging corrupt state loudly and carrying on
// with the empty collection Load returns.
func loadCollection[K ~int | ~string, T any](path string, key func(T) K) *store.Collection[K, T] {
	c, err := store.Load(path, key)
	if err != nil {
		logger.Error("Discarding unreadable local state, previously computed data is lost",
			zap.String("path", path),
			zap.Error(err))
	}
	return c
}

// FixturePath is where the fixtures of one competition are persisted.
func (s *Syncer) FixturePath(comp string) string {
	return filepath.Join(s.config.Storage.DataDir, s.config.Schedule.Season, comp+".json")
}

func (s *Syncer) StatsPath(code string) string {
	return filepath.Join(s.config.Storage.DataDir, "stats", code+".json")
}

func (s *Syncer) TeamsPath(code string) string {
	return filepath.Join(s.config.Storage.DataDir, "teams", code+".json")
}

func (s *Syncer) HighlightsPath() string {
	return filepath.Join(s.config.Storage.DataDir, "highlights", "highlights.json")
}

func (s *Syncer) LinkedPath() string {
	return filepath.Join(s.config.Storage.DataDir, "highlights", "linked.json")
}

func fixtureKey(f models.FixtureRecord) int { return f.GameID }

func statsKey(r models.StatsRecord) int { return r.StatsID }

func teamKey(t models.TeamRecord) int { return t.ID }

func highlightKey(h models.HighlightRecord) string { return h.Key() }

func linkedKey(h models.LinkedHighlight) string { return h.Key() }

func joinURL(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
