package syncer

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/codec"
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/resolve"
	"github.com/kmicac/matchsync/internal/store"
	"github.com/kmicac/matchsync/internal/upsert"
	"github.com/kmicac/matchsync/pkg/logger"
)

// SyncStats pulls the stats provider's fixtures for each configured day
// offset, links them to scheduled games and fills in missing detail blocks
// of finished matches.
func (s *Syncer) SyncStats(ctx context.Context) (Result, error) {
	logger.Info("Starting stats synchronization")

	job := s.createJob(JobStats)
	s.resetFetchers()
	var total Result

	codes := make(map[int]string, len(s.config.Stats.Leagues))
	for code, id := range s.config.Stats.Leagues {
		codes[id] = code
	}
	resolver := s.newResolver(nil)

	for _, day := range s.statsDays() {
		logger.Info("Fetching stats fixtures", zap.String("date", day))

		q := url.Values{}
		q.Set("date", day)
		if s.config.Stats.Timezone != "" {
			q.Set("timezone", s.config.Stats.Timezone)
		}
		list, err := s.stats.FetchList(ctx, joinURL(s.config.Stats.BaseURL, "fixtures")+"?"+q.Encode())
		if err != nil {
			if abort(ctx, err) {
				s.failJob(job, total, err)
				return total, err
			}
			logger.Warn("Skipping stats day", zap.String("date", day), zap.Error(err))
			continue
		}

		byLeague := make(map[string][]statsFixture)
		for _, raw := range list {
			var f statsFixture
			if err := codec.Unmarshal(raw, &f); err != nil || f.Fixture.ID == 0 {
				total.Skipped++
				continue
			}
			code, ok := codes[f.League.ID]
			if !ok {
				continue
			}
			byLeague[code] = append(byLeague[code], f)
		}

		leagues := make([]string, 0, len(byLeague))
		for code := range byLeague {
			leagues = append(leagues, code)
		}
		slices.Sort(leagues)

		for _, code := range leagues {
			res, err := s.syncStatsLeague(ctx, resolver, code, byLeague[code])
			total.add(res)
			if err != nil {
				if abort(ctx, err) {
					s.failJob(job, total, err)
					return total, err
				}
				logger.Warn("Skipping stats league", zap.String("league", code), zap.Error(err))
			}
		}
	}

	s.completeJob(job, total)
	return total, nil
}

// statsDays returns the query dates in the provider's timezone.
func (s *Syncer) statsDays() []string {
	loc := time.UTC
	if tz := s.config.Stats.Timezone; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			logger.Warn("Unknown stats timezone, using UTC", zap.String("timezone", tz), zap.Error(err))
		}
	}

	today := s.now().In(loc)
	days := make([]string, 0, len(s.config.Stats.DayOffsets))
	for _, off := range s.config.Stats.DayOffsets {
		days = append(days, today.AddDate(0, 0, off).Format(time.DateOnly))
	}
	return days
}

func (s *Syncer) syncStatsLeague(ctx context.Context, resolver *resolve.Resolver, code string, items []statsFixture) (Result, error) {
	var res Result

	schedule, err := store.Load(s.FixturePath(code), fixtureKey)
	if err != nil {
		logger.Warn("Schedule unreadable, stats stay unlinked", zap.String("league", code), zap.Error(err))
	}
	fixtures := schedule.Sorted()

	path := s.StatsPath(code)
	unlock := s.locks.Lock(path)
	defer unlock()

	records := loadCollection(path, statsKey)

	var fatal error
	for _, item := range items {
		candidate := item.record()
		candidate.GameID = resolver.FindGameID(fixtures, candidate.Date, candidate.HomeTeam, candidate.AwayTeam)

		stored, exists := records.Get(candidate.StatsID)
		var prev *upsert.Meta
		if exists {
			carryBlocks(&candidate, stored)
			if candidate.GameID == nil {
				candidate.GameID = stored.GameID
			}
			m := statsMeta(stored)
			prev = &m
		}

		decision := s.statsPolicy.Decide(prev, statsMeta(candidate))
		if decision.Action == upsert.ActionSkip {
			if stored.GameID == nil && candidate.GameID != nil {
				stored.GameID = candidate.GameID
				records.Put(stored)
				res.Processed++
				continue
			}
			res.Skipped++
			continue
		}

		if candidate.GameID == nil {
			logger.Debug("No scheduled game for stats fixture",
				zap.Int("stats_id", candidate.StatsID),
				zap.String("home", candidate.HomeTeam),
				zap.String("away", candidate.AwayTeam))
		}

		if decision.Enrich {
			if err := s.fetchBlocks(ctx, &candidate); err != nil {
				fatal = err
				records.Put(candidate)
				res.Processed++
				break
			}
		}

		records.Put(candidate)
		res.Processed++
	}

	if err := store.Save(path, records); err != nil {
		return res, errors.CombineErrors(fatal, err)
	}
	return res, fatal
}

// fetchBlocks fills every empty detail block of r. A block that fails with
// a non-fatal error stays empty and is retried on the next run.
func (s *Syncer) fetchBlocks(ctx context.Context, r *models.StatsRecord) error {
	for _, name := range r.MissingBlocks() {
		q := url.Values{}
		q.Set("fixture", strconv.Itoa(r.StatsID))
		list, err := s.stats.FetchList(ctx, joinURL(s.config.Stats.BaseURL, "fixtures", name)+"?"+q.Encode())
		if err != nil {
			if abort(ctx, err) {
				return err
			}
			logger.Warn("Detail block unavailable",
				zap.Int("stats_id", r.StatsID),
				zap.String("block", name),
				zap.Error(err))
			continue
		}
		if list == nil {
			list = []json.RawMessage{}
		}
		*r.Block(name) = list
	}
	return nil
}

func statsMeta(r models.StatsRecord) upsert.Meta {
	day, _ := models.ParseDay(r.Date)
	return upsert.Meta{Status: r.Status, Date: day, Enriched: len(r.MissingBlocks()) == 0}
}

func carryBlocks(dst *models.StatsRecord, src models.StatsRecord) {
	for _, name := range models.DetailBlocks {
		if len(*dst.Block(name)) == 0 {
			*dst.Block(name) = *src.Block(name)
		}
	}
}
