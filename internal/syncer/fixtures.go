package syncer

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/codec"
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/scoring"
	"github.com/kmicac/matchsync/internal/store"
	"github.com/kmicac/matchsync/internal/upsert"
	"github.com/kmicac/matchsync/pkg/logger"
)

// SyncFixtures refreshes the schedule of every configured competition and
// scores the games that have finished.
func (s *Syncer) SyncFixtures(ctx context.Context) (Result, error) {
	logger.Info("Starting fixture synchronization")

	job := s.createJob(JobFixtures)
	s.resetFetchers()
	var total Result

	for _, comp := range s.config.Schedule.Competitions {
		logger.Info("Syncing competition", zap.String("competition", comp))

		res, err := s.syncCompetition(ctx, comp)
		total.add(res)
		if err != nil {
			if abort(ctx, err) {
				s.failJob(job, total, err)
				return total, err
			}
			logger.Warn("Skipping competition",
				zap.String("competition", comp),
				zap.Error(err))
			continue
		}

		logger.Info("Competition synced",
			zap.String("competition", comp),
			zap.Int("processed", res.Processed),
			zap.Int("skipped", res.Skipped))
	}

	s.completeJob(job, total)
	return total, nil
}

func (s *Syncer) syncCompetition(ctx context.Context, comp string) (Result, error) {
	var res Result

	url := joinURL(s.config.Schedule.BaseURL, "scores", "json", "Schedule", comp, s.config.Schedule.Season)
	rounds, err := s.schedule.FetchList(ctx, url)
	if err != nil {
		return res, err
	}

	path := s.FixturePath(comp)
	unlock := s.locks.Lock(path)
	defer unlock()

	fixtures := loadCollection(path, fixtureKey)

	var fatal error
scan:
	for _, raw := range rounds {
		var round scheduleRound
		if err := codec.Unmarshal(raw, &round); err != nil {
			logger.Warn("Skipping malformed round", zap.String("competition", comp), zap.Error(err))
			continue
		}

		for _, game := range round.Games {
			if game.GameID == 0 {
				res.Skipped++
				continue
			}

			candidate := game.record(round)
			stored, exists := fixtures.Get(candidate.GameID)

			var prev *upsert.Meta
			if exists {
				m := fixtureMeta(stored)
				prev = &m
			}
			decision := s.fixturePolicy.Decide(prev, fixtureMeta(candidate))
			if decision.Action == upsert.ActionSkip {
				res.Skipped++
				continue
			}

			if decision.Enrich {
				if err := s.scoreFixture(ctx, comp, &candidate); err != nil {
					if abort(ctx, err) {
						fatal = err
						break scan
					}
					logger.Warn("Box score unavailable, fixture left unscored",
						zap.Int("game_id", candidate.GameID),
						zap.Error(err))
					if exists && stored.Scored() {
						carryScores(&candidate, stored)
					}
				}
			}

			logger.Debug("Fixture updated",
				zap.Int("game_id", candidate.GameID),
				zap.String("action", decision.Action.String()),
				zap.String("reason", decision.Reason))

			fixtures.Put(candidate)
			res.Processed++
		}
	}

	if err := store.Save(path, fixtures); err != nil {
		return res, errors.CombineErrors(fatal, err)
	}
	return res, fatal
}

// scoreFixture fetches the final box score and writes the outcome onto f.
func (s *Syncer) scoreFixture(ctx context.Context, comp string, f *models.FixtureRecord) error {
	url := joinURL(s.config.Schedule.BaseURL, "stats", "json", "BoxScoreFinal", comp, strconv.Itoa(f.GameID))
	boxes, err := s.schedule.FetchList(ctx, url)
	if err != nil {
		return err
	}
	if len(boxes) == 0 {
		return errors.Newf("empty box score for game %d", f.GameID)
	}

	var box boxScore
	if err := codec.Unmarshal(boxes[0], &box); err != nil {
		return errors.Wrapf(err, "decode box score for game %d", f.GameID)
	}

	scoring.Calculate(box.Goals, f.HomeTeamID, f.AwayTeamID).Apply(f)
	return nil
}

func fixtureMeta(f models.FixtureRecord) upsert.Meta {
	day, _ := models.ParseDay(f.Date)
	return upsert.Meta{Status: f.Status, Date: day, Enriched: f.Scored()}
}

func carryScores(dst *models.FixtureRecord, src models.FixtureRecord) {
	dst.HomeTeamScore = src.HomeTeamScore
	dst.AwayTeamScore = src.AwayTeamScore
	dst.Result = src.Result
	dst.Points = src.Points
	dst.Goals = src.Goals
}
