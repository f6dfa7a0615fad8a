package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/codec"
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/store"
	"github.com/kmicac/matchsync/pkg/logger"
)

// SyncTeams replaces every configured competition's team list by team id.
// Squad photos already found are kept.
func (s *Syncer) SyncTeams(ctx context.Context) (Result, error) {
	logger.Info("Starting team synchronization")

	job := s.createJob(JobTeams)
	s.resetFetchers()
	var total Result

	for _, code := range s.config.Teams.Competitions {
		res, err := s.syncTeamList(ctx, code)
		total.add(res)
		if err != nil {
			if abort(ctx, err) {
				s.failJob(job, total, err)
				return total, err
			}
			logger.Warn("Skipping team list", zap.String("competition", code), zap.Error(err))
			continue
		}
		logger.Info("Teams saved", zap.String("competition", code), zap.Int("teams", res.Processed))
	}

	s.completeJob(job, total)
	return total, nil
}

func (s *Syncer) syncTeamList(ctx context.Context, code string) (Result, error) {
	var res Result

	list, err := s.teams.FetchList(ctx, joinURL(s.config.Teams.BaseURL, "competitions", code, "teams"))
	if err != nil {
		return res, err
	}

	path := s.TeamsPath(code)
	unlock := s.locks.Lock(path)
	defer unlock()

	teams := loadCollection(path, teamKey)
	for _, raw := range list {
		var payload teamPayload
		if err := codec.Unmarshal(raw, &payload); err != nil || payload.ID == 0 {
			logger.Warn("Skipping malformed team", zap.String("competition", code), zap.Error(err))
			res.Skipped++
			continue
		}

		team := payload.record()
		if stored, ok := teams.Get(team.ID); ok {
			carryImages(&team, stored)
		}
		teams.Put(team)
		res.Processed++
	}

	return res, store.Save(path, teams)
}

// carryImages copies photos found on an earlier run onto the fresh squad.
func carryImages(dst *models.TeamRecord, src models.TeamRecord) {
	if len(dst.Squad) == 0 {
		dst.Squad = src.Squad
		return
	}
	images := make(map[int]string, len(src.Squad))
	for _, p := range src.Squad {
		if p.Image != "" {
			images[p.ID] = p.Image
		}
	}
	for i := range dst.Squad {
		if dst.Squad[i].Image == "" {
			dst.Squad[i].Image = images[dst.Squad[i].ID]
		}
	}
}

// loadTeams reads every configured team list in order.
func (s *Syncer) loadTeams() []models.TeamRecord {
	var all []models.TeamRecord
	for _, code := range s.config.Teams.Competitions {
		all = append(all, loadCollection(s.TeamsPath(code), teamKey).Sorted()...)
	}
	return all
}
