package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/codec"
	"github.com/kmicac/matchsync/internal/config"
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/store"
	"github.com/kmicac/matchsync/pkg/logger"
)

// LinkHighlights refreshes the highlight list when a feed is configured and
// links every stored highlight to its fixture. Highlights that cannot be
// linked are written as fallbacks.
func (s *Syncer) LinkHighlights(ctx context.Context) (Result, error) {
	logger.Info("Starting highlight linking")

	job := s.createJob(JobHighlights)
	s.resetFetchers()

	highlights, err := s.refreshHighlights(ctx)
	if err != nil {
		s.failJob(job, Result{}, err)
		return Result{}, err
	}

	resolver := s.newResolver(s.loadTeams())
	for _, comp := range s.config.Schedule.Competitions {
		fixtures := loadCollection(s.FixturePath(comp), fixtureKey)
		resolver.AddSource(config.GetLeagueName(comp), fixtures.Sorted())
	}

	path := s.LinkedPath()
	unlock := s.locks.Lock(path)
	defer unlock()

	linked := store.New(linkedKey)
	matched := 0
	for _, h := range highlights {
		l := resolver.LinkHighlight(h)
		if l.MatchType == models.MatchTypeMatched {
			matched++
		}
		linked.Put(l)
	}

	res := Result{Processed: linked.Len()}
	if err := store.Save(path, linked); err != nil {
		s.failJob(job, res, err)
		return res, err
	}

	logger.Info("Highlights linked",
		zap.Int("total", linked.Len()),
		zap.Int("matched", matched),
		zap.Int("fallback", linked.Len()-matched))
	s.completeJob(job, res)
	return res, nil
}

// refreshHighlights merges the feed into the stored highlight list, keeping
// the first copy of every (highlight_id, date), and returns the list.
func (s *Syncer) refreshHighlights(ctx context.Context) ([]models.HighlightRecord, error) {
	path := s.HighlightsPath()
	unlock := s.locks.Lock(path)
	defer unlock()

	stored := loadCollection(path, highlightKey)
	if s.config.Highlights.BaseURL == "" {
		return stored.Sorted(), nil
	}

	list, err := s.highlights.FetchList(ctx, s.config.Highlights.BaseURL)
	if err != nil {
		if abort(ctx, err) {
			return nil, err
		}
		logger.Warn("Highlight feed unavailable, linking stored highlights", zap.Error(err))
		return stored.Sorted(), nil
	}

	incoming := make([]models.HighlightRecord, 0, len(list))
	for _, raw := range list {
		var payload highlightPayload
		if err := codec.Unmarshal(raw, &payload); err != nil {
			logger.Warn("Skipping malformed highlight", zap.Error(err))
			continue
		}
		if h, ok := payload.record(); ok {
			incoming = append(incoming, h)
		}
	}

	unique, dupes := store.Dedupe(incoming, func(h models.HighlightRecord) (string, bool) {
		return h.Key(), true
	})
	added := 0
	for _, h := range unique {
		if _, exists := stored.Get(h.Key()); exists {
			continue
		}
		stored.Put(h)
		added++
	}

	logger.Info("Highlight feed merged",
		zap.Int("received", len(list)),
		zap.Int("duplicates", dupes),
		zap.Int("added", added))

	if err := store.Save(path, stored); err != nil {
		return nil, err
	}
	return stored.Sorted(), nil
}
