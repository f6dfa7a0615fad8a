package syncer

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/normalize"
	"github.com/kmicac/matchsync/internal/store"
	"github.com/kmicac/matchsync/pkg/logger"
)

// minQueryLen is the shortest search term the player search accepts.
const minQueryLen = 3

// PhotoCache memoizes player photo lookups for one run, misses included.
type PhotoCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewPhotoCache() *PhotoCache {
	return &PhotoCache{entries: make(map[string]string)}
}

func (c *PhotoCache) Get(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[name]
	return v, ok
}

func (c *PhotoCache) Put(name, photo string) {
	c.mu.Lock()
	c.entries[name] = photo
	c.mu.Unlock()
}

func (c *PhotoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EnrichSquadPhotos looks up a photo for every squad player without one.
// Players that cannot be found are marked not_found and not searched again.
func (s *Syncer) EnrichSquadPhotos(ctx context.Context) (Result, error) {
	logger.Info("Starting squad photo enrichment")

	job := s.createJob(JobPhotos)
	s.resetFetchers()
	cache := NewPhotoCache()
	var total Result

	for _, code := range s.config.Teams.Competitions {
		res, err := s.enrichTeamList(ctx, cache, code)
		total.add(res)
		if err != nil {
			if abort(ctx, err) {
				s.failJob(job, total, err)
				return total, err
			}
			logger.Warn("Skipping squad photos", zap.String("competition", code), zap.Error(err))
		}
	}

	logger.Info("Photo lookups cached", zap.Int("names", cache.Len()))
	s.completeJob(job, total)
	return total, nil
}

func (s *Syncer) enrichTeamList(ctx context.Context, cache *PhotoCache, code string) (Result, error) {
	var res Result

	path := s.TeamsPath(code)
	unlock := s.locks.Lock(path)
	defer unlock()

	teams := loadCollection(path, teamKey)
	var fatal error

scan:
	for _, team := range teams.Sorted() {
		changed := false
		for i := range team.Squad {
			p := &team.Squad[i]
			if p.Image != "" {
				res.Skipped++
				continue
			}

			photo, err := s.findPhoto(ctx, cache, p.Name)
			if err != nil {
				fatal = err
				if changed {
					teams.Put(team)
				}
				break scan
			}
			if photo == "" {
				photo = models.PhotoNotFound
			}
			p.Image = photo
			changed = true
			res.Processed++
		}
		if changed {
			teams.Put(team)
		}
	}

	if err := store.Save(path, teams); err != nil && fatal == nil {
		return res, err
	}
	return res, fatal
}

// findPhoto searches by full name, then the diacritic-free name, then the
// surname. It returns "" when nothing matches. Only fatal fetch errors are
// returned.
func (s *Syncer) findPhoto(ctx context.Context, cache *PhotoCache, name string) (string, error) {
	plain := normalize.StripDiacritics(strings.TrimSpace(name))
	if photo, ok := cache.Get(plain); ok {
		return photo, nil
	}

	attempts := []string{strings.TrimSpace(name), plain}
	if fields := strings.Fields(plain); len(fields) >= 2 {
		attempts = append(attempts, fields[len(fields)-1])
	}

	seen := make(map[string]bool, len(attempts))
	for _, q := range attempts {
		if len([]rune(q)) < minQueryLen || seen[q] {
			continue
		}
		seen[q] = true

		var found playerSearch
		err := s.stats.FetchInto(ctx, joinURL(s.config.Stats.BaseURL, "players", "profiles")+"?search="+url.QueryEscape(q), &found)
		if err != nil {
			if abort(ctx, err) {
				return "", err
			}
			logger.Warn("Player search failed", zap.String("query", q), zap.Error(err))
			continue
		}
		if found.Results > 0 && len(found.Response) > 0 {
			photo := found.Response[0].Player.Photo
			cache.Put(plain, photo)
			return photo, nil
		}
	}

	cache.Put(plain, "")
	return "", nil
}
