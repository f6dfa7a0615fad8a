package syncer

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/store"
	"github.com/kmicac/matchsync/pkg/logger"
)

// videoKeyField is the natural key of video and shorts list entries.
const videoKeyField = "videoId"

// DedupeVideos removes repeated videoId entries from every configured video
// list, keeping the first one. Missing files are skipped.
func (s *Syncer) DedupeVideos() (Result, error) {
	job := s.createJob(JobVideos)
	var total Result

	for _, name := range s.config.Storage.VideoFiles {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.config.Storage.DataDir, name)
		}

		unlock := s.locks.Lock(path)
		removed, err := store.DedupeFile(path, videoKeyField)
		unlock()

		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("Video list not found", zap.String("path", path))
			continue
		}
		if err != nil {
			logger.Warn("Skipping video list", zap.String("path", path), zap.Error(err))
			total.Skipped++
			continue
		}

		total.Processed += removed
		logger.Info("Video list deduplicated",
			zap.String("path", path),
			zap.Int("removed", removed))
	}

	s.completeJob(job, total)
	return total, nil
}
