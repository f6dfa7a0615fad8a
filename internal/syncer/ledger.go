package syncer

import (
	"time"

	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/config"
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/pkg/logger"
)

// createJob creates a new sync job record. Without a ledger database the
// job is tracked in memory only.
func (s *Syncer) createJob(jobType string) *models.SyncJob {
	job := &models.SyncJob{
		JobType:   jobType,
		Status:    "running",
		StartedAt: time.Now(),
	}

	if db := config.GetDB(); db != nil {
		if err := db.Create(job).Error; err != nil {
			logger.Warn("Failed to record sync job", zap.String("type", jobType), zap.Error(err))
		}
	}

	logger.Info("Sync job created",
		zap.Int("job_id", job.ID),
		zap.String("type", jobType))

	return job
}

// completeJob marks a job as completed
func (s *Syncer) completeJob(job *models.SyncJob, res Result) {
	now := time.Now()
	job.Status = "completed"
	job.CompletedAt = &now
	job.ItemsProcessed = res.Processed
	job.ItemsSkipped = res.Skipped

	s.saveJob(job)

	logger.Info("Sync job completed",
		zap.Int("job_id", job.ID),
		zap.String("type", job.JobType),
		zap.Int("items_processed", job.ItemsProcessed),
		zap.Int("items_skipped", job.ItemsSkipped))
}

// failJob marks a job as failed
func (s *Syncer) failJob(job *models.SyncJob, res Result, err error) {
	now := time.Now()
	job.Status = "failed"
	job.CompletedAt = &now
	job.ItemsProcessed = res.Processed
	job.ItemsSkipped = res.Skipped
	job.ErrorMessage = err.Error()

	s.saveJob(job)

	logger.Error("Sync job failed",
		zap.Int("job_id", job.ID),
		zap.String("type", job.JobType),
		zap.Error(err))
}

func (s *Syncer) saveJob(job *models.SyncJob) {
	db := config.GetDB()
	if db == nil || job.ID == 0 {
		return
	}
	if err := db.Save(job).Error; err != nil {
		logger.Warn("Failed to update sync job", zap.Int("job_id", job.ID), zap.Error(err))
	}
}
