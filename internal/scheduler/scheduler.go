package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/config"
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/syncer"
	"github.com/kmicac/matchsync/pkg/logger"
)

var (
	// ErrBusy is returned when a run is requested while another is in progress.
	ErrBusy = errors.New("a sync job is already running")
	// ErrUnknownKind is returned for a job kind the syncer does not know.
	ErrUnknownKind = errors.New("unknown job kind")
)

// Runner executes one job kind. *syncer.Syncer satisfies it.
type Runner interface {
	Run(ctx context.Context, kind string) (syncer.Result, error)
}

// Scheduler owns the cron trigger and guarantees that at most one sync job
// runs at a time, whether started by cron, the API or the CLI.
type Scheduler struct {
	cron    *cron.Cron
	config  *config.Config
	runner  Runner
	log     *zap.Logger
	mu      sync.RWMutex
	entryID cron.EntryID

	current string
	lastRun *time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.Config, runner Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		config: cfg,
		runner: runner,
		log:    logger.Named("scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler with the schedule stored in the ledger, or the
// configured one when no ledger is open.
func (s *Scheduler) Start() error {
	sched := s.loadSchedule()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !sched.Enabled {
		s.log.Info("Scheduler is disabled")
		return nil
	}

	if err := s.schedule(sched.CronExpr); err != nil {
		return err
	}
	s.cron.Start()

	s.log.Info("Scheduler started successfully", zap.String("schedule", sched.CronExpr))
	return nil
}

// Stop stops the cron trigger, cancels a job in progress and waits for it.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// UpdateSchedule validates and installs a new cron schedule. A disabled
// schedule removes the trigger without stopping manual runs.
func (s *Scheduler) UpdateSchedule(cronExpr string, enabled bool) error {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return errors.Wrapf(err, "invalid cron expression %q", cronExpr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}
	if !enabled {
		s.log.Info("Schedule disabled")
		return nil
	}

	if err := s.schedule(cronExpr); err != nil {
		return err
	}
	s.cron.Start()

	s.log.Info("Schedule updated", zap.String("new_schedule", cronExpr))
	return nil
}

// schedule adds the cron entry. Callers hold s.mu.
func (s *Scheduler) schedule(cronExpr string) error {
	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.log.Info("Starting scheduled sync job")
		if _, err := s.Run(s.ctx, syncer.JobAll); err != nil {
			if errors.Is(err, ErrBusy) {
				s.log.Warn("Sync job already running, skipping this execution")
				return
			}
			s.log.Error("Scheduled sync job failed", zap.Error(err))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "failed to schedule %q", cronExpr)
	}
	s.entryID = entryID
	return nil
}

// Run executes kind synchronously. It returns ErrBusy without running when
// another job holds the slot.
func (s *Scheduler) Run(ctx context.Context, kind string) (syncer.Result, error) {
	if err := s.acquire(kind); err != nil {
		return syncer.Result{}, err
	}
	defer s.release()

	return s.runner.Run(ctx, kind)
}

// Trigger starts kind in the background and returns once the job holds the
// slot.
func (s *Scheduler) Trigger(kind string) error {
	if err := s.acquire(kind); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()

		res, err := s.runner.Run(s.ctx, kind)
		if err != nil {
			s.log.Error("Manual sync job failed", zap.String("kind", kind), zap.Error(err))
			return
		}
		s.log.Info("Manual sync job completed",
			zap.String("kind", kind),
			zap.Int("processed", res.Processed),
			zap.Int("skipped", res.Skipped))
	}()
	return nil
}

func (s *Scheduler) acquire(kind string) error {
	if !slices.Contains(syncer.Kinds, kind) {
		return errors.Wrapf(ErrUnknownKind, "%q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != "" {
		return errors.Wrapf(ErrBusy, "%s in progress", s.current)
	}
	s.current = kind
	return nil
}

func (s *Scheduler) release() {
	now := time.Now()
	s.mu.Lock()
	s.current = ""
	s.lastRun = &now
	s.mu.Unlock()
}

// IsRunning returns whether a sync job is currently running
func (s *Scheduler) IsRunning() bool {
	return s.CurrentJob() != ""
}

// CurrentJob returns the kind of the running job, or "".
func (s *Scheduler) CurrentJob() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastRun returns when the last job run through the scheduler finished.
func (s *Scheduler) LastRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// GetNextRun returns the next scheduled run time
func (s *Scheduler) GetNextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}

	entry := s.cron.Entry(s.entryID)
	if entry.Next.IsZero() {
		return nil
	}
	nextRun := entry.Next
	return &nextRun
}

func (s *Scheduler) loadSchedule() models.ScheduleConfig {
	sched := models.ScheduleConfig{
		CronExpr: s.config.Scheduler.CronExpression,
		Enabled:  s.config.Scheduler.Enabled,
	}

	db := config.GetDB()
	if db == nil {
		return sched
	}

	var stored models.ScheduleConfig
	if err := db.First(&stored).Error; err != nil {
		s.log.Warn("Schedule not found in ledger, using configuration", zap.Error(err))
		return sched
	}
	return stored
}
