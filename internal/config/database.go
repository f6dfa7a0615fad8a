package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/kmicac/matchsync/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDatabase opens the run ledger and seeds the schedule row from cfg the
// first time. Later changes to the schedule live in the ledger.
func InitDatabase(dbPath string, sched SchedulerConfig) error {
	var err error

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	DB, err = gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}

	err = DB.AutoMigrate(
		&models.SyncJob{},
		&models.ScheduleConfig{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	// Initialize default schedule config if not exists
	var scheduleConfig models.ScheduleConfig
	result := DB.First(&scheduleConfig)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		defaultSchedule := models.ScheduleConfig{
			CronExpr: sched.CronExpression,
			Enabled:  sched.Enabled,
		}
		if err := DB.Create(&defaultSchedule).Error; err != nil {
			return errors.Wrap(err, "failed to create default schedule")
		}
	}

	return nil
}

func GetDB() *gorm.DB {
	return DB
}

func CloseDatabase() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
