package infra

import (
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"habitloop/internal/config"
	"habitloop/internal/logger"
	"habitloop/internal/models/db_models"
)

func InitPostgresql(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	if cfg.IsProduction() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	connectionPool, err := gorm.Open(postgres.Open(cfg.PostgresURL), gormCfg)
	if err != nil {
		log.Errorw("error connecting to database", "error", err)
		return nil, errors.Wrap(err, "connect postgres")
	}

	sqlDB, err := connectionPool.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return connectionPool, nil
}

// AutoMigrate creates or updates the tables the billing core reads and writes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&db_models.Account{},
		&db_models.Routine{},
		&db_models.RoutineTask{},
	)
}

func ClosePostgresql(db *gorm.DB, log *logger.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Errorw("error getting database instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Errorw("error closing database connection", "error", err)
	} else {
		log.Info("PostgreSQL database connection closed successfully")
	}
}
