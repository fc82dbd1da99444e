package db_fx

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"habitloop/internal/config"
	"habitloop/internal/infra"
	"habitloop/internal/logger"
)

var Module = fx.Options(
	fx.Provide(provideDB),
	fx.Invoke(infra.AutoMigrate),
)

func provideDB(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	db, err := infra.InitPostgresql(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			infra.ClosePostgresql(db, log)
			return nil
		},
	})
	return db, nil
}
