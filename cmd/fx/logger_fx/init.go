package logger_fx

import (
	"context"

	"go.uber.org/fx"

	"habitloop/internal/config"
	"habitloop/internal/logger"
)

var Module = fx.Provide(provideLogger)

func provideLogger(lc fx.Lifecycle, cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.NewLogger(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}
