package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"habitloop/cmd/fx/account_fx"
	"habitloop/cmd/fx/billing_fx"
	"habitloop/cmd/fx/config_fx"
	"habitloop/cmd/fx/controllers_fx"
	"habitloop/cmd/fx/db_fx"
	"habitloop/cmd/fx/logger_fx"
	"habitloop/cmd/fx/mail_fx"
	"habitloop/cmd/fx/memcache_fx"
	"habitloop/internal/api"
	"habitloop/internal/config"
	"habitloop/internal/logger"
	"habitloop/pkg/utils"
)

// @title Habitloop Billing API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		config_fx.Module,
		logger_fx.Module,
		db_fx.Module,
		memcache_fx.Module,
		mail_fx.Module,
		billing_fx.Module,
		account_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func ProvideRouter(cfg *config.Config, jwtManager *utils.JWTManager, ctrl api.Controllers) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.NewRouter(jwtManager, ctrl)
}

func StartServer(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine, log *logger.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Infow("starting HTTP server", "addr", srv.Addr, "environment", cfg.Environment)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalw("HTTP server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}
