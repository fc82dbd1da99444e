package account_fx

import (
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"habitloop/internal/billing"
	"habitloop/internal/config"
	"habitloop/internal/logger"
	"habitloop/internal/repositories"
	"habitloop/internal/services"
	"habitloop/pkg/utils"
)

const tokenTTL = 24 * time.Hour

var Module = fx.Provide(
	provideAccountService, provideAccountRepo, provideJWTManager)

func provideAccountRepo(db *gorm.DB) repositories.AccountRepository {
	return repositories.NewAccountRepository(db)
}

func provideJWTManager(cfg *config.Config) *utils.JWTManager {
	return utils.NewJWTManager(cfg.JWTSecret, tokenTTL)
}

func provideAccountService(
	accountRepo repositories.AccountRepository,
	gateway billing.Gateway,
	resolver *billing.Resolver,
	jwt *utils.JWTManager,
	log *logger.Logger,
) services.AccountServiceInterface {
	return services.NewAccountService(accountRepo, gateway, resolver, jwt, log)
}
