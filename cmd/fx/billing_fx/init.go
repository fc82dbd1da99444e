package billing_fx

import (
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"habitloop/internal/billing"
	"habitloop/internal/config"
	"habitloop/internal/integration/stripe"
	"habitloop/internal/logger"
	"habitloop/internal/repositories"
	"habitloop/internal/services"
	"habitloop/pkg/memcache"
)

var Module = fx.Provide(
	provideCatalog,
	provideResolver,
	provideGateway,
	provideRoutineRepo,
	provideCustomerProvisioner,
	provideCheckoutService,
	provideSubscriptionService,
	provideWebhookProcessor,
	provideWebhookService,
)

func provideCatalog(cfg *config.Config, log *logger.Logger) (*billing.Catalog, error) {
	catalog, err := billing.NewCatalog(billing.DefaultPlans(), cfg.Stripe.Prices.ByPlan(), billing.DefaultFreeFeatures())
	if err != nil {
		return nil, err
	}
	for _, plan := range catalog.Plans() {
		if _, ok := catalog.PriceID(plan.ID); !ok {
			log.Warnw("plan has no Stripe price configured and cannot be purchased", "plan_id", plan.ID)
		}
	}
	return catalog, nil
}

func provideResolver() (*billing.Resolver, error) {
	limits, err := billing.NewLimitTable(billing.DefaultTierLimits())
	if err != nil {
		return nil, err
	}
	return billing.NewResolver(limits, time.Now), nil
}

func provideGateway(cfg *config.Config, log *logger.Logger) billing.Gateway {
	if cfg.Stripe.SecretKey == "" {
		log.Warnw("STRIPE_SECRET_KEY is not set; Stripe API calls will fail")
	}
	return stripe.NewGateway(cfg.Stripe.SecretKey, log)
}

func provideRoutineRepo(db *gorm.DB) repositories.RoutineRepository {
	return repositories.NewRoutineRepository(db)
}

func provideCustomerProvisioner(accountRepo repositories.AccountRepository, gateway billing.Gateway, log *logger.Logger) services.CustomerProvisionerInterface {
	return services.NewCustomerProvisioner(accountRepo, gateway, log)
}

func provideCheckoutService(
	accountRepo repositories.AccountRepository,
	provisioner services.CustomerProvisionerInterface,
	gateway billing.Gateway,
	catalog *billing.Catalog,
	resolver *billing.Resolver,
	cfg *config.Config,
	log *logger.Logger,
) services.CheckoutServiceInterface {
	return services.NewCheckoutService(accountRepo, provisioner, gateway, catalog, resolver, cfg.Billing, log)
}

func provideSubscriptionService(
	accountRepo repositories.AccountRepository,
	routineRepo repositories.RoutineRepository,
	gateway billing.Gateway,
	catalog *billing.Catalog,
	resolver *billing.Resolver,
	cfg *config.Config,
	log *logger.Logger,
) services.SubscriptionServiceInterface {
	if cfg.Billing.MockActivation {
		log.Warnw("mock plan activation is enabled; plans can be activated without payment")
	}
	return services.NewSubscriptionService(accountRepo, routineRepo, gateway, catalog, resolver, cfg.Billing, log, time.Now)
}

func provideWebhookProcessor(
	accountRepo repositories.AccountRepository,
	catalog *billing.Catalog,
	mail services.IMailService,
	log *logger.Logger,
) services.WebhookProcessorInterface {
	return services.NewWebhookProcessor(accountRepo, catalog, mail, log, time.Now)
}

func provideWebhookService(
	gateway billing.Gateway,
	processor services.WebhookProcessorInterface,
	processed mem.ProcessedEventStore,
	cfg *config.Config,
	log *logger.Logger,
) services.WebhookServiceInterface {
	return services.NewWebhookService(gateway, processor, processed, services.WebhookSettings{
		Secret:     cfg.Stripe.WebhookSecret,
		Production: cfg.IsProduction(),
	}, log)
}
