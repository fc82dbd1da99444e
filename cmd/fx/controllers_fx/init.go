package controllers_fx

import (
	"go.uber.org/fx"

	"habitloop/internal/api"
	"habitloop/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewAccountController),
	fx.Provide(controllers.NewSubscriptionController),
	fx.Provide(controllers.NewWebhookController),
	fx.Provide(provideControllers),
)

func provideControllers(
	account *controllers.AccountController,
	subscription *controllers.SubscriptionController,
	webhook *controllers.WebhookController,
) api.Controllers {
	return api.Controllers{
		Account:      account,
		Subscription: subscription,
		Webhook:      webhook,
	}
}
