package api

import (
	"github.com/gin-gonic/gin"

	"habitloop/internal/api/controllers"
	"habitloop/pkg/middleware"
	"habitloop/pkg/utils"
)

type Controllers struct {
	Account      *controllers.AccountController
	Subscription *controllers.SubscriptionController
	Webhook      *controllers.WebhookController
}

func NewRouter(jwtManager *utils.JWTManager, ctrl Controllers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.CORSMiddleware())

	RegisterRoutes(r, jwtManager, ctrl)
	return r
}

func RegisterRoutes(r *gin.Engine, jwtManager *utils.JWTManager, ctrl Controllers) {
	auth := middleware.JWTAuthMiddleware(jwtManager)

	accounts := r.Group("/accounts")
	accounts.POST("/register", ctrl.Account.Register)
	accounts.POST("/login", ctrl.Account.Login)
	accounts.DELETE("/me", auth, ctrl.Account.DeleteAccount)

	subscription := r.Group("/subscription", auth)
	subscription.GET("", ctrl.Subscription.GetStatus)
	subscription.DELETE("", ctrl.Subscription.Cancel)
	subscription.POST("/checkout", ctrl.Subscription.CreateCheckout)
	subscription.POST("/activate", ctrl.Subscription.Activate)
	subscription.POST("/portal", ctrl.Subscription.Portal)
	subscription.GET("/usage", ctrl.Subscription.Usage)

	// Stripe authenticates with its signature header, not a bearer token.
	r.POST("/webhooks/stripe", ctrl.Webhook.HandleStripe)
}
