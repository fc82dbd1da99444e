package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"habitloop/internal/logger"
	"habitloop/internal/services"
	"habitloop/pkg/utils"
)

// Longer bodies are cut off and then fail signature verification.
const maxWebhookBody = 512 << 10

type WebhookController struct {
	webhookService services.WebhookServiceInterface
	log            *logger.Logger
}

func NewWebhookController(webhookService services.WebhookServiceInterface, log *logger.Logger) *WebhookController {
	return &WebhookController{
		webhookService: webhookService,
		log:            log,
	}
}

// HandleStripe godoc
// @Summary Stripe webhook receiver
// @Description Verifies and applies a Stripe event. Replies 200 {received:true} for applied, duplicate and ignored events.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string false "Stripe signature"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /webhooks/stripe [post]
func (w *WebhookController) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	if err := w.webhookService.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		code, message := utils.StatusFor(err)
		if code >= http.StatusInternalServerError {
			w.log.Errorw("webhook handling failed", "trace_id", c.GetString("trace_id"), "error", err)
		}
		c.JSON(code, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
