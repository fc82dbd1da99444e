package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"habitloop/internal/logger"
	"habitloop/internal/models/request_models"
	"habitloop/internal/models/response_models"
	"habitloop/internal/services"
	"habitloop/pkg/middleware"
	"habitloop/pkg/utils"
)

type SubscriptionController struct {
	checkoutService     services.CheckoutServiceInterface
	subscriptionService services.SubscriptionServiceInterface
	log                 *logger.Logger
}

func NewSubscriptionController(
	checkoutService services.CheckoutServiceInterface,
	subscriptionService services.SubscriptionServiceInterface,
	log *logger.Logger,
) *SubscriptionController {
	return &SubscriptionController{
		checkoutService:     checkoutService,
		subscriptionService: subscriptionService,
		log:                 log,
	}
}

// CreateCheckout godoc
// @Summary Start a subscription checkout
// @Description Create a hosted checkout session for a catalog plan
// @Tags Subscription
// @Accept json
// @Produce json
// @Param request body request_models.CheckoutRequest true "Plan to purchase"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/checkout [post]
func (s *SubscriptionController) CreateCheckout(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var req request_models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "plan_id is required")
		return
	}

	session, err := s.checkoutService.CreateCheckoutSession(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		utils.HandleServiceError(c, s.log, err)
		return
	}

	utils.RespondSuccess(c, response_models.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, "Checkout session created")
}

// GetStatus godoc
// @Summary Current subscription
// @Description Effective tier, stored subscription state, limits and the plan catalog
// @Tags Subscription
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription [get]
func (s *SubscriptionController) GetStatus(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	status, err := s.subscriptionService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, s.log, err)
		return
	}

	utils.RespondSuccess(c, status, "")
}

// Activate godoc
// @Summary Activate a plan without payment
// @Description Development only. Returns 404 unless mock activation is enabled.
// @Tags Subscription
// @Accept json
// @Produce json
// @Param request body request_models.ActivatePlanRequest true "Plan to activate"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/activate [post]
func (s *SubscriptionController) Activate(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var req request_models.ActivatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "plan_id is required")
		return
	}

	if err := s.subscriptionService.ActivateDirect(c.Request.Context(), userID, req.PlanID); err != nil {
		utils.HandleServiceError(c, s.log, err)
		return
	}

	utils.RespondSuccess(c, nil, "Plan activated")
}

// Cancel godoc
// @Summary Cancel at period end
// @Description Flag the active subscription to end with the current billing period
// @Tags Subscription
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription [delete]
func (s *SubscriptionController) Cancel(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	if err := s.subscriptionService.ScheduleCancellation(c.Request.Context(), userID); err != nil {
		utils.HandleServiceError(c, s.log, err)
		return
	}

	utils.RespondSuccess(c, nil, "Subscription will end at the close of the current period")
}

// Portal godoc
// @Summary Open the billing portal
// @Tags Subscription
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/portal [post]
func (s *SubscriptionController) Portal(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	url, err := s.subscriptionService.CreatePortalSession(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, s.log, err)
		return
	}

	utils.RespondSuccess(c, response_models.PortalSessionResponse{URL: url}, "")
}

// Usage godoc
// @Summary Quota usage
// @Description Routine quota of the caller, plus the task quota of routine_id when given
// @Tags Subscription
// @Produce json
// @Param routine_id query string false "Routine id"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/usage [get]
func (s *SubscriptionController) Usage(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var query request_models.UsageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "routine_id must be a uuid")
		return
	}

	var routineID *uuid.UUID
	if query.RoutineID != "" {
		id := uuid.MustParse(query.RoutineID)
		routineID = &id
	}

	usage, err := s.subscriptionService.Usage(c.Request.Context(), userID, routineID)
	if err != nil {
		utils.HandleServiceError(c, s.log, err)
		return
	}

	utils.RespondSuccess(c, usage, "")
}

func (s *SubscriptionController) userID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.HandleServiceError(c, s.log, utils.ErrUnauthenticated)
	}
	return userID, ok
}
