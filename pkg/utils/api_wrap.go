package utils

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"habitloop/internal/logger"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: c.GetString("trace_id"),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

type errorMapping struct {
	target  error
	code    int
	message string
}

// Checked in order; the first match wins.
var serviceErrors = []errorMapping{
	{ErrUnauthenticated, http.StatusUnauthorized, "Authentication required"},
	{ErrAccountNotFound, http.StatusUnauthorized, "Authentication required"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{ErrEmailAlreadyExists, http.StatusBadRequest, "Email already registered"},
	{ErrValidation, http.StatusBadRequest, "Invalid request"},
	{ErrInvalidPlan, http.StatusBadRequest, "Unknown plan"},
	{ErrAlreadySubscribed, http.StatusBadRequest, "You already have an active subscription"},
	{ErrNoSubscription, http.StatusBadRequest, "No billing account found"},
	{ErrNothingToCancel, http.StatusBadRequest, "No active subscription to cancel"},
	{ErrRoutineNotFound, http.StatusNotFound, "Routine not found"},
	{ErrMockActivationDisabled, http.StatusNotFound, "Not found"},
	{ErrInvalidSignature, http.StatusBadRequest, "Invalid webhook signature"},
	{ErrMalformedWebhook, http.StatusBadRequest, "Invalid webhook payload"},
	{ErrPlanNotConfigured, http.StatusInternalServerError, "Plan is not available for purchase"},
	{ErrWebhookSecretMissing, http.StatusInternalServerError, "Webhook not configured"},
	{ErrUpstreamFailure, http.StatusInternalServerError, "Billing provider unavailable"},
	{ErrDatabaseError, http.StatusInternalServerError, "Internal server error"},
}

// StatusFor maps a service error to its HTTP status and public message.
func StatusFor(err error) (int, string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			return m.code, m.message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

func HandleServiceError(c *gin.Context, log *logger.Logger, err error) {
	code, message := StatusFor(err)
	if code >= http.StatusInternalServerError {
		log.Errorw("request failed",
			"path", c.FullPath(),
			"trace_id", c.GetString("trace_id"),
			"error", err)
	}
	RespondError(c, code, message)
}
