package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"habitloop/internal/logger"
	"habitloop/internal/models/request_models"
	"habitloop/internal/services"
	"habitloop/pkg/middleware"
	"habitloop/pkg/utils"
)

type AccountController struct {
	accountService services.AccountServiceInterface
	log            *logger.Logger
}

func NewAccountController(accountService services.AccountServiceInterface, log *logger.Logger) *AccountController {
	return &AccountController{
		accountService: accountService,
		log:            log,
	}
}

// Register godoc
// @Summary Register a new account
// @Description Create a new user account on the free tier
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body request_models.SignUpRequest true "Account registration payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /accounts/register [post]
func (a *AccountController) Register(c *gin.Context) {
	var req request_models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	account, err := a.accountService.CreateAccount(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, a.log, err)
		return
	}

	utils.RespondSuccess(c, account, "Account created successfully")
}

// Login godoc
// @Summary Login to an account
// @Description Authenticate a user and return a token
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body request_models.LoginRequest true "Login payload"
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /accounts/login [post]
func (a *AccountController) Login(c *gin.Context) {
	var req request_models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	resp, err := a.accountService.Login(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, a.log, err)
		return
	}

	utils.RespondSuccess(c, resp, "Login successful")
}

// DeleteAccount godoc
// @Summary Delete the current account
// @Description Permanently delete the account and its routines. An active subscription is canceled first.
// @Tags Accounts
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Security BearerAuth
// @Router /accounts/me [delete]
func (a *AccountController) DeleteAccount(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.HandleServiceError(c, a.log, utils.ErrUnauthenticated)
		return
	}

	if err := a.accountService.DeleteAccount(c.Request.Context(), userID); err != nil {
		utils.HandleServiceError(c, a.log, err)
		return
	}

	utils.RespondSuccess(c, nil, "Account deleted")
}
