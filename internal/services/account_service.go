package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"habitloop/internal/billing"
	"habitloop/internal/logger"
	"habitloop/internal/models/db_models"
	"habitloop/internal/models/request_models"
	"habitloop/internal/models/response_models"
	"habitloop/internal/repositories"
	"habitloop/pkg/utils"
)

type AccountServiceInterface interface {
	Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error)
	CreateAccount(ctx context.Context, request request_models.SignUpRequest) (*response_models.AccountResponse, error)
	// DeleteAccount removes the account for good. A live provider subscription
	// is canceled first on a best-effort basis.
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
}

type AccountService struct {
	accountRepo repositories.AccountRepository
	gateway     billing.Gateway
	resolver    *billing.Resolver
	jwt         *utils.JWTManager
	log         *logger.Logger
}

func NewAccountService(
	accountRepo repositories.AccountRepository,
	gateway billing.Gateway,
	resolver *billing.Resolver,
	jwt *utils.JWTManager,
	log *logger.Logger,
) AccountServiceInterface {
	return &AccountService{
		accountRepo: accountRepo,
		gateway:     gateway,
		resolver:    resolver,
		jwt:         jwt,
		log:         log,
	}
}

func (a *AccountService) Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error) {
	account, err := a.accountRepo.FindByEmail(ctx, normalizeEmail(request.Email))
	if err != nil {
		return nil, utils.DatabaseError(err, "find account")
	}
	if account == nil {
		return nil, utils.ErrInvalidCredentials
	}

	if err := utils.ComparePasswords(account.PasswordHash, request.Password); err != nil {
		return nil, utils.ErrInvalidCredentials
	}

	token, err := a.jwt.CreateToken(account.ID, string(account.Role))
	if err != nil {
		return nil, err
	}

	return &response_models.AccountLoginResponse{
		Token:       token,
		CurrentTier: a.resolver.EffectiveTier(account.Holder()),
	}, nil
}

func (a *AccountService) CreateAccount(ctx context.Context, request request_models.SignUpRequest) (*response_models.AccountResponse, error) {
	email := normalizeEmail(request.Email)

	existingAccount, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, utils.DatabaseError(err, "find account")
	}
	if existingAccount != nil {
		return nil, utils.ErrEmailAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(request.Password)
	if err != nil {
		return nil, err
	}

	newAccount := &db_models.Account{
		Name:         strings.TrimSpace(request.DisplayName),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         db_models.RoleUser,
		Tier:         billing.TierFree,
		Subscription: db_models.EmptySubscription(),
	}
	if err := a.accountRepo.InsertTx(ctx, newAccount); err != nil {
		return nil, utils.DatabaseError(err, "insert account")
	}

	a.log.Infow("account created", "user_id", newAccount.ID)
	return &response_models.AccountResponse{
		ID:    newAccount.ID.String(),
		Name:  newAccount.Name,
		Email: newAccount.Email,
		Role:  string(newAccount.Role),
	}, nil
}

func (a *AccountService) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	account, err := a.accountRepo.FindById(ctx, accountID)
	if err != nil {
		return utils.DatabaseError(err, "load account")
	}
	if account == nil {
		return utils.ErrAccountNotFound
	}

	if sub := account.Subscription; sub.HasLiveProviderSubscription() {
		if err := a.gateway.CancelSubscription(ctx, sub.ExternalSubscriptionID); err != nil {
			a.log.Errorw("failed to cancel provider subscription during account deletion",
				"user_id", account.ID,
				"subscription_id", sub.ExternalSubscriptionID,
				"error", err)
		}
	}

	if err := a.accountRepo.DeleteTx(ctx, account.ID); err != nil {
		return utils.DatabaseError(err, "delete account")
	}

	a.log.Infow("account deleted", "user_id", account.ID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
