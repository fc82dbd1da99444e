package services

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"habitloop/internal/billing"
	"habitloop/internal/config"
	"habitloop/internal/logger"
	"habitloop/internal/repositories"
	"habitloop/pkg/utils"
)

type CheckoutServiceInterface interface {
	CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, planID string) (*billing.CheckoutSession, error)
}

type CheckoutService struct {
	accountRepo repositories.AccountRepository
	provisioner CustomerProvisionerInterface
	gateway     billing.Gateway
	catalog     *billing.Catalog
	resolver    *billing.Resolver
	urls        config.BillingConfig
	log         *logger.Logger
}

func NewCheckoutService(
	accountRepo repositories.AccountRepository,
	provisioner CustomerProvisionerInterface,
	gateway billing.Gateway,
	catalog *billing.Catalog,
	resolver *billing.Resolver,
	urls config.BillingConfig,
	log *logger.Logger,
) CheckoutServiceInterface {
	return &CheckoutService{
		accountRepo: accountRepo,
		provisioner: provisioner,
		gateway:     gateway,
		catalog:     catalog,
		resolver:    resolver,
		urls:        urls,
		log:         log,
	}
}

// CreateCheckoutSession opens a hosted subscription checkout for planID. No
// subscription state is written here; the webhooks do that.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, planID string) (*billing.CheckoutSession, error) {
	plan, ok := s.catalog.Plan(planID)
	if !ok {
		return nil, errors.Wrapf(utils.ErrInvalidPlan, "plan %q", planID)
	}
	priceID, ok := s.catalog.PriceID(plan.ID)
	if !ok {
		return nil, errors.Wrapf(utils.ErrPlanNotConfigured, "plan %q", plan.ID)
	}

	account, err := s.accountRepo.FindById(ctx, accountID)
	if err != nil {
		return nil, utils.DatabaseError(err, "load account")
	}
	if account == nil {
		return nil, utils.ErrAccountNotFound
	}
	// Operators are judged on their own subscription, not the role.
	holder := account.Holder()
	holder.IsOperator = false
	if s.resolver.EffectiveTier(holder) != billing.TierFree {
		return nil, utils.ErrAlreadySubscribed
	}

	customerID, err := s.provisioner.EnsureCustomer(ctx, account)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.urls.SuccessURL,
		CancelURL:  s.urls.CancelURL,
		Metadata: map[string]string{
			billing.MetadataUserID: account.ID.String(),
			billing.MetadataPlanID: plan.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("checkout session created",
		"user_id", account.ID,
		"plan_id", plan.ID,
		"session_id", session.ID)
	return session, nil
}
