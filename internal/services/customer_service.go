package services

import (
	"context"

	"habitloop/internal/billing"
	"habitloop/internal/logger"
	"habitloop/internal/models/db_models"
	"habitloop/internal/repositories"
	"habitloop/pkg/utils"
)

type CustomerProvisionerInterface interface {
	// EnsureCustomer returns the account's billing customer id, creating the
	// customer at the provider on first use. A mock id from direct activation
	// is replaced by a real customer.
	EnsureCustomer(ctx context.Context, account *db_models.Account) (string, error)
}

type CustomerProvisioner struct {
	accountRepo repositories.AccountRepository
	gateway     billing.Gateway
	log         *logger.Logger
}

func NewCustomerProvisioner(accountRepo repositories.AccountRepository, gateway billing.Gateway, log *logger.Logger) CustomerProvisionerInterface {
	return &CustomerProvisioner{
		accountRepo: accountRepo,
		gateway:     gateway,
		log:         log,
	}
}

func (p *CustomerProvisioner) EnsureCustomer(ctx context.Context, account *db_models.Account) (string, error) {
	if account.Subscription.HasProviderCustomer() {
		return account.Subscription.ExternalCustomerID, nil
	}

	customerID, err := p.gateway.CreateCustomer(ctx, billing.CustomerParams{
		UserID: account.ID.String(),
		Email:  account.Email,
		Name:   account.Name,
	})
	if err != nil {
		return "", err
	}

	written, err := p.accountRepo.SetCustomerIDIfAbsent(ctx, account.ID, customerID)
	if err != nil {
		return "", utils.DatabaseError(err, "store customer id")
	}
	if written {
		account.Subscription.ExternalCustomerID = customerID
		return customerID, nil
	}

	// A concurrent request stored its customer first; that one wins.
	stored, err := p.accountRepo.FindById(ctx, account.ID)
	if err != nil {
		return "", utils.DatabaseError(err, "reload account")
	}
	if stored == nil || !stored.Subscription.HasProviderCustomer() {
		return "", utils.ErrAccountNotFound
	}

	p.log.Warnw("provider customer created concurrently, keeping the stored one",
		"user_id", account.ID,
		"kept_customer_id", stored.Subscription.ExternalCustomerID,
		"orphan_customer_id", customerID)

	account.Subscription.ExternalCustomerID = stored.Subscription.ExternalCustomerID
	return stored.Subscription.ExternalCustomerID, nil
}
