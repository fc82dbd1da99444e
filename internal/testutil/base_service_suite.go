package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"habitloop/internal/billing"
	"habitloop/internal/logger"
	"habitloop/internal/models/db_models"
)

// Test price ids. premium_plus_yearly is deliberately left without one.
const (
	PricePremiumMonthly     = "price_premium_monthly"
	PricePremiumYearly      = "price_premium_yearly"
	PricePremiumPlusMonthly = "price_premium_plus_monthly"
)

type Stores struct {
	AccountRepo *InMemoryAccountStore
	RoutineRepo *InMemoryRoutineStore
}

// BaseServiceTestSuite provides common fixtures for service test suites.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	stores   Stores
	gateway  *FakeGateway
	mailer   *FakeMailer
	catalog  *billing.Catalog
	resolver *billing.Resolver
	logger   *logger.Logger
	now      time.Time
}

func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.logger = logger.NewNop()

	routines := NewInMemoryRoutineStore()
	s.stores = Stores{
		AccountRepo: NewInMemoryAccountStore(routines),
		RoutineRepo: routines,
	}
	s.gateway = NewFakeGateway()
	s.mailer = NewFakeMailer()

	catalog, err := billing.NewCatalog(billing.DefaultPlans(), map[string]string{
		"premium_monthly":      PricePremiumMonthly,
		"premium_yearly":       PricePremiumYearly,
		"premium_plus_monthly": PricePremiumPlusMonthly,
	}, billing.DefaultFreeFeatures())
	s.Require().NoError(err)
	s.catalog = catalog

	limits, err := billing.NewLimitTable(billing.DefaultTierLimits())
	s.Require().NoError(err)
	s.resolver = billing.NewResolver(limits, s.Clock)
}

func (s *BaseServiceTestSuite) GetContext() context.Context { return s.ctx }
func (s *BaseServiceTestSuite) GetStores() Stores           { return s.stores }
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway    { return s.gateway }
func (s *BaseServiceTestSuite) GetMailer() *FakeMailer      { return s.mailer }
func (s *BaseServiceTestSuite) GetCatalog() *billing.Catalog {
	return s.catalog
}
func (s *BaseServiceTestSuite) GetResolver() *billing.Resolver { return s.resolver }
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger      { return s.logger }
func (s *BaseServiceTestSuite) GetNow() time.Time              { return s.now }

// Clock is the injected time source; Advance moves it.
func (s *BaseServiceTestSuite) Clock() time.Time { return s.now }

func (s *BaseServiceTestSuite) Advance(d time.Duration) { s.now = s.now.Add(d) }

// CreateAccount stores a fresh free account.
func (s *BaseServiceTestSuite) CreateAccount(email string) *db_models.Account {
	account := &db_models.Account{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "x",
		Role:         db_models.RoleUser,
		Tier:         billing.TierFree,
		Subscription: db_models.EmptySubscription(),
	}
	s.Require().NoError(s.stores.AccountRepo.InsertTx(s.ctx, account))
	return account
}

// Reload fetches the stored state of an account.
func (s *BaseServiceTestSuite) Reload(account *db_models.Account) *db_models.Account {
	got, err := s.stores.AccountRepo.FindById(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	return got
}
