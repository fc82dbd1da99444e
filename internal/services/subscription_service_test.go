package services

import (
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"habitloop/internal/billing"
	"habitloop/internal/config"
	"habitloop/internal/models/db_models"
	"habitloop/internal/testutil"
	"habitloop/pkg/utils"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	settings config.BillingConfig
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.settings = config.BillingConfig{PortalReturnURL: "https://app.test/settings"}
}

func (s *SubscriptionServiceSuite) service() SubscriptionServiceInterface {
	return NewSubscriptionService(
		s.GetStores().AccountRepo,
		s.GetStores().RoutineRepo,
		s.GetGateway(),
		s.GetCatalog(),
		s.GetResolver(),
		s.settings,
		s.GetLogger(),
		s.Clock,
	)
}

func (s *SubscriptionServiceSuite) subscribe(account *db_models.Account, status billing.Status, tier billing.Tier, periodEnd time.Time) {
	record := s.Reload(account).Subscription
	record.Status = status
	record.Plan = "premium_monthly"
	record.ExternalSubscriptionID = "sub_live"
	record.CurrentPeriodEnd = &periodEnd
	_, err := s.GetStores().AccountRepo.SaveSubscription(s.GetContext(), account.ID, record, tier)
	s.Require().NoError(err)
}

func (s *SubscriptionServiceSuite) TestGetStatus_Free() {
	account := s.CreateAccount("free@example.com")

	status, err := s.service().GetStatus(s.GetContext(), account.ID)
	s.Require().NoError(err)

	s.Equal(billing.TierFree, status.CurrentTier)
	s.Equal(billing.StatusNone, status.Subscription.Status)
	s.Equal(billing.PlanNone, status.Subscription.Plan)
	s.False(status.Subscription.IsActive)
	s.Equal(3, status.Limits.MaxRoutines)
	s.Len(status.Plans, 4)
	s.NotEmpty(status.FreeTierFeatures)

	for _, p := range status.Plans {
		s.Equal(p.ID != "premium_plus_yearly", p.Available, p.ID)
	}
}

func (s *SubscriptionServiceSuite) TestGetStatus_ElapsedPeriodDowngradesWithoutWebhook() {
	account := s.CreateAccount("lapse@example.com")
	s.subscribe(account, billing.StatusActive, billing.TierPremium, s.GetNow().Add(time.Hour))

	status, err := s.service().GetStatus(s.GetContext(), account.ID)
	s.Require().NoError(err)
	s.Equal(billing.TierPremium, status.CurrentTier)
	s.Equal(20, status.Limits.MaxRoutines)

	s.Advance(2 * time.Hour)
	status, err = s.service().GetStatus(s.GetContext(), account.ID)
	s.Require().NoError(err)
	s.Equal(billing.TierFree, status.CurrentTier)
	s.True(status.Subscription.IsActive)
}

func (s *SubscriptionServiceSuite) TestGetStatus_OperatorGetsTopTier() {
	account := s.CreateAccount("ops@example.com")
	account.Role = db_models.RoleAdmin
	s.Require().NoError(s.GetStores().AccountRepo.InsertTx(s.GetContext(), account))

	status, err := s.service().GetStatus(s.GetContext(), account.ID)
	s.Require().NoError(err)
	s.Equal(billing.TopTier, status.CurrentTier)
	s.True(status.IsOperator)
	s.Equal(billing.Unlimited, status.Limits.MaxRoutines)
}

func (s *SubscriptionServiceSuite) TestScheduleCancellation() {
	account := s.CreateAccount("cancel@example.com")
	s.subscribe(account, billing.StatusActive, billing.TierPremium, s.GetNow().AddDate(0, 1, 0))

	s.Require().NoError(s.service().ScheduleCancellation(s.GetContext(), account.ID))

	stored := s.Reload(account)
	s.True(stored.Subscription.CancelAtPeriodEnd)
	s.Equal(billing.StatusActive, stored.Subscription.Status)
	s.Equal(billing.TierPremium, stored.Tier)
	s.Require().NotNil(stored.Subscription.CanceledAt)
	s.True(stored.Subscription.CanceledAt.Equal(s.GetNow()))
	s.Empty(s.GetGateway().Canceled)

	// A second request keeps the first canceled_at.
	first := *stored.Subscription.CanceledAt
	s.Advance(time.Hour)
	s.Require().NoError(s.service().ScheduleCancellation(s.GetContext(), account.ID))
	s.True(s.Reload(account).Subscription.CanceledAt.Equal(first))
}

func (s *SubscriptionServiceSuite) TestScheduleCancellation_NothingActive() {
	account := s.CreateAccount("none@example.com")
	err := s.service().ScheduleCancellation(s.GetContext(), account.ID)
	s.True(errors.Is(err, utils.ErrNothingToCancel))

	s.subscribe(account, billing.StatusPastDue, billing.TierPremium, s.GetNow().AddDate(0, 1, 0))
	err = s.service().ScheduleCancellation(s.GetContext(), account.ID)
	s.True(errors.Is(err, utils.ErrNothingToCancel))
}

func (s *SubscriptionServiceSuite) TestCreatePortalSession() {
	account := s.CreateAccount("portal@example.com")

	_, err := s.service().CreatePortalSession(s.GetContext(), account.ID)
	s.True(errors.Is(err, utils.ErrNoSubscription))

	_, err = s.GetStores().AccountRepo.SetCustomerIDIfAbsent(s.GetContext(), account.ID, "cus_portal")
	s.Require().NoError(err)

	url, err := s.service().CreatePortalSession(s.GetContext(), account.ID)
	s.Require().NoError(err)
	s.Contains(url, "cus_portal")
	s.Equal([]string{"cus_portal"}, s.GetGateway().PortalCustomers)
}

func (s *SubscriptionServiceSuite) TestActivateDirect_DisabledByDefault() {
	account := s.CreateAccount("mock@example.com")

	err := s.service().ActivateDirect(s.GetContext(), account.ID, "premium_monthly")
	s.True(errors.Is(err, utils.ErrMockActivationDisabled))
	s.Equal(billing.TierFree, s.Reload(account).Tier)
}

func (s *SubscriptionServiceSuite) TestActivateDirect_Enabled() {
	s.settings.MockActivation = true
	account := s.CreateAccount("mockon@example.com")

	s.Require().NoError(s.service().ActivateDirect(s.GetContext(), account.ID, "premium_plus_yearly"))

	stored := s.Reload(account)
	s.Equal(billing.TierPremiumPlus, stored.Tier)
	s.Equal(billing.StatusActive, stored.Subscription.Status)
	s.Equal("premium_plus_yearly", stored.Subscription.Plan)
	s.True(strings.HasPrefix(stored.Subscription.ExternalSubscriptionID, db_models.MockIDPrefix))
	s.True(strings.HasPrefix(stored.Subscription.ExternalCustomerID, db_models.MockIDPrefix))
	s.Require().NotNil(stored.Subscription.CurrentPeriodEnd)
	s.True(stored.Subscription.CurrentPeriodEnd.Equal(s.GetNow().AddDate(1, 0, 0)))
	s.False(stored.Subscription.HasLiveProviderSubscription())

	_, err := s.service().CreatePortalSession(s.GetContext(), account.ID)
	s.True(errors.Is(err, utils.ErrNoSubscription))

	err = s.service().ActivateDirect(s.GetContext(), account.ID, "bogus")
	s.True(errors.Is(err, utils.ErrInvalidPlan))
}

func (s *SubscriptionServiceSuite) TestUsage() {
	account := s.CreateAccount("usage@example.com")
	routineID := s.GetStores().RoutineRepo.AddRoutine(account.ID, "Morning", 10)
	s.GetStores().RoutineRepo.AddRoutine(account.ID, "Evening", 2)

	usage, err := s.service().Usage(s.GetContext(), account.ID, &routineID)
	s.Require().NoError(err)
	s.Equal(billing.TierFree, usage.Tier)
	s.Equal(2, usage.Routines.Used)
	s.Equal(3, usage.Routines.Limit)
	s.Equal(1, usage.Routines.Remaining)
	s.True(usage.Routines.Allowed)
	s.Require().NotNil(usage.Tasks)
	s.False(usage.Tasks.Allowed)
	s.Equal(0, usage.Tasks.Remaining)

	other := uuid.New()
	_, err = s.service().Usage(s.GetContext(), account.ID, &other)
	s.True(errors.Is(err, utils.ErrRoutineNotFound))
}

func (s *SubscriptionServiceSuite) TestActivateDirect_LosesToConcurrentWebhook() {
	s.settings.MockActivation = true
	account := s.CreateAccount("race@example.com")
	store := s.GetStores().AccountRepo

	applied := s.GetNow().Add(-time.Hour)
	record := s.Reload(account).Subscription
	record.Status = billing.StatusCanceled
	record.LastEventAt = &applied
	record.LastEventID = "evt_old"
	_, err := store.SaveSubscription(s.GetContext(), account.ID, record, billing.TierFree)
	s.Require().NoError(err)

	store.BeforeSave = func() {
		newer := s.GetNow()
		webhook := s.Reload(account).Subscription
		webhook.Status = billing.StatusPastDue
		webhook.LastEventAt = &newer
		webhook.LastEventID = "evt_new"
		_, err := store.SaveSubscription(s.GetContext(), account.ID, webhook, billing.TierFree)
		s.Require().NoError(err)
	}

	err = s.service().ActivateDirect(s.GetContext(), account.ID, "premium_monthly")
	s.True(errors.Is(err, utils.ErrDatabaseError))

	stored := s.Reload(account)
	s.Equal(billing.StatusPastDue, stored.Subscription.Status)
	s.Equal(billing.TierFree, stored.Tier)
	s.Equal("evt_new", stored.Subscription.LastEventID)
}
