package services

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"habitloop/internal/billing"
	"habitloop/internal/models/db_models"
	"habitloop/internal/testutil"
	"habitloop/pkg/utils"
)

type WebhookProcessorSuite struct {
	testutil.BaseServiceTestSuite
	processor WebhookProcessorInterface
	eventSeq  int
}

func TestWebhookProcessor(t *testing.T) {
	suite.Run(t, new(WebhookProcessorSuite))
}

func (s *WebhookProcessorSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.eventSeq = 0
	s.processor = NewWebhookProcessor(
		s.GetStores().AccountRepo,
		s.GetCatalog(),
		s.GetMailer(),
		s.GetLogger(),
		s.Clock,
	)
}

func (s *WebhookProcessorSuite) customerAccount(email, customerID string) *db_models.Account {
	account := s.CreateAccount(email)
	written, err := s.GetStores().AccountRepo.SetCustomerIDIfAbsent(s.GetContext(), account.ID, customerID)
	s.Require().NoError(err)
	s.Require().True(written)
	return s.Reload(account)
}

func (s *WebhookProcessorSuite) subscriptionEvent(eventType billing.EventType, at time.Time, snap billing.SubscriptionSnapshot) *billing.Event {
	s.eventSeq++
	return &billing.Event{
		ID:           "evt_" + string(rune('a'+s.eventSeq)),
		Type:         eventType,
		CreatedAt:    at,
		Subscription: &snap,
	}
}

func (s *WebhookProcessorSuite) activeSnapshot(subID, customerID, priceID string) billing.SubscriptionSnapshot {
	start := s.GetNow()
	end := start.AddDate(0, 1, 0)
	return billing.SubscriptionSnapshot{
		ID:                 subID,
		CustomerID:         customerID,
		PriceID:            priceID,
		Status:             "active",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
}

func (s *WebhookProcessorSuite) TestCheckoutCompleted_LinksCustomerOnce() {
	account := s.CreateAccount("checkout@example.com")

	err := s.processor.Process(s.GetContext(), &billing.Event{
		ID:   "evt_co_1",
		Type: billing.EventCheckoutSessionCompleted,
		Checkout: &billing.CheckoutSnapshot{
			SessionID:  "cs_1",
			CustomerID: "cus_first",
			Metadata:   map[string]string{billing.MetadataUserID: account.ID.String()},
		},
	})
	s.Require().NoError(err)
	s.Equal("cus_first", s.Reload(account).Subscription.ExternalCustomerID)

	err = s.processor.Process(s.GetContext(), &billing.Event{
		ID:   "evt_co_2",
		Type: billing.EventCheckoutSessionCompleted,
		Checkout: &billing.CheckoutSnapshot{
			SessionID:  "cs_2",
			CustomerID: "cus_second",
			Metadata:   map[string]string{billing.MetadataUserID: account.ID.String()},
		},
	})
	s.Require().NoError(err)

	stored := s.Reload(account)
	s.Equal("cus_first", stored.Subscription.ExternalCustomerID)
	s.Equal(billing.StatusNone, stored.Subscription.Status)
	s.Equal(billing.TierFree, stored.Tier)
}

func (s *WebhookProcessorSuite) TestCheckoutCompleted_FallsBackToClientReference() {
	account := s.CreateAccount("ref@example.com")

	err := s.processor.Process(s.GetContext(), &billing.Event{
		ID:   "evt_co_ref",
		Type: billing.EventCheckoutSessionCompleted,
		Checkout: &billing.CheckoutSnapshot{
			SessionID:         "cs_ref",
			CustomerID:        "cus_ref",
			ClientReferenceID: account.ID.String(),
		},
	})
	s.Require().NoError(err)
	s.Equal("cus_ref", s.Reload(account).Subscription.ExternalCustomerID)
}

func (s *WebhookProcessorSuite) TestCheckoutCompleted_Drops() {
	err := s.processor.Process(s.GetContext(), &billing.Event{
		ID:       "evt_co_nometa",
		Type:     billing.EventCheckoutSessionCompleted,
		Checkout: &billing.CheckoutSnapshot{SessionID: "cs_x", CustomerID: "cus_x"},
	})
	s.True(errors.Is(err, utils.ErrMissingMetadata))
	s.True(utils.IsWebhookDrop(err))

	err = s.processor.Process(s.GetContext(), &billing.Event{
		ID:   "evt_co_unknown",
		Type: billing.EventCheckoutSessionCompleted,
		Checkout: &billing.CheckoutSnapshot{
			SessionID:  "cs_y",
			CustomerID: "cus_y",
			Metadata:   map[string]string{billing.MetadataUserID: "00000000-0000-4000-8000-000000000001"},
		},
	})
	s.True(errors.Is(err, utils.ErrUserNotFound))
	s.True(utils.IsWebhookDrop(err))
}

func (s *WebhookProcessorSuite) TestSubscriptionCreated_GrantsPlanTier() {
	account := s.customerAccount("sub@example.com", "cus_sub")
	event := s.subscriptionEvent(billing.EventSubscriptionCreated, s.GetNow(),
		s.activeSnapshot("sub_1", "cus_sub", testutil.PricePremiumPlusMonthly))

	s.Require().NoError(s.processor.Process(s.GetContext(), event))

	stored := s.Reload(account)
	s.Equal(billing.TierPremiumPlus, stored.Tier)
	s.Equal(billing.StatusActive, stored.Subscription.Status)
	s.Equal("premium_plus_monthly", stored.Subscription.Plan)
	s.Equal("sub_1", stored.Subscription.ExternalSubscriptionID)
	s.Equal("cus_sub", stored.Subscription.ExternalCustomerID)
	s.Require().NotNil(stored.Subscription.CurrentPeriodEnd)
	s.True(stored.Subscription.CurrentPeriodEnd.After(s.GetNow()))
	s.Equal(event.ID, stored.Subscription.LastEventID)
	s.Equal(billing.TierPremiumPlus, s.GetResolver().EffectiveTier(stored.Holder()))
}

func (s *WebhookProcessorSuite) TestSubscriptionUpdated_UnknownPriceResolvesToFree() {
	account := s.customerAccount("price@example.com", "cus_price")
	event := s.subscriptionEvent(billing.EventSubscriptionUpdated, s.GetNow(),
		s.activeSnapshot("sub_1", "cus_price", "price_not_in_catalog"))

	s.Require().NoError(s.processor.Process(s.GetContext(), event))

	stored := s.Reload(account)
	s.Equal(billing.StatusActive, stored.Subscription.Status)
	s.Equal(billing.PlanNone, stored.Subscription.Plan)
	s.Equal(billing.TierFree, stored.Tier)
}

func (s *WebhookProcessorSuite) TestSubscriptionUpdated_NonGrantingStatusForcesFree() {
	account := s.customerAccount("pastdue@example.com", "cus_pd")
	snap := s.activeSnapshot("sub_1", "cus_pd", testutil.PricePremiumMonthly)
	snap.Status = "unpaid"

	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionUpdated, s.GetNow(), snap)))

	stored := s.Reload(account)
	s.Equal(billing.StatusCanceled, stored.Subscription.Status)
	s.Equal("premium_monthly", stored.Subscription.Plan)
	s.Equal(billing.TierFree, stored.Tier)
}

func (s *WebhookProcessorSuite) TestSubscriptionUpdated_UnknownStatusIsDropped() {
	account := s.customerAccount("weird@example.com", "cus_weird")
	snap := s.activeSnapshot("sub_1", "cus_weird", testutil.PricePremiumMonthly)
	snap.Status = "on_vacation"

	err := s.processor.Process(s.GetContext(), s.subscriptionEvent(billing.EventSubscriptionUpdated, s.GetNow(), snap))
	s.True(errors.Is(err, billing.ErrUnknownProviderStatus))
	s.True(utils.IsWebhookDrop(err))
	s.Equal(billing.StatusNone, s.Reload(account).Subscription.Status)
}

func (s *WebhookProcessorSuite) TestSubscriptionUpdated_CancelAtPeriodEndKeepsStatus() {
	account := s.customerAccount("cape@example.com", "cus_cape")
	snap := s.activeSnapshot("sub_1", "cus_cape", testutil.PricePremiumMonthly)
	canceledAt := s.GetNow()
	snap.CancelAtPeriodEnd = true
	snap.CanceledAt = &canceledAt

	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionUpdated, s.GetNow(), snap)))

	stored := s.Reload(account)
	s.Equal(billing.StatusActive, stored.Subscription.Status)
	s.True(stored.Subscription.CancelAtPeriodEnd)
	s.Equal(billing.TierPremium, stored.Tier)
	s.Require().NotNil(stored.Subscription.CanceledAt)

	// A later snapshot without canceled_at does not clear it.
	snap.CanceledAt = nil
	snap.CancelAtPeriodEnd = false
	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionUpdated, s.GetNow().Add(time.Minute), snap)))
	stored = s.Reload(account)
	s.False(stored.Subscription.CancelAtPeriodEnd)
	s.Require().NotNil(stored.Subscription.CanceledAt)
	s.True(stored.Subscription.CanceledAt.Equal(canceledAt))
}

func (s *WebhookProcessorSuite) TestSubscriptionDeleted_ForcesFree() {
	account := s.customerAccount("del@example.com", "cus_del")
	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionCreated, s.GetNow(),
			s.activeSnapshot("sub_1", "cus_del", testutil.PricePremiumMonthly))))

	s.Advance(time.Hour)
	snap := s.activeSnapshot("sub_1", "cus_del", testutil.PricePremiumMonthly)
	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionDeleted, s.GetNow(), snap)))

	stored := s.Reload(account)
	s.Equal(billing.StatusCanceled, stored.Subscription.Status)
	s.Equal(billing.PlanNone, stored.Subscription.Plan)
	s.Equal(billing.TierFree, stored.Tier)
	s.Equal("sub_1", stored.Subscription.ExternalSubscriptionID)
	s.Require().NotNil(stored.Subscription.CanceledAt)
	s.True(stored.Subscription.CanceledAt.Equal(s.GetNow()))
	s.Equal(billing.TierFree, s.GetResolver().EffectiveTier(stored.Holder()))
}

func (s *WebhookProcessorSuite) TestStaleUpdateAfterDeletionDoesNotResurrect() {
	account := s.customerAccount("order@example.com", "cus_order")
	created := s.GetNow()
	snap := s.activeSnapshot("sub_1", "cus_order", testutil.PricePremiumMonthly)

	deleted := s.subscriptionEvent(billing.EventSubscriptionDeleted, created.Add(2*time.Second), snap)
	s.Require().NoError(s.processor.Process(s.GetContext(), deleted))

	older := s.subscriptionEvent(billing.EventSubscriptionUpdated, created.Add(time.Second), snap)
	err := s.processor.Process(s.GetContext(), older)
	s.True(errors.Is(err, utils.ErrStaleEvent))
	s.True(utils.IsWebhookDrop(err))

	sameSecond := s.subscriptionEvent(billing.EventSubscriptionUpdated, created.Add(2*time.Second), snap)
	err = s.processor.Process(s.GetContext(), sameSecond)
	s.True(errors.Is(err, utils.ErrStaleEvent))

	stored := s.Reload(account)
	s.Equal(billing.StatusCanceled, stored.Subscription.Status)
	s.Equal(billing.TierFree, stored.Tier)
	s.Equal(deleted.ID, stored.Subscription.LastEventID)
}

func (s *WebhookProcessorSuite) TestNewSubscriptionAfterDeletionApplies() {
	account := s.customerAccount("again@example.com", "cus_again")
	old := s.activeSnapshot("sub_old", "cus_again", testutil.PricePremiumMonthly)
	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionDeleted, s.GetNow(), old)))

	fresh := s.activeSnapshot("sub_new", "cus_again", testutil.PricePremiumYearly)
	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionCreated, s.GetNow(), fresh)))

	stored := s.Reload(account)
	s.Equal(billing.StatusActive, stored.Subscription.Status)
	s.Equal("premium_yearly", stored.Subscription.Plan)
	s.Equal(billing.TierPremium, stored.Tier)
}

func (s *WebhookProcessorSuite) TestDeletionOfSupersededSubscriptionIsDropped() {
	account := s.customerAccount("swap@example.com", "cus_swap")
	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionCreated, s.GetNow(),
			s.activeSnapshot("sub_current", "cus_swap", testutil.PricePremiumMonthly))))

	s.Advance(time.Minute)
	err := s.processor.Process(s.GetContext(), s.subscriptionEvent(billing.EventSubscriptionDeleted, s.GetNow(),
		s.activeSnapshot("sub_previous", "cus_swap", testutil.PricePremiumMonthly)))
	s.True(errors.Is(err, utils.ErrStaleEvent))
	s.Equal(billing.StatusActive, s.Reload(account).Subscription.Status)
}

func (s *WebhookProcessorSuite) TestReplayedEventIsIdempotent() {
	account := s.customerAccount("replay@example.com", "cus_replay")
	event := s.subscriptionEvent(billing.EventSubscriptionUpdated, s.GetNow(),
		s.activeSnapshot("sub_1", "cus_replay", testutil.PricePremiumMonthly))

	s.Require().NoError(s.processor.Process(s.GetContext(), event))
	first := s.Reload(account)
	s.Require().NoError(s.processor.Process(s.GetContext(), event))
	second := s.Reload(account)

	s.Equal(first.Tier, second.Tier)
	s.Equal(first.Subscription.Status, second.Subscription.Status)
	s.Equal(first.Subscription.Plan, second.Subscription.Plan)
}

func (s *WebhookProcessorSuite) TestSubscriptionEventForUnknownCustomerIsDropped() {
	err := s.processor.Process(s.GetContext(), s.subscriptionEvent(billing.EventSubscriptionUpdated, s.GetNow(),
		s.activeSnapshot("sub_1", "cus_nobody", testutil.PricePremiumMonthly)))
	s.True(errors.Is(err, utils.ErrUserNotFound))
}

func (s *WebhookProcessorSuite) TestPaymentFailed_MarksPastDueAndNotifies() {
	account := s.customerAccount("fail@example.com", "cus_fail")
	s.Require().NoError(s.processor.Process(s.GetContext(),
		s.subscriptionEvent(billing.EventSubscriptionCreated, s.GetNow(),
			s.activeSnapshot("sub_1", "cus_fail", testutil.PricePremiumMonthly))))

	s.Advance(time.Hour)
	err := s.processor.Process(s.GetContext(), &billing.Event{
		ID:        "evt_inv_fail",
		Type:      billing.EventInvoicePaymentFailed,
		CreatedAt: s.GetNow(),
		Invoice: &billing.InvoiceSnapshot{
			ID:             "in_1",
			CustomerID:     "cus_fail",
			SubscriptionID: "sub_1",
			AmountDue:      499,
			Currency:       "usd",
		},
	})
	s.Require().NoError(err)

	stored := s.Reload(account)
	s.Equal(billing.StatusPastDue, stored.Subscription.Status)
	s.Equal(billing.TierPremium, stored.Tier)
	s.Equal("premium_monthly", stored.Subscription.Plan)
	s.Equal(billing.TierFree, s.GetResolver().EffectiveTier(stored.Holder()))

	s.Require().Len(s.GetMailer().Sent, 1)
	s.Equal("fail@example.com", s.GetMailer().Sent[0].To)
}

func (s *WebhookProcessorSuite) TestPaymentFailed_NotificationErrorIsSwallowed() {
	account := s.customerAccount("mailfail@example.com", "cus_mailfail")
	s.GetMailer().Err = errors.New("smtp down")

	err := s.processor.Process(s.GetContext(), &billing.Event{
		ID:        "evt_inv_2",
		Type:      billing.EventInvoicePaymentFailed,
		CreatedAt: s.GetNow(),
		Invoice:   &billing.InvoiceSnapshot{ID: "in_2", CustomerID: "cus_mailfail"},
	})
	s.Require().NoError(err)
	s.Equal(billing.StatusPastDue, s.Reload(account).Subscription.Status)
}

func (s *WebhookProcessorSuite) TestIgnoredEventTypes() {
	s.NoError(s.processor.Process(s.GetContext(), &billing.Event{
		ID:      "evt_paid",
		Type:    billing.EventInvoicePaymentSucceeded,
		Invoice: &billing.InvoiceSnapshot{ID: "in_3", CustomerID: "cus_any"},
	}))
	s.NoError(s.processor.Process(s.GetContext(), &billing.Event{ID: "evt_other", Type: "charge.refunded"}))
}

func (s *WebhookProcessorSuite) TestStoreFailureIsNotADrop() {
	s.customerAccount("dbfail@example.com", "cus_dbfail")
	s.GetStores().AccountRepo.Err = errors.New("connection reset")

	err := s.processor.Process(s.GetContext(), s.subscriptionEvent(billing.EventSubscriptionUpdated, s.GetNow(),
		s.activeSnapshot("sub_1", "cus_dbfail", testutil.PricePremiumMonthly)))
	s.True(errors.Is(err, utils.ErrDatabaseError))
	s.False(utils.IsWebhookDrop(err))
}
