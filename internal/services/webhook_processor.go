package services

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"habitloop/internal/billing"
	"habitloop/internal/logger"
	"habitloop/internal/models/db_models"
	"habitloop/internal/repositories"
	"habitloop/pkg/utils"
)

type WebhookProcessorInterface interface {
	// Process applies one provider event to the stored subscription state.
	// Errors for which utils.IsWebhookDrop is true mean the event was ignored.
	Process(ctx context.Context, event *billing.Event) error
}

// WebhookProcessor is the only writer of provider-reported subscription state.
type WebhookProcessor struct {
	accountRepo repositories.AccountRepository
	catalog     *billing.Catalog
	mail        IMailService
	log         *logger.Logger
	now         func() time.Time
}

func NewWebhookProcessor(
	accountRepo repositories.AccountRepository,
	catalog *billing.Catalog,
	mail IMailService,
	log *logger.Logger,
	now func() time.Time,
) WebhookProcessorInterface {
	if now == nil {
		now = time.Now
	}
	return &WebhookProcessor{
		accountRepo: accountRepo,
		catalog:     catalog,
		mail:        mail,
		log:         log,
		now:         now,
	}
}

func (p *WebhookProcessor) Process(ctx context.Context, event *billing.Event) error {
	switch event.Type {
	case billing.EventCheckoutSessionCompleted:
		if event.Checkout == nil {
			return missingObject(event)
		}
		return p.handleCheckoutCompleted(ctx, event)

	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated:
		if event.Subscription == nil {
			return missingObject(event)
		}
		return p.handleSubscriptionChanged(ctx, event)

	case billing.EventSubscriptionDeleted:
		if event.Subscription == nil {
			return missingObject(event)
		}
		return p.handleSubscriptionDeleted(ctx, event)

	case billing.EventInvoicePaymentSucceeded:
		if event.Invoice != nil {
			p.log.Infow("invoice paid",
				"event_id", event.ID,
				"customer_id", event.Invoice.CustomerID,
				"invoice_id", event.Invoice.ID)
		}
		return nil

	case billing.EventInvoicePaymentFailed:
		if event.Invoice == nil {
			return missingObject(event)
		}
		return p.handlePaymentFailed(ctx, event)

	default:
		p.log.Debugw("ignoring unhandled event type", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

// handleCheckoutCompleted links the provider customer to the account. The
// subscription itself arrives through customer.subscription.* events.
func (p *WebhookProcessor) handleCheckoutCompleted(ctx context.Context, event *billing.Event) error {
	session := event.Checkout

	rawID := session.Metadata[billing.MetadataUserID]
	if rawID == "" {
		rawID = session.ClientReferenceID
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return errors.Wrapf(utils.ErrMissingMetadata, "checkout session %s", session.SessionID)
	}

	account, err := p.accountRepo.FindById(ctx, userID)
	if err != nil {
		return utils.DatabaseError(err, "load account")
	}
	if account == nil {
		return errors.Wrapf(utils.ErrUserNotFound, "user %s", userID)
	}

	if session.CustomerID == "" {
		return nil
	}
	if existing := account.Subscription.ExternalCustomerID; existing != "" {
		if existing != session.CustomerID {
			p.log.Warnw("checkout completed for a different customer than the stored one",
				"user_id", account.ID,
				"stored_customer_id", existing,
				"event_customer_id", session.CustomerID)
		}
		return nil
	}

	if _, err := p.accountRepo.SetCustomerIDIfAbsent(ctx, account.ID, session.CustomerID); err != nil {
		return utils.DatabaseError(err, "store customer id")
	}
	p.log.Infow("linked customer from checkout", "user_id", account.ID, "customer_id", session.CustomerID)
	return nil
}

func (p *WebhookProcessor) handleSubscriptionChanged(ctx context.Context, event *billing.Event) error {
	snap := event.Subscription

	account, err := p.findByCustomer(ctx, snap.CustomerID)
	if err != nil {
		return err
	}

	status, err := billing.MapProviderStatus(snap.Status)
	if err != nil {
		return err
	}

	if err := checkOrdering(account.Subscription, event, snap.ID, false); err != nil {
		return err
	}

	resolved := p.catalog.ResolvePrice(snap.PriceID)
	if resolved.PlanID == billing.PlanNone && snap.PriceID != "" {
		p.log.Warnw("subscription price is not in the catalog", "event_id", event.ID, "price_id", snap.PriceID)
	}

	tier := billing.TierFree
	if status.GrantsAccess() {
		tier = resolved.Tier
	}

	canceledAt := account.Subscription.CanceledAt
	if canceledAt == nil {
		canceledAt = snap.CanceledAt
	}

	record := db_models.SubscriptionRecord{
		Status:                 status,
		Plan:                   resolved.PlanID,
		ExternalCustomerID:     account.Subscription.ExternalCustomerID,
		ExternalSubscriptionID: snap.ID,
		CurrentPeriodStart:     snap.CurrentPeriodStart,
		CurrentPeriodEnd:       snap.CurrentPeriodEnd,
		CancelAtPeriodEnd:      snap.CancelAtPeriodEnd,
		CanceledAt:             canceledAt,
	}
	if err := p.save(ctx, account, record, tier, event); err != nil {
		return err
	}

	p.log.Infow("subscription synced",
		"event_id", event.ID,
		"user_id", account.ID,
		"status", status,
		"plan", resolved.PlanID,
		"tier", tier)
	return nil
}

func (p *WebhookProcessor) handleSubscriptionDeleted(ctx context.Context, event *billing.Event) error {
	snap := event.Subscription

	account, err := p.findByCustomer(ctx, snap.CustomerID)
	if err != nil {
		return err
	}

	current := account.Subscription
	if current.ExternalSubscriptionID != "" && current.ExternalSubscriptionID != snap.ID && current.IsActive() {
		return errors.Wrapf(utils.ErrStaleEvent, "deletion of superseded subscription %s", snap.ID)
	}
	if err := checkOrdering(current, event, snap.ID, true); err != nil {
		return err
	}

	record := current
	record.Status = billing.StatusCanceled
	record.Plan = billing.PlanNone
	record.ExternalSubscriptionID = snap.ID
	if record.CanceledAt == nil {
		now := p.now().UTC()
		record.CanceledAt = &now
	}
	if err := p.save(ctx, account, record, billing.TierFree, event); err != nil {
		return err
	}

	p.log.Infow("subscription ended", "event_id", event.ID, "user_id", account.ID, "subscription_id", snap.ID)
	return nil
}

// handlePaymentFailed marks the subscription past due and leaves the tier for
// the provider's follow-up subscription events to settle.
func (p *WebhookProcessor) handlePaymentFailed(ctx context.Context, event *billing.Event) error {
	invoice := event.Invoice

	account, err := p.findByCustomer(ctx, invoice.CustomerID)
	if err != nil {
		return err
	}
	if err := checkOrdering(account.Subscription, event, invoice.SubscriptionID, false); err != nil {
		return err
	}

	record := account.Subscription
	record.Status = billing.StatusPastDue
	if err := p.save(ctx, account, record, account.Tier, event); err != nil {
		return err
	}

	p.log.Warnw("invoice payment failed",
		"event_id", event.ID,
		"user_id", account.ID,
		"invoice_id", invoice.ID,
		"attempt", invoice.AttemptCount)

	if err := p.mail.SendPaymentFailedNotice(ctx, account.Email, *invoice); err != nil {
		p.log.Warnw("failed to send payment failure notice", "user_id", account.ID, "error", err)
	}
	return nil
}

func (p *WebhookProcessor) findByCustomer(ctx context.Context, customerID string) (*db_models.Account, error) {
	account, err := p.accountRepo.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, utils.DatabaseError(err, "find account by customer")
	}
	if account == nil {
		return nil, errors.Wrapf(utils.ErrUserNotFound, "customer %q", customerID)
	}
	return account, nil
}

// save stamps the event version on record and writes it. The store refuses the
// write when a newer event landed in between.
func (p *WebhookProcessor) save(ctx context.Context, account *db_models.Account, record db_models.SubscriptionRecord, tier billing.Tier, event *billing.Event) error {
	createdAt := event.CreatedAt.UTC()
	record.LastEventAt = &createdAt
	record.LastEventID = event.ID

	updated, err := p.accountRepo.SaveSubscription(ctx, account.ID, record, tier)
	if err != nil {
		return utils.DatabaseError(err, "save subscription")
	}
	if !updated {
		return errors.Wrapf(utils.ErrStaleEvent, "event %s superseded during write", event.ID)
	}
	return nil
}

// checkOrdering rejects events older than the last applied one. At equal
// timestamps a non-deletion event may not revive a subscription its deletion
// already ended.
func checkOrdering(current db_models.SubscriptionRecord, event *billing.Event, subscriptionID string, deletion bool) error {
	last := current.LastEventAt
	if last == nil || event.ID == current.LastEventID {
		return nil
	}
	if event.CreatedAt.Before(*last) {
		return errors.Wrapf(utils.ErrStaleEvent, "event %s at %s, stored %s at %s",
			event.ID, event.CreatedAt.Format(time.RFC3339), current.LastEventID, last.Format(time.RFC3339))
	}
	if event.CreatedAt.Equal(*last) && !deletion &&
		current.Status == billing.StatusCanceled &&
		subscriptionID != "" && current.ExternalSubscriptionID == subscriptionID {
		return errors.Wrapf(utils.ErrStaleEvent, "event %s would revive ended subscription %s", event.ID, subscriptionID)
	}
	return nil
}

func missingObject(event *billing.Event) error {
	return errors.Mark(errors.Newf("event %s (%s) carries no object", event.ID, event.Type), utils.ErrMalformedWebhook)
}
