package stripe

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"habitloop/internal/billing"
	"habitloop/pkg/utils"
)

func (g *Gateway) ParseEvent(payload []byte, signature, secret string) (*billing.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		// Payloads are decoded field by field below, so an account pinned to a
		// different API version is still readable.
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "stripe: verify webhook"), utils.ErrInvalidSignature)
	}
	return convertEvent(event)
}

func (g *Gateway) ParseUnverifiedEvent(payload []byte) (*billing.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, malformed(err, "decode event")
	}
	return convertEvent(event)
}

func convertEvent(event stripe.Event) (*billing.Event, error) {
	if event.ID == "" || event.Type == "" {
		return nil, errors.Mark(errors.New("stripe: event without id or type"), utils.ErrMalformedWebhook)
	}

	out := &billing.Event{
		ID:        event.ID,
		Type:      billing.EventType(event.Type),
		CreatedAt: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case billing.EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, malformed(err, "decode checkout session")
		}
		out.Checkout = checkoutSnapshot(&session)

	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, malformed(err, "decode subscription")
		}
		out.Subscription = subscriptionSnapshot(&sub)

	case billing.EventInvoicePaymentSucceeded, billing.EventInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, malformed(err, "decode invoice")
		}
		out.Invoice = invoiceSnapshot(&invoice)
	}

	return out, nil
}

func checkoutSnapshot(s *stripe.CheckoutSession) *billing.CheckoutSnapshot {
	snap := &billing.CheckoutSnapshot{
		SessionID:         s.ID,
		ClientReferenceID: s.ClientReferenceID,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		snap.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		snap.SubscriptionID = s.Subscription.ID
	}
	return snap
}

// subscriptionSnapshot reads the billing period from the first item; since
// API version 2025-03-31 Stripe no longer reports it on the subscription.
func subscriptionSnapshot(s *stripe.Subscription) *billing.SubscriptionSnapshot {
	snap := &billing.SubscriptionSnapshot{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CanceledAt:        unixPtr(s.CanceledAt),
	}
	if s.Customer != nil {
		snap.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		if item.Price != nil {
			snap.PriceID = item.Price.ID
		}
		snap.CurrentPeriodStart = unixPtr(item.CurrentPeriodStart)
		snap.CurrentPeriodEnd = unixPtr(item.CurrentPeriodEnd)
	}
	return snap
}

func invoiceSnapshot(inv *stripe.Invoice) *billing.InvoiceSnapshot {
	snap := &billing.InvoiceSnapshot{
		ID:               inv.ID,
		AmountDue:        inv.AmountDue,
		Currency:         string(inv.Currency),
		AttemptCount:     inv.AttemptCount,
		HostedInvoiceURL: inv.HostedInvoiceURL,
	}
	if inv.Customer != nil {
		snap.CustomerID = inv.Customer.ID
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		snap.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return snap
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func malformed(err error, op string) error {
	return errors.Mark(errors.Wrapf(err, "stripe: %s", op), utils.ErrMalformedWebhook)
}
