package billing

import (
	"context"
	"time"
)

type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventSubscriptionCreated      EventType = "customer.subscription.created"
	EventSubscriptionUpdated      EventType = "customer.subscription.updated"
	EventSubscriptionDeleted      EventType = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     EventType = "invoice.payment_failed"
)

// Metadata key carrying the internal account id on provider objects.
const MetadataUserID = "user_id"

// MetadataPlanID records which catalog plan a checkout was opened for.
const MetadataPlanID = "plan_id"

// Event is a provider webhook delivery reduced to what reconciliation needs.
// Exactly one of the snapshot pointers is set for the handled types.
type Event struct {
	ID        string
	Type      EventType
	CreatedAt time.Time

	Checkout     *CheckoutSnapshot
	Subscription *SubscriptionSnapshot
	Invoice      *InvoiceSnapshot
}

type CheckoutSnapshot struct {
	SessionID         string
	CustomerID        string
	SubscriptionID    string
	ClientReferenceID string
	Metadata          map[string]string
}

// SubscriptionSnapshot is the full current state of a provider subscription.
type SubscriptionSnapshot struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
}

type InvoiceSnapshot struct {
	ID               string
	CustomerID       string
	SubscriptionID   string
	AmountDue        int64
	Currency         string
	AttemptCount     int64
	HostedInvoiceURL string
}

type CustomerParams struct {
	UserID string
	Email  string
	Name   string
}

type CheckoutParams struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	// Metadata is attached to both the session and the subscription it creates.
	Metadata map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Gateway is the billing provider as seen by the services.
type Gateway interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// ParseEvent verifies the signature against secret and decodes the event.
	ParseEvent(payload []byte, signature, secret string) (*Event, error)
	// ParseUnverifiedEvent decodes an event without any signature check.
	ParseUnverifiedEvent(payload []byte) (*Event, error)
}
