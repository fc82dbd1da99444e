package stripe

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v82"

	"habitloop/internal/billing"
	"habitloop/internal/logger"
	"habitloop/pkg/utils"
)

// Gateway talks to the Stripe API on behalf of the billing services.
type Gateway struct {
	client *stripe.Client
	log    *logger.Logger
}

var _ billing.Gateway = (*Gateway)(nil)

func NewGateway(secretKey string, log *logger.Logger) *Gateway {
	return &Gateway{
		client: stripe.NewClient(secretKey, nil),
		log:    log,
	}
}

func (g *Gateway) CreateCustomer(ctx context.Context, params billing.CustomerParams) (string, error) {
	createParams := &stripe.CustomerCreateParams{
		Email: stripe.String(params.Email),
		Metadata: map[string]string{
			billing.MetadataUserID: params.UserID,
		},
	}
	if params.Name != "" {
		createParams.Name = stripe.String(params.Name)
	}

	customer, err := g.client.V1Customers.Create(ctx, createParams)
	if err != nil {
		g.log.Errorw("failed to create Stripe customer", "user_id", params.UserID, "error", err)
		return "", upstream(err, "create customer")
	}

	g.log.Infow("created Stripe customer", "user_id", params.UserID, "customer_id", customer.ID)
	return customer.ID, nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (*billing.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(params.CustomerID),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: params.Metadata,
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: params.Metadata,
		},
	}
	if userID := params.Metadata[billing.MetadataUserID]; userID != "" {
		sessionParams.ClientReferenceID = stripe.String(userID)
	}

	session, err := g.client.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		g.log.Errorw("failed to create Stripe checkout session",
			"customer_id", params.CustomerID,
			"price_id", params.PriceID,
			"error", err)
		return nil, upstream(err, "create checkout session")
	}

	return &billing.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionCreateParams{
		Customer: stripe.String(customerID),
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}

	session, err := g.client.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		g.log.Errorw("failed to create Stripe billing portal session", "customer_id", customerID, "error", err)
		return "", upstream(err, "create portal session")
	}
	return session.URL, nil
}

// CancelSubscription ends the subscription immediately on the Stripe side.
func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, err := g.client.V1Subscriptions.Cancel(ctx, subscriptionID, &stripe.SubscriptionCancelParams{})
	if err != nil {
		return upstream(err, "cancel subscription")
	}
	return nil
}

func upstream(err error, op string) error {
	return errors.Mark(errors.Wrapf(err, "stripe: %s", op), utils.ErrUpstreamFailure)
}
