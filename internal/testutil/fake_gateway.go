package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"habitloop/internal/billing"
	"habitloop/pkg/utils"
)

var _ billing.Gateway = (*FakeGateway)(nil)

// ValidSignature is the only signature FakeGateway.ParseEvent accepts.
const ValidSignature = "t=1,v1=valid"

// FakeGateway records calls instead of talking to a billing provider.
type FakeGateway struct {
	mu sync.Mutex

	CustomersCreated []billing.CustomerParams
	Checkouts        []billing.CheckoutParams
	PortalCustomers  []string
	Canceled         []string
	VerifiedParses   int
	UnverifiedParses int

	// Event is returned by both parse methods.
	Event *billing.Event

	CreateCustomerErr error
	CheckoutErr       error
	PortalErr         error
	CancelErr         error
	ParseErr          error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (g *FakeGateway) CreateCustomer(_ context.Context, params billing.CustomerParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.CreateCustomerErr != nil {
		return "", g.CreateCustomerErr
	}
	g.CustomersCreated = append(g.CustomersCreated, params)
	return fmt.Sprintf("cus_%d", len(g.CustomersCreated)), nil
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, params billing.CheckoutParams) (*billing.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.CheckoutErr != nil {
		return nil, g.CheckoutErr
	}
	g.Checkouts = append(g.Checkouts, params)
	id := fmt.Sprintf("cs_test_%d", len(g.Checkouts))
	return &billing.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (g *FakeGateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.PortalErr != nil {
		return "", g.PortalErr
	}
	g.PortalCustomers = append(g.PortalCustomers, customerID)
	return "https://billing.stripe.test/session/" + customerID + "?return=" + returnURL, nil
}

func (g *FakeGateway) CancelSubscription(_ context.Context, subscriptionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Canceled = append(g.Canceled, subscriptionID)
	return g.CancelErr
}

func (g *FakeGateway) ParseEvent(_ []byte, signature, secret string) (*billing.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.VerifiedParses++
	if secret == "" || signature != ValidSignature {
		return nil, errors.Mark(errors.New("fake: bad signature"), utils.ErrInvalidSignature)
	}
	return g.event()
}

func (g *FakeGateway) ParseUnverifiedEvent(_ []byte) (*billing.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.UnverifiedParses++
	return g.event()
}

func (g *FakeGateway) event() (*billing.Event, error) {
	if g.ParseErr != nil {
		return nil, g.ParseErr
	}
	if g.Event == nil {
		return nil, errors.Mark(errors.New("fake: no event queued"), utils.ErrMalformedWebhook)
	}
	return g.Event, nil
}
