package billing

import "github.com/cockroachdb/errors"

// Status is the local subscription status stored on the account.
type Status string

const (
	StatusNone     Status = "none"
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// PlanNone marks a record that holds no plan.
const PlanNone = "none"

// GrantsAccess reports whether the status entitles the holder to the paid tier.
func (s Status) GrantsAccess() bool {
	return s == StatusActive || s == StatusTrialing
}

// ErrUnknownProviderStatus is returned for provider statuses with no local mapping.
var ErrUnknownProviderStatus = errors.New("unknown provider subscription status")

// Stripe subscription statuses. Every documented value is listed so a new
// upstream value surfaces as ErrUnknownProviderStatus instead of a silent default.
var providerStatuses = map[string]Status{
	"active":             StatusActive,
	"trialing":           StatusTrialing,
	"past_due":           StatusPastDue,
	"canceled":           StatusCanceled,
	"unpaid":             StatusCanceled,
	"incomplete":         StatusNone,
	"incomplete_expired": StatusCanceled,
	"paused":             StatusPastDue,
}

// MapProviderStatus translates the provider's status vocabulary into Status.
func MapProviderStatus(providerStatus string) (Status, error) {
	status, ok := providerStatuses[providerStatus]
	if !ok {
		return StatusNone, errors.Wrapf(ErrUnknownProviderStatus, "status %q", providerStatus)
	}
	return status, nil
}
