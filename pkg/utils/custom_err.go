package utils

import (
	"github.com/cockroachdb/errors"

	"habitloop/internal/billing"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrAccountNotFound    = errors.New("account not found")
	ErrValidation         = errors.New("validation error")
	ErrDatabaseError      = errors.New("database error")
	ErrUpstreamFailure    = errors.New("billing provider request failed")

	ErrInvalidPlan            = errors.New("invalid plan")
	ErrPlanNotConfigured      = errors.New("plan has no configured provider price")
	ErrAlreadySubscribed      = errors.New("account already has an active subscription")
	ErrNoSubscription         = errors.New("account has no billing customer")
	ErrNothingToCancel        = errors.New("no active subscription to cancel")
	ErrMockActivationDisabled = errors.New("direct activation is disabled")
	ErrRoutineNotFound        = errors.New("routine not found")

	ErrInvalidSignature     = errors.New("webhook signature verification failed")
	ErrMalformedWebhook     = errors.New("malformed webhook payload")
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")

	// Webhook drops: logged and acknowledged, never surfaced to the provider.
	ErrMissingMetadata = errors.New("event is missing user metadata")
	ErrUserNotFound    = errors.New("no account for provider customer")
	ErrStaleEvent      = errors.New("event is older than stored state")
)

// IsWebhookDrop reports whether err means the event should be acknowledged
// without being applied.
func IsWebhookDrop(err error) bool {
	return errors.IsAny(err, ErrMissingMetadata, ErrUserNotFound, ErrStaleEvent, billing.ErrUnknownProviderStatus)
}

// DatabaseError marks a storage failure so the HTTP layer answers 500.
func DatabaseError(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), ErrDatabaseError)
}
