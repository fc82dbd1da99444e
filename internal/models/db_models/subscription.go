package db_models

import (
	"strings"
	"time"

	"habitloop/internal/billing"
)

// MockIDPrefix marks provider ids written by the direct activation path.
const MockIDPrefix = "mock_"

// SubscriptionRecord is the provider subscription state stored inline on the
// account row (columns prefixed sub_).
type SubscriptionRecord struct {
	Status                 billing.Status `gorm:"type:varchar(20);not null;default:'none'"`
	Plan                   string         `gorm:"type:varchar(64);not null;default:'none'"`
	ExternalCustomerID     string         `gorm:"type:varchar(255);not null;default:'';index"`
	ExternalSubscriptionID string         `gorm:"type:varchar(255);not null;default:''"`
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool `gorm:"not null;default:false"`
	CanceledAt             *time.Time

	// LastEventAt/LastEventID identify the newest provider event applied.
	LastEventAt *time.Time
	LastEventID string `gorm:"type:varchar(255);not null;default:''"`
}

// EmptySubscription is the record of an account that never subscribed.
func EmptySubscription() SubscriptionRecord {
	return SubscriptionRecord{Status: billing.StatusNone, Plan: billing.PlanNone}
}

// IsActive reports whether the stored status grants paid access.
func (s SubscriptionRecord) IsActive() bool {
	return s.Status.GrantsAccess()
}

// HasProviderCustomer reports whether a real (non-mock) provider customer is
// stored.
func (s SubscriptionRecord) HasProviderCustomer() bool {
	return s.ExternalCustomerID != "" && !strings.HasPrefix(s.ExternalCustomerID, MockIDPrefix)
}

// HasLiveProviderSubscription reports whether a real (non-mock) provider
// subscription may still be billing the customer.
func (s SubscriptionRecord) HasLiveProviderSubscription() bool {
	if s.ExternalSubscriptionID == "" || strings.HasPrefix(s.ExternalSubscriptionID, MockIDPrefix) {
		return false
	}
	switch s.Status {
	case billing.StatusActive, billing.StatusTrialing, billing.StatusPastDue:
		return true
	default:
		return false
	}
}
