package response_models

import (
	"time"

	"habitloop/internal/billing"
)

type SubscriptionStatusResponse struct {
	CurrentTier      billing.Tier       `json:"current_tier"`
	IsOperator       bool               `json:"is_operator,omitempty"`
	Subscription     SubscriptionInfo   `json:"subscription"`
	Limits           billing.TierLimits `json:"limits"`
	Plans            []PlanResponse     `json:"plans"`
	FreeTierFeatures []string           `json:"free_tier_features"`
}

type SubscriptionInfo struct {
	Status            billing.Status `json:"status"`
	Plan              string         `json:"plan"`
	CurrentPeriodEnd  *time.Time     `json:"current_period_end"`
	CancelAtPeriodEnd bool           `json:"cancel_at_period_end"`
	IsActive          bool           `json:"is_active"`
}

type PlanResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Tier          billing.Tier          `json:"tier"`
	Price         int64                 `json:"price"`
	Currency      string                `json:"currency"`
	Interval      billing.BillingPeriod `json:"interval"`
	IntervalCount int                   `json:"interval_count"`
	Features      []string              `json:"features"`
	// Available is false when no provider price is configured for the plan.
	Available bool `json:"available"`
}

type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type PortalSessionResponse struct {
	URL string `json:"url"`
}

type QuotaResponse struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Allowed   bool `json:"allowed"`
}

type UsageResponse struct {
	Tier     billing.Tier   `json:"tier"`
	Routines QuotaResponse  `json:"routines"`
	Tasks    *QuotaResponse `json:"tasks,omitempty"`
}
