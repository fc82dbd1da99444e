package billing

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type BillingPeriod string

const (
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
)

// Plan is one purchasable catalog entry. Prices are in minor units (499 = $4.99).
type Plan struct {
	ID            string
	Name          string
	Tier          Tier
	PriceMinor    int64
	Currency      string
	Interval      BillingPeriod
	IntervalCount int
	Features      []string
}

// ResolvedPlan is the outcome of looking a provider price up in the catalog.
type ResolvedPlan struct {
	PlanID string
	Tier   Tier
}

var unresolvedPlan = ResolvedPlan{PlanID: PlanNone, Tier: TierFree}

// Catalog maps plan ids to plans and plan ids to provider price ids in both
// directions. It is built once at startup and never mutated.
type Catalog struct {
	plans        []Plan
	byID         map[string]Plan
	priceByPlan  map[string]string
	planByPrice  map[string]string
	freeFeatures []string
}

// NewCatalog validates plans and the plan -> price id table. Plans missing from
// prices (or mapped to "") are valid but not purchasable.
func NewCatalog(plans []Plan, prices map[string]string, freeFeatures []string) (*Catalog, error) {
	c := &Catalog{
		plans:        make([]Plan, 0, len(plans)),
		byID:         make(map[string]Plan, len(plans)),
		priceByPlan:  make(map[string]string, len(prices)),
		planByPrice:  make(map[string]string, len(prices)),
		freeFeatures: slices.Clone(freeFeatures),
	}

	for _, p := range plans {
		if p.ID == "" || p.ID == PlanNone {
			return nil, errors.Newf("invalid plan id %q", p.ID)
		}
		if !p.Tier.Valid() || p.Tier == TierFree {
			return nil, errors.Newf("plan %s must map to a paid tier", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, errors.Newf("duplicate plan id %s", p.ID)
		}
		p.Features = slices.Clone(p.Features)
		c.plans = append(c.plans, p)
		c.byID[p.ID] = p
	}

	for planID, priceID := range prices {
		if priceID == "" {
			continue
		}
		if _, ok := c.byID[planID]; !ok {
			return nil, errors.Newf("price %s configured for unknown plan %s", priceID, planID)
		}
		if other, dup := c.planByPrice[priceID]; dup {
			return nil, errors.Newf("price %s mapped to both %s and %s", priceID, other, planID)
		}
		c.priceByPlan[planID] = priceID
		c.planByPrice[priceID] = planID
	}

	return c, nil
}

// Plan returns the plan with the given id.
func (c *Catalog) Plan(id string) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// PriceID returns the provider price configured for planID.
func (c *Catalog) PriceID(planID string) (string, bool) {
	price, ok := c.priceByPlan[planID]
	return price, ok
}

// ResolvePrice maps a provider price id to a plan. Unknown prices resolve to
// {none, free} instead of failing.
func (c *Catalog) ResolvePrice(priceID string) ResolvedPlan {
	planID, ok := c.planByPrice[priceID]
	if !ok {
		return unresolvedPlan
	}
	return ResolvedPlan{PlanID: planID, Tier: c.byID[planID].Tier}
}

// TierOf returns the tier of planID, or TierFree for unknown plans.
func (c *Catalog) TierOf(planID string) Tier {
	if p, ok := c.byID[planID]; ok {
		return p.Tier
	}
	return TierFree
}

// Plans returns the catalog in declaration order.
func (c *Catalog) Plans() []Plan {
	return lo.Map(c.plans, func(p Plan, _ int) Plan {
		p.Features = slices.Clone(p.Features)
		return p
	})
}

func (c *Catalog) FreeFeatures() []string {
	return slices.Clone(c.freeFeatures)
}

// DefaultFreeFeatures is what every account gets without paying.
func DefaultFreeFeatures() []string {
	return []string{
		"Up to 3 routines",
		"Up to 10 tasks per routine",
		"7 days of insights",
		"Daily check-ins",
	}
}

// DefaultPlans is the catalog shipped with the app. Provider price ids are
// supplied separately through configuration.
func DefaultPlans() []Plan {
	premium := []string{
		"Up to 20 routines",
		"Up to 50 tasks per routine",
		"90 days of insights",
		"Advanced insights",
		"Data export",
		"Custom reminders",
	}
	premiumPlus := []string{
		"Unlimited routines",
		"Unlimited tasks per routine",
		"365 days of insights",
		"Advanced insights",
		"Data export",
		"Custom reminders",
		"Habit coaching",
		"Priority support",
	}

	return []Plan{
		{ID: "premium_monthly", Name: "Premium Monthly", Tier: TierPremium, PriceMinor: 499, Currency: "USD", Interval: PeriodMonth, IntervalCount: 1, Features: premium},
		{ID: "premium_yearly", Name: "Premium Yearly", Tier: TierPremium, PriceMinor: 3999, Currency: "USD", Interval: PeriodYear, IntervalCount: 1, Features: premium},
		{ID: "premium_plus_monthly", Name: "Premium Plus Monthly", Tier: TierPremiumPlus, PriceMinor: 999, Currency: "USD", Interval: PeriodMonth, IntervalCount: 1, Features: premiumPlus},
		{ID: "premium_plus_yearly", Name: "Premium Plus Yearly", Tier: TierPremiumPlus, PriceMinor: 7999, Currency: "USD", Interval: PeriodYear, IntervalCount: 1, Features: premiumPlus},
	}
}
