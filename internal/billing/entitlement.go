package billing

import "time"

// Holder is the slice of an account the resolver needs.
type Holder struct {
	CachedTier       Tier
	Status           Status
	CurrentPeriodEnd *time.Time
	IsOperator       bool
}

// Entitlement is the resolved set of capabilities a user may use right now.
type Entitlement struct {
	Tier       Tier       `json:"tier"`
	Limits     TierLimits `json:"limits"`
	IsOperator bool       `json:"is_operator"`
}

// Resolver turns stored subscription state into the effective tier. It must be
// consulted on every gated request: a period end passing is a transition no
// webhook reports.
type Resolver struct {
	limits *LimitTable
	now    func() time.Time
}

func NewResolver(limits *LimitTable, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{limits: limits, now: now}
}

// EffectiveTier is the single source of truth for gating.
func (r *Resolver) EffectiveTier(h Holder) Tier {
	if h.IsOperator {
		return TopTier
	}
	if !h.Status.GrantsAccess() {
		return TierFree
	}
	if h.CurrentPeriodEnd != nil && !h.CurrentPeriodEnd.After(r.now()) {
		return TierFree
	}

	switch h.CachedTier {
	case TierPremium, TierPremiumPlus:
		return h.CachedTier
	default:
		return TierFree
	}
}

// Resolve returns the effective tier together with its limits.
func (r *Resolver) Resolve(h Holder) Entitlement {
	tier := r.EffectiveTier(h)
	return Entitlement{
		Tier:       tier,
		Limits:     r.limits.For(tier),
		IsOperator: h.IsOperator,
	}
}

// Limits exposes the table the resolver was built with.
func (r *Resolver) Limits() *LimitTable {
	return r.limits
}
