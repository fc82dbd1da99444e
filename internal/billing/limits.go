package billing

import "github.com/cockroachdb/errors"

// Unlimited marks an unbounded numeric limit.
const Unlimited = -1

// TierLimits are the capabilities attached to a tier.
type TierLimits struct {
	MaxRoutines        int  `json:"max_routines"`
	MaxTasksPerRoutine int  `json:"max_tasks_per_routine"`
	InsightsDays       int  `json:"insights_days"`
	AdvancedInsights   bool `json:"advanced_insights"`
	DataExport         bool `json:"data_export"`
	Coaching           bool `json:"coaching"`
	CustomReminders    bool `json:"custom_reminders"`
	PrioritySupport    bool `json:"priority_support"`
}

// LimitCheck answers whether one more item fits. Limit and Remaining are
// Unlimited for unbounded quotas.
type LimitCheck struct {
	Allowed   bool `json:"allowed"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

// LimitTable holds the limits of every tier. Immutable after construction.
type LimitTable struct {
	byTier map[Tier]TierLimits
}

// NewLimitTable requires an entry for every known tier so a new tier cannot
// silently inherit some other tier's limits.
func NewLimitTable(limits map[Tier]TierLimits) (*LimitTable, error) {
	table := &LimitTable{byTier: make(map[Tier]TierLimits, len(limits))}
	for tier := range tierNames {
		l, ok := limits[tier]
		if !ok {
			return nil, errors.Newf("missing limits for tier %s", tier)
		}
		table.byTier[tier] = l
	}
	return table, nil
}

// DefaultTierLimits is the limit table shipped with the app.
func DefaultTierLimits() map[Tier]TierLimits {
	return map[Tier]TierLimits{
		TierFree: {
			MaxRoutines:        3,
			MaxTasksPerRoutine: 10,
			InsightsDays:       7,
		},
		TierPremium: {
			MaxRoutines:        20,
			MaxTasksPerRoutine: 50,
			InsightsDays:       90,
			AdvancedInsights:   true,
			DataExport:         true,
			CustomReminders:    true,
		},
		TierPremiumPlus: {
			MaxRoutines:        Unlimited,
			MaxTasksPerRoutine: Unlimited,
			InsightsDays:       365,
			AdvancedInsights:   true,
			DataExport:         true,
			Coaching:           true,
			CustomReminders:    true,
			PrioritySupport:    true,
		},
	}
}

// For returns the limits of tier. Unknown tiers get the free limits.
func (t *LimitTable) For(tier Tier) TierLimits {
	if l, ok := t.byTier[tier]; ok {
		return l
	}
	return t.byTier[TierFree]
}

// CanCreateRoutine reports whether a user with currentCount routines may add one more.
func (t *LimitTable) CanCreateRoutine(tier Tier, currentCount int) LimitCheck {
	return check(t.For(tier).MaxRoutines, currentCount, 1)
}

// CanAddTask reports whether increment more tasks fit in a routine holding
// currentCount tasks. An increment below one counts as one.
func (t *LimitTable) CanAddTask(tier Tier, currentCount, increment int) LimitCheck {
	if increment < 1 {
		increment = 1
	}
	return check(t.For(tier).MaxTasksPerRoutine, currentCount, increment)
}

func check(limit, current, increment int) LimitCheck {
	if limit == Unlimited {
		return LimitCheck{Allowed: true, Limit: Unlimited, Remaining: Unlimited}
	}
	if current < 0 {
		current = 0
	}
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	return LimitCheck{
		Allowed:   increment <= remaining,
		Limit:     limit,
		Remaining: remaining,
	}
}
