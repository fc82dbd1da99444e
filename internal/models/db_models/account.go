package db_models

import "habitloop/internal/billing"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Account struct {
	BaseModel
	Name         string
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	Role         Role `gorm:"type:varchar(20);not null;default:'user'"`

	// Tier caches the tier of the current plan. Gating always goes through
	// billing.Resolver, never this column.
	Tier         billing.Tier       `gorm:"type:varchar(20);not null;default:'free'"`
	Subscription SubscriptionRecord `gorm:"embedded;embeddedPrefix:sub_"`

	Routines []Routine `gorm:"foreignKey:AccountID"`
}

func (a *Account) IsOperator() bool {
	return a.Role == RoleAdmin
}

// Holder is the view of the account the entitlement resolver works on.
func (a *Account) Holder() billing.Holder {
	return billing.Holder{
		CachedTier:       a.Tier,
		Status:           a.Subscription.Status,
		CurrentPeriodEnd: a.Subscription.CurrentPeriodEnd,
		IsOperator:       a.IsOperator(),
	}
}
