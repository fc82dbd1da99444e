package repositories

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"habitloop/internal/billing"
	"habitloop/internal/models/db_models"
)

type AccountRepository interface {
	InsertTx(ctx context.Context, account *db_models.Account) error
	FindById(ctx context.Context, id uuid.UUID) (*db_models.Account, error)
	FindByEmail(ctx context.Context, email string) (*db_models.Account, error)
	FindByCustomerID(ctx context.Context, customerID string) (*db_models.Account, error)

	// SetCustomerIDIfAbsent stores customerID only when the account has no
	// provider customer yet. A mock id counts as none and is replaced. It
	// reports whether this call wrote it.
	SetCustomerIDIfAbsent(ctx context.Context, id uuid.UUID, customerID string) (bool, error)

	// SaveSubscription overwrites the subscription record (except the customer
	// id, which is write-once) and the cached tier. When sub.LastEventAt is set
	// the write only applies if no newer event is stored; the result reports
	// whether a row was updated.
	SaveSubscription(ctx context.Context, id uuid.UUID, sub db_models.SubscriptionRecord, tier billing.Tier) (bool, error)

	// DeleteTx permanently removes the account together with its routines and tasks.
	DeleteTx(ctx context.Context, id uuid.UUID) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (a *accountRepository) InsertTx(ctx context.Context, account *db_models.Account) error {
	return a.db.WithContext(ctx).Create(account).Error
}

func (a *accountRepository) FindById(ctx context.Context, id uuid.UUID) (*db_models.Account, error) {
	return a.findOne(ctx, "id = ?", id)
}

func (a *accountRepository) FindByEmail(ctx context.Context, email string) (*db_models.Account, error) {
	return a.findOne(ctx, "email = ?", email)
}

func (a *accountRepository) FindByCustomerID(ctx context.Context, customerID string) (*db_models.Account, error) {
	if customerID == "" {
		return nil, nil
	}
	return a.findOne(ctx, "sub_external_customer_id = ?", customerID)
}

func (a *accountRepository) findOne(ctx context.Context, query string, args ...interface{}) (*db_models.Account, error) {
	var account db_models.Account
	err := a.db.WithContext(ctx).Where(query, args...).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

func (a *accountRepository) SetCustomerIDIfAbsent(ctx context.Context, id uuid.UUID, customerID string) (bool, error) {
	res := a.db.WithContext(ctx).
		Model(&db_models.Account{}).
		Where("id = ? AND (sub_external_customer_id = '' OR sub_external_customer_id IS NULL OR sub_external_customer_id LIKE ?)",
			id, db_models.MockIDPrefix+"%").
		Update("sub_external_customer_id", customerID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (a *accountRepository) SaveSubscription(ctx context.Context, id uuid.UUID, sub db_models.SubscriptionRecord, tier billing.Tier) (bool, error) {
	q := a.db.WithContext(ctx).Model(&db_models.Account{}).Where("id = ?", id)
	if sub.LastEventAt != nil {
		q = q.Where("(sub_last_event_at IS NULL OR sub_last_event_at <= ?)", *sub.LastEventAt)
	}

	res := q.Updates(map[string]interface{}{
		"tier":                         tier,
		"sub_status":                   sub.Status,
		"sub_plan":                     sub.Plan,
		"sub_external_subscription_id": sub.ExternalSubscriptionID,
		"sub_current_period_start":     sub.CurrentPeriodStart,
		"sub_current_period_end":       sub.CurrentPeriodEnd,
		"sub_cancel_at_period_end":     sub.CancelAtPeriodEnd,
		"sub_canceled_at":              sub.CanceledAt,
		"sub_last_event_at":            sub.LastEventAt,
		"sub_last_event_id":            sub.LastEventID,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (a *accountRepository) DeleteTx(ctx context.Context, id uuid.UUID) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var routineIDs []uuid.UUID
		if err := tx.Unscoped().Model(&db_models.Routine{}).Where("account_id = ?", id).Pluck("id", &routineIDs).Error; err != nil {
			return err
		}
		if len(routineIDs) > 0 {
			if err := tx.Unscoped().Where("routine_id IN ?", routineIDs).Delete(&db_models.RoutineTask{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("account_id = ?", id).Delete(&db_models.Routine{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("id = ?", id).Delete(&db_models.Account{}).Error
	})
}
