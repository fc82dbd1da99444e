package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"habitloop/internal/billing"
	"habitloop/internal/infra"
	"habitloop/internal/models/db_models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.AutoMigrate(db))
	return db
}

func seedAccount(t *testing.T, repo AccountRepository, email string) *db_models.Account {
	t.Helper()
	account := &db_models.Account{
		Name:         "Test",
		Email:        email,
		PasswordHash: "hash",
		Role:         db_models.RoleUser,
		Subscription: db_models.EmptySubscription(),
	}
	require.NoError(t, repo.InsertTx(context.Background(), account))
	return account
}

func TestAccountRepository_Defaults(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	ctx := context.Background()

	account := seedAccount(t, repo, "a@example.com")

	got, err := repo.FindById(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, billing.TierFree, got.Tier)
	assert.Equal(t, billing.StatusNone, got.Subscription.Status)
	assert.Equal(t, billing.PlanNone, got.Subscription.Plan)
	assert.Empty(t, got.Subscription.ExternalCustomerID)

	missing, err := repo.FindById(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccountRepository_SetCustomerIDIfAbsent(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	ctx := context.Background()
	account := seedAccount(t, repo, "b@example.com")

	wrote, err := repo.SetCustomerIDIfAbsent(ctx, account.ID, "cus_first")
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = repo.SetCustomerIDIfAbsent(ctx, account.ID, "cus_second")
	require.NoError(t, err)
	assert.False(t, wrote)

	got, err := repo.FindByCustomerID(ctx, "cus_first")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, account.ID, got.ID)

	none, err := repo.FindByCustomerID(ctx, "cus_second")
	require.NoError(t, err)
	assert.Nil(t, none)

	empty, err := repo.FindByCustomerID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestAccountRepository_SetCustomerIDIfAbsent_ReplacesMockID(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	ctx := context.Background()
	account := seedAccount(t, repo, "mock@example.com")

	wrote, err := repo.SetCustomerIDIfAbsent(ctx, account.ID, db_models.MockIDPrefix+"cus_1")
	require.NoError(t, err)
	require.True(t, wrote)

	wrote, err = repo.SetCustomerIDIfAbsent(ctx, account.ID, "cus_real")
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = repo.SetCustomerIDIfAbsent(ctx, account.ID, "cus_other")
	require.NoError(t, err)
	assert.False(t, wrote)

	got, err := repo.FindById(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_real", got.Subscription.ExternalCustomerID)
}

func TestAccountRepository_SaveSubscription(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	ctx := context.Background()
	account := seedAccount(t, repo, "c@example.com")
	_, err := repo.SetCustomerIDIfAbsent(ctx, account.ID, "cus_1")
	require.NoError(t, err)

	t1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := t1.AddDate(0, 1, 0)
	sub := db_models.SubscriptionRecord{
		Status:                 billing.StatusActive,
		Plan:                   "premium_monthly",
		ExternalCustomerID:     "cus_ignored",
		ExternalSubscriptionID: "sub_1",
		CurrentPeriodStart:     &t1,
		CurrentPeriodEnd:       &end,
		LastEventAt:            &t1,
		LastEventID:            "evt_1",
	}

	applied, err := repo.SaveSubscription(ctx, account.ID, sub, billing.TierPremium)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.FindById(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.TierPremium, got.Tier)
	assert.Equal(t, billing.StatusActive, got.Subscription.Status)
	assert.Equal(t, "sub_1", got.Subscription.ExternalSubscriptionID)
	assert.Equal(t, "cus_1", got.Subscription.ExternalCustomerID, "customer id is write-once")
	require.NotNil(t, got.Subscription.CurrentPeriodEnd)
	assert.True(t, end.Equal(*got.Subscription.CurrentPeriodEnd))

	t.Run("older event is not applied", func(t *testing.T) {
		older := t1.Add(-time.Minute)
		stale := sub
		stale.Status = billing.StatusPastDue
		stale.LastEventAt = &older
		stale.LastEventID = "evt_0"

		applied, err := repo.SaveSubscription(ctx, account.ID, stale, billing.TierFree)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := repo.FindById(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, got.Subscription.Status)
	})

	t.Run("newer event overwrites and clears fields", func(t *testing.T) {
		later := t1.Add(time.Hour)
		canceled := db_models.SubscriptionRecord{
			Status:      billing.StatusCanceled,
			Plan:        billing.PlanNone,
			CanceledAt:  &later,
			LastEventAt: &later,
			LastEventID: "evt_2",
		}
		applied, err := repo.SaveSubscription(ctx, account.ID, canceled, billing.TierFree)
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.FindById(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.TierFree, got.Tier)
		assert.Equal(t, billing.StatusCanceled, got.Subscription.Status)
		assert.Nil(t, got.Subscription.CurrentPeriodEnd)
		assert.NotNil(t, got.Subscription.CanceledAt)
	})
}

func TestAccountRepository_DeleteTx(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	routines := NewRoutineRepository(db)
	ctx := context.Background()

	account := seedAccount(t, repo, "d@example.com")
	other := seedAccount(t, repo, "e@example.com")

	routine := &db_models.Routine{AccountID: account.ID, Title: "Morning"}
	require.NoError(t, db.Create(routine).Error)
	require.NoError(t, db.Create(&db_models.RoutineTask{RoutineID: routine.ID, Title: "Stretch"}).Error)
	require.NoError(t, db.Create(&db_models.Routine{AccountID: other.ID, Title: "Evening"}).Error)

	count, err := routines.CountByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	tasks, err := routines.CountTasks(ctx, routine.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tasks)

	require.NoError(t, repo.DeleteTx(ctx, account.ID))

	gone, err := repo.FindById(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var remainingTasks int64
	require.NoError(t, db.Unscoped().Model(&db_models.RoutineTask{}).Count(&remainingTasks).Error)
	assert.Zero(t, remainingTasks)

	otherCount, err := routines.CountByAccount(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), otherCount)

	found, err := routines.FindByID(ctx, account.ID, routine.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}
