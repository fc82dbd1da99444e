package repositories

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"habitloop/internal/models/db_models"
)

// RoutineRepository exposes the counts the limit checks need.
type RoutineRepository interface {
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	FindByID(ctx context.Context, accountID, routineID uuid.UUID) (*db_models.Routine, error)
	CountTasks(ctx context.Context, routineID uuid.UUID) (int64, error)
}

type routineRepository struct {
	db *gorm.DB
}

func NewRoutineRepository(db *gorm.DB) RoutineRepository {
	return &routineRepository{db: db}
}

func (r *routineRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db_models.Routine{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

func (r *routineRepository) FindByID(ctx context.Context, accountID, routineID uuid.UUID) (*db_models.Routine, error) {
	var routine db_models.Routine
	err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", routineID, accountID).
		First(&routine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &routine, nil
}

func (r *routineRepository) CountTasks(ctx context.Context, routineID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db_models.RoutineTask{}).
		Where("routine_id = ?", routineID).
		Count(&count).Error
	return count, err
}
