package db_models

import "github.com/google/uuid"

// Routine and RoutineTask are owned by the habit features; billing only counts them.
type Routine struct {
	BaseModel
	AccountID uuid.UUID `gorm:"type:uuid;index"`
	Title     string
	IsActive  bool `gorm:"default:true"`

	Tasks []RoutineTask `gorm:"foreignKey:RoutineID"`
}

type RoutineTask struct {
	BaseModel
	RoutineID uuid.UUID `gorm:"type:uuid;index"`
	Title     string
	Position  int
}
