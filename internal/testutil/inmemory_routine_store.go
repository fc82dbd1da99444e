package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"habitloop/internal/models/db_models"
	"habitloop/internal/repositories"
)

var _ repositories.RoutineRepository = (*InMemoryRoutineStore)(nil)

type InMemoryRoutineStore struct {
	mu       sync.RWMutex
	routines map[uuid.UUID]db_models.Routine
	tasks    map[uuid.UUID]int
}

func NewInMemoryRoutineStore() *InMemoryRoutineStore {
	return &InMemoryRoutineStore{
		routines: make(map[uuid.UUID]db_models.Routine),
		tasks:    make(map[uuid.UUID]int),
	}
}

// AddRoutine stores a routine for accountID with taskCount tasks.
func (s *InMemoryRoutineStore) AddRoutine(accountID uuid.UUID, title string, taskCount int) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := db_models.Routine{AccountID: accountID, Title: title, IsActive: true}
	r.ID = uuid.New()
	s.routines[r.ID] = r
	s.tasks[r.ID] = taskCount
	return r.ID
}

func (s *InMemoryRoutineStore) CountByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.routines {
		if r.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryRoutineStore) FindByID(_ context.Context, accountID, routineID uuid.UUID) (*db_models.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routines[routineID]
	if !ok || r.AccountID != accountID {
		return nil, nil
	}
	return &r, nil
}

func (s *InMemoryRoutineStore) CountTasks(_ context.Context, routineID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(s.tasks[routineID]), nil
}

func (s *InMemoryRoutineStore) deleteByAccount(accountID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.routines {
		if r.AccountID == accountID {
			delete(s.routines, id)
			delete(s.tasks, id)
		}
	}
}
