package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"habitloop/internal/billing"
	"habitloop/internal/models/db_models"
	"habitloop/internal/repositories"
)

var _ repositories.AccountRepository = (*InMemoryAccountStore)(nil)

// InMemoryAccountStore implements repositories.AccountRepository with the same
// conditional-write rules as the gorm repository.
type InMemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]db_models.Account
	routines *InMemoryRoutineStore

	// Err, when set, is returned by every call.
	Err error

	// BeforeSave, when set, runs once at the start of the next
	// SaveSubscription call. Tests use it to land a competing write.
	BeforeSave func()
}

func NewInMemoryAccountStore(routines *InMemoryRoutineStore) *InMemoryAccountStore {
	return &InMemoryAccountStore{
		accounts: make(map[uuid.UUID]db_models.Account),
		routines: routines,
	}
}

func (s *InMemoryAccountStore) InsertTx(_ context.Context, account *db_models.Account) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.Role == "" {
		account.Role = db_models.RoleUser
	}
	if account.Subscription.Status == "" {
		account.Subscription.Status = billing.StatusNone
	}
	if account.Subscription.Plan == "" {
		account.Subscription.Plan = billing.PlanNone
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *InMemoryAccountStore) FindById(_ context.Context, id uuid.UUID) (*db_models.Account, error) {
	return s.find(func(a db_models.Account) bool { return a.ID == id })
}

func (s *InMemoryAccountStore) FindByEmail(_ context.Context, email string) (*db_models.Account, error) {
	return s.find(func(a db_models.Account) bool { return a.Email == email })
}

func (s *InMemoryAccountStore) FindByCustomerID(_ context.Context, customerID string) (*db_models.Account, error) {
	if customerID == "" {
		return nil, s.Err
	}
	return s.find(func(a db_models.Account) bool { return a.Subscription.ExternalCustomerID == customerID })
}

func (s *InMemoryAccountStore) find(match func(db_models.Account) bool) (*db_models.Account, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if match(a) {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InMemoryAccountStore) SetCustomerIDIfAbsent(_ context.Context, id uuid.UUID, customerID string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok || a.Subscription.HasProviderCustomer() {
		return false, nil
	}
	a.Subscription.ExternalCustomerID = customerID
	s.accounts[id] = a
	return true, nil
}

func (s *InMemoryAccountStore) SaveSubscription(_ context.Context, id uuid.UUID, sub db_models.SubscriptionRecord, tier billing.Tier) (bool, error) {
	if hook := s.BeforeSave; hook != nil {
		s.BeforeSave = nil
		hook()
	}
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return false, nil
	}
	stored := a.Subscription.LastEventAt
	if sub.LastEventAt != nil && stored != nil && stored.After(*sub.LastEventAt) {
		return false, nil
	}

	sub.ExternalCustomerID = a.Subscription.ExternalCustomerID
	a.Subscription = sub
	a.Tier = tier
	s.accounts[id] = a
	return true, nil
}

func (s *InMemoryAccountStore) DeleteTx(_ context.Context, id uuid.UUID) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	delete(s.accounts, id)
	s.mu.Unlock()

	if s.routines != nil {
		s.routines.deleteByAccount(id)
	}
	return nil
}

// Count returns the number of stored accounts.
func (s *InMemoryAccountStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
