package services

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"habitloop/internal/billing"
	"habitloop/internal/config"
	"habitloop/internal/logger"
	"habitloop/internal/models/db_models"
	"habitloop/internal/models/response_models"
	"habitloop/internal/repositories"
	"habitloop/pkg/utils"
)

type SubscriptionServiceInterface interface {
	GetStatus(ctx context.Context, accountID uuid.UUID) (*response_models.SubscriptionStatusResponse, error)
	Entitlement(ctx context.Context, accountID uuid.UUID) (billing.Entitlement, error)
	Usage(ctx context.Context, accountID uuid.UUID, routineID *uuid.UUID) (*response_models.UsageResponse, error)

	CreatePortalSession(ctx context.Context, accountID uuid.UUID) (string, error)
	// ScheduleCancellation flags the subscription to end with the current
	// period. The provider is not called; the portal is where the user confirms.
	ScheduleCancellation(ctx context.Context, accountID uuid.UUID) error

	// ActivateDirect grants a plan without payment. Only available when the
	// mock activation flag is on.
	ActivateDirect(ctx context.Context, accountID uuid.UUID, planID string) error
}

type SubscriptionService struct {
	accountRepo repositories.AccountRepository
	routineRepo repositories.RoutineRepository
	gateway     billing.Gateway
	catalog     *billing.Catalog
	resolver    *billing.Resolver
	settings    config.BillingConfig
	log         *logger.Logger
	now         func() time.Time
}

func NewSubscriptionService(
	accountRepo repositories.AccountRepository,
	routineRepo repositories.RoutineRepository,
	gateway billing.Gateway,
	catalog *billing.Catalog,
	resolver *billing.Resolver,
	settings config.BillingConfig,
	log *logger.Logger,
	now func() time.Time,
) SubscriptionServiceInterface {
	if now == nil {
		now = time.Now
	}
	return &SubscriptionService{
		accountRepo: accountRepo,
		routineRepo: routineRepo,
		gateway:     gateway,
		catalog:     catalog,
		resolver:    resolver,
		settings:    settings,
		log:         log,
		now:         now,
	}
}

func (s *SubscriptionService) GetStatus(ctx context.Context, accountID uuid.UUID) (*response_models.SubscriptionStatusResponse, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	entitlement := s.resolver.Resolve(account.Holder())
	sub := account.Subscription

	plans := lo.Map(s.catalog.Plans(), func(p billing.Plan, _ int) response_models.PlanResponse {
		_, available := s.catalog.PriceID(p.ID)
		return response_models.PlanResponse{
			ID:            p.ID,
			Name:          p.Name,
			Tier:          p.Tier,
			Price:         p.PriceMinor,
			Currency:      p.Currency,
			Interval:      p.Interval,
			IntervalCount: p.IntervalCount,
			Features:      p.Features,
			Available:     available,
		}
	})

	return &response_models.SubscriptionStatusResponse{
		CurrentTier: entitlement.Tier,
		IsOperator:  entitlement.IsOperator,
		Subscription: response_models.SubscriptionInfo{
			Status:            sub.Status,
			Plan:              sub.Plan,
			CurrentPeriodEnd:  sub.CurrentPeriodEnd,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			IsActive:          sub.IsActive(),
		},
		Limits:           entitlement.Limits,
		Plans:            plans,
		FreeTierFeatures: s.catalog.FreeFeatures(),
	}, nil
}

func (s *SubscriptionService) Entitlement(ctx context.Context, accountID uuid.UUID) (billing.Entitlement, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return billing.Entitlement{}, err
	}
	return s.resolver.Resolve(account.Holder()), nil
}

// Usage reports the routine quota and, when routineID is given, the task quota
// of that routine.
func (s *SubscriptionService) Usage(ctx context.Context, accountID uuid.UUID, routineID *uuid.UUID) (*response_models.UsageResponse, error) {
	entitlement, err := s.Entitlement(ctx, accountID)
	if err != nil {
		return nil, err
	}
	limits := s.resolver.Limits()

	routines, err := s.routineRepo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, utils.DatabaseError(err, "count routines")
	}
	used := int(routines)
	resp := &response_models.UsageResponse{
		Tier:     entitlement.Tier,
		Routines: quota(used, limits.CanCreateRoutine(entitlement.Tier, used)),
	}

	if routineID != nil {
		routine, err := s.routineRepo.FindByID(ctx, accountID, *routineID)
		if err != nil {
			return nil, utils.DatabaseError(err, "load routine")
		}
		if routine == nil {
			return nil, utils.ErrRoutineNotFound
		}
		tasks, err := s.routineRepo.CountTasks(ctx, routine.ID)
		if err != nil {
			return nil, utils.DatabaseError(err, "count tasks")
		}
		taskQuota := quota(int(tasks), limits.CanAddTask(entitlement.Tier, int(tasks), 1))
		resp.Tasks = &taskQuota
	}
	return resp, nil
}

func quota(used int, check billing.LimitCheck) response_models.QuotaResponse {
	return response_models.QuotaResponse{
		Used:      used,
		Limit:     check.Limit,
		Remaining: check.Remaining,
		Allowed:   check.Allowed,
	}
}

func (s *SubscriptionService) CreatePortalSession(ctx context.Context, accountID uuid.UUID) (string, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	customerID := account.Subscription.ExternalCustomerID
	if customerID == "" || isMockID(customerID) {
		return "", utils.ErrNoSubscription
	}
	return s.gateway.CreatePortalSession(ctx, customerID, s.settings.PortalReturnURL)
}

func (s *SubscriptionService) ScheduleCancellation(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.Subscription.IsActive() {
		return utils.ErrNothingToCancel
	}

	record := account.Subscription
	record.CancelAtPeriodEnd = true
	if record.CanceledAt == nil {
		now := s.now().UTC()
		record.CanceledAt = &now
	}
	updated, err := s.accountRepo.SaveSubscription(ctx, account.ID, keepVersion(record, account.Subscription), account.Tier)
	if err != nil {
		return utils.DatabaseError(err, "schedule cancellation")
	}
	if !updated {
		return utils.DatabaseError(errors.New("subscription changed concurrently"), "schedule cancellation")
	}

	s.log.Infow("subscription scheduled to cancel at period end",
		"user_id", account.ID,
		"period_end", record.CurrentPeriodEnd)
	return nil
}

func (s *SubscriptionService) ActivateDirect(ctx context.Context, accountID uuid.UUID, planID string) error {
	if !s.settings.MockActivation {
		return utils.ErrMockActivationDisabled
	}

	plan, ok := s.catalog.Plan(planID)
	if !ok {
		return errors.Wrapf(utils.ErrInvalidPlan, "plan %q", planID)
	}
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	periodEnd := addInterval(now, plan.Interval, plan.IntervalCount)
	record := db_models.SubscriptionRecord{
		Status:                 billing.StatusActive,
		Plan:                   plan.ID,
		ExternalSubscriptionID: db_models.MockIDPrefix + "sub_" + uuid.NewString(),
		CurrentPeriodStart:     &now,
		CurrentPeriodEnd:       &periodEnd,
		CanceledAt:             account.Subscription.CanceledAt,
	}
	record = keepVersion(record, account.Subscription)

	if account.Subscription.ExternalCustomerID == "" {
		if _, err := s.accountRepo.SetCustomerIDIfAbsent(ctx, account.ID, db_models.MockIDPrefix+"cus_"+account.ID.String()); err != nil {
			return utils.DatabaseError(err, "store mock customer id")
		}
	}
	updated, err := s.accountRepo.SaveSubscription(ctx, account.ID, record, plan.Tier)
	if err != nil {
		return utils.DatabaseError(err, "activate plan")
	}
	if !updated {
		return utils.DatabaseError(errors.New("subscription changed concurrently"), "activate plan")
	}

	s.log.Warnw("plan activated without payment", "user_id", account.ID, "plan_id", plan.ID)
	return nil
}

func (s *SubscriptionService) loadAccount(ctx context.Context, accountID uuid.UUID) (*db_models.Account, error) {
	account, err := s.accountRepo.FindById(ctx, accountID)
	if err != nil {
		return nil, utils.DatabaseError(err, "load account")
	}
	if account == nil {
		return nil, utils.ErrAccountNotFound
	}
	return account, nil
}

// keepVersion carries the stored event version over so a local write neither
// advances nor resets it. The store still refuses the write when a provider
// event landed after the account was read.
func keepVersion(record, current db_models.SubscriptionRecord) db_models.SubscriptionRecord {
	record.LastEventAt = current.LastEventAt
	record.LastEventID = current.LastEventID
	return record
}

func addInterval(t time.Time, period billing.BillingPeriod, count int) time.Time {
	if count < 1 {
		count = 1
	}
	if period == billing.PeriodYear {
		return t.AddDate(count, 0, 0)
	}
	return t.AddDate(0, count, 0)
}

func isMockID(id string) bool {
	return strings.HasPrefix(id, db_models.MockIDPrefix)
}
