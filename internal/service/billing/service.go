package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonlabs/billing-backend-go/internal/config"
	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
)

type billingService struct {
	accountRepo billing.AccountRepository
	plans       billing.PlanCatalog
	ledger      billing.EventLedger
	gateway     billing.ProviderGateway
	tx          billing.TxManager
	cfg         config.BillingConfig
	logger      *slog.Logger
}

func NewBillingService(
	accountRepo billing.AccountRepository,
	plans billing.PlanCatalog,
	ledger billing.EventLedger,
	gateway billing.ProviderGateway,
	tx billing.TxManager,
	cfg config.BillingConfig,
	logger *slog.Logger,
) billing.Service {
	return &billingService{
		accountRepo: accountRepo,
		plans:       plans,
		ledger:      ledger,
		gateway:     gateway,
		tx:          tx,
		cfg:         cfg,
		logger:      logger,
	}
}

// ==================== Account Lifecycle ====================

func (s *billingService) CreateAccount(ctx context.Context, accountID, planID string) (billing.Account, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.Account{}, billing.ErrPlanNotFound
		}
		return billing.Account{}, fmt.Errorf("get plan: %w", err)
	}
	if !plan.IsActive {
		return billing.Account{}, billing.ErrPlanNotActive
	}

	if _, err := s.accountRepo.GetByID(ctx, accountID); err == nil {
		return billing.Account{}, billing.ErrAccountExists
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return billing.Account{}, fmt.Errorf("get account: %w", err)
	}

	now := time.Now().UTC()
	account := billing.Account{
		ID:                 accountID,
		Status:             billing.AccountPendingPayment,
		SubscriptionStatus: billing.SubscriptionPending,
	}
	applyPlan(&account, plan, plan.PriceID)

	if plan.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, plan.TrialDays)
		account.Status = billing.AccountFreeTrialPending
		account.TrialEnd = &trialEnd
		account.CurrentPeriodStart = now
		account.CurrentPeriodEnd = trialEnd
	}

	created, err := s.accountRepo.Create(ctx, account)
	if err != nil {
		return billing.Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

func (s *billingService) ActivateTrial(ctx context.Context, accountID string) (billing.Account, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return billing.Account{}, err
	}
	if account.Status != billing.AccountFreeTrialPending {
		return billing.Account{}, billing.ErrInvalidState
	}

	account.Status = billing.AccountActiveTrial
	account.SubscriptionStatus = billing.SubscriptionTrialing

	if account.TrialEnd == nil {
		plan, err := s.plans.GetByID(ctx, account.PlanID)
		if err != nil {
			return billing.Account{}, fmt.Errorf("get plan: %w", err)
		}
		trialEnd := time.Now().UTC().AddDate(0, 0, plan.TrialDays)
		account.TrialEnd = &trialEnd
		account.CurrentPeriodEnd = trialEnd
	}

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return billing.Account{}, fmt.Errorf("update account: %w", err)
	}
	return account, nil
}

func (s *billingService) GetAccount(ctx context.Context, accountID string) (billing.AccountResponse, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return billing.AccountResponse{}, err
	}
	return account.ToResponse(), nil
}

func (s *billingService) GetPlans(ctx context.Context) ([]billing.PlanResponse, error) {
	plans, err := s.plans.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	responses := make([]billing.PlanResponse, len(plans))
	for i, plan := range plans {
		responses[i] = plan.ToResponse()
	}
	return responses, nil
}

// ==================== Plan Changes ====================

func (s *billingService) RequestUpgrade(ctx context.Context, accountID string, req billing.UpgradeRequest) (billing.AccountResponse, error) {
	if err := req.Validate(); err != nil {
		return billing.AccountResponse{}, err
	}

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return billing.AccountResponse{}, err
	}
	if !account.HasSubscription() {
		return billing.AccountResponse{}, billing.ErrNoSubscription
	}

	plan, err := s.getChangeTarget(ctx, account, req.PlanID)
	if err != nil {
		return billing.AccountResponse{}, err
	}

	live, err := s.gateway.GetSubscription(ctx, account.SubscriptionID)
	if err != nil {
		return billing.AccountResponse{}, fmt.Errorf("get subscription: %w", err)
	}

	// Any attached schedule would fight the immediate price change.
	if scheduleID := attachedScheduleID(account, live); scheduleID != "" {
		if err := s.gateway.ReleaseSchedule(ctx, scheduleID); err != nil {
			return billing.AccountResponse{}, fmt.Errorf("release schedule: %w", err)
		}
	}

	priceID, err := s.gateway.CreatePrice(ctx, plan, s.cfg.BillingIntervalDays, map[string]string{
		"account_id": account.ID,
	})
	if err != nil {
		return billing.AccountResponse{}, fmt.Errorf("create price: %w", err)
	}

	params := billing.UpdateSubscriptionParams{
		PriceID:            &priceID,
		ResetBillingAnchor: true,
		DisableProration:   true,
		Metadata: map[string]string{
			"account_id": account.ID,
			"plan_id":    plan.ID,
		},
	}
	if live.Status == billing.SubscriptionTrialing {
		params.EndTrialNow = true
	}
	if _, err := s.gateway.UpdateSubscription(ctx, account.SubscriptionID, params); err != nil {
		return billing.AccountResponse{}, fmt.Errorf("update subscription: %w", err)
	}

	// Re-fetch so the projection carries the provider's period, not a guess.
	fresh, err := s.gateway.GetSubscription(ctx, account.SubscriptionID)
	if err != nil {
		return billing.AccountResponse{}, fmt.Errorf("get subscription: %w", err)
	}

	applyPlan(&account, plan, priceID)
	account.Status = billing.AccountActive
	account.SubscriptionStatus = billing.SubscriptionActive
	account.CurrentPeriodStart = fresh.CurrentPeriodStart
	account.CurrentPeriodEnd = fresh.CurrentPeriodEnd
	account.CancelAtPeriodEnd = fresh.CancelAtPeriodEnd
	account.TrialEnd = nil
	account.GraceUntil = nil
	account.SuspendedAt = nil
	account.SuspensionReason = nil
	account.PaymentFailureReason = nil
	account.PendingDowngrade = nil
	account.ScheduleID = nil

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return billing.AccountResponse{}, fmt.Errorf("update account: %w", err)
	}

	s.logger.Info("plan upgraded",
		"account_id", account.ID,
		"plan_id", plan.ID,
		"price_id", priceID,
	)
	return account.ToResponse(), nil
}

func (s *billingService) RequestDowngrade(ctx context.Context, accountID string, req billing.DowngradeRequest) (billing.AccountResponse, error) {
	if err := req.Validate(); err != nil {
		return billing.AccountResponse{}, err
	}

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return billing.AccountResponse{}, err
	}
	if !account.HasSubscription() {
		return billing.AccountResponse{}, billing.ErrNoSubscription
	}

	plan, err := s.getChangeTarget(ctx, account, req.PlanID)
	if err != nil {
		return billing.AccountResponse{}, err
	}

	live, err := s.gateway.GetSubscription(ctx, account.SubscriptionID)
	if err != nil {
		return billing.AccountResponse{}, fmt.Errorf("get subscription: %w", err)
	}

	currentPriceID := live.PriceID
	if currentPriceID == "" {
		currentPriceID = account.PriceID
	}
	if currentPriceID == "" {
		return billing.AccountResponse{}, billing.ErrNoCurrentPrice
	}

	periodStart := live.CurrentPeriodStart
	periodEnd := live.CurrentPeriodEnd
	if periodEnd.IsZero() {
		periodStart = account.CurrentPeriodStart
		periodEnd = account.CurrentPeriodEnd
	}
	if periodEnd.IsZero() {
		return billing.AccountResponse{}, billing.ErrNoCurrentPeriod
	}

	newPriceID, err := s.gateway.CreatePrice(ctx, plan, s.cfg.BillingIntervalDays, map[string]string{
		"account_id": account.ID,
	})
	if err != nil {
		return billing.AccountResponse{}, fmt.Errorf("create price: %w", err)
	}

	// Phase 1 keeps the paid-for price until period end, phase 2 switches to
	// the target price and the schedule releases itself on completion.
	phases := []billing.SchedulePhase{
		{PriceID: currentPriceID, Start: periodStart, End: &periodEnd},
		{PriceID: newPriceID, Start: periodEnd},
	}
	metadata := map[string]string{
		"account_id": account.ID,
		"plan_id":    plan.ID,
	}

	scheduleID, err := s.applySchedule(ctx, account, live, phases, metadata)
	if err != nil {
		return billing.AccountResponse{}, err
	}

	account.ScheduleID = &scheduleID
	account.PendingDowngrade = &billing.PendingDowngrade{
		PlanID:        plan.ID,
		PriceID:       newPriceID,
		EffectiveDate: periodEnd,
		BranchLimit:   plan.BranchLimit,
		StaffLimit:    plan.StaffLimit,
		PlanName:      plan.Name,
		PriceLabel:    plan.PriceLabel,
	}

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return billing.AccountResponse{}, fmt.Errorf("update account: %w", err)
	}

	s.logger.Info("downgrade scheduled",
		"account_id", account.ID,
		"plan_id", plan.ID,
		"effective_date", periodEnd,
	)
	return account.ToResponse(), nil
}

// applySchedule lands the two phases on a provider schedule: reuse an open
// attached schedule, otherwise release whatever is there and start fresh.
func (s *billingService) applySchedule(ctx context.Context, account billing.Account, live billing.ProviderSubscription, phases []billing.SchedulePhase, metadata map[string]string) (string, error) {
	if scheduleID := attachedScheduleID(account, live); scheduleID != "" {
		sched, err := s.gateway.GetSchedule(ctx, scheduleID)
		if err == nil && sched.Status.IsOpen() {
			if err := s.gateway.UpdateSchedule(ctx, scheduleID, phases, metadata); err != nil {
				return "", fmt.Errorf("update schedule: %w", err)
			}
			return scheduleID, nil
		}
		if err := s.gateway.ReleaseSchedule(ctx, scheduleID); err != nil {
			s.logger.Warn("release of stale schedule failed",
				"account_id", account.ID,
				"schedule_id", scheduleID,
				"error", err,
			)
		}
	}

	sched, err := s.gateway.CreateScheduleFromSubscription(ctx, account.SubscriptionID)
	if err != nil {
		return "", fmt.Errorf("create schedule: %w", err)
	}
	if err := s.gateway.UpdateSchedule(ctx, sched.ID, phases, metadata); err != nil {
		return "", fmt.Errorf("update schedule: %w", err)
	}
	return sched.ID, nil
}

func (s *billingService) CancelDowngrade(ctx context.Context, accountID string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.PendingDowngrade == nil && account.ScheduleID == nil {
		return billing.ErrInvalidState
	}

	scheduleID := ""
	if account.ScheduleID != nil {
		scheduleID = *account.ScheduleID
	}
	if account.HasSubscription() {
		if live, err := s.gateway.GetSubscription(ctx, account.SubscriptionID); err == nil && live.ScheduleID != "" {
			scheduleID = live.ScheduleID
		}
	}
	if scheduleID != "" {
		if err := s.gateway.ReleaseSchedule(ctx, scheduleID); err != nil {
			return fmt.Errorf("release schedule: %w", err)
		}
	}

	account.PendingDowngrade = nil
	account.ScheduleID = nil
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	s.logger.Info("pending downgrade cancelled", "account_id", account.ID)
	return nil
}

// ==================== Cron Job Operations ====================

func (s *billingService) RunTrialSweep(ctx context.Context, now time.Time) (billing.SweepResult, error) {
	accounts, err := s.accountRepo.ListTrialingWithoutSubscription(ctx)
	if err != nil {
		return billing.SweepResult{}, fmt.Errorf("list trialing accounts: %w", err)
	}

	soonCutoff := now.AddDate(0, 0, s.cfg.TrialExpirySoonDays)
	var result billing.SweepResult

	for _, account := range accounts {
		if account.TrialEnd == nil {
			continue
		}

		switch {
		case account.TrialEnd.Before(now):
			account.Status = billing.AccountTrialExpired
			account.SubscriptionStatus = billing.SubscriptionExpired
			if err := s.accountRepo.Update(ctx, account); err != nil {
				s.logger.Error("failed to expire trial",
					"account_id", account.ID,
					"error", err,
				)
				continue
			}
			result.Expired = append(result.Expired, account.ID)

		case !account.TrialEnd.After(soonCutoff):
			result.ExpiringSoon = append(result.ExpiringSoon, account.ID)
		}
	}

	if len(result.Expired) > 0 || len(result.ExpiringSoon) > 0 {
		s.logger.Info("trial sweep completed",
			"expired", len(result.Expired),
			"expiring_soon", len(result.ExpiringSoon),
		)
	}
	return result, nil
}

// ==================== Helpers ====================

func (s *billingService) getAccount(ctx context.Context, accountID string) (billing.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.Account{}, billing.ErrAccountNotFound
		}
		return billing.Account{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// getChangeTarget validates a plan-change target: it must exist, be active,
// carry a positive price, and differ from the current plan.
func (s *billingService) getChangeTarget(ctx context.Context, account billing.Account, planID string) (billing.Plan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.Plan{}, billing.ErrPlanNotFound
		}
		return billing.Plan{}, fmt.Errorf("get plan: %w", err)
	}
	if !plan.IsActive {
		return billing.Plan{}, billing.ErrPlanNotActive
	}
	if plan.IsFree() {
		return billing.Plan{}, billing.ErrFreePlan
	}
	if plan.ID == account.PlanID {
		return billing.Plan{}, billing.ErrSamePlan
	}
	return plan, nil
}

// attachedScheduleID prefers the live subscription's schedule reference over
// the projection's: the provider is ground truth.
func attachedScheduleID(account billing.Account, live billing.ProviderSubscription) string {
	if live.ScheduleID != "" {
		return live.ScheduleID
	}
	if account.ScheduleID != nil {
		return *account.ScheduleID
	}
	return ""
}

// applyPlan stamps the plan's fields and entitlements onto the projection.
// priceID is passed separately because orchestrators mint fresh provider
// prices that differ from the catalog's.
func applyPlan(account *billing.Account, plan billing.Plan, priceID string) {
	account.PlanID = plan.ID
	account.PlanKey = plan.Key
	account.PriceID = priceID
	account.PlanName = plan.Name
	account.PriceLabel = plan.PriceLabel
	account.BranchLimit = plan.BranchLimit
	account.StaffLimit = plan.StaffLimit
}
