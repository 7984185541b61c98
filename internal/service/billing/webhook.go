package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
)

// HandleEvent reconciles one provider event. The ledger precheck makes replays
// cheap no-ops; the projection write and the ledger mark commit in one
// transaction, so a handler failure leaves the event unrecorded and the
// provider's retry re-attempts it.
func (s *billingService) HandleEvent(ctx context.Context, ev billing.InboundEvent) error {
	processed, err := s.ledger.HasProcessed(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("ledger check: %w", err)
	}
	if processed {
		s.logger.Info("skipping already processed event",
			"event_id", ev.ID,
			"event_type", ev.Type,
		)
		return nil
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.applyEvent(ctx, ev); err != nil {
			return err
		}
		return s.ledger.MarkProcessed(ctx, ev.ID, string(ev.Type))
	})
	if errors.Is(err, billing.ErrEventAlreadyProcessed) {
		// A concurrent delivery won the ledger race.
		return nil
	}
	return err
}

func (s *billingService) applyEvent(ctx context.Context, ev billing.InboundEvent) error {
	switch ev.Type {
	case billing.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, ev)
	case billing.EventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, ev)
	case billing.EventPaymentFailed:
		return s.handlePaymentFailed(ctx, ev)
	case billing.EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, ev)
	case billing.EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, ev)
	default:
		s.logger.Info("acknowledging unhandled event type",
			"event_id", ev.ID,
			"event_type", ev.Type,
		)
		return nil
	}
}

// handleCheckoutCompleted binds a fresh provider subscription to the account
// named by the checkout's correlation metadata and projects its initial state.
func (s *billingService) handleCheckoutCompleted(ctx context.Context, ev billing.InboundEvent) error {
	if ev.AccountID == "" || ev.SubscriptionID == "" {
		s.logger.Warn("checkout event missing correlation data",
			"event_id", ev.ID,
			"account_id", ev.AccountID,
			"subscription_id", ev.SubscriptionID,
		)
		return nil
	}

	account, err := s.accountRepo.GetByID(ctx, ev.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("checkout event for unknown account",
				"event_id", ev.ID,
				"account_id", ev.AccountID,
			)
			return nil
		}
		return fmt.Errorf("get account: %w", err)
	}

	live, err := s.gateway.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return fmt.Errorf("get subscription: %w", err)
	}

	now := time.Now().UTC()
	account.SubscriptionID = live.ID
	account.CurrentPeriodStart = live.CurrentPeriodStart
	account.CurrentPeriodEnd = live.CurrentPeriodEnd
	account.CancelAtPeriodEnd = live.CancelAtPeriodEnd

	if plan, ok, err := s.lookupPlanForPrice(ctx, live.PriceID, live.Metadata); err != nil {
		return err
	} else if ok {
		applyPlan(&account, plan, live.PriceID)
	} else {
		s.logger.Warn("subscription price matches no catalog plan",
			"event_id", ev.ID,
			"price_id", live.PriceID,
		)
	}

	if live.Status == billing.SubscriptionTrialing || (live.TrialEnd != nil && live.TrialEnd.After(now)) {
		account.Status = billing.AccountActiveTrial
		account.SubscriptionStatus = billing.SubscriptionTrialing
		account.TrialEnd = live.TrialEnd
	} else {
		account.Status = billing.AccountActive
		account.SubscriptionStatus = billing.SubscriptionActive
		account.TrialEnd = nil
		account.GraceUntil = nil
		account.SuspendedAt = nil
		account.SuspensionReason = nil
		account.PaymentFailureReason = nil
	}

	return s.accountRepo.Update(ctx, account)
}

func (s *billingService) handlePaymentSucceeded(ctx context.Context, ev billing.InboundEvent) error {
	account, ok, err := s.resolveAccount(ctx, ev)
	if err != nil || !ok {
		return err
	}

	subscriptionID := liveSubscriptionID(ev, account)
	if subscriptionID == "" {
		s.logger.Warn("event carries no subscription reference",
			"event_id", ev.ID,
			"account_id", account.ID,
		)
		return nil
	}

	live, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("get subscription: %w", err)
	}
	account.SubscriptionID = live.ID

	if err := s.refreshFromLive(ctx, &account, live); err != nil {
		return err
	}

	now := time.Now().UTC()
	account.Status = billing.AccountActive
	account.SubscriptionStatus = billing.SubscriptionActive
	account.GraceUntil = nil
	account.SuspendedAt = nil
	account.SuspensionReason = nil
	account.PaymentFailureReason = nil
	account.LastInvoiceID = &ev.InvoiceID
	account.LastPaymentAt = &now
	account.LastPaymentAmount = ev.AmountPaid

	account.TrialEnd = live.TrialEnd
	if account.TrialEnd != nil && !account.TrialEnd.After(now) {
		account.TrialEnd = nil
	}

	return s.accountRepo.Update(ctx, account)
}

// handlePaymentFailed opens a grace window. Suspension is the access layer's
// job once the window lapses, never this handler's.
func (s *billingService) handlePaymentFailed(ctx context.Context, ev billing.InboundEvent) error {
	account, ok, err := s.resolveAccount(ctx, ev)
	if err != nil || !ok {
		return err
	}

	now := time.Now().UTC()
	graceUntil := now.AddDate(0, 0, s.cfg.GracePeriodDays)

	account.Status = billing.AccountPastDueGrace
	account.SubscriptionStatus = billing.SubscriptionPastDue
	account.GraceUntil = &graceUntil
	if ev.FailureReason != "" {
		reason := ev.FailureReason
		account.PaymentFailureReason = &reason
	}
	if ev.InvoiceID != "" {
		account.LastInvoiceID = &ev.InvoiceID
	}

	s.logger.Info("payment failed, grace window opened",
		"account_id", account.ID,
		"grace_until", graceUntil,
	)
	return s.accountRepo.Update(ctx, account)
}

// handleSubscriptionUpdated refreshes the projection from the live object.
// Status writes obey the precedence guard: a past_due projection is only
// promoted back to active by an explicit payment-succeeded event, never by
// this handler observing a live active status.
func (s *billingService) handleSubscriptionUpdated(ctx context.Context, ev billing.InboundEvent) error {
	account, ok, err := s.resolveAccount(ctx, ev)
	if err != nil || !ok {
		return err
	}

	subscriptionID := liveSubscriptionID(ev, account)
	if subscriptionID == "" {
		s.logger.Warn("event carries no subscription reference",
			"event_id", ev.ID,
			"account_id", account.ID,
		)
		return nil
	}

	live, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("get subscription: %w", err)
	}
	account.SubscriptionID = live.ID

	if err := s.refreshFromLive(ctx, &account, live); err != nil {
		return err
	}
	account.TrialEnd = live.TrialEnd

	switch live.Status {
	case billing.SubscriptionActive, billing.SubscriptionTrialing:
		if account.SubscriptionStatus != billing.SubscriptionPastDue {
			account.SubscriptionStatus = live.Status
			if live.Status == billing.SubscriptionTrialing {
				account.Status = billing.AccountActiveTrial
			} else {
				account.Status = billing.AccountActive
			}
		}
	case billing.SubscriptionPastDue, billing.SubscriptionUnpaid:
		if account.SubscriptionStatus != billing.SubscriptionPastDue {
			graceUntil := time.Now().UTC().AddDate(0, 0, s.cfg.GracePeriodDays)
			account.Status = billing.AccountPastDueGrace
			account.SubscriptionStatus = billing.SubscriptionPastDue
			account.GraceUntil = &graceUntil
		}
	}

	return s.accountRepo.Update(ctx, account)
}

func (s *billingService) handleSubscriptionDeleted(ctx context.Context, ev billing.InboundEvent) error {
	account, ok, err := s.resolveAccount(ctx, ev)
	if err != nil || !ok {
		return err
	}

	now := time.Now().UTC()
	reason := "subscription deleted by provider"

	account.Status = billing.AccountSuspended
	account.SubscriptionStatus = billing.SubscriptionCanceled
	account.CancelAtPeriodEnd = true
	account.SuspendedAt = &now
	account.SuspensionReason = &reason
	account.GraceUntil = nil
	account.PendingDowngrade = nil
	account.ScheduleID = nil

	s.logger.Info("subscription deleted, account suspended", "account_id", account.ID)
	return s.accountRepo.Update(ctx, account)
}

// resolveAccount finds the event's account by subscription id, falling back to
// the correlation id in metadata. Unknown tenants are logged no-ops: retrying
// cannot fix them and must not clog the provider's retry queue.
func (s *billingService) resolveAccount(ctx context.Context, ev billing.InboundEvent) (billing.Account, bool, error) {
	if ev.SubscriptionID != "" {
		account, err := s.accountRepo.GetBySubscriptionID(ctx, ev.SubscriptionID)
		if err == nil {
			return account, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return billing.Account{}, false, fmt.Errorf("get account by subscription: %w", err)
		}
	}

	if ev.AccountID != "" {
		account, err := s.accountRepo.GetByID(ctx, ev.AccountID)
		if err == nil {
			return account, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return billing.Account{}, false, fmt.Errorf("get account: %w", err)
		}
	}

	s.logger.Warn("event matches no account",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"subscription_id", ev.SubscriptionID,
		"account_id", ev.AccountID,
	)
	return billing.Account{}, false, nil
}

// liveSubscriptionID picks the subscription to reconcile against. The event's
// reference wins: it may arrive before checkout binding has stamped the
// projection, and a stale projection id must not shadow the event's.
func liveSubscriptionID(ev billing.InboundEvent, account billing.Account) string {
	if ev.SubscriptionID != "" {
		return ev.SubscriptionID
	}
	return account.SubscriptionID
}

// refreshFromLive syncs period bounds and the current price from the provider
// object. A price change onto the staged downgrade price is the period-end
// rollover: the staged plan is promoted and the pending state cleared.
func (s *billingService) refreshFromLive(ctx context.Context, account *billing.Account, live billing.ProviderSubscription) error {
	account.CurrentPeriodStart = live.CurrentPeriodStart
	account.CurrentPeriodEnd = live.CurrentPeriodEnd
	account.CancelAtPeriodEnd = live.CancelAtPeriodEnd

	if live.PriceID == "" || live.PriceID == account.PriceID {
		return nil
	}

	if pd := account.PendingDowngrade; pd != nil && live.PriceID == pd.PriceID {
		if plan, err := s.plans.GetByID(ctx, pd.PlanID); err == nil {
			applyPlan(account, plan, pd.PriceID)
		} else if errors.Is(err, pgx.ErrNoRows) {
			account.PlanID = pd.PlanID
			account.PriceID = pd.PriceID
			account.PlanName = pd.PlanName
			account.PriceLabel = pd.PriceLabel
			account.BranchLimit = pd.BranchLimit
			account.StaffLimit = pd.StaffLimit
		} else {
			return fmt.Errorf("get plan: %w", err)
		}

		account.PendingDowngrade = nil
		account.ScheduleID = nil
		s.logger.Info("pending downgrade promoted",
			"account_id", account.ID,
			"plan_id", account.PlanID,
		)
		return nil
	}

	if plan, ok, err := s.lookupPlanForPrice(ctx, live.PriceID, live.Metadata); err != nil {
		return err
	} else if ok {
		applyPlan(account, plan, live.PriceID)
	} else {
		// Mirror the provider's price even when no plan matches it.
		account.PriceID = live.PriceID
		s.logger.Warn("subscription price matches no catalog plan",
			"account_id", account.ID,
			"price_id", live.PriceID,
		)
	}
	return nil
}

// lookupPlanForPrice matches a provider price to the catalog: direct price-id
// match first, then the plan_id metadata stamped on orchestrator-minted prices.
func (s *billingService) lookupPlanForPrice(ctx context.Context, priceID string, metadata map[string]string) (billing.Plan, bool, error) {
	if priceID != "" {
		plan, err := s.plans.GetByPriceID(ctx, priceID)
		if err == nil {
			return plan, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return billing.Plan{}, false, fmt.Errorf("get plan by price: %w", err)
		}
	}

	if planID := metadata["plan_id"]; planID != "" {
		plan, err := s.plans.GetByID(ctx, planID)
		if err == nil {
			return plan, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return billing.Plan{}, false, fmt.Errorf("get plan: %w", err)
		}
	}

	return billing.Plan{}, false, nil
}
