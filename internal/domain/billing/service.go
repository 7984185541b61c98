package billing

import (
	"context"
	"time"
)

// Service handles billing business logic
type Service interface {
	// ==================== Account Lifecycle ====================

	// CreateAccount creates the billing projection for a new tenant.
	// Trial plans start in free_trial_pending, paid plans in pending_payment.
	CreateAccount(ctx context.Context, accountID, planID string) (Account, error)

	// ActivateTrial moves a free_trial_pending account into its running
	// trial. Called when tenant onboarding completes.
	ActivateTrial(ctx context.Context, accountID string) (Account, error)

	// GetAccount retrieves the projection for a tenant
	GetAccount(ctx context.Context, accountID string) (AccountResponse, error)

	// GetPlans retrieves all active catalog plans
	GetPlans(ctx context.Context) ([]PlanResponse, error)

	// ==================== Webhook Reconciliation ====================

	// HandleEvent reconciles one inbound provider event. Replays of an
	// already-processed event id are successful no-ops; a handler failure
	// leaves the event unrecorded so the provider retries it.
	HandleEvent(ctx context.Context, ev InboundEvent) error

	// ==================== Plan Changes ====================

	// RequestUpgrade performs an immediate full-price plan change and
	// cancels any pending downgrade
	RequestUpgrade(ctx context.Context, accountID string, req UpgradeRequest) (AccountResponse, error)

	// RequestDowngrade schedules a plan change effective at the end of the
	// current billing period
	RequestDowngrade(ctx context.Context, accountID string, req DowngradeRequest) (AccountResponse, error)

	// CancelDowngrade releases a pending downgrade schedule
	CancelDowngrade(ctx context.Context, accountID string) error

	// ==================== Cron Job Operations ====================

	// RunTrialSweep expires stale trials and collects soon-to-expire ones.
	// Only accounts without a provider subscription are touched.
	RunTrialSweep(ctx context.Context, now time.Time) (SweepResult, error)
}
