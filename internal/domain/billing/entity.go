package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus represents the internal billing state of a tenant account
type AccountStatus string

const (
	AccountPendingPayment   AccountStatus = "pending_payment"
	AccountFreeTrialPending AccountStatus = "free_trial_pending"
	AccountActiveTrial      AccountStatus = "active_trial"
	AccountActive           AccountStatus = "active"
	AccountPastDueGrace     AccountStatus = "past_due_grace"
	AccountSuspended        AccountStatus = "suspended"
	AccountTrialExpired     AccountStatus = "trial_expired"
	AccountCancelled        AccountStatus = "cancelled"
)

// SubscriptionStatus mirrors the provider's subscription status, plus "pending"
// for accounts that have no provider subscription yet and "expired" for trials
// that lapsed without ever converting.
type SubscriptionStatus string

const (
	SubscriptionPending  SubscriptionStatus = "pending"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionUnpaid   SubscriptionStatus = "unpaid"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// PendingDowngrade stages the plan a tenant downgrades to at period end.
// The staged limits are promoted only when the period-rollover event is
// reconciled; until then the account keeps its current entitlements.
type PendingDowngrade struct {
	PlanID        string    `json:"plan_id"`
	PriceID       string    `json:"price_id"`
	EffectiveDate time.Time `json:"effective_date"`
	BranchLimit   int       `json:"branch_limit"`
	StaffLimit    int       `json:"staff_limit"`
	PlanName      string    `json:"plan_name"`
	PriceLabel    string    `json:"price_label"`
}

// Account is the billing projection for one tenant. It is a read model
// reconciled against the provider: every field a webhook handler writes is
// derived from the live provider object plus the plan catalog, so replaying
// the same event is a no-op.
type Account struct {
	ID                 string             `json:"id"`
	Status             AccountStatus      `json:"status"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`

	PlanID     string `json:"plan_id"`
	PlanKey    string `json:"plan_key"`
	PriceID    string `json:"price_id"`
	PlanName   string `json:"plan_name"`
	PriceLabel string `json:"price_label"`

	// Entitlements under the currently active price, never a pending one.
	BranchLimit int `json:"branch_limit"`
	StaffLimit  int `json:"staff_limit"`

	SubscriptionID string  `json:"subscription_id,omitempty"`
	ScheduleID     *string `json:"schedule_id,omitempty"`

	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	GraceUntil         *time.Time `json:"grace_until,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`

	PendingDowngrade *PendingDowngrade `json:"pending_downgrade,omitempty"`

	LastInvoiceID        *string         `json:"last_invoice_id,omitempty"`
	LastPaymentAt        *time.Time      `json:"last_payment_at,omitempty"`
	LastPaymentAmount    decimal.Decimal `json:"last_payment_amount"`
	PaymentFailureReason *string         `json:"payment_failure_reason,omitempty"`

	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	SuspensionReason *string    `json:"suspension_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Plan is a catalog entry. Catalog entries are read-only during
// reconciliation; price and limits only change through catalog management.
type Plan struct {
	ID           string          `json:"id"`
	Key          string          `json:"key"`
	PriceID      string          `json:"price_id"`
	Name         string          `json:"name"`
	PriceLabel   string          `json:"price_label"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	TrialDays    int             `json:"trial_days"`
	BranchLimit  int             `json:"branch_limit"`
	StaffLimit   int             `json:"staff_limit"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// LedgerEntry records one processed provider event id.
type LedgerEntry struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}

// HasSubscription reports whether the account references a live provider
// subscription. Accounts without one are governed by the trial sweeper
// instead of the webhook processor.
func (a *Account) HasSubscription() bool {
	return a.SubscriptionID != ""
}

// IsTrialing reports whether the account is in a trial state.
func (a *Account) IsTrialing() bool {
	return a.Status == AccountActiveTrial || a.SubscriptionStatus == SubscriptionTrialing
}

// InGrace reports whether a payment-failure grace window is open at now.
func (a *Account) InGrace(now time.Time) bool {
	return a.SubscriptionStatus == SubscriptionPastDue && a.GraceUntil != nil && now.Before(*a.GraceUntil)
}

// IsFree reports whether the plan has no positive price. Free plans cannot be
// upgraded or downgraded to through the provider.
func (p *Plan) IsFree() bool {
	return !p.MonthlyPrice.IsPositive()
}

// CanAddBranch checks the branch entitlement under the current price.
func (a *Account) CanAddBranch(currentCount int) bool {
	return currentCount < a.BranchLimit
}

// CanAddStaff checks the staff entitlement under the current price.
func (a *Account) CanAddStaff(currentCount int) bool {
	return currentCount < a.StaffLimit
}
