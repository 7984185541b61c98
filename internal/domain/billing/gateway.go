package billing

import (
	"context"
	"time"
)

// ScheduleStatus is the provider-side status of a subscription schedule.
type ScheduleStatus string

const (
	ScheduleActive     ScheduleStatus = "active"
	ScheduleNotStarted ScheduleStatus = "not_started"
	ScheduleCompleted  ScheduleStatus = "completed"
	ScheduleCanceled   ScheduleStatus = "canceled"
	ScheduleReleased   ScheduleStatus = "released"
)

// IsOpen reports whether the schedule can still be updated in place.
func (s ScheduleStatus) IsOpen() bool {
	return s == ScheduleActive || s == ScheduleNotStarted
}

// ProviderSubscription is the authoritative subscription snapshot fetched from
// the provider at reconciliation time.
type ProviderSubscription struct {
	ID                 string
	Status             SubscriptionStatus
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialEnd           *time.Time
	ScheduleID         string
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// SchedulePhase is one price segment of a subscription schedule. A nil End
// leaves the phase open-ended.
type SchedulePhase struct {
	PriceID string
	Start   time.Time
	End     *time.Time
}

// ProviderSchedule is the provider-side schedule snapshot.
type ProviderSchedule struct {
	ID     string
	Status ScheduleStatus
	Phases []SchedulePhase
}

// UpdateSubscriptionParams carries the mutations an orchestrator applies to a
// live subscription. Zero values leave the corresponding attribute untouched.
type UpdateSubscriptionParams struct {
	PriceID            *string
	EndTrialNow        bool
	ResetBillingAnchor bool
	DisableProration   bool
	Metadata           map[string]string
}

// ProviderGateway wraps the external provider's price, subscription and
// schedule operations. All calls are blocking I/O and honor ctx cancellation.
type ProviderGateway interface {
	// CreatePrice creates a provider price for the plan, billed every
	// intervalDays, tagged with metadata for later plan matching.
	CreatePrice(ctx context.Context, plan Plan, intervalDays int, metadata map[string]string) (string, error)

	GetSubscription(ctx context.Context, subscriptionID string) (ProviderSubscription, error)

	UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (ProviderSubscription, error)

	GetSchedule(ctx context.Context, scheduleID string) (ProviderSchedule, error)

	// CreateScheduleFromSubscription attaches a fresh schedule to the
	// subscription, seeded with its current phase.
	CreateScheduleFromSubscription(ctx context.Context, subscriptionID string) (ProviderSchedule, error)

	// UpdateSchedule replaces the schedule's phases. The schedule releases
	// itself once the final phase completes.
	UpdateSchedule(ctx context.Context, scheduleID string, phases []SchedulePhase, metadata map[string]string) error

	// ReleaseSchedule detaches the schedule from its subscription. An
	// already-released schedule is treated as success.
	ReleaseSchedule(ctx context.Context, scheduleID string) error
}
