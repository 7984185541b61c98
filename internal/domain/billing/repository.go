package billing

import "context"

// AccountRepository handles billing account projection persistence.
type AccountRepository interface {
	// GetByID retrieves an account projection by tenant id
	GetByID(ctx context.Context, id string) (Account, error)

	// GetBySubscriptionID retrieves the account owning a provider subscription
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (Account, error)

	// Create creates a new account projection
	Create(ctx context.Context, account Account) (Account, error)

	// Update persists the full projection record
	Update(ctx context.Context, account Account) error

	// ListTrialingWithoutSubscription retrieves trial accounts that have no
	// provider subscription reference (candidates for the trial sweeper)
	ListTrialingWithoutSubscription(ctx context.Context) ([]Account, error)
}

// PlanCatalog is the read-only plan lookup.
type PlanCatalog interface {
	// GetByID retrieves a plan by its id
	GetByID(ctx context.Context, id string) (Plan, error)

	// GetByPriceID retrieves the plan a provider price id maps to
	GetByPriceID(ctx context.Context, priceID string) (Plan, error)

	// ListActive retrieves all active plans
	ListActive(ctx context.Context) ([]Plan, error)
}

// EventLedger is the durable record of processed provider event ids. The
// existence check is a fast path; MarkProcessed must be backed by a uniqueness
// constraint so two concurrent deliveries of the same id cannot both record it.
type EventLedger interface {
	// HasProcessed reports whether the event id was already applied
	HasProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records the event id; returns ErrEventAlreadyProcessed
	// when another delivery won the race
	MarkProcessed(ctx context.Context, eventID, eventType string) error
}

// TxManager runs a function inside a single storage transaction. Repository
// calls made within fn join the transaction through the context.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SweepResult is the outcome of one trial sweep run.
type SweepResult struct {
	Expired      []string `json:"expired"`
	ExpiringSoon []string `json:"expiring_soon"`
}
