package billing

import "errors"

var (
	// Account errors
	ErrAccountNotFound = errors.New("billing account not found")
	ErrAccountExists   = errors.New("billing account already exists")

	// Plan errors
	ErrPlanNotFound  = errors.New("plan not found")
	ErrPlanNotActive = errors.New("plan is not active")
	ErrFreePlan      = errors.New("plan has no positive price")
	ErrSamePlan      = errors.New("already subscribed to this plan")

	// Subscription state errors
	ErrNoSubscription  = errors.New("account has no provider subscription")
	ErrNoCurrentPrice  = errors.New("subscription has no resolvable current price")
	ErrNoCurrentPeriod = errors.New("subscription has no resolvable current period")
	ErrInvalidState    = errors.New("invalid account state for this operation")

	// Webhook errors
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrMalformedEvent        = errors.New("malformed webhook payload")
	ErrEventAlreadyProcessed = errors.New("event already processed")
)
