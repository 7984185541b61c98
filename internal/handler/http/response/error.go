package response

import (
	"errors"
	"net/http"

	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
	"github.com/salonlabs/billing-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Webhook errors
	case errors.Is(err, billing.ErrInvalidSignature):
		Unauthorized(w, "Invalid webhook signature")
	case errors.Is(err, billing.ErrMalformedEvent):
		BadRequest(w, "Malformed webhook payload", nil)

	// Account errors
	case errors.Is(err, billing.ErrAccountNotFound):
		NotFound(w, "Billing account not found")
	case errors.Is(err, billing.ErrAccountExists):
		Conflict(w, "Billing account already exists")

	// Plan errors
	case errors.Is(err, billing.ErrPlanNotFound):
		NotFound(w, "Plan not found")
	case errors.Is(err, billing.ErrPlanNotActive):
		BadRequest(w, "Plan is not available", nil)
	case errors.Is(err, billing.ErrFreePlan):
		BadRequest(w, "Plan cannot be purchased", nil)
	case errors.Is(err, billing.ErrSamePlan):
		Conflict(w, "Already subscribed to this plan")

	// Subscription state errors
	case errors.Is(err, billing.ErrNoSubscription):
		BadRequest(w, "No active subscription for this account", nil)
	case errors.Is(err, billing.ErrNoCurrentPrice):
		BadRequest(w, "Subscription has no resolvable price", nil)
	case errors.Is(err, billing.ErrNoCurrentPeriod):
		BadRequest(w, "Subscription has no resolvable billing period", nil)
	case errors.Is(err, billing.ErrInvalidState):
		Conflict(w, "Account state does not allow this operation")

	// Default: infrastructure/provider failures surface as 500 so the
	// provider's webhook retry kicks in.
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
