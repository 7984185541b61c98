package billing

import (
	"time"

	"github.com/salonlabs/billing-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ==================== Request DTOs ====================

// UpgradeRequest represents a request to upgrade the account's plan
type UpgradeRequest struct {
	PlanID string `json:"plan_id"`
}

func (r *UpgradeRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.PlanID) {
		errs = append(errs, validator.ValidationError{Field: "plan_id", Message: "plan_id is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// DowngradeRequest represents a request to downgrade the account's plan at
// the end of the current billing period
type DowngradeRequest struct {
	PlanID string `json:"plan_id"`
}

func (r *DowngradeRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.PlanID) {
		errs = append(errs, validator.ValidationError{Field: "plan_id", Message: "plan_id is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ==================== Response DTOs ====================

// PlanResponse represents a catalog plan in API responses
type PlanResponse struct {
	ID           string          `json:"id"`
	Key          string          `json:"key"`
	Name         string          `json:"name"`
	PriceLabel   string          `json:"price_label"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	TrialDays    int             `json:"trial_days"`
	BranchLimit  int             `json:"branch_limit"`
	StaffLimit   int             `json:"staff_limit"`
}

// PendingDowngradeResponse represents a scheduled downgrade in API responses
type PendingDowngradeResponse struct {
	PlanID        string `json:"plan_id"`
	PlanName      string `json:"plan_name"`
	PriceLabel    string `json:"price_label"`
	EffectiveDate string `json:"effective_date"`
	BranchLimit   int    `json:"branch_limit"`
	StaffLimit    int    `json:"staff_limit"`
}

// AccountResponse represents the billing projection in API responses
type AccountResponse struct {
	ID                 string                    `json:"id"`
	Status             AccountStatus             `json:"status"`
	SubscriptionStatus SubscriptionStatus        `json:"subscription_status"`
	PlanID             string                    `json:"plan_id"`
	PlanKey            string                    `json:"plan_key"`
	PlanName           string                    `json:"plan_name"`
	PriceLabel         string                    `json:"price_label"`
	BranchLimit        int                       `json:"branch_limit"`
	StaffLimit         int                       `json:"staff_limit"`
	CurrentPeriodStart string                    `json:"current_period_start"`
	CurrentPeriodEnd   string                    `json:"current_period_end"`
	TrialEnd           *string                   `json:"trial_end,omitempty"`
	GraceUntil         *string                   `json:"grace_until,omitempty"`
	CancelAtPeriodEnd  bool                      `json:"cancel_at_period_end"`
	PendingDowngrade   *PendingDowngradeResponse `json:"pending_downgrade,omitempty"`
}

// ToResponse maps a catalog plan to its API shape.
func (p Plan) ToResponse() PlanResponse {
	return PlanResponse{
		ID:           p.ID,
		Key:          p.Key,
		Name:         p.Name,
		PriceLabel:   p.PriceLabel,
		MonthlyPrice: p.MonthlyPrice,
		TrialDays:    p.TrialDays,
		BranchLimit:  p.BranchLimit,
		StaffLimit:   p.StaffLimit,
	}
}

// ToResponse maps an account projection to its API shape.
func (a Account) ToResponse() AccountResponse {
	resp := AccountResponse{
		ID:                 a.ID,
		Status:             a.Status,
		SubscriptionStatus: a.SubscriptionStatus,
		PlanID:             a.PlanID,
		PlanKey:            a.PlanKey,
		PlanName:           a.PlanName,
		PriceLabel:         a.PriceLabel,
		BranchLimit:        a.BranchLimit,
		StaffLimit:         a.StaffLimit,
		CurrentPeriodStart: a.CurrentPeriodStart.Format(time.RFC3339),
		CurrentPeriodEnd:   a.CurrentPeriodEnd.Format(time.RFC3339),
		CancelAtPeriodEnd:  a.CancelAtPeriodEnd,
	}

	if a.TrialEnd != nil {
		s := a.TrialEnd.Format(time.RFC3339)
		resp.TrialEnd = &s
	}
	if a.GraceUntil != nil {
		s := a.GraceUntil.Format(time.RFC3339)
		resp.GraceUntil = &s
	}
	if a.PendingDowngrade != nil {
		resp.PendingDowngrade = &PendingDowngradeResponse{
			PlanID:        a.PendingDowngrade.PlanID,
			PlanName:      a.PendingDowngrade.PlanName,
			PriceLabel:    a.PendingDowngrade.PriceLabel,
			EffectiveDate: a.PendingDowngrade.EffectiveDate.Format(time.RFC3339),
			BranchLimit:   a.PendingDowngrade.BranchLimit,
			StaffLimit:    a.PendingDowngrade.StaffLimit,
		}
	}

	return resp
}
