package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
	"github.com/salonlabs/billing-backend-go/internal/handler/http/response"
)

// BillingHandler handles billing-related HTTP requests
type BillingHandler interface {
	// Public endpoints
	GetPlans(w http.ResponseWriter, r *http.Request)
	HandleWebhook(w http.ResponseWriter, r *http.Request)

	// Authenticated endpoints
	GetMyAccount(w http.ResponseWriter, r *http.Request)

	// Owner-only endpoints
	CreateAccount(w http.ResponseWriter, r *http.Request)
	ActivateTrial(w http.ResponseWriter, r *http.Request)
	Upgrade(w http.ResponseWriter, r *http.Request)
	Downgrade(w http.ResponseWriter, r *http.Request)
	CancelDowngrade(w http.ResponseWriter, r *http.Request)
}

type billingHandlerImpl struct {
	billingService  billing.Service
	webhookVerifier billing.WebhookVerifier
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billingService billing.Service, webhookVerifier billing.WebhookVerifier) BillingHandler {
	return &billingHandlerImpl{
		billingService:  billingService,
		webhookVerifier: webhookVerifier,
	}
}

// GetPlans retrieves all active catalog plans
// GET /api/v1/plans - Public
func (h *billingHandlerImpl) GetPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billingService.GetPlans(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, plans)
}

// GetMyAccount retrieves the caller's billing projection
// GET /api/v1/billing/account - Authenticated
func (h *billingHandlerImpl) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := getAccountIDFromContext(r)
	if !ok {
		response.Forbidden(w, "no billing account associated with this token")
		return
	}

	account, err := h.billingService.GetAccount(r.Context(), accountID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, account)
}

// CreateAccount creates the billing projection at tenant signup
// POST /api/v1/billing/account - Owner only
func (h *billingHandlerImpl) CreateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := getAccountIDFromContext(r)
	if !ok {
		response.Forbidden(w, "no billing account associated with this token")
		return
	}

	var req struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", nil)
		return
	}
	if req.PlanID == "" {
		response.BadRequest(w, "plan_id is required", nil)
		return
	}

	account, err := h.billingService.CreateAccount(r.Context(), accountID, req.PlanID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "billing account created", account.ToResponse())
}

// ActivateTrial starts a pending free trial
// POST /api/v1/billing/account/activate-trial - Owner only
func (h *billingHandlerImpl) ActivateTrial(w http.ResponseWriter, r *http.Request) {
	accountID, ok := getAccountIDFromContext(r)
	if !ok {
		response.Forbidden(w, "no billing account associated with this token")
		return
	}

	account, err := h.billingService.ActivateTrial(r.Context(), accountID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, account.ToResponse())
}

// Upgrade performs an immediate plan change
// POST /api/v1/billing/upgrade - Owner only
func (h *billingHandlerImpl) Upgrade(w http.ResponseWriter, r *http.Request) {
	accountID, ok := getAccountIDFromContext(r)
	if !ok {
		response.Forbidden(w, "no billing account associated with this token")
		return
	}

	var req billing.UpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.billingService.RequestUpgrade(r.Context(), accountID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Downgrade schedules a plan change at the end of the current period
// POST /api/v1/billing/downgrade - Owner only
func (h *billingHandlerImpl) Downgrade(w http.ResponseWriter, r *http.Request) {
	accountID, ok := getAccountIDFromContext(r)
	if !ok {
		response.Forbidden(w, "no billing account associated with this token")
		return
	}

	var req billing.DowngradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.billingService.RequestDowngrade(r.Context(), accountID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Downgrade scheduled for the end of the current billing period", result)
}

// CancelDowngrade releases a pending downgrade
// DELETE /api/v1/billing/downgrade - Owner only
func (h *billingHandlerImpl) CancelDowngrade(w http.ResponseWriter, r *http.Request) {
	accountID, ok := getAccountIDFromContext(r)
	if !ok {
		response.Forbidden(w, "no billing account associated with this token")
		return
	}

	if err := h.billingService.CancelDowngrade(r.Context(), accountID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, map[string]string{
		"message": "Pending downgrade cancelled",
	})
}

// HandleWebhook processes billing provider webhook deliveries
// POST /api/v1/webhook/billing - Public (signature verified)
func (h *billingHandlerImpl) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	// The signature covers the raw body, so it must be read before parsing.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "failed to read request body", nil)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		response.Unauthorized(w, "missing webhook signature")
		return
	}

	event, err := h.webhookVerifier.VerifyAndParse(body, signature)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if err := h.billingService.HandleEvent(r.Context(), event); err != nil {
		// Non-2xx tells the provider to retry the delivery.
		response.HandleError(w, err)
		return
	}

	response.Success(w, map[string]string{
		"status": "received",
	})
}

// Helper function to get the billing account id from JWT claims
func getAccountIDFromContext(r *http.Request) (string, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", false
	}

	accountID, ok := claims["account_id"].(string)
	if !ok || accountID == "" {
		return "", false
	}
	return accountID, true
}
