package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBillingService struct {
	billing.Service

	handledEvents []billing.InboundEvent
	handleErr     error
	plans         []billing.PlanResponse
}

func (s *stubBillingService) HandleEvent(_ context.Context, ev billing.InboundEvent) error {
	if s.handleErr != nil {
		return s.handleErr
	}
	s.handledEvents = append(s.handledEvents, ev)
	return nil
}

func (s *stubBillingService) GetPlans(_ context.Context) ([]billing.PlanResponse, error) {
	return s.plans, nil
}

type stubVerifier struct {
	event billing.InboundEvent
	err   error
}

func (v *stubVerifier) VerifyAndParse(_ []byte, _ string) (billing.InboundEvent, error) {
	if v.err != nil {
		return billing.InboundEvent{}, v.err
	}
	return v.event, nil
}

func postWebhook(handler BillingHandler, signature string) *httptest.ResponseRecorder {
	body := bytes.NewBufferString(`{"id":"evt_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/billing", body)
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, req)
	return rec
}

func TestBillingHandler_HandleWebhook_Success(t *testing.T) {
	t.Parallel()
	svc := &stubBillingService{}
	verifier := &stubVerifier{event: billing.InboundEvent{
		ID:   "evt_1",
		Type: billing.EventPaymentSucceeded,
	}}
	handler := NewBillingHandler(svc, verifier)

	rec := postWebhook(handler, "t=123,v1=abc")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.handledEvents, 1)
	assert.Equal(t, "evt_1", svc.handledEvents[0].ID)
}

func TestBillingHandler_HandleWebhook_MissingSignature(t *testing.T) {
	t.Parallel()
	svc := &stubBillingService{}
	handler := NewBillingHandler(svc, &stubVerifier{})

	rec := postWebhook(handler, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.handledEvents)
}

func TestBillingHandler_HandleWebhook_InvalidSignature(t *testing.T) {
	t.Parallel()
	svc := &stubBillingService{}
	verifier := &stubVerifier{err: billing.ErrInvalidSignature}
	handler := NewBillingHandler(svc, verifier)

	rec := postWebhook(handler, "t=123,v1=bad")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.handledEvents)
}

func TestBillingHandler_HandleWebhook_MalformedPayload(t *testing.T) {
	t.Parallel()
	verifier := &stubVerifier{err: billing.ErrMalformedEvent}
	handler := NewBillingHandler(&stubBillingService{}, verifier)

	rec := postWebhook(handler, "t=123,v1=abc")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingHandler_HandleWebhook_HandlerFailureRequestsRetry(t *testing.T) {
	t.Parallel()
	svc := &stubBillingService{handleErr: assert.AnError}
	verifier := &stubVerifier{event: billing.InboundEvent{ID: "evt_1"}}
	handler := NewBillingHandler(svc, verifier)

	rec := postWebhook(handler, "t=123,v1=abc")

	// Non-2xx so the provider re-delivers the event.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBillingHandler_GetPlans(t *testing.T) {
	t.Parallel()
	svc := &stubBillingService{plans: []billing.PlanResponse{
		{ID: "plan_starter", Name: "Starter", TrialDays: 14},
	}}
	handler := NewBillingHandler(svc, &stubVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	rec := httptest.NewRecorder()
	handler.GetPlans(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Data    []billing.PlanResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "plan_starter", resp.Data[0].ID)
}
