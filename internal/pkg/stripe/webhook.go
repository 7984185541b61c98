package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
	"github.com/shopspring/decimal"
	stripeSDK "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// WebhookVerifier checks webhook deliveries against the endpoint signing
// secret and reduces them to domain events.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// VerifyAndParse authenticates the raw payload and maps it to an
// InboundEvent. Event types this engine does not reconcile come back with the
// raw type so the processor can acknowledge them without side effects.
func (v *WebhookVerifier) VerifyAndParse(payload []byte, signatureHeader string) (billing.InboundEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, v.secret)
	if err != nil {
		return billing.InboundEvent{}, fmt.Errorf("%w: %v", billing.ErrInvalidSignature, err)
	}

	ev := billing.InboundEvent{
		ID:   event.ID,
		Type: billing.EventType(event.Type),
	}

	switch ev.Type {
	case billing.EventCheckoutCompleted:
		var session stripeSDK.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return billing.InboundEvent{}, fmt.Errorf("%w: checkout session: %v", billing.ErrMalformedEvent, err)
		}
		ev.AccountID = session.Metadata["account_id"]
		if session.Subscription != nil {
			ev.SubscriptionID = session.Subscription.ID
		}

	case billing.EventPaymentSucceeded, billing.EventPaymentFailed:
		var inv stripeSDK.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return billing.InboundEvent{}, fmt.Errorf("%w: invoice: %v", billing.ErrMalformedEvent, err)
		}
		ev.InvoiceID = inv.ID
		ev.AmountPaid = decimal.NewFromInt(inv.AmountPaid).Div(decimalHundred)
		if inv.Subscription != nil {
			ev.SubscriptionID = inv.Subscription.ID
		}
		if inv.LastFinalizationError != nil && inv.LastFinalizationError.Msg != "" {
			ev.FailureReason = inv.LastFinalizationError.Msg
		} else if ev.Type == billing.EventPaymentFailed {
			ev.FailureReason = "payment failed"
		}

	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripeSDK.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return billing.InboundEvent{}, fmt.Errorf("%w: subscription: %v", billing.ErrMalformedEvent, err)
		}
		ev.SubscriptionID = sub.ID
		ev.AccountID = sub.Metadata["account_id"]
	}

	return ev, nil
}
