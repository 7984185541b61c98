package billing

import "github.com/shopspring/decimal"

// EventType identifies the provider event kinds this engine reconciles.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventPaymentSucceeded    EventType = "invoice.payment_succeeded"
	EventPaymentFailed       EventType = "invoice.payment_failed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
)

// InboundEvent is a provider webhook event reduced to the fields the
// reconciliation handlers need. AccountID carries the correlation id set in
// provider metadata at checkout/subscription creation; SubscriptionID is the
// primary lookup key, AccountID the fallback.
type InboundEvent struct {
	ID             string
	Type           EventType
	SubscriptionID string
	AccountID      string
	InvoiceID      string
	AmountPaid     decimal.Decimal
	FailureReason  string
}

// WebhookVerifier authenticates a raw webhook delivery and reduces it to an
// InboundEvent. Implementations must reject payloads whose signature does not
// match the shared endpoint secret.
type WebhookVerifier interface {
	VerifyAndParse(payload []byte, signatureHeader string) (InboundEvent, error)
}
