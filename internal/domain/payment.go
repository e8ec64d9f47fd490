package domain

// EventTypeCheckoutCompleted is the only payment event type that triggers
// reconciliation; every other type is acknowledged and ignored.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// PaymentEvent is an inbound, signature-verified notification from the
// payment processor. The processor owns event durability and redelivery;
// nothing here is persisted beyond what reconciliation needs.
type PaymentEvent struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	CheckoutSessionID string `json:"checkout_session_id"`
	PaymentIntentID   string `json:"payment_intent_id"`
}
