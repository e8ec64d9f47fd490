package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineItem is one priced cart line sent to the payment processor.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
}

// Session is the external processor's reference to a hosted checkout. The
// client completes payment against it out-of-band; the ID is the correlation
// id webhook events carry back.
type Session struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent"`
	URL             string `json:"url"`
}

// Provider creates hosted checkout sessions with the external payment
// processor. Implementations must bound the request with the context.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, items []LineItem) (*Session, error)
}
