package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// OrderItem is a frozen copy of product data captured at checkout time.
// Later price or name changes on the live product never alter it.
type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int64           `json:"quantity"`
}

// Subtotal returns unit price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// Order is the durable record created at checkout. UserID is kept as a plain
// string so the order survives user deletion. CheckoutSessionID and
// PaymentIntentID correlate the order with the external payment processor
// and are set at most once. Status moves PENDING -> PAID exactly once.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	UserID            string          `json:"user_id"`
	Items             []OrderItem     `json:"items"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Status            PaymentStatus   `json:"status"`
	CheckoutSessionID string          `json:"checkout_session_id"`
	PaymentIntentID   string          `json:"payment_intent_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderTotal sums the subtotals of the given items.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
