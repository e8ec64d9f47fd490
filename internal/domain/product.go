package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the authoritative inventory record for one sellable item.
// Quantity is only ever mutated through the store's conditional decrement
// (payment reconciliation) or an administrative restock.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}
