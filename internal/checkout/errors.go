package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrNoValidItems    = errors.New("no valid products in cart")
	ErrPaymentProvider = errors.New("payment provider request failed")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// InsufficientStockError fails the whole checkout; there is no partial
// fulfillment.
type InsufficientStockError struct {
	ProductName string
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %q, only %d left", e.ProductName, e.Available)
}

// ProductNotFoundError is returned only in strict mode; by default unknown
// product ids are dropped from the cart.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product id %d does not exist", e.ProductID)
}
