package store

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
)

// Common errors returned by the store
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAlreadyPaid  = errors.New("order is already paid")
	ErrDuplicateSession  = errors.New("order for this checkout session already exists")
)

// OutboxEvent is a pending domain event written in the same transaction as
// the state change it describes, published asynchronously by the poller.
type OutboxEvent struct {
	ID        int64
	OrderID   uuid.UUID
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Store is the authoritative order and inventory state. Implementations must
// make MarkOrderPaid atomic with respect to concurrent callers.
type Store interface {
	// GetProducts returns the products matching the given ids. Unknown ids
	// are simply absent from the result, they are not an error.
	GetProducts(ctx context.Context, ids []int64) ([]domain.Product, error)

	// UpsertProduct creates or replaces a product record (restock / seeding).
	UpsertProduct(ctx context.Context, p domain.Product) error

	// CreateOrder persists a new pending order. Returns ErrDuplicateSession
	// if an order with the same checkout session id already exists.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// GetOrderBySessionID returns the order correlated with the given
	// checkout session id, or ErrOrderNotFound.
	GetOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)

	// ListOrdersByUserID returns the user's orders, newest first.
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)

	// MarkOrderPaid performs the reconciliation transition as one atomic
	// unit: if the order is already paid it returns ErrOrderAlreadyPaid and
	// changes nothing; otherwise it conditionally decrements the stock of
	// every line item (all-or-nothing, ErrInsufficientStock if any product
	// cannot cover its quantity), records the payment intent id and sets the
	// order status to PAID. An order.paid outbox event is appended in the
	// same unit.
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error

	// GetUnpublishedEvents returns up to limit pending outbox events, oldest
	// first.
	GetUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkEventPublished marks an outbox event as delivered.
	MarkEventPublished(ctx context.Context, eventID int64) error

	Close() error
}
