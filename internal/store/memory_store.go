package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory storage. It backs the service
// when no database is configured and is the fixture for unit tests. All
// mutations happen under one mutex, which gives MarkOrderPaid the same
// serialization the Postgres implementation gets from row locks.
type MemoryStore struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	orders          map[uuid.UUID]*domain.Order
	ordersBySession map[string]uuid.UUID
	outbox          []*OutboxEvent
	nextEventID     int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:        make(map[int64]domain.Product),
		orders:          make(map[uuid.UUID]*domain.Order),
		ordersBySession: make(map[string]uuid.UUID),
		nextEventID:     1,
	}
}

func (s *MemoryStore) GetProducts(_ context.Context, ids []int64) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, exists := s.products[id]; exists {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *MemoryStore) UpsertProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.products[p.ID] = p
	return nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.CheckoutSessionID != "" {
		if _, exists := s.ordersBySession[order.CheckoutSessionID]; exists {
			return ErrDuplicateSession
		}
	}

	now := time.Now()
	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	s.orders[stored.ID] = &stored
	if stored.CheckoutSessionID != "" {
		s.ordersBySession[stored.CheckoutSessionID] = stored.ID
	}
	return nil
}

func (s *MemoryStore) GetOrderBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderID, exists := s.ordersBySession[sessionID]
	if !exists {
		return nil, ErrOrderNotFound
	}
	return copyOrder(s.orders[orderID]), nil
}

func (s *MemoryStore) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*domain.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, copyOrder(order))
		}
	}
	// newest first
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) MarkOrderPaid(_ context.Context, orderID uuid.UUID, paymentIntentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return ErrOrderNotFound
	}
	if order.Status == domain.PaymentStatusPaid {
		return ErrOrderAlreadyPaid
	}

	// First pass: validate all items have sufficient stock
	for _, item := range order.Items {
		product, ok := s.products[item.ProductID]
		if !ok {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrProductNotFound)
		}
		if product.Quantity < item.Quantity {
			return fmt.Errorf("product %q: %w", product.Name, ErrInsufficientStock)
		}
	}

	// Second pass: decrement stock for all items
	for _, item := range order.Items {
		product := s.products[item.ProductID]
		product.Quantity -= item.Quantity
		s.products[item.ProductID] = product
	}

	order.Status = domain.PaymentStatusPaid
	if order.PaymentIntentID == "" {
		order.PaymentIntentID = paymentIntentID
	}
	order.UpdatedAt = time.Now()

	payload, err := json.Marshal(copyOrder(order))
	if err != nil {
		return fmt.Errorf("marshal order event payload: %w", err)
	}
	s.outbox = append(s.outbox, &OutboxEvent{
		ID:        s.nextEventID,
		OrderID:   order.ID,
		EventType: "order.paid",
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	s.nextEventID++
	return nil
}

func (s *MemoryStore) GetUnpublishedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*OutboxEvent, 0, limit)
	for _, event := range s.outbox {
		if len(events) == limit {
			break
		}
		copied := *event
		events = append(events, &copied)
	}
	return events, nil
}

func (s *MemoryStore) MarkEventPublished(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, event := range s.outbox {
		if event.ID == eventID {
			s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyOrder(order *domain.Order) *domain.Order {
	copied := *order
	copied.Items = append([]domain.OrderItem(nil), order.Items...)
	return &copied
}
