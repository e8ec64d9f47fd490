package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/store"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func (r *Repository) GetProducts(ctx context.Context, ids []int64) ([]domain.Product, error) {
	query := `SELECT id, name, price, quantity, created_at
	          FROM products WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *Repository) UpsertProduct(ctx context.Context, p domain.Product) error {
	query := `INSERT INTO products (id, name, price, quantity, created_at)
	          VALUES ($1, $2, $3, $4, NOW())
	          ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, quantity = $4`

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.Quantity); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, items, total_price, status, checkout_session_id, payment_intent_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		itemsJSON,
		order.TotalPrice,
		order.Status,
		order.CheckoutSessionID,
		order.PaymentIntentID)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return store.ErrDuplicateSession
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) GetOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	// Direct orders store '' in checkout_session_id (the unique index skips
	// them), so an empty lookup would match an arbitrary session-less order.
	if sessionID == "" {
		return nil, store.ErrOrderNotFound
	}

	query := `SELECT id, user_id, items, total_price, status, checkout_session_id, payment_intent_id, created_at, updated_at
	          FROM orders WHERE checkout_session_id = $1`

	return r.scanOrder(r.db.QueryRowContext(ctx, query, sessionID))
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT id, user_id, items, total_price, status, checkout_session_id, payment_intent_id, created_at, updated_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// MarkOrderPaid runs the reconcile transition in a single transaction. The
// order row lock serializes duplicate reconciliations of the same order;
// product rows are locked in ascending id order so two reconciliations
// sharing products cannot deadlock.
func (r *Repository) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark paid tx: %w", err)
	}
	defer tx.Rollback()

	var status domain.PaymentStatus
	var itemsJSON []byte
	row := tx.QueryRowContext(ctx,
		`SELECT status, items FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if err := row.Scan(&status, &itemsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrOrderNotFound
		}
		return fmt.Errorf("lock order row: %w", err)
	}

	if status == domain.PaymentStatusPaid {
		return store.ErrOrderAlreadyPaid
	}

	var items []domain.OrderItem
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return fmt.Errorf("unmarshal order items: %w", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	for _, item := range items {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2`,
			item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("decrement product %d: %w", item.ProductID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("decrement product %d: %w", item.ProductID, err)
		}
		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, item.ProductID).Scan(&exists); err != nil {
				return fmt.Errorf("check product %d: %w", item.ProductID, err)
			}
			if !exists {
				return fmt.Errorf("product %d: %w", item.ProductID, store.ErrProductNotFound)
			}
			return fmt.Errorf("product %q: %w", item.ProductName, store.ErrInsufficientStock)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $2,
		        payment_intent_id = COALESCE(NULLIF(payment_intent_id, ''), $3),
		        updated_at = NOW()
		 WHERE id = $1`,
		orderID, domain.PaymentStatusPaid, paymentIntentID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":          orderID,
		"payment_intent_id": paymentIntentID,
		"items":             items,
	})
	if err != nil {
		return fmt.Errorf("marshal order event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_events (order_id, event_type, payload) VALUES ($1, $2, $3)`,
		orderID, "order.paid", payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark paid tx: %w", err)
	}
	return nil
}

func (r *Repository) GetUnpublishedEvents(ctx context.Context, limit int) ([]*store.OutboxEvent, error) {
	query := `SELECT id, order_id, event_type, payload, created_at
	          FROM order_events WHERE published_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*store.OutboxEvent
	for rows.Next() {
		var e store.OutboxEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventPublished(ctx context.Context, eventID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE order_events SET published_at = NOW() WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&order.TotalPrice,
		&order.Status,
		&order.CheckoutSessionID,
		&order.PaymentIntentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}
