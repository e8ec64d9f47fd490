package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/checkout"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/store"
	"github.com/shopspring/decimal"
)

type OrdersHandler struct {
	orders          store.Store
	checkoutService checkout.CheckoutService
	timeout         time.Duration
}

func NewOrdersHandler(orders store.Store, svc checkout.CheckoutService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:          orders,
		checkoutService: svc,
		timeout:         timeout,
	}
}

type OrderItemDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int64           `json:"quantity"`
}

type OrderResponseDTO struct {
	ID                string          `json:"id"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Status            string          `json:"status"`
	CheckoutSessionID string          `json:"checkout_session_id,omitempty"`
	Items             []OrderItemDTO  `json:"items"`
	CreatedAt         string          `json:"created_at"`
}

type CreateOrderItemDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type CreateOrderRequestDTO struct {
	Items []CreateOrderItemDTO `json:"items"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersByUserID(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, order := range orders {
		dtos = append(dtos, convertOrder(order))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "order must have items")
		return
	}

	snapshot := make(domain.CartSnapshot, len(req.Items))
	for _, item := range req.Items {
		snapshot[item.ProductID] = item.Quantity
	}

	order, err := h.checkoutService.CreateOrder(ctx, userID, snapshot)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, convertOrder(order))
}

func (h *OrdersHandler) respondOrderError(w http.ResponseWriter, err error) {
	var stockErr *checkout.InsufficientStockError
	var notFoundErr *checkout.ProductNotFoundError

	switch {
	case errors.As(err, &stockErr):
		respondError(w, http.StatusBadRequest, "insufficient_stock", stockErr.Error())
	case errors.As(err, &notFoundErr):
		respondError(w, http.StatusBadRequest, "product_not_found", notFoundErr.Error())
	case errors.Is(err, checkout.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_request", "quantity must be a positive integer")
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrNoValidItems):
		respondError(w, http.StatusBadRequest, "invalid_request", "order must have items")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create order")
	}
}

func convertOrder(order *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	return OrderResponseDTO{
		ID:                order.ID.String(),
		TotalPrice:        order.TotalPrice,
		Status:            order.Status.String(),
		CheckoutSessionID: order.CheckoutSessionID,
		Items:             items,
		CreatedAt:         order.CreatedAt.UTC().Format(time.RFC3339),
	}
}
