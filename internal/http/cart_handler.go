package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/cart"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/store"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	cartStore cart.Store
	products  store.Store
	timeout   time.Duration
}

func NewCartHandler(cartStore cart.Store, products store.Store, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cartStore: cartStore,
		products:  products,
		timeout:   timeout,
	}
}

type CartItemDTO struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type CartResponseDTO struct {
	Items      []CartItemDTO   `json:"cart_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type AddCartItemDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type RemoveCartItemDTO struct {
	ProductID int64 `json:"product_id"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	snapshot, err := h.cartStore.Get(ctx, userID)
	if errors.Is(err, cart.ErrCartNotFound) {
		snapshot = domain.CartSnapshot{}
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	resp := CartResponseDTO{Items: make([]CartItemDTO, 0, len(snapshot)), TotalPrice: decimal.Zero}
	if !snapshot.IsEmpty() {
		products, err := h.products.GetProducts(ctx, snapshot.ProductIDs())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to load products")
			return
		}
		for _, p := range products {
			quantity := snapshot[p.ID]
			resp.Items = append(resp.Items, CartItemDTO{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  quantity,
			})
			resp.TotalPrice = resp.TotalPrice.Add(p.Price.Mul(decimal.NewFromInt(quantity)))
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// POST /api/v1/cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddCartItemDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == 0 || req.Quantity < 1 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid product_id or quantity")
		return
	}

	products, err := h.products.GetProducts(ctx, []int64{req.ProductID})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}
	if len(products) == 0 {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	// advisory only, the binding check happens at payment reconciliation
	if products[0].Quantity < req.Quantity {
		respondError(w, http.StatusBadRequest, "insufficient_stock",
			fmt.Sprintf("only %d items left in stock", products[0].Quantity))
		return
	}

	snapshot, err := h.cartStore.Get(ctx, userID)
	if errors.Is(err, cart.ErrCartNotFound) {
		snapshot = domain.CartSnapshot{}
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	snapshot[req.ProductID] = req.Quantity
	if err := h.cartStore.Set(ctx, userID, snapshot); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to store cart")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Added product %d quantity %d to cart.", req.ProductID, req.Quantity),
	})
}

// DELETE /api/v1/cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req RemoveCartItemDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snapshot, err := h.cartStore.Get(ctx, userID)
	if errors.Is(err, cart.ErrCartNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "product not in cart")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}
	if _, exists := snapshot[req.ProductID]; !exists {
		respondError(w, http.StatusNotFound, "not_found", "product not in cart")
		return
	}

	delete(snapshot, req.ProductID)
	if err := h.cartStore.Set(ctx, userID, snapshot); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to store cart")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Product removed from cart."})
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
