package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/cart"
	"github.com/fjod/go_shop/internal/checkout"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/metrics"
)

type CheckoutHandler struct {
	checkoutService checkout.CheckoutService
	cartStore       cart.Store
	metrics         *metrics.ShopMetrics
	timeout         time.Duration
}

func NewCheckoutHandler(svc checkout.CheckoutService, cartStore cart.Store, m *metrics.ShopMetrics, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: svc,
		cartStore:       cartStore,
		metrics:         m,
		timeout:         timeout,
	}
}

type CheckoutResponseDTO struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	URL               string `json:"url,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
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

	session, err := h.checkoutService.InitiateCheckout(ctx, userID, snapshot)
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}

	h.metrics.CheckoutTotal.WithLabelValues("success").Inc()
	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		CheckoutSessionID: session.ID,
		URL:               session.URL,
	})
}

func (h *CheckoutHandler) respondCheckoutError(w http.ResponseWriter, err error) {
	var stockErr *checkout.InsufficientStockError
	var notFoundErr *checkout.ProductNotFoundError

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		h.metrics.CheckoutTotal.WithLabelValues("empty_cart").Inc()
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, checkout.ErrNoValidItems):
		h.metrics.CheckoutTotal.WithLabelValues("no_valid_items").Inc()
		respondError(w, http.StatusBadRequest, "no_valid_items", "no valid products in cart")
	case errors.As(err, &stockErr):
		h.metrics.CheckoutTotal.WithLabelValues("insufficient_stock").Inc()
		respondError(w, http.StatusBadRequest, "insufficient_stock", stockErr.Error())
	case errors.As(err, &notFoundErr):
		h.metrics.CheckoutTotal.WithLabelValues("product_not_found").Inc()
		respondError(w, http.StatusBadRequest, "product_not_found", notFoundErr.Error())
	case errors.Is(err, checkout.ErrPaymentProvider):
		h.metrics.CheckoutTotal.WithLabelValues("payment_provider_error").Inc()
		respondError(w, http.StatusBadGateway, "payment_provider_error", "payment provider request failed")
	default:
		h.metrics.CheckoutTotal.WithLabelValues("internal_error").Inc()
		respondError(w, http.StatusInternalServerError, "internal_error", "checkout failed")
	}
}
