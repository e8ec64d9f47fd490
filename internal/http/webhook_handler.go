package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/metrics"
	"github.com/fjod/go_shop/internal/payment"
	"github.com/fjod/go_shop/internal/reconciler"
	"github.com/fjod/go_shop/internal/store"
)

const maxWebhookBody = 1 << 20 // 1MB

type WebhookHandler struct {
	reconciler     reconciler.Reconciler
	endpointSecret string
	metrics        *metrics.ShopMetrics
}

func NewWebhookHandler(rec reconciler.Reconciler, endpointSecret string, m *metrics.ShopMetrics) *WebhookHandler {
	return &WebhookHandler{
		reconciler:     rec,
		endpointSecret: endpointSecret,
		metrics:        m,
	}
}

// stripeEvent mirrors the processor's envelope: the object inside data is
// the checkout session the event refers to.
type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

// POST /api/v1/payments/webhook
//
// Server-to-server callback: anything acknowledged with 2xx is considered
// delivered by the processor, anything else gets retried with backoff. The
// reconciler is idempotent, so retries after a 5xx are safe.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "failed to read body")
		return
	}

	sigHeader := r.Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(payload, sigHeader, h.endpointSecret, payment.DefaultTolerance); err != nil {
		h.metrics.WebhookTotal.WithLabelValues("invalid_signature").Inc()
		log.Printf("rejected webhook with invalid signature: %v", err)
		respondError(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.metrics.WebhookTotal.WithLabelValues("invalid_payload").Inc()
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body")
		return
	}

	applied, err := h.reconciler.ProcessEvent(r.Context(), domain.PaymentEvent{
		ID:                event.ID,
		Type:              event.Type,
		CheckoutSessionID: event.Data.Object.ID,
		PaymentIntentID:   event.Data.Object.PaymentIntent,
	})
	switch {
	case err == nil && applied:
		h.metrics.WebhookTotal.WithLabelValues("processed").Inc()
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case err == nil:
		// benign no-op: ignorable type, unknown session or duplicate
		h.metrics.WebhookTotal.WithLabelValues("ignored").Inc()
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	case errors.Is(err, store.ErrInsufficientStock):
		// Oversold order: fatal for that order, retrying the delivery
		// cannot help. Acknowledge so the processor stops, the alert goes
		// to the operator.
		h.metrics.WebhookTotal.WithLabelValues("stock_conflict").Inc()
		h.metrics.StockConflicts.Inc()
		respondJSON(w, http.StatusOK, map[string]string{"status": "stock_conflict"})
	default:
		// transient store failure, let the processor redeliver
		h.metrics.WebhookTotal.WithLabelValues("error").Inc()
		log.Printf("webhook processing failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "event processing failed")
	}
}
