package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/payment"
	"github.com/fjod/go_shop/internal/reconciler"
	"github.com/fjod/go_shop/internal/store"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEndpointSecret = "whsec_test"

func newWebhookFixture(t *testing.T) (*WebhookHandler, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	seedProducts(t, memStore)
	rec := reconciler.NewReconciler(memStore)
	return NewWebhookHandler(rec, testEndpointSecret, newTestMetrics()), memStore
}

func pendingOrder(t *testing.T, st *store.MemoryStore, sessionID string) *domain.Order {
	t.Helper()
	order := &domain.Order{
		ID:     uuid.New(),
		UserID: "user-1",
		Items: []domain.OrderItem{
			{ProductID: 1, ProductName: "Laptop", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		},
		TotalPrice:        decimal.RequireFromString("20.00"),
		Status:            domain.PaymentStatusPending,
		CheckoutSessionID: sessionID,
	}
	require.NoError(t, st.CreateOrder(context.Background(), order))
	return order
}

func signedWebhookRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewBufferString(payload))
	r.Header.Set(payment.SignatureHeader,
		payment.SignPayload([]byte(payload), testEndpointSecret, time.Now().Unix()))
	return r
}

func completedEventJSON(sessionID, paymentIntentID string) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": %q, "payment_intent": %q}}
	}`, sessionID, paymentIntentID)
}

func TestHandleEvent_MarksOrderPaid(t *testing.T) {
	handler, memStore := newWebhookFixture(t)
	pendingOrder(t, memStore, "cs_test_1")

	w := httptest.NewRecorder()
	handler.HandleEvent(w, signedWebhookRequest(t, completedEventJSON("cs_test_1", "pi_test_1")))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)

	order, err := memStore.GetOrderBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.Status)
	assert.Equal(t, "pi_test_1", order.PaymentIntentID)

	products, err := memStore.GetProducts(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), products[0].Quantity)
}

func TestHandleEvent_RedeliveryIsIdempotent(t *testing.T) {
	handler, memStore := newWebhookFixture(t)
	pendingOrder(t, memStore, "cs_test_1")
	payload := completedEventJSON("cs_test_1", "pi_test_1")

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.HandleEvent(w, signedWebhookRequest(t, payload))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	products, err := memStore.GetProducts(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), products[0].Quantity, "stock decremented exactly once")
}

func TestHandleEvent_InvalidSignatureRejected(t *testing.T) {
	handler, memStore := newWebhookFixture(t)
	pendingOrder(t, memStore, "cs_test_1")
	payload := completedEventJSON("cs_test_1", "pi_test_1")

	r := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewBufferString(payload))
	r.Header.Set(payment.SignatureHeader,
		payment.SignPayload([]byte(payload), "whsec_wrong", time.Now().Unix()))
	w := httptest.NewRecorder()
	handler.HandleEvent(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_signature")

	order, err := memStore.GetOrderBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.Status)
}

func TestHandleEvent_MissingSignatureRejected(t *testing.T) {
	handler, _ := newWebhookFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook",
		bytes.NewBufferString(completedEventJSON("cs_test_1", "pi_test_1")))
	w := httptest.NewRecorder()
	handler.HandleEvent(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_MalformedJSONRejected(t *testing.T) {
	handler, _ := newWebhookFixture(t)

	w := httptest.NewRecorder()
	handler.HandleEvent(w, signedWebhookRequest(t, `{"id": "evt_1", "type":`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_payload")
}

func TestHandleEvent_UnknownSessionAcknowledged(t *testing.T) {
	handler, _ := newWebhookFixture(t)

	w := httptest.NewRecorder()
	handler.HandleEvent(w, signedWebhookRequest(t, completedEventJSON("cs_unknown", "pi_x")))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored"`)
}

func TestHandleEvent_MissingSessionIDNeverSettlesDirectOrder(t *testing.T) {
	memStore := store.NewMemoryStore()
	seedProducts(t, memStore)
	// a direct order, persisted without a checkout session
	order := &domain.Order{
		ID:     uuid.New(),
		UserID: "user-1",
		Items: []domain.OrderItem{
			{ProductID: 1, ProductName: "Laptop", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		},
		TotalPrice: decimal.RequireFromString("20.00"),
		Status:     domain.PaymentStatusPending,
	}
	require.NoError(t, memStore.CreateOrder(context.Background(), order))

	m := newTestMetrics()
	handler := NewWebhookHandler(reconciler.NewReconciler(memStore), testEndpointSecret, m)

	// envelope without a data.object.id, session id unmarshals to ""
	payload := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"payment_intent": "pi_x"}}
	}`
	w := httptest.NewRecorder()
	handler.HandleEvent(w, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookTotal.WithLabelValues("ignored")))

	orders, err := memStore.ListOrdersByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.PaymentStatusPending, orders[0].Status)

	products, err := memStore.GetProducts(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), products[0].Quantity)
}

func TestHandleEvent_IgnoresOtherEventTypes(t *testing.T) {
	handler, memStore := newWebhookFixture(t)
	pendingOrder(t, memStore, "cs_test_1")
	payload := `{
		"id": "evt_2",
		"type": "payment_intent.created",
		"data": {"object": {"id": "cs_test_1", "payment_intent": "pi_test_1"}}
	}`

	w := httptest.NewRecorder()
	handler.HandleEvent(w, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored"`)
	order, err := memStore.GetOrderBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.Status)
}

func TestHandleEvent_StockConflictAcknowledged(t *testing.T) {
	handler, memStore := newWebhookFixture(t)
	order := &domain.Order{
		ID:     uuid.New(),
		UserID: "user-1",
		Items: []domain.OrderItem{
			// only 5 in stock
			{ProductID: 1, ProductName: "Laptop", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 10},
		},
		TotalPrice:        decimal.RequireFromString("100.00"),
		Status:            domain.PaymentStatusPending,
		CheckoutSessionID: "cs_oversold",
	}
	require.NoError(t, memStore.CreateOrder(context.Background(), order))

	w := httptest.NewRecorder()
	handler.HandleEvent(w, signedWebhookRequest(t, completedEventJSON("cs_oversold", "pi_x")))

	// fatal for the order, but acknowledged so the processor stops retrying
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stock_conflict")

	got, err := memStore.GetOrderBySessionID(context.Background(), "cs_oversold")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.Status)
}
