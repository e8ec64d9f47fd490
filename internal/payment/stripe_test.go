package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []LineItem {
	return []LineItem{
		{Name: "Laptop", UnitPrice: decimal.RequireFromString("999.99"), Quantity: 1},
		{Name: "Mouse", UnitPrice: decimal.RequireFromString("19.90"), Quantity: 2},
	}
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","payment_intent":"pi_test_1","url":"https://checkout.example/cs_test_1"}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{
		APIBase:    server.URL,
		SecretKey:  "sk_test_123",
		SuccessURL: "https://shop.example/success",
		CancelURL:  "https://shop.example/cancel",
		Timeout:    2 * time.Second,
	})

	session, err := client.CreateCheckoutSession(context.Background(), testItems())
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "pi_test_1", session.PaymentIntentID)

	assert.Equal(t, "payment", gotForm["mode"][0])
	assert.Equal(t, "https://shop.example/success", gotForm["success_url"][0])
	// prices converted to cents
	assert.Equal(t, "99999", gotForm["line_items[0][price_data][unit_amount]"][0])
	assert.Equal(t, "1990", gotForm["line_items[1][price_data][unit_amount]"][0])
	assert.Equal(t, "2", gotForm["line_items[1][quantity]"][0])
}

func TestCreateCheckoutSession_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{APIBase: server.URL, SecretKey: "sk_test"})

	_, err := client.CreateCheckoutSession(context.Background(), testItems())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 402")
}

func TestCreateCheckoutSession_MissingSessionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{APIBase: server.URL, SecretKey: "sk_test"})

	_, err := client.CreateCheckoutSession(context.Background(), testItems())
	assert.ErrorContains(t, err, "missing id")
}

func TestCreateCheckoutSession_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{APIBase: server.URL, SecretKey: "sk_test"})

	for i := 0; i < 8; i++ {
		_, err := client.CreateCheckoutSession(context.Background(), testItems())
		assert.Error(t, err)
	}
	// breaker trips after 5 consecutive failures, later calls never reach the server
	assert.Equal(t, 5, calls)
}

func TestCreateCheckoutSession_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{APIBase: server.URL, SecretKey: "sk_test"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.CreateCheckoutSession(ctx, testItems())
	assert.Error(t, err)
}
