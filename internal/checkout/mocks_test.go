package checkout

import (
	"context"
	"testing"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/payment"
	"github.com/fjod/go_shop/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// MockProvider implements payment.Provider for testing
type MockProvider struct {
	Session  *payment.Session
	Err      error
	Calls    int
	GotItems []payment.LineItem
}

func (m *MockProvider) CreateCheckoutSession(_ context.Context, items []payment.LineItem) (*payment.Session, error) {
	m.Calls++
	m.GotItems = items
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Session, nil
}

// failingStore wraps the in-memory store and refuses order persistence,
// simulating a failure after the payment session was created.
type failingStore struct {
	*store.MemoryStore
	CreateErr error
}

func (f *failingStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	return f.MemoryStore.CreateOrder(ctx, order)
}

func seedProducts(t *testing.T, s *store.MemoryStore) {
	t.Helper()
	require.NoError(t, s.UpsertProduct(context.Background(), domain.Product{
		ID: 1, Name: "Laptop", Price: decimal.RequireFromString("10.00"), Quantity: 5,
	}))
	require.NoError(t, s.UpsertProduct(context.Background(), domain.Product{
		ID: 2, Name: "Mouse", Price: decimal.RequireFromString("5.50"), Quantity: 3,
	}))
}

func testSession() *payment.Session {
	return &payment.Session{
		ID:              "cs_test_1",
		PaymentIntentID: "pi_test_1",
		URL:             "https://checkout.example/cs_test_1",
	}
}
